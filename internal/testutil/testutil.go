// Package testutil provides shared test fixtures for the neighbour-list
// packages: seeded random coordinates and brute-force reference searches.
package testutil

import (
	"math/rand/v2"
	"slices"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/nblist/internal/geometry"
)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t testing.TB, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// RandomCoordinates returns n points drawn uniformly from [0, extent) on
// each axis. The same seed always yields the same points.
func RandomCoordinates(seed uint64, n int, extent r3.Vec) geometry.Coordinates3 {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	out := make(geometry.Coordinates3, n)
	for i := range out {
		out[i] = r3.Vec{
			X: rng.Float64() * extent.X,
			Y: rng.Float64() * extent.Y,
			Z: rng.Float64() * extent.Z,
		}
	}
	return out
}

// Cube returns an extent with equal sides.
func Cube(l float64) r3.Vec { return r3.Vec{X: l, Y: l, Z: l} }

// Pair is an ordered index pair.
type Pair [2]int

// BruteSelfPairs returns every pair i < j closer than cutoff, using the
// minimum image convention when box is not nil. The result is sorted.
func BruteSelfPairs(c geometry.Coordinates3, cutoff float64, box *geometry.PeriodicBox) []Pair {
	var out []Pair
	c2 := cutoff * cutoff
	for i := range c {
		for j := i + 1; j < len(c); j++ {
			if r3.Norm2(box.MinimumImage(r3.Sub(c[i], c[j]))) <= c2 {
				out = append(out, Pair{i, j})
			}
		}
	}
	return out
}

// BruteCrossPairs returns every pair (i, j), i indexing a and j indexing b,
// closer than cutoff. The result is sorted.
func BruteCrossPairs(a, b geometry.Coordinates3, cutoff float64, box *geometry.PeriodicBox) []Pair {
	var out []Pair
	c2 := cutoff * cutoff
	for i := range a {
		for j := range b {
			if r3.Norm2(box.MinimumImage(r3.Sub(a[i], b[j]))) <= c2 {
				out = append(out, Pair{i, j})
			}
		}
	}
	return out
}

// SortPairs sorts pairs lexicographically in place and returns them.
func SortPairs(p []Pair) []Pair {
	slices.SortFunc(p, func(x, y Pair) int {
		if x[0] != y[0] {
			return x[0] - y[0]
		}
		return x[1] - y[1]
	})
	return p
}
