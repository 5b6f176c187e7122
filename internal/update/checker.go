// Package update decides when a cached pair list or image list has gone
// stale.
//
// A list built with cut-off c + buffer stays complete for cut-off c until
// two particles have closed more than buffer of separation between them.
// The checks here are pure: they compare a snapshot taken at the last
// rebuild with the current state and advise the caller.
package update

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/nblist/internal/config"
	"github.com/banshee-data/nblist/internal/geometry"
	"github.com/banshee-data/nblist/internal/selection"
	"github.com/banshee-data/nblist/internal/status"
)

// HalfShell holds the 13 lattice translations, one of each ± pair, of the
// cells sharing a face, edge or corner with the central cell.
var HalfShell = [13][3]int{
	{1, 0, 0}, {0, 1, 0}, {0, 0, 1},
	{1, 1, 0}, {1, -1, 0},
	{1, 0, 1}, {1, 0, -1},
	{0, 1, 1}, {0, 1, -1},
	{1, 1, 1}, {1, 1, -1}, {1, -1, 1}, {1, -1, -1},
}

// Checker holds the Verlet buffer.
type Checker struct {
	Buffer float64
}

// NewChecker returns a checker for a non-negative buffer.
func NewChecker(buffer float64) (*Checker, error) {
	if !(buffer >= 0) {
		return nil, fmt.Errorf("buffer %g: %w", buffer, status.ErrInvalidArgument)
	}
	return &Checker{Buffer: buffer}, nil
}

// NewCheckerFromTuning returns a checker using the tuning buffer.
func NewCheckerFromTuning(cfg *config.TuningConfig) *Checker {
	return &Checker{Buffer: cfg.GetBuffer()}
}

// CheckForUpdate returns the largest displacement between then and now
// over the free particles (all particles when free is nil), and whether it
// exceeds half the buffer.
func (c *Checker) CheckForUpdate(then, now geometry.Coordinates3, free *selection.Selection) (bool, float64, error) {
	if len(then) != len(now) {
		return false, 0, fmt.Errorf("comparing %d coordinates with %d: %w", len(then), len(now), status.ErrNonConformableArrays)
	}
	var disp []float64
	if free == nil {
		disp = make([]float64, len(now))
		for i := range now {
			disp[i] = r3.Norm(r3.Sub(now[i], then[i]))
		}
	} else {
		if ub := free.UpperBound(); ub > len(now) {
			return false, 0, fmt.Errorf("free selection bound %d for %d coordinates: %w", ub, len(now), status.ErrIndexOutOfRange)
		}
		for _, i := range free.All() {
			disp = append(disp, r3.Norm(r3.Sub(now[i], then[i])))
		}
	}
	maxDisp := largest(disp)
	return maxDisp > c.Buffer/2, maxDisp, nil
}

// CheckForImageUpdate returns the largest change of the image displacements
// M·o between the cells then and now, over the fractional offsets o (the
// half shell when offsets is nil), and whether it exceeds what is left of
// the buffer after particles have moved by maxDisp.
func (c *Checker) CheckForImageUpdate(then, now *geometry.SymmetryParameters, offsets []r3.Vec, maxDisp float64) (bool, float64, error) {
	if then == nil || now == nil {
		return false, 0, fmt.Errorf("image check needs both cells: %w", status.ErrInvalidArgument)
	}
	if offsets == nil {
		offsets = make([]r3.Vec, len(HalfShell))
		for k, n := range HalfShell {
			offsets[k] = r3.Vec{X: float64(n[0]), Y: float64(n[1]), Z: float64(n[2])}
		}
	}
	var dm mat.Dense
	dm.Sub(now.M(), then.M())
	shifts := make([]float64, len(offsets))
	for k, o := range offsets {
		shifts[k] = r3.Norm(geometry.MulVec(&dm, o))
	}
	change := largest(shifts)
	budget := c.Buffer - maxDisp
	return budget <= 0 || change > budget, change, nil
}

// largest is floats.Max with zero for an empty slice.
func largest(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	return floats.Max(v)
}
