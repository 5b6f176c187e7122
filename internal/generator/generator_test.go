package generator

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/nblist/internal/config"
	"github.com/banshee-data/nblist/internal/geometry"
	"github.com/banshee-data/nblist/internal/monitoring"
	"github.com/banshee-data/nblist/internal/pairlist"
	"github.com/banshee-data/nblist/internal/selection"
	"github.com/banshee-data/nblist/internal/status"
	fixtures "github.com/banshee-data/nblist/internal/testutil"
)

// gridConfig always selects the grid for non-trivial inputs.
func gridConfig(byCell bool) *Config {
	return &Config{
		CutOff:               2.5,
		CutOffCellSizeFactor: 0.5,
		MinimumCellExtent:    1,
		MinimumCellSize:      0,
		MinimumPoints:        1,
		UseGridByCell:        byCell,
	}
}

func mustGenerator(t *testing.T, cfg *Config) *Generator {
	t.Helper()
	g, err := New(cfg)
	require.NoError(t, err)
	return g
}

func sortedPairs(p *pairlist.PairList) [][2]int {
	p.Sort()
	return p.Pairs()
}

func asPairs(ps []fixtures.Pair) [][2]int {
	out := make([][2]int, len(ps))
	for k, p := range ps {
		out[k] = p
	}
	return out
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 13.5, cfg.CutOff)
	assert.Equal(t, 500, cfg.MinimumPoints)
	assert.True(t, cfg.UseGridByCell)
	assert.Equal(t, 6.75, cfg.CellSize(cfg.CutOff))
	assert.Equal(t, 3.0, cfg.CellSize(1))
}

func TestConfigFromTuning_ZeroMinimumCellSize(t *testing.T) {
	tuning, err := config.ParseTuningConfig([]byte(`{"cut_off": 2.5, "minimum_cell_size": 0}`))
	require.NoError(t, err)
	cfg := ConfigFromTuning(tuning)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 1.25, cfg.CellSize(2.5))
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"cut-off", func(c *Config) { c.CutOff = 0 }},
		{"factor", func(c *Config) { c.CutOffCellSizeFactor = -1 }},
		{"extent", func(c *Config) { c.MinimumCellExtent = 0 }},
		{"cell size", func(c *Config) { c.MinimumCellSize = -1 }},
		{"points", func(c *Config) { c.MinimumPoints = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := gridConfig(true)
			tt.mutate(cfg)
			_, err := New(cfg)
			assert.True(t, errors.Is(err, status.ErrInvalidArgument))
		})
	}
}

func TestDetermineMethod(t *testing.T) {
	g := mustGenerator(t, DefaultConfig())
	big := geometry.Box{Max: fixtures.Cube(60)}
	small := geometry.Box{Max: fixtures.Cube(10)}

	assert.Equal(t, MethodBruteForce, g.DetermineMethod(100, big, 13.5, nil))
	assert.Equal(t, MethodGrid, g.DetermineMethod(5000, big, 13.5, nil))
	assert.Equal(t, MethodBruteForce, g.DetermineMethod(5000, small, 13.5, nil))

	// Widely scattered points would need too many cells.
	sparse := geometry.Box{Max: fixtures.Cube(1e4)}
	assert.Equal(t, MethodBruteForce, g.DetermineMethod(5000, sparse, 13.5, nil))

	box, err := geometry.NewPeriodicBox(fixtures.Cube(40))
	require.NoError(t, err)
	assert.Equal(t, MethodGrid, g.DetermineMethod(5000, small, 13.5, box))
	assert.Equal(t, "grid", MethodGrid.String())
	assert.Equal(t, "brute_force", MethodBruteForce.String())
}

func TestSelfPairList_FourParticles(t *testing.T) {
	coords := geometry.Coordinates3{{}, {X: 1}, {Y: 1}, {X: 5, Y: 5, Z: 5}}
	want := [][2]int{{0, 1}, {0, 2}}

	for name, cfg := range map[string]*Config{
		"brute force":   DefaultConfig(),
		"grid by cell":  gridConfig(true),
		"grid by point": gridConfig(false),
	} {
		t.Run(name, func(t *testing.T) {
			g := mustGenerator(t, cfg)
			p, err := g.SelfPairList(Input{Coordinates: coords, CutOff: 1.5})
			require.NoError(t, err)
			assert.True(t, p.IsSelf)
			if diff := cmp.Diff(want, sortedPairs(p)); diff != "" {
				t.Errorf("pairs mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSelfPairList_GridMatchesBruteForce(t *testing.T) {
	const cutoff = 2.5
	coords := fixtures.RandomCoordinates(11, 400, fixtures.Cube(12))
	periodic, err := geometry.NewPeriodicBox(fixtures.Cube(12))
	require.NoError(t, err)

	for _, box := range []*geometry.PeriodicBox{nil, periodic} {
		want := asPairs(fixtures.BruteSelfPairs(coords, cutoff, box))
		require.NotEmpty(t, want)
		for _, byCell := range []bool{true, false} {
			g := mustGenerator(t, gridConfig(byCell))
			p, err := g.SelfPairList(Input{Coordinates: coords, Box: box})
			require.NoError(t, err)
			if diff := cmp.Diff(want, sortedPairs(p)); diff != "" {
				t.Errorf("periodic=%v byCell=%v: pairs mismatch (-want +got):\n%s", box != nil, byCell, diff)
			}
			bf, err := g.BruteForceSelfPairList(Input{Coordinates: coords, Box: box})
			require.NoError(t, err)
			assert.Equal(t, want, sortedPairs(bf))
		}
	}
}

// exclusionRuns packs pairs into the flat run format, one run per owner
// below n.
func exclusionRuns(pairs [][2]int, n int) []int {
	partners := make([][]int, n)
	for _, p := range pairs {
		partners[p[0]] = append(partners[p[0]], p[1])
	}
	var flat []int
	for _, ps := range partners {
		flat = append(flat, len(ps))
		flat = append(flat, ps...)
	}
	return flat
}

func TestCrossPairList_GridMatchesBruteForce(t *testing.T) {
	const cutoff = 2.5
	a := fixtures.RandomCoordinates(5, 150, fixtures.Cube(12))
	b := fixtures.RandomCoordinates(6, 200, r3.Vec{X: 12, Y: 12, Z: 6})
	periodic, err := geometry.NewPeriodicBox(fixtures.Cube(12))
	require.NoError(t, err)

	for _, box := range []*geometry.PeriodicBox{nil, periodic} {
		all := asPairs(fixtures.BruteCrossPairs(a, b, cutoff, box))
		require.NotEmpty(t, all)

		// Every third pair is excluded in its (first, second) orientation.
		var dropped, want [][2]int
		for k, p := range all {
			if k%3 == 0 {
				dropped = append(dropped, p)
			} else {
				want = append(want, p)
			}
		}
		ex, err := pairlist.NewDirectedPairExcluded(len(b), exclusionRuns(dropped, len(a)))
		require.NoError(t, err)

		for _, byCell := range []bool{true, false} {
			g := mustGenerator(t, gridConfig(byCell))
			p, err := g.CrossPairList(CrossInput{Coordinates1: a, Coordinates2: b, Box: box})
			require.NoError(t, err)
			assert.False(t, p.IsSelf)
			if diff := cmp.Diff(all, sortedPairs(p)); diff != "" {
				t.Errorf("periodic=%v byCell=%v: pairs mismatch (-want +got):\n%s", box != nil, byCell, diff)
			}

			p, err = g.CrossPairList(CrossInput{Coordinates1: a, Coordinates2: b, Box: box, Exclusions: ex})
			require.NoError(t, err)
			if diff := cmp.Diff(want, sortedPairs(p)); diff != "" {
				t.Errorf("periodic=%v byCell=%v excluded: pairs mismatch (-want +got):\n%s", box != nil, byCell, diff)
			}
		}
	}
}

func TestCrossPairList_DirectedExclusions(t *testing.T) {
	a := geometry.Coordinates3{{}, {X: 0.1}, {X: 0.2}}
	b := geometry.Coordinates3{{Y: 0.1}, {Y: 0.2}, {Y: 0.3}}
	g := mustGenerator(t, DefaultConfig())

	// First-set particle 0 excludes second-set particle 2 only.
	ex, err := pairlist.NewDirectedPairExcluded(3, []int{1, 2})
	require.NoError(t, err)
	p, err := g.CrossPairList(CrossInput{Coordinates1: a, Coordinates2: b, CutOff: 1, Exclusions: ex})
	require.NoError(t, err)
	assert.Equal(t, 8, p.NumberOfPairs())
	assert.False(t, p.Contains(0, 2))
	assert.True(t, p.Contains(2, 0))

	// Searching one set against itself drops both orientations.
	p, err = g.CrossPairList(CrossInput{Coordinates1: a, CutOff: 1, Exclusions: ex})
	require.NoError(t, err)
	assert.Equal(t, 7, p.NumberOfPairs())
	assert.False(t, p.Contains(0, 2))
	assert.False(t, p.Contains(2, 0))

	// A self search treats the directed table the same way.
	p, err = g.SelfPairList(Input{Coordinates: a, CutOff: 1, Exclusions: ex})
	require.NoError(t, err)
	assert.Equal(t, [][2]int{{0, 1}, {1, 2}}, sortedPairs(p))
}

func TestSelfPairList_FiltersAgreeAcrossMethods(t *testing.T) {
	coords := fixtures.RandomCoordinates(21, 300, fixtures.Cube(10))
	and, err := selection.Range(20, 280)
	require.NoError(t, err)
	or, err := selection.Range(0, 150)
	require.NoError(t, err)
	flat := make([]int, 0)
	for i := 0; i < 300; i++ {
		// Every particle excludes its successor.
		if i+1 < 300 {
			flat = append(flat, 1, i+1)
		} else {
			flat = append(flat, 0)
		}
	}
	ex, err := pairlist.NewPairExcluded(300, flat)
	require.NoError(t, err)
	radii := make([]float64, len(coords))
	for i := range radii {
		radii[i] = 0.1 * float64(i%4)
	}
	periodic, err := geometry.NewPeriodicBox(fixtures.Cube(10))
	require.NoError(t, err)

	for _, box := range []*geometry.PeriodicBox{nil, periodic} {
		in := Input{Coordinates: coords, Radii: radii, And: and, Or: or, Exclusions: ex, Box: box}

		g := mustGenerator(t, gridConfig(true))
		want, err := g.BruteForceSelfPairList(in)
		require.NoError(t, err)
		require.NotZero(t, want.NumberOfPairs())
		for i, j := range want.All() {
			if !and.Contains(i) || !and.Contains(j) {
				t.Fatalf("pair (%d, %d) escapes the and selection", i, j)
			}
			if !or.Contains(i) && !or.Contains(j) {
				t.Fatalf("pair (%d, %d) misses the or selection", i, j)
			}
			if ex.IsExcluded(i, j) {
				t.Fatalf("excluded pair (%d, %d) reported", i, j)
			}
		}
		for _, byCell := range []bool{true, false} {
			got, err := mustGenerator(t, gridConfig(byCell)).SelfPairList(in)
			require.NoError(t, err)
			if diff := cmp.Diff(sortedPairs(want), sortedPairs(got)); diff != "" {
				t.Errorf("periodic=%v byCell=%v: pairs mismatch (-brute +grid):\n%s", box != nil, byCell, diff)
			}
		}
	}
}

func TestCrossPairList_FiltersAgreeAcrossMethods(t *testing.T) {
	a := fixtures.RandomCoordinates(31, 160, fixtures.Cube(10))
	b := fixtures.RandomCoordinates(32, 220, fixtures.Cube(10))
	and1, err := selection.Range(10, 150)
	require.NoError(t, err)
	and2, err := selection.Range(0, 200)
	require.NoError(t, err)
	or1, err := selection.Range(0, 80)
	require.NoError(t, err)
	or2, err := selection.Range(100, 220)
	require.NoError(t, err)

	// First-set particle i excludes second-set particles i, i+3, i+7 and i+11.
	var excluded [][2]int
	for i := range a {
		for _, k := range []int{0, 3, 7, 11} {
			excluded = append(excluded, [2]int{i, i + k})
		}
	}
	ex, err := pairlist.NewDirectedPairExcluded(len(b), exclusionRuns(excluded, len(a)))
	require.NoError(t, err)
	radii1 := make([]float64, len(a))
	for i := range radii1 {
		radii1[i] = 0.1 * float64(i%3)
	}
	radii2 := make([]float64, len(b))
	for i := range radii2 {
		radii2[i] = 0.15 * float64(i%2)
	}
	periodic, err := geometry.NewPeriodicBox(fixtures.Cube(10))
	require.NoError(t, err)

	for _, box := range []*geometry.PeriodicBox{nil, periodic} {
		in := CrossInput{
			Coordinates1: a,
			Coordinates2: b,
			Radii1:       radii1,
			Radii2:       radii2,
			And1:         and1,
			And2:         and2,
			Or1:          or1,
			Or2:          or2,
			Exclusions:   ex,
			Box:          box,
		}

		g := mustGenerator(t, gridConfig(true))
		want, err := g.BruteForceCrossPairList(in)
		require.NoError(t, err)
		require.NotZero(t, want.NumberOfPairs())
		reversed := 0
		for i, j := range want.All() {
			if !and1.Contains(i) || !and2.Contains(j) {
				t.Fatalf("pair (%d, %d) escapes the and selections", i, j)
			}
			if !or1.Contains(i) && !or2.Contains(j) {
				t.Fatalf("pair (%d, %d) misses the or selections", i, j)
			}
			if ex.IsExcluded(i, j) {
				t.Fatalf("excluded pair (%d, %d) reported", i, j)
			}
			if j < len(a) && ex.IsExcluded(j, i) {
				reversed++
			}
		}
		assert.Positive(t, reversed, "reverse orientation of an exclusion dropped")
		for _, byCell := range []bool{true, false} {
			got, err := mustGenerator(t, gridConfig(byCell)).CrossPairList(in)
			require.NoError(t, err)
			if diff := cmp.Diff(sortedPairs(want), sortedPairs(got)); diff != "" {
				t.Errorf("periodic=%v byCell=%v: pairs mismatch (-brute +grid):\n%s", box != nil, byCell, diff)
			}
		}
	}
}

func TestSelfPairList_Radii(t *testing.T) {
	coords := geometry.Coordinates3{{}, {X: 2}}
	g := mustGenerator(t, DefaultConfig())
	p, err := g.SelfPairList(Input{Coordinates: coords, CutOff: 1.5})
	require.NoError(t, err)
	assert.Zero(t, p.NumberOfPairs())

	p, err = g.SelfPairList(Input{Coordinates: coords, CutOff: 1.5, Radii: []float64{0.3, 0.3}})
	require.NoError(t, err)
	assert.True(t, p.Contains(0, 1))
}

func TestCrossPairList_SameSet(t *testing.T) {
	coords := geometry.Coordinates3{{}, {X: 1}, {X: 9}}
	g := mustGenerator(t, DefaultConfig())

	p, err := g.CrossPairList(CrossInput{Coordinates1: coords, CutOff: 1.5, ExcludeSelf: true})
	require.NoError(t, err)
	assert.Equal(t, [][2]int{{0, 1}, {1, 0}}, sortedPairs(p))

	p, err = g.CrossPairList(CrossInput{Coordinates1: coords, CutOff: 1.5})
	require.NoError(t, err)
	assert.Equal(t, [][2]int{{0, 0}, {0, 1}, {1, 0}, {1, 1}, {2, 2}}, sortedPairs(p))
}

func TestPairList_Errors(t *testing.T) {
	g := mustGenerator(t, DefaultConfig())
	coords := geometry.Coordinates3{{}, {X: 1}}

	_, err := g.SelfPairList(Input{Coordinates: coords, CutOff: -1})
	assert.True(t, errors.Is(err, status.ErrInvalidArgument))

	_, err = g.SelfPairList(Input{Coordinates: coords, Radii: []float64{1}})
	assert.True(t, errors.Is(err, status.ErrNonConformableArrays))

	_, err = g.SelfPairList(Input{Coordinates: coords, Radii: []float64{1, -1}})
	assert.True(t, errors.Is(err, status.ErrInvalidArgument))

	_, err = g.SelfPairList(Input{Coordinates: coords, And: selection.MustFromIndices(0, 5)})
	assert.True(t, errors.Is(err, status.ErrIndexOutOfRange))

	box, err := geometry.NewPeriodicBox(fixtures.Cube(10))
	require.NoError(t, err)
	_, err = g.SelfPairList(Input{Coordinates: coords, Box: box, CutOff: 6})
	assert.True(t, errors.Is(err, status.ErrInvalidArgument))

	_, err = g.CrossPairList(CrossInput{Coordinates1: coords, Coordinates2: coords, Radii1: []float64{0, 0}})
	assert.True(t, errors.Is(err, status.ErrNonConformableArrays))
}

func TestGenerator_RecordsMetrics(t *testing.T) {
	g := mustGenerator(t, gridConfig(true))
	c := monitoring.NewCollector(nil)
	g.SetCollector(c)

	coords := fixtures.RandomCoordinates(1, 50, fixtures.Cube(8))
	_, err := g.SelfPairList(Input{Coordinates: coords})
	require.NoError(t, err)
	_, err = g.BruteForceSelfPairList(Input{Coordinates: coords})
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.Builds.WithLabelValues("grid")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Builds.WithLabelValues("brute_force")))
}
