package generator

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/nblist/internal/geometry"
	"github.com/banshee-data/nblist/internal/grid"
	"github.com/banshee-data/nblist/internal/monitoring"
	"github.com/banshee-data/nblist/internal/pairlist"
	"github.com/banshee-data/nblist/internal/selection"
	"github.com/banshee-data/nblist/internal/status"
)

// Method is a pair search strategy.
type Method int

const (
	MethodBruteForce Method = iota
	MethodGrid
)

func (m Method) String() string {
	if m == MethodGrid {
		return "grid"
	}
	return "brute_force"
}

// Input describes a self pair search over one coordinate set.
type Input struct {
	Coordinates geometry.Coordinates3
	Radii       []float64              // optional; widens the cut-off to CutOff+r_i+r_j
	And         *selection.Selection   // both ends must be in it
	Or          *selection.Selection   // at least one end must be in it
	Exclusions  *pairlist.PairExcluded // pairs never reported
	Box         *geometry.PeriodicBox  // minimum image on its periodic axes
	CutOff      float64                // zero means the configured cut-off
}

// CrossInput describes a search between two coordinate sets. A nil
// Coordinates2 searches the first set against itself; ExcludeSelf then
// drops the i–i pairs. Exclusions are tested as (i, j) with i indexing the
// first set and j the second, so two distinct sets want a directed table
// (pairlist.NewDirectedPairExcluded). A same-set search drops a pair
// excluded in either orientation.
type CrossInput struct {
	Coordinates1 geometry.Coordinates3
	Coordinates2 geometry.Coordinates3
	Radii1       []float64
	Radii2       []float64
	And1         *selection.Selection
	And2         *selection.Selection
	Or1          *selection.Selection // with Or2, at least one end must be in its set
	Or2          *selection.Selection
	Exclusions   *pairlist.PairExcluded
	ExcludeSelf  bool
	Box          *geometry.PeriodicBox
	CutOff       float64
}

// Generator builds pair lists. Each call allocates its own grid and search
// scratch.
type Generator struct {
	cfg       Config
	collector *monitoring.Collector
}

// New validates cfg and returns a generator.
func New(cfg *Config) (*Generator, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Generator{cfg: *cfg}, nil
}

// Config returns a copy of the configuration.
func (g *Generator) Config() Config { return g.cfg }

// SetCollector attaches metrics. A nil collector disables them.
func (g *Generator) SetCollector(c *monitoring.Collector) { g.collector = c }

// DetermineMethod picks the grid when there are at least MinimumPoints
// points, some axis spans MinimumCellExtent cells, and the grid would not
// exceed MaximumCellsPerPoint cells per point.
func (g *Generator) DetermineMethod(n int, bounds geometry.Box, cutoff float64, box *geometry.PeriodicBox) Method {
	if n < g.cfg.MinimumPoints || n == 0 {
		return MethodBruteForce
	}
	cell := g.cfg.CellSize(cutoff)
	ext := bounds.Extents()
	wide := false
	for d := 0; d < 3; d++ {
		l := geometry.Component(ext, d)
		if box != nil && box.Periodic[d] {
			l = geometry.Component(box.Lengths, d)
		}
		if l/cell >= float64(g.cfg.MinimumCellExtent) {
			wide = true
		}
	}
	if !wide {
		return MethodBruteForce
	}
	if grid.EstimateCells(bounds, cell, box) > float64(MaximumCellsPerPoint*max(n, 64)) {
		return MethodBruteForce
	}
	return MethodGrid
}

// SelfPairList returns the pairs i < j of in.Coordinates within the cut-off.
func (g *Generator) SelfPairList(in Input) (*pairlist.PairList, error) {
	return g.selfPairList(in, nil)
}

// BruteForceSelfPairList is SelfPairList without a grid.
func (g *Generator) BruteForceSelfPairList(in Input) (*pairlist.PairList, error) {
	m := MethodBruteForce
	return g.selfPairList(in, &m)
}

func (g *Generator) selfPairList(in Input, force *Method) (*pairlist.PairList, error) {
	cut, err := g.cutoff(in.CutOff)
	if err != nil {
		return nil, err
	}
	n := len(in.Coordinates)
	if err := checkRadii(in.Radii, n); err != nil {
		return nil, err
	}
	cand, err := candidates(in.And, n)
	if err != nil {
		return nil, err
	}
	s := &sweep{
		a:      in.Coordinates,
		b:      in.Coordinates,
		ra:     in.Radii,
		rb:     in.Radii,
		cut:    cut,
		search: cut + 2*maxRadius(in.Radii),
		box:    in.Box,
		or1:    in.Or,
		or2:    in.Or,
		ex:     in.Exclusions,
		self:   true,
		either: true,
	}
	return g.run(s, cand, cand, force)
}

// CrossPairList returns the pairs (i, j), i from the first set and j from
// the second, within the cut-off.
func (g *Generator) CrossPairList(in CrossInput) (*pairlist.PairList, error) {
	return g.crossPairList(in, nil)
}

// BruteForceCrossPairList is CrossPairList without a grid.
func (g *Generator) BruteForceCrossPairList(in CrossInput) (*pairlist.PairList, error) {
	m := MethodBruteForce
	return g.crossPairList(in, &m)
}

func (g *Generator) crossPairList(in CrossInput, force *Method) (*pairlist.PairList, error) {
	cut, err := g.cutoff(in.CutOff)
	if err != nil {
		return nil, err
	}
	a, b := in.Coordinates1, in.Coordinates2
	rb := in.Radii2
	same := b == nil
	if same {
		b = a
		if rb == nil {
			rb = in.Radii1
		}
	}
	if err := checkRadii(in.Radii1, len(a)); err != nil {
		return nil, err
	}
	if err := checkRadii(rb, len(b)); err != nil {
		return nil, err
	}
	if (in.Radii1 == nil) != (rb == nil) {
		return nil, fmt.Errorf("radii given for one set only: %w", status.ErrNonConformableArrays)
	}
	candA, err := candidates(in.And1, len(a))
	if err != nil {
		return nil, err
	}
	and2 := in.And2
	if same && and2 == nil {
		and2 = in.And1
	}
	candB, err := candidates(and2, len(b))
	if err != nil {
		return nil, err
	}
	s := &sweep{
		a:           a,
		b:           b,
		ra:          in.Radii1,
		rb:          rb,
		cut:         cut,
		search:      cut + maxRadius(in.Radii1) + maxRadius(rb),
		box:         in.Box,
		or1:         in.Or1,
		or2:         in.Or2,
		ex:          in.Exclusions,
		skipSelf:    same && in.ExcludeSelf,
		either:      same,
		crossOutput: true,
	}
	return g.run(s, candA, candB, force)
}

func (g *Generator) cutoff(c float64) (float64, error) {
	if c == 0 {
		return g.cfg.CutOff, nil
	}
	if !(c > 0) {
		return 0, fmt.Errorf("cut-off %g: %w", c, status.ErrInvalidArgument)
	}
	return c, nil
}

func checkRadii(r []float64, n int) error {
	if r == nil {
		return nil
	}
	if len(r) != n {
		return fmt.Errorf("%d radii for %d coordinates: %w", len(r), n, status.ErrNonConformableArrays)
	}
	for i, x := range r {
		if x < 0 {
			return fmt.Errorf("radius %d is %g: %w", i, x, status.ErrInvalidArgument)
		}
	}
	return nil
}

func maxRadius(r []float64) float64 {
	if len(r) == 0 {
		return 0
	}
	return floats.Max(r)
}

// candidates returns the indices of sel, or every index below n when sel
// is nil.
func candidates(sel *selection.Selection, n int) ([]int, error) {
	if sel == nil {
		out := make([]int, n)
		for i := range out {
			out[i] = i
		}
		return out, nil
	}
	if ub := sel.UpperBound(); ub > n {
		return nil, fmt.Errorf("selection reaches %d of %d coordinates: %w", ub-1, n, status.ErrIndexOutOfRange)
	}
	return sel.Indices(), nil
}

func (g *Generator) run(s *sweep, candA, candB []int, force *Method) (*pairlist.PairList, error) {
	start := time.Now()
	if s.box != nil {
		if err := s.box.Validate(); err != nil {
			return nil, err
		}
		if half := s.box.MinimumPeriodicLength() / 2; s.search > half {
			return nil, fmt.Errorf("search cut-off %g exceeds half the shortest periodic length %g: %w", s.search, 2*half, status.ErrInvalidArgument)
		}
	}

	method := MethodBruteForce
	if force != nil {
		method = *force
	} else {
		bounds, err := geometry.BoundingBox(s.b, candB)
		if err != nil {
			return nil, err
		}
		n := len(candB)
		if s.crossOutput {
			n += len(candA)
			ba, err := geometry.BoundingBox(s.a, candA)
			if err != nil {
				return nil, err
			}
			if !ba.IsEmpty() {
				bounds = bounds.Include(ba.Min).Include(ba.Max)
			}
		}
		method = g.DetermineMethod(n, bounds, s.search, s.box)
	}

	out := pairlist.Empty(!s.crossOutput)
	var err error
	switch {
	case method == MethodBruteForce:
		err = s.bruteForce(candA, candB, out)
	case g.cfg.UseGridByCell:
		err = s.gridByCell(g.cfg.CellSize(s.search), candA, candB, out)
	default:
		err = s.gridByPoint(g.cfg.CellSize(s.search), candA, candB, out)
	}
	if err != nil {
		return nil, err
	}
	if g.cfg.SortIndices {
		out.Sort()
	}

	elapsed := time.Since(start)
	monitoring.Debugf("[generator] %s: %d×%d candidates, cut-off %.3g, %d pairs in %v",
		method, len(candA), len(candB), s.search, out.NumberOfPairs(), elapsed)
	if g.collector != nil {
		g.collector.Builds.WithLabelValues(method.String()).Inc()
		g.collector.BuildDuration.Observe(elapsed.Seconds())
	}
	return out, nil
}

// sweep holds the pair acceptance test shared by every search method.
type sweep struct {
	a, b        geometry.Coordinates3
	ra, rb      []float64
	cut, search float64
	box         *geometry.PeriodicBox
	or1, or2    *selection.Selection
	ex          *pairlist.PairExcluded
	self        bool // keep only j > i
	skipSelf    bool // drop i == j
	either      bool // exclusions apply in both orientations
	crossOutput bool

	partners []int
}

func contains(s *selection.Selection, i int) bool { return s != nil && s.Contains(i) }

// accept tests a candidate pair. inside means the pair is known to be
// within the search cut-off.
func (s *sweep) accept(i, j int, inside bool) bool {
	if s.self && j <= i || s.skipSelf && i == j {
		return false
	}
	if (s.or1 != nil || s.or2 != nil) && !contains(s.or1, i) && !contains(s.or2, j) {
		return false
	}
	if s.ex.IsActiveExcluded(j) || s.either && s.ex.Directed() && s.ex.IsExcluded(j, i) {
		return false
	}
	if inside && s.ra == nil {
		return true
	}
	c := s.cut
	if s.ra != nil {
		c += s.ra[i] + s.rb[j]
	}
	d := s.box.MinimumImage(r3.Sub(s.b[j], s.a[i]))
	return r3.Norm2(d) <= c*c
}

func (s *sweep) begin(i int) {
	s.ex.Activate(i)
	s.partners = s.partners[:0]
}

func (s *sweep) end(i int, out *pairlist.PairList) error {
	if err := out.Append(i, s.partners); err != nil {
		return fmt.Errorf("pair %d: %w", i, err)
	}
	return nil
}

func (s *sweep) bruteForce(candA, candB []int, out *pairlist.PairList) error {
	for _, i := range candA {
		s.begin(i)
		for _, j := range candB {
			if s.accept(i, j, false) {
				s.partners = append(s.partners, j)
			}
		}
		if err := s.end(i, out); err != nil {
			return err
		}
	}
	return nil
}

func (s *sweep) prepare(cellSize float64, candB []int) (*grid.RegularGrid, *grid.Occupancy, *grid.SearchRange, error) {
	gb, err := grid.ForCoordinates(s.b, candB, cellSize, s.box)
	if err != nil {
		return nil, nil, nil, err
	}
	occ := grid.NewOccupancy(gb)
	off, err := occ.Fill(s.b, candB, grid.Reject)
	if err != nil {
		return nil, nil, nil, err
	}
	if off > 0 {
		return nil, nil, nil, fmt.Errorf("%d points fell off a grid built around them: %w", off, status.ErrAlgorithmError)
	}
	r, err := gb.MakeSearchRange(s.search)
	if err != nil {
		return nil, nil, nil, err
	}
	monitoring.Debugf("[generator] grid %d cells of %.3g, %d offsets", gb.NumberOfCells(), cellSize, r.Len())
	return gb, occ, r, nil
}

func (s *sweep) visit(i int, occ *grid.Occupancy, cs *grid.CellSearch) {
	for k, c := range cs.Cells {
		inside := cs.Inside[k]
		for _, j := range occ.PointsInCell(c) {
			if s.accept(i, j, inside) {
				s.partners = append(s.partners, j)
			}
		}
	}
}

func (s *sweep) gridByPoint(cellSize float64, candA, candB []int, out *pairlist.PairList) error {
	gb, occ, r, err := s.prepare(cellSize, candB)
	if err != nil {
		return err
	}
	cs := grid.NewCellSearch(gb)
	for _, i := range candA {
		s.begin(i)
		gb.FindCellsWithinRangeOfPoint(s.a[i], r, cs)
		s.visit(i, occ, cs)
		if err := s.end(i, out); err != nil {
			return err
		}
	}
	return nil
}

func (s *sweep) gridByCell(cellSize float64, candA, candB []int, out *pairlist.PairList) error {
	gb, occB, r, err := s.prepare(cellSize, candB)
	if err != nil {
		return err
	}
	// Self searches share one grid; cross searches bin the first set on a
	// grid aligned with the second.
	ga, occA := gb, occB
	if !s.self {
		if ga, err = grid.ConformingGrid(gb, s.a, candA); err != nil {
			return err
		}
		occA = grid.NewOccupancy(ga)
		off, err := occA.Fill(s.a, candA, grid.Reject)
		if err != nil {
			return err
		}
		if off > 0 {
			return fmt.Errorf("%d points fell off a grid built around them: %w", off, status.ErrAlgorithmError)
		}
	}
	offset, err := ga.ConformingOffset(gb)
	if err != nil {
		return err
	}
	cs := grid.NewCellSearch(gb)
	for _, c := range occA.OccupiedCells() {
		if err := ga.FindCellsWithinRangeOfCellConforming(c, gb, offset, r, cs); err != nil {
			return err
		}
		for _, i := range occA.PointsInCell(c) {
			s.begin(i)
			s.visit(i, occB, cs)
			if err := s.end(i, out); err != nil {
				return err
			}
		}
	}
	return nil
}
