package grid

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/nblist/internal/status"
)

// SearchRange lists the cell offsets that can hold points within CutOff of
// any point in a reference cell. Inside[k] is true when every point of
// offset cell k is within CutOff of every point of the reference cell, so
// distance tests can be skipped.
type SearchRange struct {
	CutOff  float64
	Offsets [][]int
	Inside  []bool
}

// Len returns the number of offsets.
func (r *SearchRange) Len() int { return len(r.Offsets) }

// offsetLimits returns the inclusive offset range along one axis. A periodic
// axis is truncated to one representative per residue, the one of smallest
// magnitude, so folded offsets never repeat.
func offsetLimits(dim RegularGridDimension, cutoff float64) (int, int) {
	n := int(math.Ceil(cutoff / dim.BinSize))
	if dim.IsPeriodic && 2*n+1 >= dim.Bins {
		lo := -(dim.Bins - 1) / 2
		return lo, lo + dim.Bins - 1
	}
	return -n, n
}

// MakeSearchRange builds the search range of g for cutoff. An offset k is
// kept when the smallest possible separation between points of the two
// cells, sqrt(Σ (max(0,|k|-1)·b)²), does not exceed cutoff.
func (g *RegularGrid) MakeSearchRange(cutoff float64) (*SearchRange, error) {
	if !(cutoff > 0) {
		return nil, fmt.Errorf("search cut-off %g: %w", cutoff, status.ErrInvalidArgument)
	}
	nd := len(g.dims)
	lo := make([]int, nd)
	hi := make([]int, nd)
	total := 1
	for d, dim := range g.dims {
		lo[d], hi[d] = offsetLimits(dim, cutoff)
		total *= hi[d] - lo[d] + 1
	}
	if err := status.CheckCapacity(total); err != nil {
		return nil, fmt.Errorf("search range of %d offsets: %w", total, err)
	}

	cut2 := cutoff * cutoff
	r := &SearchRange{CutOff: cutoff}
	k := make([]int, nd)
	copy(k, lo)
	for {
		var gap2, span2 float64
		for d, dim := range g.dims {
			a := k[d]
			if a < 0 {
				a = -a
			}
			gap := float64(max(0, a-1)) * dim.BinSize
			span := float64(a+1) * dim.BinSize
			gap2 += gap * gap
			span2 += span * span
		}
		if gap2 <= cut2 {
			r.Offsets = append(r.Offsets, append([]int(nil), k...))
			r.Inside = append(r.Inside, span2 <= cut2)
		}
		// Odometer increment, last axis fastest.
		d := nd - 1
		for ; d >= 0; d-- {
			k[d]++
			if k[d] <= hi[d] {
				break
			}
			k[d] = lo[d]
		}
		if d < 0 {
			break
		}
	}
	return r, nil
}

// CellSearch is caller-owned scratch for cell range queries. Results are
// valid until the next query on the same value. A CellSearch must not be
// shared between goroutines.
type CellSearch struct {
	Cells  []int
	Inside []bool

	slot    []int // position of a cell in Cells for the current query
	visited []int // cells touched by the current query
	indices []int
	target  []int
}

// NewCellSearch returns scratch sized for g.
func NewCellSearch(g *RegularGrid) *CellSearch {
	s := &CellSearch{slot: make([]int, g.NumberOfCells())}
	for i := range s.slot {
		s.slot[i] = -1
	}
	return s
}

func (s *CellSearch) reset(g *RegularGrid) {
	for _, c := range s.visited {
		s.slot[c] = -1
	}
	if len(s.slot) < g.NumberOfCells() {
		grown := make([]int, g.NumberOfCells())
		copy(grown, s.slot)
		for i := len(s.slot); i < len(grown); i++ {
			grown[i] = -1
		}
		s.slot = grown
	}
	s.visited = s.visited[:0]
	s.Cells = s.Cells[:0]
	s.Inside = s.Inside[:0]
}

func (s *CellSearch) add(cell int, inside bool) {
	if k := s.slot[cell]; k >= 0 {
		// Duplicates arise from folding; keep the stronger flag.
		s.Inside[k] = s.Inside[k] || inside
		return
	}
	s.slot[cell] = len(s.Cells)
	s.visited = append(s.visited, cell)
	s.Cells = append(s.Cells, cell)
	s.Inside = append(s.Inside, inside)
}

// collect adds every cell of target at origin+offset for the offsets of r.
func (s *CellSearch) collect(target *RegularGrid, origin []int, r *SearchRange) {
	s.reset(target)
	strides := target.strides()
	for k, off := range r.Offsets {
		s.target = s.target[:0]
		for d := range off {
			s.target = append(s.target, origin[d]+off[d])
		}
		if !target.Regularize(s.target, Reject) {
			continue
		}
		s.add(cellID(s.target, strides), r.Inside[k])
	}
}

// FindCellsWithinRangeOfCell fills s with the cells of g within range of cell.
func (g *RegularGrid) FindCellsWithinRangeOfCell(cell int, r *SearchRange, s *CellSearch) error {
	if cell < 0 || cell >= g.cells {
		return fmt.Errorf("cell %d of %d: %w", cell, g.cells, status.ErrIndexOutOfRange)
	}
	s.indices = g.CellIndices(cell, s.indices)
	s.collect(g, s.indices, r)
	return nil
}

// FindCellsWithinRangeOfPoint fills s with the cells of g within range of p.
// p need not lie on the grid.
func (g *RegularGrid) FindCellsWithinRangeOfPoint(p r3.Vec, r *SearchRange, s *CellSearch) {
	s.indices = g.rawIndicesOfPoint(p, s.indices)
	s.collect(g, s.indices, r)
}

// FindCellsWithinRangeOfCellConforming fills s with cells of target within
// range of cell of g, where offset comes from g.ConformingOffset(target).
func (g *RegularGrid) FindCellsWithinRangeOfCellConforming(cell int, target *RegularGrid, offset []int, r *SearchRange, s *CellSearch) error {
	if cell < 0 || cell >= g.cells {
		return fmt.Errorf("cell %d of %d: %w", cell, g.cells, status.ErrIndexOutOfRange)
	}
	if len(offset) != len(g.dims) {
		return fmt.Errorf("offset of rank %d: %w", len(offset), status.ErrNonConformableArrays)
	}
	s.indices = g.CellIndices(cell, s.indices)
	for d := range s.indices {
		s.indices[d] += offset[d]
	}
	s.collect(target, s.indices, r)
	return nil
}
