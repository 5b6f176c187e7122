package grid

import (
	"fmt"
	"math"

	"github.com/banshee-data/nblist/internal/geometry"
	"github.com/banshee-data/nblist/internal/status"
)

// Occupancy records which points fall in which cell, in compressed sparse
// row form: the points of cell c are
// CellPoints[CellFirstPoints[c] : CellFirstPoints[c]+CellTotalPoints[c]].
type Occupancy struct {
	Grid            *RegularGrid
	PointCells      []int // cell of each point, -1 when excluded or off-grid
	CellFirstPoints []int
	CellTotalPoints []int
	CellPoints      []int
}

// NewOccupancy returns an empty occupancy for g.
func NewOccupancy(g *RegularGrid) *Occupancy {
	return &Occupancy{
		Grid:            g,
		CellFirstPoints: make([]int, g.NumberOfCells()),
		CellTotalPoints: make([]int, g.NumberOfCells()),
	}
}

// Fill bins points into cells with a counting sort. Only points listed in
// subset are binned; a nil subset bins every point. It returns the number
// of subset points that fell off the grid. A subset index outside points
// is rejected before the occupancy changes.
func (o *Occupancy) Fill(points geometry.Coordinates3, subset []int, mode ExtentMode) (int, error) {
	n := len(points)
	for _, i := range subset {
		if i < 0 || i >= n {
			return 0, fmt.Errorf("point %d of %d: %w", i, n, status.ErrIndexOutOfRange)
		}
	}
	if cap(o.PointCells) < n {
		o.PointCells = make([]int, n)
	}
	o.PointCells = o.PointCells[:n]
	for i := range o.PointCells {
		o.PointCells[i] = -1
	}
	clear(o.CellTotalPoints)

	offGrid, onGrid := 0, 0
	bin := func(i int) {
		if o.PointCells[i] >= 0 {
			return
		}
		c := o.Grid.FindCellIDOfPoint(points[i], mode)
		if c < 0 {
			offGrid++
			return
		}
		o.PointCells[i] = c
		o.CellTotalPoints[c]++
		onGrid++
	}
	if subset == nil {
		for i := range points {
			bin(i)
		}
	} else {
		for _, i := range subset {
			bin(i)
		}
	}

	first := 0
	for c, total := range o.CellTotalPoints {
		o.CellFirstPoints[c] = first
		first += total
	}
	if cap(o.CellPoints) < onGrid {
		o.CellPoints = make([]int, onGrid)
	}
	o.CellPoints = o.CellPoints[:onGrid]
	// Reuse CellTotalPoints as the fill cursor and restore it as we go.
	clear(o.CellTotalPoints)
	for i, c := range o.PointCells {
		if c < 0 {
			continue
		}
		o.CellPoints[o.CellFirstPoints[c]+o.CellTotalPoints[c]] = i
		o.CellTotalPoints[c]++
	}
	return offGrid, nil
}

// PointsInCell returns the points binned in cell c. The slice aliases the
// occupancy.
func (o *Occupancy) PointsInCell(c int) []int {
	f := o.CellFirstPoints[c]
	return o.CellPoints[f : f+o.CellTotalPoints[c]]
}

// OccupiedCells returns the IDs of cells holding at least one point.
func (o *Occupancy) OccupiedCells() []int {
	var out []int
	for c, total := range o.CellTotalPoints {
		if total > 0 {
			out = append(out, c)
		}
	}
	return out
}

// gridMargin pads non-periodic bounds so points on the bounding box faces
// stay on the grid after rounding.
const gridMargin = 1e-6

// ForCoordinates builds a three-dimensional grid of cells at least cellSize
// wide that covers the points in subset (all points when subset is nil).
// Axes marked periodic in box span [0, L) instead.
func ForCoordinates(points geometry.Coordinates3, subset []int, cellSize float64, box *geometry.PeriodicBox) (*RegularGrid, error) {
	if !(cellSize > 0) {
		return nil, fmt.Errorf("cell size %g: %w", cellSize, status.ErrInvalidArgument)
	}
	bounds, err := geometry.BoundingBox(points, subset)
	if err != nil {
		return nil, err
	}
	if bounds.IsEmpty() {
		bounds = geometry.Box{}
	}
	pad := gridMargin * cellSize
	dims := make([]RegularGridDimension, 3)
	for d := 0; d < 3; d++ {
		if box != nil && box.Periodic[d] {
			dims[d], err = NewPeriodicDimension(0, geometry.Component(box.Lengths, d), cellSize)
		} else {
			dims[d], err = NewDimension(geometry.Component(bounds.Min, d)-pad, geometry.Component(bounds.Max, d)+pad, cellSize)
		}
		if err != nil {
			return nil, err
		}
	}
	return NewRegularGrid(dims...)
}

// EstimateCells returns the number of cells ForCoordinates would create,
// without allocating. Periodic axes use box.
func EstimateCells(bounds geometry.Box, cellSize float64, box *geometry.PeriodicBox) float64 {
	cells := 1.0
	ext := bounds.Extents()
	for d := 0; d < 3; d++ {
		var bins float64
		if box != nil && box.Periodic[d] {
			bins = max(1, float64(int(geometry.Component(box.Lengths, d)/cellSize)))
		} else {
			bins = max(1, float64(int(geometry.Component(ext, d)/cellSize))+1)
		}
		cells *= bins
	}
	return cells
}

// ConformingGrid builds a grid with the bin sizes and alignment of ref that
// covers the points in subset. Periodic axes are copied from ref.
func ConformingGrid(ref *RegularGrid, points geometry.Coordinates3, subset []int) (*RegularGrid, error) {
	bounds, err := geometry.BoundingBox(points, subset)
	if err != nil {
		return nil, err
	}
	if bounds.IsEmpty() {
		bounds = geometry.Box{}
	}
	dims := make([]RegularGridDimension, ref.NDimensions())
	for d := range dims {
		dim := ref.Dimension(d)
		if dim.IsPeriodic {
			dims[d] = dim
			continue
		}
		lo := geometry.Component(bounds.Min, d)
		hi := geometry.Component(bounds.Max, d) + gridMargin*dim.BinSize
		aligned := dim.Lower + math.Floor((lo-dim.Lower)/dim.BinSize)*dim.BinSize
		if dims[d], err = NewDimension(aligned, hi, dim.BinSize); err != nil {
			return nil, err
		}
	}
	return NewRegularGrid(dims...)
}
