// Package grid partitions space into regular cells for neighbour searches.
//
// Responsibilities: per-axis dimensions (optionally periodic), mixed-radix
// cell IDs, cut-off search ranges with fully-inside flags, cell range
// enumeration into caller-owned scratch, and point occupancy in CSR form.
// Key types: RegularGrid, RegularGridDimension, SearchRange, CellSearch,
// Occupancy.
//
// A grid has one to three axes, taken in x, y, z order from r3.Vec points.
package grid

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/nblist/internal/geometry"
	"github.com/banshee-data/nblist/internal/status"
)

// ExtentMode selects what happens to points outside a non-periodic axis.
type ExtentMode int

const (
	// Reject reports out-of-range points as off-grid.
	Reject ExtentMode = iota
	// Clamp moves out-of-range points into the nearest boundary cell.
	Clamp
)

// RegularGridDimension is one axis of a grid.
type RegularGridDimension struct {
	Bins       int
	BinSize    float64
	Lower      float64
	Upper      float64
	IsPeriodic bool
	Stride     int
}

// NewDimension creates a non-periodic axis covering [lower, upper] with
// ceil((upper-lower)/binSize) bins. Upper is moved out to a whole bin.
func NewDimension(lower, upper, binSize float64) (RegularGridDimension, error) {
	if !(binSize > 0) || upper < lower || math.IsInf(upper-lower, 0) {
		return RegularGridDimension{}, fmt.Errorf("dimension [%g, %g] bin %g: %w", lower, upper, binSize, status.ErrInvalidArgument)
	}
	bins := max(1, int(math.Ceil((upper-lower)/binSize)))
	return RegularGridDimension{
		Bins:    bins,
		BinSize: binSize,
		Lower:   lower,
		Upper:   lower + float64(bins)*binSize,
	}, nil
}

// NewPeriodicDimension creates a periodic axis of the given period. The bin
// count is the largest integer that keeps bins at least binSize wide, so the
// actual bin size divides the period exactly.
func NewPeriodicDimension(lower, period, binSize float64) (RegularGridDimension, error) {
	if !(binSize > 0) || !(period > 0) {
		return RegularGridDimension{}, fmt.Errorf("periodic dimension %g bin %g: %w", period, binSize, status.ErrInvalidArgument)
	}
	bins := max(1, int(math.Floor(period/binSize)))
	return RegularGridDimension{
		Bins:       bins,
		BinSize:    period / float64(bins),
		Lower:      lower,
		Upper:      lower + period,
		IsPeriodic: true,
	}, nil
}

// Period returns the axis length.
func (d RegularGridDimension) Period() float64 { return d.Upper - d.Lower }

// rawIndex is floor((x-lower)/binSize) without any regularization.
func (d RegularGridDimension) rawIndex(x float64) int {
	return int(math.Floor((x - d.Lower) / d.BinSize))
}

// regularize folds a periodic index or checks/clamps a non-periodic one.
func (d RegularGridDimension) regularize(i int, mode ExtentMode) (int, bool) {
	if d.IsPeriodic {
		i %= d.Bins
		if i < 0 {
			i += d.Bins
		}
		return i, true
	}
	if i >= 0 && i < d.Bins {
		return i, true
	}
	if mode == Clamp {
		return min(max(i, 0), d.Bins-1), true
	}
	return -1, false
}

// RegularGrid is a row-major product of dimensions.
type RegularGrid struct {
	dims  []RegularGridDimension
	cells int
}

// MaximumDimensions is the largest number of axes a grid may have.
const MaximumDimensions = 3

// NewRegularGrid builds a grid and assigns the strides of its dimensions.
func NewRegularGrid(dims ...RegularGridDimension) (*RegularGrid, error) {
	if len(dims) == 0 || len(dims) > MaximumDimensions {
		return nil, fmt.Errorf("grid with %d dimensions: %w", len(dims), status.ErrInvalidArgument)
	}
	g := &RegularGrid{dims: make([]RegularGridDimension, len(dims))}
	copy(g.dims, dims)
	cells := 1
	for d := len(g.dims) - 1; d >= 0; d-- {
		if g.dims[d].Bins < 1 || !(g.dims[d].BinSize > 0) {
			return nil, fmt.Errorf("dimension %d has %d bins of %g: %w", d, g.dims[d].Bins, g.dims[d].BinSize, status.ErrInvalidArgument)
		}
		g.dims[d].Stride = cells
		cells *= g.dims[d].Bins
		if err := status.CheckCapacity(cells); err != nil {
			return nil, fmt.Errorf("grid of more than %d cells: %w", status.MaximumCapacity, err)
		}
	}
	g.cells = cells
	return g, nil
}

// NDimensions returns the number of axes.
func (g *RegularGrid) NDimensions() int { return len(g.dims) }

// Dimension returns axis d.
func (g *RegularGrid) Dimension(d int) RegularGridDimension { return g.dims[d] }

// NumberOfCells returns the product of the bin counts.
func (g *RegularGrid) NumberOfCells() int { return g.cells }

// cellID encodes regular indices with the given strides.
func cellID(indices, strides []int) int {
	id := 0
	for d, i := range indices {
		id += i * strides[d]
	}
	return id
}

func (g *RegularGrid) strides() []int {
	s := make([]int, len(g.dims))
	for d, dim := range g.dims {
		s[d] = dim.Stride
	}
	return s
}

// CellID encodes cell indices, which must already be regular.
func (g *RegularGrid) CellID(indices []int) (int, error) {
	if len(indices) != len(g.dims) {
		return -1, fmt.Errorf("%d indices for %d dimensions: %w", len(indices), len(g.dims), status.ErrNonConformableArrays)
	}
	for d, i := range indices {
		if i < 0 || i >= g.dims[d].Bins {
			return -1, fmt.Errorf("index %d on axis %d of %d bins: %w", i, d, g.dims[d].Bins, status.ErrIndexOutOfRange)
		}
	}
	return cellID(indices, g.strides()), nil
}

// CellIndices decodes id into dst, which is grown as needed.
func (g *RegularGrid) CellIndices(id int, dst []int) []int {
	dst = dst[:0]
	for _, dim := range g.dims {
		dst = append(dst, id/dim.Stride)
		id %= dim.Stride
	}
	return dst
}

// Regularize folds or checks indices in place and reports whether they
// name a cell.
func (g *RegularGrid) Regularize(indices []int, mode ExtentMode) bool {
	for d, dim := range g.dims {
		i, ok := dim.regularize(indices[d], mode)
		if !ok {
			return false
		}
		indices[d] = i
	}
	return true
}

// rawIndicesOfPoint writes the unregularized indices of p into dst.
func (g *RegularGrid) rawIndicesOfPoint(p r3.Vec, dst []int) []int {
	dst = dst[:0]
	for d, dim := range g.dims {
		x := geometry.Component(p, d)
		i := dim.rawIndex(x)
		// The upper face of a non-periodic axis belongs to the last bin.
		if !dim.IsPeriodic && i == dim.Bins && x <= dim.Upper {
			i = dim.Bins - 1
		}
		dst = append(dst, i)
	}
	return dst
}

// FindCellIndicesOfPoint returns the regular cell indices of p. The second
// result is false when p lies off a non-periodic axis in Reject mode.
func (g *RegularGrid) FindCellIndicesOfPoint(p r3.Vec, mode ExtentMode, dst []int) ([]int, bool) {
	dst = g.rawIndicesOfPoint(p, dst)
	return dst, g.Regularize(dst, mode)
}

// FindCellIDOfPoint returns the cell containing p or -1 when off-grid.
func (g *RegularGrid) FindCellIDOfPoint(p r3.Vec, mode ExtentMode) int {
	var buf [MaximumDimensions]int
	indices, ok := g.FindCellIndicesOfPoint(p, mode, buf[:0])
	if !ok {
		return -1
	}
	return cellID(indices, g.strides())
}

// CellBounds returns the box covered by cell id. Axes the grid does not
// have are unbounded.
func (g *RegularGrid) CellBounds(id int) (geometry.Box, error) {
	if id < 0 || id >= g.cells {
		return geometry.Box{}, fmt.Errorf("cell %d of %d: %w", id, g.cells, status.ErrIndexOutOfRange)
	}
	inf := math.Inf(1)
	b := geometry.Box{Min: r3.Vec{X: -inf, Y: -inf, Z: -inf}, Max: r3.Vec{X: inf, Y: inf, Z: inf}}
	var buf [MaximumDimensions]int
	for d, i := range g.CellIndices(id, buf[:0]) {
		dim := g.dims[d]
		lo := dim.Lower + float64(i)*dim.BinSize
		b.Min = geometry.SetComponent(b.Min, d, lo)
		b.Max = geometry.SetComponent(b.Max, d, lo+dim.BinSize)
	}
	return b, nil
}

// ConformingOffset returns the per-axis integer offset that maps cell
// indices of g onto cell indices of other. Both grids must share bin sizes,
// periodicity and a lower bound differing by whole bins.
func (g *RegularGrid) ConformingOffset(other *RegularGrid) ([]int, error) {
	if other == nil || len(other.dims) != len(g.dims) {
		return nil, fmt.Errorf("grids of different rank: %w", status.ErrNonConformableArrays)
	}
	const tol = 1e-8
	offset := make([]int, len(g.dims))
	for d, a := range g.dims {
		b := other.dims[d]
		if a.IsPeriodic != b.IsPeriodic || math.Abs(a.BinSize-b.BinSize) > tol*a.BinSize {
			return nil, fmt.Errorf("axis %d bins %g/%g: %w", d, a.BinSize, b.BinSize, status.ErrNonConformableArrays)
		}
		shift := (a.Lower - b.Lower) / a.BinSize
		r := math.Round(shift)
		if math.Abs(shift-r) > tol {
			return nil, fmt.Errorf("axis %d lower bounds not aligned: %w", d, status.ErrNonConformableArrays)
		}
		offset[d] = int(r)
	}
	return offset, nil
}
