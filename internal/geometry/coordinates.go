// Package geometry holds the narrow geometric collaborators of the
// neighbour-list engine: coordinate arrays, axis-aligned boxes, affine
// transformations and crystal symmetry parameters.
//
// Coordinates are gonum r3.Vec values; 3×3 matrices are gonum mat.Dense.
package geometry

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/nblist/internal/status"
)

// Coordinates3 is an array of particle positions.
type Coordinates3 []r3.Vec

// Clone returns a copy of c.
func (c Coordinates3) Clone() Coordinates3 {
	out := make(Coordinates3, len(c))
	copy(out, c)
	return out
}

// Box is an axis-aligned box. An empty box has Min > Max on every axis.
type Box struct {
	Min, Max r3.Vec
}

// EmptyBox returns a box that any Include call will overwrite.
func EmptyBox() Box {
	inf := math.Inf(1)
	return Box{Min: r3.Vec{X: inf, Y: inf, Z: inf}, Max: r3.Vec{X: -inf, Y: -inf, Z: -inf}}
}

// IsEmpty reports whether the box contains no point.
func (b Box) IsEmpty() bool {
	return b.Min.X > b.Max.X || b.Min.Y > b.Max.Y || b.Min.Z > b.Max.Z
}

// Include grows the box to contain v.
func (b Box) Include(v r3.Vec) Box {
	b.Min = r3.Vec{X: math.Min(b.Min.X, v.X), Y: math.Min(b.Min.Y, v.Y), Z: math.Min(b.Min.Z, v.Z)}
	b.Max = r3.Vec{X: math.Max(b.Max.X, v.X), Y: math.Max(b.Max.Y, v.Y), Z: math.Max(b.Max.Z, v.Z)}
	return b
}

// Expand returns the box grown by d on every side.
func (b Box) Expand(d float64) Box {
	e := r3.Vec{X: d, Y: d, Z: d}
	return Box{Min: r3.Sub(b.Min, e), Max: r3.Add(b.Max, e)}
}

// Translate returns the box shifted by v.
func (b Box) Translate(v r3.Vec) Box {
	return Box{Min: r3.Add(b.Min, v), Max: r3.Add(b.Max, v)}
}

// Extents returns the side lengths of the box.
func (b Box) Extents() r3.Vec {
	if b.IsEmpty() {
		return r3.Vec{}
	}
	return r3.Sub(b.Max, b.Min)
}

// Overlaps reports whether the closed boxes intersect.
func (b Box) Overlaps(o Box) bool {
	return b.Min.X <= o.Max.X && o.Min.X <= b.Max.X &&
		b.Min.Y <= o.Max.Y && o.Min.Y <= b.Max.Y &&
		b.Min.Z <= o.Max.Z && o.Min.Z <= b.Max.Z
}

// Vertices returns the eight corners of the box.
func (b Box) Vertices() [8]r3.Vec {
	var out [8]r3.Vec
	for k := 0; k < 8; k++ {
		v := b.Min
		if k&1 != 0 {
			v.X = b.Max.X
		}
		if k&2 != 0 {
			v.Y = b.Max.Y
		}
		if k&4 != 0 {
			v.Z = b.Max.Z
		}
		out[k] = v
	}
	return out
}

// BoundingBox returns the box enclosing the coordinates whose indices are
// listed in subset, or all coordinates when subset is nil.
func BoundingBox(c Coordinates3, subset []int) (Box, error) {
	b := EmptyBox()
	if subset == nil {
		for _, v := range c {
			b = b.Include(v)
		}
		return b, nil
	}
	for _, i := range subset {
		if i < 0 || i >= len(c) {
			return EmptyBox(), fmt.Errorf("bounding box index %d of %d: %w", i, len(c), status.ErrIndexOutOfRange)
		}
		b = b.Include(c[i])
	}
	return b, nil
}

// Component returns axis d (0, 1, 2) of v.
func Component(v r3.Vec, d int) float64 {
	switch d {
	case 0:
		return v.X
	case 1:
		return v.Y
	default:
		return v.Z
	}
}

// SetComponent returns v with axis d replaced by x.
func SetComponent(v r3.Vec, d int, x float64) r3.Vec {
	switch d {
	case 0:
		v.X = x
	case 1:
		v.Y = x
	default:
		v.Z = x
	}
	return v
}
