package geometry

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/nblist/internal/status"
)

// PeriodicBox is an orthorhombic box [0, L) with per-axis periodicity, used
// for minimum-image searches on a grid. General cells go through the image
// machinery instead.
type PeriodicBox struct {
	Lengths  r3.Vec
	Periodic [3]bool
}

// NewPeriodicBox returns a box periodic along every axis.
func NewPeriodicBox(lengths r3.Vec) (*PeriodicBox, error) {
	b := &PeriodicBox{Lengths: lengths, Periodic: [3]bool{true, true, true}}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}

// Validate checks that every periodic axis has a positive length.
func (b *PeriodicBox) Validate() error {
	for d := 0; d < 3; d++ {
		if b.Periodic[d] && !(Component(b.Lengths, d) > 0) {
			return fmt.Errorf("periodic length %g on axis %d: %w", Component(b.Lengths, d), d, status.ErrInvalidArgument)
		}
	}
	return nil
}

// MinimumPeriodicLength returns the shortest periodic length, or +Inf when
// no axis is periodic.
func (b *PeriodicBox) MinimumPeriodicLength() float64 {
	l := math.Inf(1)
	for d := 0; d < 3; d++ {
		if b.Periodic[d] {
			l = math.Min(l, Component(b.Lengths, d))
		}
	}
	return l
}

// MinimumImage folds the displacement d onto its nearest periodic image.
func (b *PeriodicBox) MinimumImage(d r3.Vec) r3.Vec {
	if b == nil {
		return d
	}
	for k := 0; k < 3; k++ {
		if !b.Periodic[k] {
			continue
		}
		l := Component(b.Lengths, k)
		x := Component(d, k)
		d = SetComponent(d, k, x-l*math.Round(x/l))
	}
	return d
}
