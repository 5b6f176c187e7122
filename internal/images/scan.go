// Package images finds the periodic images of a coordinate set that come
// within a cut-off of the original set, and builds pair lists against them.
//
// An image is a symmetry transformation index T plus a lattice translation
// (A, B, C), mapping fractional coordinates f to R_T f + τ_T + (A, B, C).
// When inverse checking is on, an image and its inverse describe the same
// interactions: one keeps Scale 1 and the other is kept with DoSkip set.
// Self-inverse images carry Scale 0.5. With inverse checking off every
// image carries Scale 0.5. In both cases energies summed over retained
// images and weighted by Scale count each interaction once.
package images

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/nblist/internal/config"
	"github.com/banshee-data/nblist/internal/geometry"
	"github.com/banshee-data/nblist/internal/monitoring"
	"github.com/banshee-data/nblist/internal/status"
)

// DefaultTolerance bounds the integrality error when matching inverses.
const DefaultTolerance = 1e-6

// Options control the image scan.
type Options struct {
	CutOff           float64
	CheckForInverses bool
	Tolerance        float64 // zero means DefaultTolerance
}

// OptionsFromTuning builds Options for Verlet-style lists: the scan
// cut-off is the interaction cut-off plus the buffer.
func OptionsFromTuning(cfg *config.TuningConfig) Options {
	return Options{
		CutOff:           cfg.GetCutOff() + cfg.GetBuffer(),
		CheckForInverses: cfg.GetCheckForInverses(),
	}
}

func (o Options) tolerance() float64 {
	if o.Tolerance > 0 {
		return o.Tolerance
	}
	return DefaultTolerance
}

// ImageScan is one candidate image.
type ImageScan struct {
	T       int
	A, B, C int
	DoSkip  bool
	Scale   float64
}

// Translation returns (A, B, C).
func (s ImageScan) Translation() [3]int { return [3]int{s.A, s.B, s.C} }

type imageKey struct {
	t int
	n [3]int
}

// ImageScanContainer holds the images found by Scan.
type ImageScanContainer struct {
	Items            []ImageScan
	CutOff           float64
	CheckForInverses bool
}

// NumberOfImages returns the number of images, skipped ones included.
func (c *ImageScanContainer) NumberOfImages() int { return len(c.Items) }

// Retained returns the images that are not skipped.
func (c *ImageScanContainer) Retained() []ImageScan {
	out := make([]ImageScan, 0, len(c.Items))
	for _, s := range c.Items {
		if !s.DoSkip {
			out = append(out, s)
		}
	}
	return out
}

// TotalScale returns the summed scale of the retained images.
func (c *ImageScanContainer) TotalScale() float64 {
	total := 0.0
	for _, s := range c.Items {
		if !s.DoSkip {
			total += s.Scale
		}
	}
	return total
}

// FractionalOffsets returns τ_T + (A, B, C) for every retained image, the
// fractional shift whose Cartesian length changes with the cell.
func (c *ImageScanContainer) FractionalOffsets(transformations *geometry.Transformation3Container) []r3.Vec {
	out := make([]r3.Vec, 0, len(c.Items))
	for _, s := range c.Items {
		if s.DoSkip {
			continue
		}
		n := r3.Vec{X: float64(s.A), Y: float64(s.B), Z: float64(s.C)}
		out = append(out, r3.Add(transformations.Item(s.T).Translation, n))
	}
	return out
}

// Scan finds every image (t, n) whose transformed, translated bounding box
// overlaps the bounding box of coords expanded by the cut-off. The
// untranslated identity image is not an image. The result is closed under
// inversion.
func Scan(coords geometry.Coordinates3, sym *geometry.SymmetryParameters, transformations *geometry.Transformation3Container, opts Options) (*ImageScanContainer, error) {
	if sym == nil || transformations == nil || transformations.Len() == 0 {
		return nil, fmt.Errorf("image scan needs a cell and transformations: %w", status.ErrInvalidArgument)
	}
	if !(opts.CutOff > 0) {
		return nil, fmt.Errorf("image cut-off %g: %w", opts.CutOff, status.ErrInvalidArgument)
	}
	out := &ImageScanContainer{CutOff: opts.CutOff, CheckForInverses: opts.CheckForInverses}
	if len(coords) == 0 {
		return out, nil
	}

	box, err := geometry.BoundingBox(coords, nil)
	if err != nil {
		return nil, err
	}
	target := box.Expand(opts.CutOff)
	tol := opts.tolerance()
	identity := transformations.IdentityIndex()

	var found []imageKey
	for t := 0; t < transformations.Len(); t++ {
		cart := transformations.Item(t).Orthogonalize(sym.M(), sym.Inverse())
		moving := geometry.EmptyBox()
		for _, v := range box.Vertices() {
			moving = moving.Include(cart.Apply(v))
		}
		lower, upper := sym.FindBoxSearchLimits(target, moving)
		for a := lower[0]; a <= upper[0]; a++ {
			for b := lower[1]; b <= upper[1]; b++ {
				for c := lower[2]; c <= upper[2]; c++ {
					n := [3]int{a, b, c}
					if t == identity && n == [3]int{} {
						continue
					}
					if moving.Translate(sym.Displacement(n)).Overlaps(target) {
						found = append(found, imageKey{t, n})
					}
				}
			}
		}
	}

	inv := transformations.FindInverses(tol)
	if err := out.assignScales(found, transformations, inv); err != nil {
		return nil, err
	}
	monitoring.Debugf("[images] %d transformations, %d images, %d retained, total scale %.1f",
		transformations.Len(), out.NumberOfImages(), len(out.Retained()), out.TotalScale())
	return out, nil
}

// assignScales closes the candidate set under inversion and sets DoSkip
// and Scale on every image.
func (c *ImageScanContainer) assignScales(found []imageKey, transformations *geometry.Transformation3Container, inv geometry.Inverses) error {
	slot := make(map[imageKey]int, len(found))
	add := func(k imageKey) int {
		if s, ok := slot[k]; ok {
			return s
		}
		slot[k] = len(c.Items)
		c.Items = append(c.Items, ImageScan{T: k.t, A: k.n[0], B: k.n[1], C: k.n[2], Scale: 0.5})
		return slot[k]
	}
	for _, k := range found {
		add(k)
	}

	// Items grows while closing the set; partners added here are visited
	// in turn and find their partner already present.
	done := make(map[int]bool)
	for s := 0; s < len(c.Items); s++ {
		if done[s] {
			continue
		}
		it := c.Items[s]
		u, n, ok := inv.InverseImage(transformations, it.T, it.Translation())
		if !ok {
			return fmt.Errorf("transformation %d has no inverse in the set: %w", it.T, status.ErrInvalidArgument)
		}
		partner := add(imageKey{u, n})
		done[s], done[partner] = true, true
		if partner == s || !c.CheckForInverses {
			continue
		}
		c.Items[s].Scale = 1
		c.Items[partner].Scale = 0
		c.Items[partner].DoSkip = true
	}
	return nil
}
