package images

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/nblist/internal/geometry"
	"github.com/banshee-data/nblist/internal/status"
)

// Iterator walks the image pair lists of a container for one coordinate
// set and cell, which may have moved since the lists were built. Image
// coordinates are computed on first use for each image.
//
// Typical use:
//
//	it := lists.Iterate(coords, sym)
//	for it.Next() {
//		y, _ := it.Coordinates()
//		g := it.GradientBuffer()
//		// accumulate dE/dy into g using it.Current().PairList and Scale
//		_ = it.Gradients(grad, symGrad)
//	}
type Iterator struct {
	lists  *ImagePairListContainer
	coords geometry.Coordinates3
	sym    *geometry.SymmetryParameters

	next    int
	current *ImagePairList
	cart    *geometry.Transformation3
	image   geometry.Coordinates3
	ready   bool
	grad    []r3.Vec
}

// Iterate returns an iterator positioned before the first image.
func (c *ImagePairListContainer) Iterate(coords geometry.Coordinates3, sym *geometry.SymmetryParameters) *Iterator {
	return &Iterator{lists: c, coords: coords, sym: sym}
}

// Next advances to the next image and reports whether there is one.
func (it *Iterator) Next() bool {
	if it.next >= len(it.lists.Items) {
		it.current = nil
		return false
	}
	it.current = it.lists.Items[it.next]
	it.next++
	it.cart = it.current.Transformation.Get().Orthogonalize(it.sym.M(), it.sym.Inverse())
	it.ready = false
	return true
}

// Current returns the image the iterator is positioned on.
func (it *Iterator) Current() *ImagePairList { return it.current }

// Coordinates returns the coordinates of the current image. The slice is
// reused by later images.
func (it *Iterator) Coordinates() (geometry.Coordinates3, error) {
	if it.current == nil {
		return nil, fmt.Errorf("no current image: %w", status.ErrAlgorithmError)
	}
	if it.ready {
		return it.image, nil
	}
	if len(it.image) != len(it.coords) {
		it.image = make(geometry.Coordinates3, len(it.coords))
	}
	if err := it.cart.ApplyTo(it.image, it.coords, it.sym.Displacement(it.current.Translation())); err != nil {
		return nil, err
	}
	it.ready = true
	return it.image, nil
}

// GradientBuffer returns the buffer that receives dE/dy for the image
// coordinates y. It is zero on entry to each image.
func (it *Iterator) GradientBuffer() []r3.Vec {
	if len(it.grad) != len(it.coords) {
		it.grad = make([]r3.Vec, len(it.coords))
	}
	return it.grad
}

// Gradients folds the image gradient buffer into grad, the gradient with
// respect to the original coordinates, and clears the buffer. When symGrad
// is non-nil it also receives the lattice derivative of the image that is
// not already carried by grad, so adding Σ grad_i ⊗ f_i afterwards gives
// the full dE/dM at fixed fractional coordinates f.
func (it *Iterator) Gradients(grad []r3.Vec, symGrad *geometry.SymmetryParameterGradients) error {
	if it.current == nil {
		return fmt.Errorf("no current image: %w", status.ErrAlgorithmError)
	}
	buf := it.GradientBuffer()
	if len(grad) != len(buf) {
		return fmt.Errorf("gradient of %d for %d coordinates: %w", len(grad), len(buf), status.ErrNonConformableArrays)
	}
	frac := it.current.Transformation.Get()
	n := it.current.Translation()
	shift := r3.Vec{X: float64(n[0]), Y: float64(n[1]), Z: float64(n[2])}
	for j, g := range buf {
		if g == (r3.Vec{}) {
			continue
		}
		back := it.cart.RotateTranspose(g)
		grad[j] = r3.Add(grad[j], back)
		if symGrad != nil {
			f := it.sym.Fractional(it.coords[j])
			symGrad.AddOuter(g, r3.Add(frac.Apply(f), shift))
			symGrad.AddOuter(r3.Scale(-1, back), f)
		}
		buf[j] = r3.Vec{}
	}
	return nil
}
