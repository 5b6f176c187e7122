package images

import (
	"fmt"

	"github.com/banshee-data/nblist/internal/generator"
	"github.com/banshee-data/nblist/internal/geometry"
	"github.com/banshee-data/nblist/internal/pairlist"
	"github.com/banshee-data/nblist/internal/status"
)

// TransformationRef refers to a transformation owned by a
// Transformation3Container. It does not copy the transformation and is
// only valid while the container is.
type TransformationRef struct {
	container *geometry.Transformation3Container
	Index     int
}

// Get returns the referenced transformation.
func (r TransformationRef) Get() *geometry.Transformation3 {
	return r.container.Item(r.Index)
}

// ImagePairList is the cross pair list between the original coordinates
// (first index) and one image of them (second index).
type ImagePairList struct {
	A, B, C        int
	Scale          float64
	PairList       *pairlist.PairList
	Transformation TransformationRef
}

// Translation returns (A, B, C).
func (l *ImagePairList) Translation() [3]int { return [3]int{l.A, l.B, l.C} }

// ImagePairListContainer holds the non-empty image pair lists of one build.
type ImagePairListContainer struct {
	Items           []*ImagePairList
	transformations *geometry.Transformation3Container
}

// Count returns the number of image pair lists.
func (c *ImagePairListContainer) Count() int { return len(c.Items) }

// NumberOfPairs returns the number of pairs over all images.
func (c *ImagePairListContainer) NumberOfPairs() int {
	total := 0
	for _, l := range c.Items {
		total += l.PairList.NumberOfPairs()
	}
	return total
}

// NewImagePairListContainer builds one cross pair list per retained image
// in scans. Images with no pairs within opts.CutOff are left out.
func NewImagePairListContainer(gen *generator.Generator, coords geometry.Coordinates3, sym *geometry.SymmetryParameters, transformations *geometry.Transformation3Container, scans *ImageScanContainer, opts Options) (*ImagePairListContainer, error) {
	if gen == nil || sym == nil || transformations == nil || scans == nil {
		return nil, fmt.Errorf("image pair lists need a generator, cell, transformations and scan: %w", status.ErrInvalidArgument)
	}
	out := &ImagePairListContainer{transformations: transformations}
	if len(coords) == 0 {
		return out, nil
	}
	image := make(geometry.Coordinates3, len(coords))
	for _, s := range scans.Items {
		if s.DoSkip {
			continue
		}
		if s.T < 0 || s.T >= transformations.Len() {
			return nil, fmt.Errorf("image transformation %d of %d: %w", s.T, transformations.Len(), status.ErrIndexOutOfRange)
		}
		cart := transformations.Item(s.T).Orthogonalize(sym.M(), sym.Inverse())
		if err := cart.ApplyTo(image, coords, sym.Displacement(s.Translation())); err != nil {
			return nil, err
		}
		pl, err := gen.CrossPairList(generator.CrossInput{
			Coordinates1: coords,
			Coordinates2: image,
			CutOff:       opts.CutOff,
		})
		if err != nil {
			return nil, fmt.Errorf("image (%d, %d, %d, %d): %w", s.T, s.A, s.B, s.C, err)
		}
		if pl.NumberOfPairs() == 0 {
			continue
		}
		out.Items = append(out.Items, &ImagePairList{
			A:              s.A,
			B:              s.B,
			C:              s.C,
			Scale:          s.Scale,
			PairList:       pl,
			Transformation: TransformationRef{container: transformations, Index: s.T},
		})
	}
	return out, nil
}
