package geometry

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/nblist/internal/status"
)

// Transformation3 is the affine map x → Rotation·x + Translation.
type Transformation3 struct {
	Rotation    *mat.Dense
	Translation r3.Vec
}

// Identity returns the identity transformation.
func Identity() *Transformation3 {
	return &Transformation3{Rotation: eye()}
}

// NewTransformation3 builds a transformation from a row-major rotation.
func NewTransformation3(rotation [9]float64, translation r3.Vec) *Transformation3 {
	return &Transformation3{Rotation: mat.NewDense(3, 3, rotation[:]), Translation: translation}
}

func eye() *mat.Dense {
	return mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
}

// Rotate applies only the rotation to v.
func (t *Transformation3) Rotate(v r3.Vec) r3.Vec {
	r := t.Rotation
	return r3.Vec{
		X: r.At(0, 0)*v.X + r.At(0, 1)*v.Y + r.At(0, 2)*v.Z,
		Y: r.At(1, 0)*v.X + r.At(1, 1)*v.Y + r.At(1, 2)*v.Z,
		Z: r.At(2, 0)*v.X + r.At(2, 1)*v.Y + r.At(2, 2)*v.Z,
	}
}

// RotateTranspose applies the transposed rotation to v. For an orthogonal
// rotation this is the inverse rotation; it is also the chain rule factor
// for gradients taken with respect to transformed coordinates.
func (t *Transformation3) RotateTranspose(v r3.Vec) r3.Vec {
	r := t.Rotation
	return r3.Vec{
		X: r.At(0, 0)*v.X + r.At(1, 0)*v.Y + r.At(2, 0)*v.Z,
		Y: r.At(0, 1)*v.X + r.At(1, 1)*v.Y + r.At(2, 1)*v.Z,
		Z: r.At(0, 2)*v.X + r.At(1, 2)*v.Y + r.At(2, 2)*v.Z,
	}
}

// Apply maps v.
func (t *Transformation3) Apply(v r3.Vec) r3.Vec {
	return r3.Add(t.Rotate(v), t.Translation)
}

// ApplyTo writes the image of src shifted by shift into dst.
func (t *Transformation3) ApplyTo(dst, src Coordinates3, shift r3.Vec) error {
	if len(dst) != len(src) {
		return fmt.Errorf("transform %d into %d coordinates: %w", len(src), len(dst), status.ErrNonConformableArrays)
	}
	for i, v := range src {
		dst[i] = r3.Add(t.Apply(v), shift)
	}
	return nil
}

// IsIdentity reports whether the transformation is the identity within tol.
func (t *Transformation3) IsIdentity(tol float64) bool {
	return mat.EqualApprox(t.Rotation, eye(), tol) && r3.Norm(t.Translation) <= tol
}

// Inverse returns the inverse transformation.
func (t *Transformation3) Inverse() (*Transformation3, error) {
	var inv mat.Dense
	if err := inv.Inverse(t.Rotation); err != nil {
		return nil, fmt.Errorf("singular rotation: %w", status.ErrInvalidArgument)
	}
	out := &Transformation3{Rotation: &inv}
	out.Translation = r3.Scale(-1, out.Rotate(t.Translation))
	return out, nil
}

// Orthogonalize converts a transformation expressed in fractional
// coordinates into Cartesian space using the lattice matrix m and its inverse.
func (t *Transformation3) Orthogonalize(m, mInverse *mat.Dense) *Transformation3 {
	var tmp, rot mat.Dense
	tmp.Mul(m, t.Rotation)
	rot.Mul(&tmp, mInverse)
	return &Transformation3{Rotation: &rot, Translation: MulVec(m, t.Translation)}
}

// MulVec returns m·v for a 3×3 matrix m.
func MulVec(m mat.Matrix, v r3.Vec) r3.Vec {
	return r3.Vec{
		X: m.At(0, 0)*v.X + m.At(0, 1)*v.Y + m.At(0, 2)*v.Z,
		Y: m.At(1, 0)*v.X + m.At(1, 1)*v.Y + m.At(1, 2)*v.Z,
		Z: m.At(2, 0)*v.X + m.At(2, 1)*v.Y + m.At(2, 2)*v.Z,
	}
}

// Transformation3Container is an ordered list of symmetry transformations in
// fractional coordinates. Transformations handed out by the container are
// owned by it; image lists keep aliases and must not outlive it.
type Transformation3Container struct {
	items []*Transformation3
}

// NewTransformation3Container creates a container of the given transformations.
func NewTransformation3Container(items ...*Transformation3) (*Transformation3Container, error) {
	for k, t := range items {
		if t == nil || t.Rotation == nil {
			return nil, fmt.Errorf("transformation %d is nil: %w", k, status.ErrInvalidArgument)
		}
		if r, c := t.Rotation.Dims(); r != 3 || c != 3 {
			return nil, fmt.Errorf("transformation %d is %dx%d: %w", k, r, c, status.ErrNonConformableArrays)
		}
	}
	return &Transformation3Container{items: items}, nil
}

// P1 returns the container holding only the identity.
func P1() *Transformation3Container {
	return &Transformation3Container{items: []*Transformation3{Identity()}}
}

// PMinus1 returns the container of space group P-1: identity and inversion.
func PMinus1() *Transformation3Container {
	return &Transformation3Container{items: []*Transformation3{
		Identity(),
		NewTransformation3([9]float64{-1, 0, 0, 0, -1, 0, 0, 0, -1}, r3.Vec{}),
	}}
}

// Len returns the number of transformations.
func (c *Transformation3Container) Len() int { return len(c.items) }

// Item returns transformation i.
func (c *Transformation3Container) Item(i int) *Transformation3 { return c.items[i] }

// IdentityIndex returns the index of the identity transformation or -1.
func (c *Transformation3Container) IdentityIndex() int {
	for k, t := range c.items {
		if t.IsIdentity(1e-8) {
			return k
		}
	}
	return -1
}

// Inverses describes, for each fractional transformation t, the
// transformation undoing it. Index[t] is -1 when none exists. Composing
// Index[t] after t leaves x → x + Shift[t], where Shift[t] is integral.
type Inverses struct {
	Index []int
	Shift [][3]int
}

// FindInverses pairs every transformation with its inverse, modulo lattice
// translations. tol bounds the deviation from integrality.
func (c *Transformation3Container) FindInverses(tol float64) Inverses {
	inv := Inverses{Index: make([]int, len(c.items)), Shift: make([][3]int, len(c.items))}
	ident := eye()
	for a, ta := range c.items {
		inv.Index[a] = -1
		for b, tb := range c.items {
			var prod mat.Dense
			prod.Mul(tb.Rotation, ta.Rotation)
			if !mat.EqualApprox(&prod, ident, tol) {
				continue
			}
			d := r3.Add(tb.Rotate(ta.Translation), tb.Translation)
			shift, ok := roundVec(d, tol)
			if !ok {
				continue
			}
			inv.Index[a] = b
			inv.Shift[a] = shift
			break
		}
	}
	return inv
}

// InverseImage returns the translation n' such that image (Index[t], n')
// undoes image (t, n).
func (inv Inverses) InverseImage(c *Transformation3Container, t int, n [3]int) (int, [3]int, bool) {
	u := inv.Index[t]
	if u < 0 {
		return -1, [3]int{}, false
	}
	rn := c.items[u].Rotate(r3.Vec{X: float64(n[0]), Y: float64(n[1]), Z: float64(n[2])})
	s := inv.Shift[t]
	out := [3]int{
		-s[0] - int(math.Round(rn.X)),
		-s[1] - int(math.Round(rn.Y)),
		-s[2] - int(math.Round(rn.Z)),
	}
	return u, out, true
}

func roundVec(v r3.Vec, tol float64) ([3]int, bool) {
	var out [3]int
	for d := 0; d < 3; d++ {
		x := Component(v, d)
		r := math.Round(x)
		if math.Abs(x-r) > tol {
			return out, false
		}
		out[d] = int(r)
	}
	return out, true
}
