package geometry

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/nblist/internal/status"
)

// SymmetryParameters describe a periodic cell. The lattice matrix M has the
// cell vectors a, b and c as its columns, so Cartesian x = M·f for
// fractional coordinates f.
type SymmetryParameters struct {
	A, B, C            float64 // cell lengths
	Alpha, Beta, Gamma float64 // cell angles in degrees

	m, mInverse *mat.Dense
}

// NewSymmetryParameters builds a cell from lengths and angles (degrees).
// a lies along x and b in the xy plane.
func NewSymmetryParameters(a, b, c, alpha, beta, gamma float64) (*SymmetryParameters, error) {
	if a <= 0 || b <= 0 || c <= 0 {
		return nil, fmt.Errorf("cell lengths %g %g %g: %w", a, b, c, status.ErrInvalidArgument)
	}
	ca, cb, cg := cosd(alpha), cosd(beta), cosd(gamma)
	sg := math.Sin(gamma * math.Pi / 180)
	if sg <= 0 {
		return nil, fmt.Errorf("cell angle gamma %g: %w", gamma, status.ErrInvalidArgument)
	}
	cy := (ca - cb*cg) / sg
	cz2 := 1 - cb*cb - cy*cy
	if cz2 <= 0 {
		return nil, fmt.Errorf("cell angles %g %g %g: %w", alpha, beta, gamma, status.ErrInvalidArgument)
	}
	m := mat.NewDense(3, 3, []float64{
		a, b * cg, c * cb,
		0, b * sg, c * cy,
		0, 0, c * math.Sqrt(cz2),
	})
	p := &SymmetryParameters{A: a, B: b, C: c, Alpha: alpha, Beta: beta, Gamma: gamma}
	if err := p.setM(m); err != nil {
		return nil, err
	}
	return p, nil
}

// NewOrthorhombic builds a rectangular cell.
func NewOrthorhombic(a, b, c float64) (*SymmetryParameters, error) {
	return NewSymmetryParameters(a, b, c, 90, 90, 90)
}

// FromMatrix builds a cell from a 3×3 lattice matrix whose columns are the
// cell vectors. The matrix is copied.
func FromMatrix(m mat.Matrix) (*SymmetryParameters, error) {
	if r, c := m.Dims(); r != 3 || c != 3 {
		return nil, fmt.Errorf("lattice matrix is %dx%d: %w", r, c, status.ErrNonConformableArrays)
	}
	cp := mat.DenseCopyOf(m)
	col := func(j int) r3.Vec { return r3.Vec{X: cp.At(0, j), Y: cp.At(1, j), Z: cp.At(2, j)} }
	va, vb, vc := col(0), col(1), col(2)
	p := &SymmetryParameters{
		A: r3.Norm(va), B: r3.Norm(vb), C: r3.Norm(vc),
		Alpha: angle(vb, vc), Beta: angle(va, vc), Gamma: angle(va, vb),
	}
	if err := p.setM(cp); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *SymmetryParameters) setM(m *mat.Dense) error {
	var inv mat.Dense
	if err := inv.Inverse(m); err != nil {
		return fmt.Errorf("singular lattice matrix: %w", status.ErrInvalidArgument)
	}
	p.m, p.mInverse = m, &inv
	return nil
}

func cosd(deg float64) float64 {
	// Exact zero for right angles keeps orthorhombic matrices diagonal.
	if deg == 90 {
		return 0
	}
	return math.Cos(deg * math.Pi / 180)
}

func angle(u, v r3.Vec) float64 {
	c := r3.Dot(u, v) / (r3.Norm(u) * r3.Norm(v))
	return math.Acos(math.Max(-1, math.Min(1, c))) * 180 / math.Pi
}

// M returns the lattice matrix. It must not be modified.
func (p *SymmetryParameters) M() *mat.Dense { return p.m }

// Inverse returns the inverse lattice matrix. It must not be modified.
func (p *SymmetryParameters) Inverse() *mat.Dense { return p.mInverse }

// IsOrthorhombic reports whether all cell angles are right angles.
func (p *SymmetryParameters) IsOrthorhombic() bool {
	const tol = 1e-8
	return math.Abs(p.Alpha-90) < tol && math.Abs(p.Beta-90) < tol && math.Abs(p.Gamma-90) < tol
}

// Lengths returns the cell lengths.
func (p *SymmetryParameters) Lengths() r3.Vec { return r3.Vec{X: p.A, Y: p.B, Z: p.C} }

// Displacement returns the Cartesian lattice translation M·n.
func (p *SymmetryParameters) Displacement(n [3]int) r3.Vec {
	return MulVec(p.m, r3.Vec{X: float64(n[0]), Y: float64(n[1]), Z: float64(n[2])})
}

// Fractional returns M⁻¹·x.
func (p *SymmetryParameters) Fractional(x r3.Vec) r3.Vec { return MulVec(p.mInverse, x) }

// FindBoxSearchLimits returns inclusive integer limits on the lattice
// translation n such that moving + M·n can overlap target. The limits are
// conservative: every overlapping n lies inside them.
func (p *SymmetryParameters) FindBoxSearchLimits(target, moving Box) (lower, upper [3]int) {
	diff := Box{Min: r3.Sub(target.Min, moving.Max), Max: r3.Sub(target.Max, moving.Min)}
	fmin := r3.Vec{X: math.Inf(1), Y: math.Inf(1), Z: math.Inf(1)}
	fmax := r3.Scale(-1, fmin)
	for _, v := range diff.Vertices() {
		f := p.Fractional(v)
		fmin = r3.Vec{X: math.Min(fmin.X, f.X), Y: math.Min(fmin.Y, f.Y), Z: math.Min(fmin.Z, f.Z)}
		fmax = r3.Vec{X: math.Max(fmax.X, f.X), Y: math.Max(fmax.Y, f.Y), Z: math.Max(fmax.Z, f.Z)}
	}
	for d := 0; d < 3; d++ {
		lower[d] = int(math.Floor(Component(fmin, d)))
		upper[d] = int(math.Ceil(Component(fmax, d)))
	}
	return lower, upper
}

// SymmetryParameterGradients accumulates dE/dM, the derivative of an energy
// with respect to the lattice matrix at fixed fractional coordinates.
type SymmetryParameterGradients struct {
	DM *mat.Dense
}

// NewSymmetryParameterGradients returns a zeroed accumulator.
func NewSymmetryParameterGradients() *SymmetryParameterGradients {
	return &SymmetryParameterGradients{DM: mat.NewDense(3, 3, nil)}
}

// AddOuter adds g ⊗ f to DM.
func (s *SymmetryParameterGradients) AddOuter(g, f r3.Vec) {
	gs := [3]float64{g.X, g.Y, g.Z}
	fs := [3]float64{f.X, f.Y, f.Z}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			s.DM.Set(i, j, s.DM.At(i, j)+gs[i]*fs[j])
		}
	}
}
