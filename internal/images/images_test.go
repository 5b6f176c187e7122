package images

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/nblist/internal/config"
	"github.com/banshee-data/nblist/internal/generator"
	"github.com/banshee-data/nblist/internal/geometry"
	"github.com/banshee-data/nblist/internal/status"
	"github.com/banshee-data/nblist/internal/testutil"
)

const testCutOff = 3.0

func cubicCell(t *testing.T) *geometry.SymmetryParameters {
	t.Helper()
	sym, err := geometry.NewOrthorhombic(10, 10, 10)
	require.NoError(t, err)
	return sym
}

func triclinicCell(t *testing.T) *geometry.SymmetryParameters {
	t.Helper()
	sym, err := geometry.NewSymmetryParameters(10, 11, 12, 80, 95, 100)
	require.NoError(t, err)
	return sym
}

func monoclinicCell(t *testing.T) *geometry.SymmetryParameters {
	t.Helper()
	sym, err := geometry.NewSymmetryParameters(10, 11, 12, 90, 100, 90)
	require.NoError(t, err)
	return sym
}

// p21c returns space group P2₁/c: x,y,z; -x,y+½,-z+½; -x,-y,-z; x,-y+½,z+½.
func p21c(t *testing.T) *geometry.Transformation3Container {
	t.Helper()
	tc, err := geometry.NewTransformation3Container(
		geometry.Identity(),
		geometry.NewTransformation3([9]float64{-1, 0, 0, 0, 1, 0, 0, 0, -1}, r3.Vec{Y: 0.5, Z: 0.5}),
		geometry.NewTransformation3([9]float64{-1, 0, 0, 0, -1, 0, 0, 0, -1}, r3.Vec{}),
		geometry.NewTransformation3([9]float64{1, 0, 0, 0, -1, 0, 0, 0, 1}, r3.Vec{Y: 0.5, Z: 0.5}),
	)
	require.NoError(t, err)
	return tc
}

// spaceGroup pairs a transformation set with a cell it is valid in.
// inversion indexes the pure inversion, whose images are the only
// self-inverse ones, or is -1.
type spaceGroup struct {
	name      string
	tc        *geometry.Transformation3Container
	cell      *geometry.SymmetryParameters
	inversion int
}

func spaceGroups(t *testing.T) []spaceGroup {
	return []spaceGroup{
		{"P1", geometry.P1(), triclinicCell(t), -1},
		{"P-1", geometry.PMinus1(), triclinicCell(t), 1},
		{"P21/c", p21c(t), monoclinicCell(t), 2},
	}
}

// inCell places n random points inside the cell.
func inCell(seed uint64, n int, sym *geometry.SymmetryParameters) (geometry.Coordinates3, geometry.Coordinates3) {
	frac := testutil.RandomCoordinates(seed, n, testutil.Cube(1))
	coords := make(geometry.Coordinates3, n)
	for i, f := range frac {
		coords[i] = geometry.MulVec(sym.M(), f)
	}
	return coords, frac
}

func mustScan(t *testing.T, coords geometry.Coordinates3, sym *geometry.SymmetryParameters, tc *geometry.Transformation3Container, inverses bool) *ImageScanContainer {
	t.Helper()
	s, err := Scan(coords, sym, tc, Options{CutOff: testCutOff, CheckForInverses: inverses})
	require.NoError(t, err)
	return s
}

func mustLists(t *testing.T, coords geometry.Coordinates3, sym *geometry.SymmetryParameters, tc *geometry.Transformation3Container, scans *ImageScanContainer) *ImagePairListContainer {
	t.Helper()
	gen, err := generator.New(generator.DefaultConfig())
	require.NoError(t, err)
	lists, err := NewImagePairListContainer(gen, coords, sym, tc, scans, Options{CutOff: testCutOff})
	require.NoError(t, err)
	return lists
}

func TestScan_P1(t *testing.T) {
	sym := cubicCell(t)
	coords := testutil.RandomCoordinates(3, 40, testutil.Cube(10))

	on := mustScan(t, coords, sym, geometry.P1(), true)
	assert.Equal(t, 26, on.NumberOfImages())
	assert.Len(t, on.Retained(), 13)
	assert.Equal(t, 13.0, on.TotalScale())
	for _, s := range on.Items {
		assert.NotEqual(t, [3]int{}, s.Translation(), "identity image reported")
		if !s.DoSkip {
			assert.Equal(t, 1.0, s.Scale)
		}
	}

	off := mustScan(t, coords, sym, geometry.P1(), false)
	assert.Equal(t, 26, off.NumberOfImages())
	assert.Len(t, off.Retained(), 26)
	assert.Equal(t, 13.0, off.TotalScale())
}

func TestScan_InverseScaling(t *testing.T) {
	for _, sg := range spaceGroups(t) {
		t.Run(sg.name, func(t *testing.T) {
			tc, sym := sg.tc, sg.cell
			coords, _ := inCell(7, 30, sym)
			on := mustScan(t, coords, sym, tc, true)
			off := mustScan(t, coords, sym, tc, false)

			assert.Equal(t, off.NumberOfImages(), on.NumberOfImages())
			assert.Len(t, off.Retained(), off.NumberOfImages())
			assert.InDelta(t, float64(off.NumberOfImages())/2, on.TotalScale(), 1e-12)
			assert.InDelta(t, off.TotalScale(), on.TotalScale(), 1e-12)

			inv := tc.FindInverses(DefaultTolerance)
			present := make(map[imageKey]ImageScan)
			for _, s := range on.Items {
				present[imageKey{s.T, s.Translation()}] = s
			}
			selfInverse, inversions := 0, 0
			for _, s := range on.Items {
				if s.T == sg.inversion {
					inversions++
				}
				u, n, ok := inv.InverseImage(tc, s.T, s.Translation())
				require.True(t, ok)
				partner, found := present[imageKey{u, n}]
				require.True(t, found, "inverse of %+v missing", s)
				switch {
				case u == s.T && n == s.Translation():
					selfInverse++
					assert.Equal(t, 0.5, s.Scale)
					assert.False(t, s.DoSkip)
				default:
					assert.NotEqual(t, s.DoSkip, partner.DoSkip, "exactly one of %+v and %+v is skipped", s, partner)
				}
			}

			// Screw axes, glide planes and lattice translations never undo
			// themselves, so only inversion images are self-inverse.
			assert.Equal(t, inversions, selfInverse)
			paired := on.NumberOfImages() - selfInverse
			assert.Zero(t, paired%2)
			assert.Len(t, on.Retained(), selfInverse+paired/2)
		})
	}
}

func TestScan_P21cInverses(t *testing.T) {
	tc := p21c(t)
	inv := tc.FindInverses(DefaultTolerance)
	assert.Equal(t, []int{0, 1, 2, 3}, inv.Index)

	// The 2₁ screw applied twice is a unit translation along b.
	u, n, ok := inv.InverseImage(tc, 1, [3]int{0, 0, 0})
	require.True(t, ok)
	assert.Equal(t, 1, u)
	assert.Equal(t, [3]int{0, -1, 0}, n)

	// The c glide applied twice is a unit translation along c.
	u, n, ok = inv.InverseImage(tc, 3, [3]int{1, 0, 0})
	require.True(t, ok)
	assert.Equal(t, 3, u)
	assert.Equal(t, [3]int{-1, 0, -1}, n)
}

// imageEnergy sums Scale·½|y_j − x_i|² over the image pair lists and, when
// grad is non-nil, accumulates its derivatives.
func imageEnergy(t *testing.T, lists *ImagePairListContainer, coords geometry.Coordinates3, sym *geometry.SymmetryParameters, grad []r3.Vec, symGrad *geometry.SymmetryParameterGradients) float64 {
	t.Helper()
	e := 0.0
	it := lists.Iterate(coords, sym)
	for it.Next() {
		y, err := it.Coordinates()
		require.NoError(t, err)
		gy := it.GradientBuffer()
		s := it.Current().Scale
		for i, j := range it.Current().PairList.All() {
			d := r3.Sub(y[j], coords[i])
			e += s * 0.5 * r3.Norm2(d)
			if grad != nil {
				gy[j] = r3.Add(gy[j], r3.Scale(s, d))
				grad[i] = r3.Sub(grad[i], r3.Scale(s, d))
			}
		}
		if grad != nil {
			require.NoError(t, it.Gradients(grad, symGrad))
		}
	}
	return e
}

// referenceEnergy sums the same energy over every image in a generous
// translation range, counting ordered pairs with weight one half.
func referenceEnergy(coords geometry.Coordinates3, sym *geometry.SymmetryParameters, tc *geometry.Transformation3Container) float64 {
	e := 0.0
	identity := tc.IdentityIndex()
	for k := 0; k < tc.Len(); k++ {
		cart := tc.Item(k).Orthogonalize(sym.M(), sym.Inverse())
		for a := -3; a <= 3; a++ {
			for b := -3; b <= 3; b++ {
				for c := -3; c <= 3; c++ {
					n := [3]int{a, b, c}
					if k == identity && n == [3]int{} {
						continue
					}
					shift := sym.Displacement(n)
					for _, xi := range coords {
						for _, xj := range coords {
							r2 := r3.Norm2(r3.Sub(r3.Add(cart.Apply(xj), shift), xi))
							if r2 <= testCutOff*testCutOff {
								e += 0.5 * 0.5 * r2
							}
						}
					}
				}
			}
		}
	}
	return e
}

func TestImagePairLists_EnergyMatchesReference(t *testing.T) {
	for _, sg := range spaceGroups(t) {
		t.Run(sg.name, func(t *testing.T) {
			tc, sym := sg.tc, sg.cell
			coords, _ := inCell(13, 40, sym)
			want := referenceEnergy(coords, sym, tc)
			require.NotZero(t, want)

			for _, inverses := range []bool{true, false} {
				lists := mustLists(t, coords, sym, tc, mustScan(t, coords, sym, tc, inverses))
				assert.NotZero(t, lists.Count())
				assert.Positive(t, lists.NumberOfPairs())
				got := imageEnergy(t, lists, coords, sym, nil, nil)
				assert.InDelta(t, want, got, 1e-9*want, "inverses=%v", inverses)
			}
		})
	}
}

func TestIterator_GradientsMatchFiniteDifferences(t *testing.T) {
	tc := geometry.PMinus1()
	sym := triclinicCell(t)
	coords, frac := inCell(17, 25, sym)
	lists := mustLists(t, coords, sym, tc, mustScan(t, coords, sym, tc, true))

	grad := make([]r3.Vec, len(coords))
	symGrad := geometry.NewSymmetryParameterGradients()
	imageEnergy(t, lists, coords, sym, grad, symGrad)
	total := mat.DenseCopyOf(symGrad.DM)
	for i, g := range grad {
		f := frac[i]
		gs := [3]float64{g.X, g.Y, g.Z}
		fs := [3]float64{f.X, f.Y, f.Z}
		for a := 0; a < 3; a++ {
			for b := 0; b < 3; b++ {
				total.Set(a, b, total.At(a, b)+gs[a]*fs[b])
			}
		}
	}

	energyAt := func(m *mat.Dense) float64 {
		s, err := geometry.FromMatrix(m)
		require.NoError(t, err)
		x := make(geometry.Coordinates3, len(frac))
		for i, f := range frac {
			x[i] = geometry.MulVec(m, f)
		}
		return imageEnergy(t, lists, x, s, nil, nil)
	}
	const h = 1e-4
	for a := 0; a < 3; a++ {
		for b := 0; b < 3; b++ {
			plus := mat.DenseCopyOf(sym.M())
			plus.Set(a, b, plus.At(a, b)+h)
			minus := mat.DenseCopyOf(sym.M())
			minus.Set(a, b, minus.At(a, b)-h)
			numeric := (energyAt(plus) - energyAt(minus)) / (2 * h)
			assert.InDelta(t, numeric, total.At(a, b), 1e-5*max(1, math.Abs(numeric)), "dE/dM[%d][%d]", a, b)
		}
	}
}

func TestIterator_CartesianGradientFolding(t *testing.T) {
	tc := geometry.PMinus1()
	sym := cubicCell(t)
	coords := geometry.Coordinates3{{X: 0.5, Y: 0.5, Z: 0.5}}
	lists := mustLists(t, coords, sym, tc, &ImageScanContainer{Items: []ImageScan{{T: 1, Scale: 0.5}}})
	require.Equal(t, 1, lists.Count())
	assert.Equal(t, 0.5, lists.Items[0].Scale)
	assert.Same(t, tc.Item(1), lists.Items[0].Transformation.Get())

	it := lists.Iterate(coords, sym)
	_, err := it.Coordinates()
	assert.True(t, errors.Is(err, status.ErrAlgorithmError))
	require.True(t, it.Next())
	y, err := it.Coordinates()
	require.NoError(t, err)
	assert.Equal(t, r3.Vec{X: -0.5, Y: -0.5, Z: -0.5}, y[0])

	it.GradientBuffer()[0] = r3.Vec{X: 1, Y: 2, Z: 3}
	grad := make([]r3.Vec, 1)
	require.NoError(t, it.Gradients(grad, nil))
	assert.Equal(t, r3.Vec{X: -1, Y: -2, Z: -3}, grad[0])
	assert.Equal(t, r3.Vec{}, it.GradientBuffer()[0])

	assert.True(t, errors.Is(it.Gradients(make([]r3.Vec, 2), nil), status.ErrNonConformableArrays))
	assert.False(t, it.Next())
	_, err = it.Coordinates()
	assert.True(t, errors.Is(err, status.ErrAlgorithmError))
}

func TestScan_Errors(t *testing.T) {
	sym := cubicCell(t)
	coords := testutil.RandomCoordinates(1, 10, testutil.Cube(10))

	_, err := Scan(coords, nil, geometry.P1(), Options{CutOff: 1})
	assert.True(t, errors.Is(err, status.ErrInvalidArgument))
	_, err = Scan(coords, sym, geometry.P1(), Options{})
	assert.True(t, errors.Is(err, status.ErrInvalidArgument))

	quarter := geometry.NewTransformation3([9]float64{0, -1, 0, 1, 0, 0, 0, 0, 1}, r3.Vec{})
	tc, err := geometry.NewTransformation3Container(geometry.Identity(), quarter)
	require.NoError(t, err)
	_, err = Scan(coords, sym, tc, Options{CutOff: 1, CheckForInverses: true})
	assert.True(t, errors.Is(err, status.ErrInvalidArgument))

	empty, err := Scan(nil, sym, geometry.P1(), Options{CutOff: 1})
	require.NoError(t, err)
	assert.Zero(t, empty.NumberOfImages())
}

func TestOptionsFromTuning(t *testing.T) {
	opts := OptionsFromTuning(config.MustLoadDefaultConfig())
	assert.Equal(t, 15.0, opts.CutOff)
	assert.True(t, opts.CheckForInverses)
	assert.Equal(t, DefaultTolerance, opts.tolerance())
}

func TestScan_FractionalOffsets(t *testing.T) {
	sym := cubicCell(t)
	coords := testutil.RandomCoordinates(3, 40, testutil.Cube(10))
	scans := mustScan(t, coords, sym, geometry.P1(), true)

	offsets := scans.FractionalOffsets(geometry.P1())
	require.Len(t, offsets, 13)
	for _, o := range offsets {
		assert.Equal(t, 1.0, max(math.Abs(o.X), math.Abs(o.Y), math.Abs(o.Z)), "offset %v", o)
	}
}
