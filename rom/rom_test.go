package rom

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"

	"github.com/notargets/ROMKernel/linalg"
	"github.com/notargets/ROMKernel/operator"
)

// testSystem is a configurable HDM collaborator over process-local operators.
type testSystem struct {
	n    int
	k    *operator.Complex
	c    *operator.Complex
	m    *operator.Complex
	port func(omega float64) *operator.Complex
	rhs1 *linalg.ComplexVector
	rhs2 func(omega float64) *linalg.ComplexVector
}

func (s *testSystem) Dim() int { return s.n }

func (s *testSystem) Stiffness() *operator.Complex { return s.k }

func (s *testSystem) Damping() *operator.Complex { return s.c }

func (s *testSystem) Mass() *operator.Complex { return s.m }

func (s *testSystem) PortMatrix(omega float64) *operator.Complex {
	if s.port == nil {
		return nil
	}
	return s.port(omega)
}

func (s *testSystem) Excitation1() *linalg.ComplexVector { return s.rhs1 }

func (s *testSystem) Excitation2(omega float64) *linalg.ComplexVector {
	if s.rhs2 == nil {
		return nil
	}
	return s.rhs2(omega)
}

// diagSystem builds a system with diagonal stiffness kd and unit mass.
func diagSystem(kd []float64) *testSystem {
	n := len(kd)
	md := make([]float64, n)
	for i := range md {
		md[i] = 1
	}
	return &testSystem{
		n: n,
		k: &operator.Complex{Re: &operator.Diagonal{D: kd}},
		m: &operator.Complex{Re: &operator.Diagonal{D: md}},
	}
}

func randomVector(rng *rand.Rand, n int) *linalg.ComplexVector {
	u := linalg.NewComplexVector(n)
	for i := 0; i < n; i++ {
		u.Re[i] = rng.NormFloat64()
		u.Im[i] = rng.NormFloat64()
	}
	return u
}

func TestNewValidation(t *testing.T) {
	sys := diagSystem([]float64{2, 3})
	assert.Panics(t, func() { New(sys, linalg.Serial{}, Options{}) })
	assert.Panics(t, func() {
		bad := &testSystem{n: 2, k: &operator.Complex{}, m: sys.m}
		New(bad, linalg.Serial{}, Options{MaxSize: 4})
	})

	p := New(sys, linalg.Serial{}, Options{MaxSize: 4})
	assert.Equal(t, 0, p.DimV())
	assert.Equal(t, 0, p.DimQ())
	assert.Equal(t, 4, p.MaxSize())
	assert.Empty(t, p.Samples())
}

func TestExtendDimensionMismatch(t *testing.T) {
	p := New(diagSystem([]float64{2, 3, 4}), linalg.Serial{}, Options{MaxSize: 4})
	assert.Panics(t, func() { p.Extend(linalg.NewComplexVector(2), 1) })
}

// A complex solution contributes two basis directions, a (numerically) real or
// imaginary one only a single direction.
func TestExtendDirectionAcceptance(t *testing.T) {
	n := 5
	p := New(diagSystem([]float64{2, 3, 4, 5, 6}), linalg.Serial{}, Options{MaxSize: 8})

	u := linalg.NewComplexVector(n)
	u.Re[0], u.Re[2] = 1, -2
	p.Extend(u, 1.0)
	assert.Equal(t, 1, p.DimV(), "pure real solution must add one direction")
	assert.Equal(t, 1, p.DimQ())

	v := linalg.NewComplexVector(n)
	v.Im[1], v.Im[3] = 3, 1
	p.Extend(v, 2.0)
	assert.Equal(t, 2, p.DimV(), "pure imaginary solution must add one direction")

	// Noise-level imaginary part stays out of the basis.
	w := linalg.NewComplexVector(n)
	w.Re[4] = 1
	w.Im[0] = 1e-14
	p.Extend(w, 3.0)
	assert.Equal(t, 3, p.DimV(), "noise-level imaginary part must be rejected")

	x := randomVector(rand.New(rand.NewSource(3)), n)
	p.Extend(x, 4.0)
	assert.Equal(t, 5, p.DimV(), "generic complex solution must add two directions")

	assert.Equal(t, []float64{1, 2, 3, 4}, p.Samples())
}

func TestExtendCapacityExhausted(t *testing.T) {
	p := New(diagSystem([]float64{2, 3, 4}), linalg.Serial{}, Options{MaxSize: 1})
	rng := rand.New(rand.NewSource(5))
	p.Extend(randomVector(rng, 3), 1.0)
	assert.Panics(t, func() { p.Extend(randomVector(rng, 3), 2.0) })
}

func gramResidual(p *ROM) float64 {
	maxDev := 0.0
	for i := 0; i < p.dimV; i++ {
		for j := 0; j <= i; j++ {
			g := floats.Dot(p.V[i], p.V[j])
			want := 0.0
			if i == j {
				want = 1
			}
			if d := math.Abs(g - want); d > maxDev {
				maxDev = d
			}
		}
	}
	return maxDev
}

func TestBasisOrthonormality(t *testing.T) {
	kd := []float64{2, 3, 4, 5, 6, 7}
	for _, typ := range []OrthogType{MGS, CGS, CGS2} {
		t.Run(typ.String(), func(t *testing.T) {
			p := New(diagSystem(kd), linalg.Serial{}, Options{MaxSize: 4, Orthog: typ})
			rng := rand.New(rand.NewSource(11))
			for s := 0; s < 3; s++ {
				p.Extend(randomVector(rng, 6), float64(s+1))
				assert.Less(t, gramResidual(p), 1e-10, "V must stay orthonormal after extension %d", s+1)
			}
			require.Equal(t, 6, p.DimV())
		})
	}
}

// The snapshot basis Q is orthonormal under the Hermitian inner product and R
// reproduces the snapshots: u_s = Q * R[:, s].
func TestSnapshotFactorization(t *testing.T) {
	n := 6
	p := New(diagSystem([]float64{2, 3, 4, 5, 6, 7}), linalg.Serial{}, Options{MaxSize: 4, Orthog: CGS2})
	rng := rand.New(rand.NewSource(17))
	snaps := make([]*linalg.ComplexVector, 3)
	for s := range snaps {
		snaps[s] = randomVector(rng, n)
		p.Extend(snaps[s].Clone(), float64(s+1))
	}
	require.Equal(t, 3, p.DimQ())

	for i := 0; i < p.dimQ; i++ {
		for j := 0; j <= i; j++ {
			g := localHDot(p.Q[i], p.Q[j])
			want := complex128(0)
			if i == j {
				want = 1
			}
			assert.InDelta(t, real(want), real(g), 1e-10)
			assert.InDelta(t, imag(want), imag(g), 1e-10)
		}
	}

	for s := range snaps {
		rec := linalg.NewComplexVector(n)
		for i := 0; i <= s; i++ {
			c := p.r.At(i, s)
			for k := 0; k < n; k++ {
				rec.Set(k, rec.At(k)+c*p.Q[i].At(k))
			}
		}
		for k := 0; k < n; k++ {
			assert.InDelta(t, snaps[s].Re[k], rec.Re[k], 1e-10)
			assert.InDelta(t, snaps[s].Im[k], rec.Im[k], 1e-10)
		}
	}
}
