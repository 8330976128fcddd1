package rom

import (
	"math"
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/ROMKernel/linalg"
	"github.com/notargets/ROMKernel/operator"
)

func TestSolvePROMRequiresDimension(t *testing.T) {
	p := New(diagSystem([]float64{2, 3}), linalg.Serial{}, Options{MaxSize: 2})
	assert.Panics(t, func() { p.SolvePROM(1.0) })
}

// Scalar system (K - omega^2 M) u = f with K = 4, M = 1: once the single
// solution direction is in the basis the reduced solve is exact at every
// frequency, u(omega) = f / (4 - omega^2).
func TestSolvePROMScalar(t *testing.T) {
	const f = 3.0
	sys := diagSystem([]float64{4})
	sys.rhs2 = func(omega float64) *linalg.ComplexVector {
		b := linalg.NewComplexVector(1)
		b.Re[0] = f
		return b
	}
	p := New(sys, linalg.Serial{}, Options{MaxSize: 2})

	u := linalg.NewComplexVector(1)
	u.Re[0] = f / (4 - 1)
	p.Extend(u, 1.0)
	require.Equal(t, 1, p.DimV())

	for _, omega := range []float64{0.5, 1.5, 3} {
		got := p.SolvePROM(omega)
		assert.InDelta(t, f/(4-omega*omega), got.Re[0], 1e-12, "omega = %g", omega)
		assert.InDelta(t, 0, got.Im[0], 1e-12, "omega = %g", omega)
	}
}

// At a sampled frequency the true solution lies in the reduced space, so the
// Galerkin solve reproduces the full-order solution there.
func TestSolvePROMExactAtSamples(t *testing.T) {
	model := operator.NewTransmissionLine(30, 0.1, 0.3)
	p := New(model, linalg.Serial{}, Options{MaxSize: 8, Orthog: CGS2})

	samples := []float64{2, 6, 10}
	hdm := make([]*linalg.ComplexVector, len(samples))
	for i, omega := range samples {
		u, err := model.SolveHDM(omega)
		require.NoError(t, err)
		hdm[i] = u
		p.Extend(u.Clone(), omega)
	}

	for i, omega := range samples {
		got := p.SolvePROM(omega)
		var maxDev, norm float64
		for k := 0; k < got.Len(); k++ {
			maxDev = math.Max(maxDev, cmplx.Abs(got.At(k)-hdm[i].At(k)))
			norm = math.Max(norm, cmplx.Abs(hdm[i].At(k)))
		}
		assert.Less(t, maxDev, 1e-8*norm, "omega = %g", omega)
	}
}

// Between samples the reduced solution must still satisfy the Galerkin
// condition: the full-order residual is orthogonal to the basis.
func TestSolvePROMGalerkinResidual(t *testing.T) {
	model := operator.NewTransmissionLine(30, 0.1, 0.3)
	p := New(model, linalg.Serial{}, Options{MaxSize: 8, Orthog: CGS2})
	for _, omega := range []float64{2, 6, 10} {
		u, err := model.SolveHDM(omega)
		require.NoError(t, err)
		p.Extend(u, omega)
	}

	const omega = 4.0
	got := p.SolvePROM(omega)
	a := operator.AssembleDense(model, omega)
	n := got.Len()

	r := make([]complex128, n)
	x := make([]complex128, n)
	for k := 0; k < n; k++ {
		x[k] = got.At(k)
	}
	linalg.CMulVec(r, a, x)
	rhs1 := model.Excitation1()
	var xmax float64
	for k := 0; k < n; k++ {
		r[k] -= complex(0, omega) * rhs1.At(k)
		xmax = math.Max(xmax, cmplx.Abs(x[k]))
	}

	// The projection of the residual vanishes to the rounding level of the
	// assembled operator.
	tol := 1e-8 * (1 + linalg.FrobNorm(a)*xmax)
	for j := 0; j < p.dimV; j++ {
		var proj complex128
		for k := 0; k < n; k++ {
			proj += complex(p.V[j][k], 0) * r[k]
		}
		assert.InDelta(t, 0, cmplx.Abs(proj), tol, "basis column %d", j)
	}
}
