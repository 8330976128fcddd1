package rom

import (
	"math"
	"math/cmplx"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/notargets/ROMKernel/linalg"
	"github.com/notargets/ROMKernel/operator"
)

// quadDiagOp is the synthetic quadratic eigenproblem T(lambda) = diag(k) +
// lambda^2 I with exact eigenvalues lambda = +-i*sqrt(k_i).
type quadDiagOp struct {
	k []float64
}

func (o *quadDiagOp) Dim() int { return len(o.k) }

func (o *quadDiagOp) Eval(lambda complex128, jacobian bool, t, dt *mat.CDense) {
	linalg.CZero(t)
	for i, ki := range o.k {
		t.Set(i, i, complex(ki, 0)+lambda*lambda)
	}
	if jacobian {
		linalg.CZero(dt)
		for i := range o.k {
			dt.Set(i, i, 2*lambda)
		}
	}
}

// constOp has no eigenvalues at all: T(lambda) = I, T'(lambda) = 0.
type constOp struct{}

func (constOp) Dim() int { return 1 }

func (constOp) Eval(lambda complex128, jacobian bool, t, dt *mat.CDense) {
	t.Set(0, 0, 1)
	if jacobian {
		dt.Set(0, 0, 0)
	}
}

func TestSolveNEPScalar(t *testing.T) {
	op := &quadDiagOp{k: []float64{4}}
	rng := rand.New(rand.NewSource(1))
	got := SolveNEP(op, 1, 2.1i, rng)
	require.Len(t, got, 1)
	e := got[0]
	assert.True(t, e.Converged)
	assert.InDelta(t, 0, real(e.Lambda), 1e-7)
	assert.InDelta(t, 2, imag(e.Lambda), 1e-7)
	assert.InDelta(t, 2, real(e.Omega()), 1e-7)
	assert.InDelta(t, 1, cmplx.Abs(e.X[0]), 1e-10)
}

// Deflation must push the second search away from the first eigenvalue and
// still land on a true eigenvalue of the original operator.
func TestSolveNEPDeflation(t *testing.T) {
	op := &quadDiagOp{k: []float64{4, 9}}
	rng := rand.New(rand.NewSource(2))
	got := SolveNEP(op, 2, 2.05i, rng)
	require.Len(t, got, 2)

	first, second := got[0], got[1]
	require.True(t, first.Converged)
	require.True(t, second.Converged)
	assert.InDelta(t, 2, cmplx.Abs(first.Lambda), 1e-7)
	assert.InDelta(t, 0, real(first.Lambda), 1e-7)

	assert.Greater(t, cmplx.Abs(second.Lambda-first.Lambda), 0.5,
		"deflation must separate the second estimate from the first")
	// T(lambda) = diag(4 + lambda^2, 9 + lambda^2) is singular only at
	// +-2i and +-3i.
	d := math.Min(
		math.Min(cmplx.Abs(second.Lambda-2i), cmplx.Abs(second.Lambda+2i)),
		math.Min(cmplx.Abs(second.Lambda-3i), cmplx.Abs(second.Lambda+3i)))
	assert.Less(t, d, 1e-6, "second estimate must be a true eigenvalue, got %v", second.Lambda)

	for _, e := range got {
		assert.InDelta(t, 1, cmplxNorm(e.X), 1e-10)
	}
}

func cmplxNorm(x []complex128) float64 {
	var s float64
	for _, v := range x {
		s += real(v)*real(v) + imag(v)*imag(v)
	}
	return math.Sqrt(s)
}

func TestSolveNEPNonConvergence(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	got := SolveNEP(constOp{}, 1, 1i, rng)
	require.Len(t, got, 1)
	assert.False(t, got[0].Converged, "an eigenvalue-free operator must be flagged non-converged")
}

func TestGuardedShift(t *testing.T) {
	// Far from the pole the shift passes through unchanged.
	assert.Equal(t, complex128(1+1i), guardedShift(2+1i, 1))
	// At the pole the magnitude is clamped but stays finite.
	d := guardedShift(2i, 2i)
	assert.Greater(t, cmplx.Abs(d), 0.0)
	assert.LessOrEqual(t, cmplx.Abs(d), poleTol*(1+2)+1e-15)
}

// End to end on a reduced model: the transmission line resonates near
// omega_k = (k - 1/2) * pi, and the PROM eigensolver must recover the modes
// its samples straddle.
func TestComputeEigenvalueEstimates(t *testing.T) {
	model := operator.NewTransmissionLine(40, 0, 0)
	p := New(model, linalg.Serial{}, Options{MaxSize: 8, Orthog: CGS2, NumEig: 2})
	for _, omega := range []float64{1.2, 1.8, 4.2, 5.2} {
		u, err := model.SolveHDM(omega)
		require.NoError(t, err)
		p.Extend(u, omega)
	}

	ests := p.ComputeEigenvalueEstimates(1.6)
	require.Len(t, ests, 2)
	require.True(t, ests[0].Converged)

	// The one-sided closure at the port end carries a first-order truncation
	// error, so the discrete fundamental sits within O(h) of pi/2 (about
	// 0.02 below it at h = 1/40).
	omega0 := real(ests[0].Omega())
	assert.InDelta(t, math.Pi/2, math.Abs(omega0), 0.03)
	assert.Less(t, math.Abs(omega0), math.Pi/2, "the port closure shifts the discrete resonance down")
}

func TestComputeEigenvalueEstimatesRequiresModel(t *testing.T) {
	p := New(diagSystem([]float64{2, 3}), linalg.Serial{}, Options{MaxSize: 2})
	assert.Panics(t, func() { p.ComputeEigenvalueEstimates(1.0) })
}
