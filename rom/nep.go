package rom

import (
	"errors"
	"math"
	"math/cmplx"
	"math/rand"

	"gonum.org/v1/gonum/cmplxs"
	"gonum.org/v1/gonum/mat"
	"k8s.io/klog/v2"

	"github.com/notargets/ROMKernel/linalg"
)

const (
	mslpMaxIt    = 100
	mslpTol      = 1e-9
	deflationTol = 1e-6
	poleTol      = 1e-8

	machineEpsilon = 0x1p-52
)

// NonlinearOperator evaluates the frequency-dependent reduced operator
// T(lambda) and, when jacobian is set, its derivative T'(lambda). The
// nonlinear eigensolver depends only on this contract, so it can be driven by
// synthetic operators in tests as well as by a ROM.
type NonlinearOperator interface {
	Dim() int
	Eval(lambda complex128, jacobian bool, t, dt *mat.CDense)
}

// Eigenvalue is one resonance estimate produced by the nonlinear eigensolver.
// Lambda = i*omega, so the imaginary part carries the resonance frequency and
// the real part the estimated damping/leakage. A non-converged estimate is
// the best pair reached at the iteration cap and must not be silently
// trusted.
type Eigenvalue struct {
	Lambda    complex128
	X         []complex128
	Converged bool
}

// Omega returns the resonance frequency estimate omega = lambda / i.
func (e Eigenvalue) Omega() complex128 { return -1i * e.Lambda }

// evalFunc is the internal evaluator contract. res is the residual of the
// previous outer iterate; the deflation wrapper switches itself off once res
// drops below deflationTol so the final iterates converge on the original
// operator.
type evalFunc func(lambda complex128, jacobian bool, res float64, t, dt *mat.CDense)

// SolveNEP finds numEig eigenvalue estimates of T(lambda) x = 0, all seeded
// at sigma. Already-found pairs are suppressed with right-multiplicative
// projective factors
//
//	P_i(lambda) = I - ((lambda - lambda_i - 1)/(lambda - lambda_i)) x_i x_i^H,
//
// which push the search away from found eigenvalues while keeping the
// operator dimension fixed. rng drives the random initial eigenvectors and
// must be seeded identically on every rank.
func SolveNEP(op NonlinearOperator, numEig int, sigma complex128, rng *rand.Rand) []Eigenvalue {
	n := op.Dim()
	T := mat.NewCDense(n, n, nil)
	dT := mat.NewCDense(n, n, nil)
	P := mat.NewCDense(n, n, nil)
	dP := mat.NewCDense(n, n, nil)
	tmp := mat.NewCDense(n, n, nil)

	found := make([]Eigenvalue, 0, numEig)
	for k := 0; k < numEig; k++ {
		eval := func(l complex128, jacobian bool, res float64, tp, dtp *mat.CDense) {
			op.Eval(l, jacobian, T, dT)
			tp.Copy(T)
			if jacobian {
				dtp.Copy(dT)
			}
			if len(found) == 0 || res < deflationTol {
				return
			}
			for i := range found {
				setDeflation(P, l, found[i])
				linalg.CMul(tmp, tp, P)
				tp.Copy(tmp)
				if jacobian {
					linalg.CMul(tmp, dtp, P)
					dtp.Copy(tmp)
				}
			}
			if jacobian {
				// Product rule for the deflated derivative: for each factor,
				// d/dl P_i = -(1/(l-lambda_i)^2) x_i x_i^H, composed with the
				// remaining factors in order.
				for i := range found {
					d := guardedShift(l, found[i].Lambda)
					coeff := (d-1)/(d*d) - 1/d
					setOuter(dP, coeff, found[i].X)
					for j := range found {
						if j == i {
							continue
						}
						setDeflation(P, l, found[j])
						linalg.CMul(tmp, dP, P)
						dP.Copy(tmp)
					}
					linalg.CMul(tmp, T, dP)
					linalg.CAdd(dtp, tmp)
				}
			}
		}

		lambda, x, converged := mslp(n, eval, sigma, rng)
		if !converged {
			klog.Warningf("MSLP did not converge within %d iterations for eigenvalue %d/%d (lambda = %v)", mslpMaxIt, k+1, numEig, lambda)
		}

		// Map the eigenvector back to the non-deflated problem and
		// normalize.
		for i := range found {
			setDeflation(P, lambda, found[i])
			y := make([]complex128, n)
			linalg.CMulVec(y, P, x)
			x = y
		}
		cmplxs.Scale(complex(1/cmplxs.Norm(x, 2), 0), x)
		found = append(found, Eigenvalue{Lambda: lambda, X: x, Converged: converged})
	}
	return found
}

// mslp runs the method of successive linear problems: linearize T at the
// current iterate, solve the linear eigenproblem for T'(lambda)^-1 T(lambda),
// and subtract the eigenvalue of smallest modulus.
func mslp(n int, eval evalFunc, lambda complex128, rng *rand.Rand) (complex128, []complex128, bool) {
	t := mat.NewCDense(n, n, nil)
	dt := mat.NewCDense(n, n, nil)
	r := make([]complex128, n)

	x := make([]complex128, n)
	for i := range x {
		x[i] = complex(rng.NormFloat64(), rng.NormFloat64())
	}
	cmplxs.Scale(complex(1/cmplxs.Norm(x, 2), 0), x)

	res := 1.0
	for it := 0; it < mslpMaxIt; it++ {
		eval(lambda, true, res, t, dt)
		linalg.CMulVec(r, t, x)
		res = cmplxs.Norm(r, 2) / (linalg.FrobNorm(t) * cmplxs.Norm(x, 2))
		klog.V(2).Infof("MSLP iteration %d, lambda = %v, res = %.3e", it, lambda, res)
		if res < mslpTol {
			return lambda, x, true
		}

		b, err := linalg.SolveLUDense(dt, t)
		if err != nil {
			var cond mat.Condition
			if b == nil || !errors.As(err, &cond) || math.IsInf(float64(cond), 0) {
				klog.Warningf("MSLP Jacobian solve failed at lambda = %v: %v", lambda, err)
				return lambda, x, false
			}
		}
		mus, vecs, err := linalg.EigenPairs(b)
		if err != nil {
			klog.Warningf("MSLP linearized eigenproblem failed at lambda = %v: %v", lambda, err)
			return lambda, x, false
		}
		best := 0
		for i := range mus {
			if cmplx.Abs(mus[i]) < cmplx.Abs(mus[best]) {
				best = i
			}
		}
		mu := mus[best]
		lambda -= mu
		copy(x, vecs[best])

		// The relative residual is blind to convergence when the operator
		// itself collapses (a one-dimensional reduced space drives both
		// numerator and denominator to zero together); a negligible
		// eigenvalue increment is then the convergence signal.
		if cmplx.Abs(mu) < mslpTol*math.Max(1, cmplx.Abs(lambda)) {
			return lambda, x, true
		}
	}
	return lambda, x, false
}

// guardedShift returns l - lambda_i with its magnitude clamped away from the
// pole of the deflation factor. The source algorithm leaves the pole
// unguarded; the clamp keeps a later search that wanders near an earlier
// eigenvalue from propagating a near-singular factor.
func guardedShift(l, lambdaI complex128) complex128 {
	d := l - lambdaI
	min := poleTol * (1 + cmplx.Abs(l))
	if abs := cmplx.Abs(d); abs < min {
		if abs == 0 {
			return complex(min, 0)
		}
		return d * complex(min/abs, 0)
	}
	return d
}

// setDeflation fills p with the projective factor
// I - ((l - lambda_i - 1)/(l - lambda_i)) x_i x_i^H.
func setDeflation(p *mat.CDense, l complex128, e Eigenvalue) {
	d := guardedShift(l, e.Lambda)
	f := (d - 1) / d
	setOuter(p, -f, e.X)
	n := len(e.X)
	for i := 0; i < n; i++ {
		p.Set(i, i, p.At(i, i)+1)
	}
}

// setOuter fills p with coeff * x x^H.
func setOuter(p *mat.CDense, coeff complex128, x []complex128) {
	n := len(x)
	for i := 0; i < n; i++ {
		ci := coeff * x[i]
		for j := 0; j < n; j++ {
			p.Set(i, j, ci*cmplx.Conj(x[j]))
		}
	}
}
