package rom

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/notargets/ROMKernel/linalg"
)

// promOperator adapts the reduced model to the NonlinearOperator contract:
//
//	T(lambda)  = Kr + lambda*Cr + lambda^2*Mr + V^T A2(Im lambda) V
//	T'(lambda) = Cr + 2*lambda*Mr + d/dlambda V^T A2 V.
//
// The polynomial part of the derivative is exact; the port operator has no
// closed-form derivative through the collaborator interface, so it is
// estimated with a one-sided finite difference reusing the base-point
// projection.
type promOperator struct {
	p       *ROM
	dim     int
	scratch *linalg.ComplexVector
	ar      *mat.CDense // port projection at the base point
	fd      *mat.CDense
}

func newPROMOperator(p *ROM) *promOperator {
	return &promOperator{
		p:       p,
		dim:     p.dimV,
		scratch: linalg.NewComplexVector(p.n),
		ar:      mat.NewCDense(p.dimV, p.dimV, nil),
		fd:      mat.NewCDense(p.dimV, p.dimV, nil),
	}
}

// Dim implements NonlinearOperator.
func (o *promOperator) Dim() int { return o.dim }

// Eval implements NonlinearOperator. All ranks participate in the port
// reprojection; everything else is replicated arithmetic.
func (o *promOperator) Eval(lambda complex128, jacobian bool, t, dt *mat.CDense) {
	p := o.p
	n := o.dim
	omega := math.Abs(imag(lambda))

	havePort := false
	if p.hasA2 {
		if a2 := p.sys.PortMatrix(omega); a2 != nil {
			projectMatrix(p.comm, p.V, 0, n, a2, o.ar, o.scratch)
			t.Copy(o.ar)
			havePort = true
		} else {
			p.hasA2 = false
		}
	}
	if !havePort {
		linalg.CZero(t)
	}
	linalg.CAdd(t, p.kr)
	if p.cr != nil {
		linalg.CAddScaled(t, lambda, p.cr)
	}
	linalg.CAddScaled(t, lambda*lambda, p.mr)

	if !jacobian {
		return
	}
	if havePort {
		eps := math.Sqrt(machineEpsilon)
		if a2 := p.sys.PortMatrix(omega * (1 + eps)); a2 != nil {
			projectMatrix(p.comm, p.V, 0, n, a2, o.fd, o.scratch)
			dt.Copy(o.fd)
			linalg.CAddScaled(dt, -1, o.ar)
			linalg.CScale(complex(1/eps, 0), dt)
		} else {
			linalg.CZero(dt)
		}
	} else {
		linalg.CZero(dt)
	}
	if p.cr != nil {
		linalg.CAdd(dt, p.cr)
	}
	linalg.CAddScaled(dt, 2*lambda, p.mr)
}

// ComputeEigenvalueEstimates solves the reduced nonlinear eigenvalue problem
//
//	T(lambda) x = (Kr + lambda*Cr + lambda^2*Mr + A2(Im lambda)) x = 0
//
// for resonance estimates, seeded at lambda = i*omega. The number of
// estimates is Options.NumEig, capped at the basis dimension. Estimates that
// hit the iteration cap are returned flagged non-converged; the caller
// decides whether to retry or discard them.
func (p *ROM) ComputeEigenvalueEstimates(omega float64) []Eigenvalue {
	if p.dimV == 0 {
		panic("rom: eigenvalue estimates require a PROM with nonzero dimension")
	}
	numEig := p.opts.NumEig
	if numEig <= 0 || numEig > p.dimV {
		numEig = p.dimV
	}
	// The seeded source keeps the random eigenvector starts identical on
	// every rank.
	rng := rand.New(rand.NewSource(p.opts.Seed))
	return SolveNEP(newPROMOperator(p), numEig, complex(0, omega), rng)
}
