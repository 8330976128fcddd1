package rom

import (
	"errors"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"k8s.io/klog/v2"

	"github.com/notargets/ROMKernel/linalg"
)

// SolvePROM assembles and solves the reduced system at omega,
//
//	Ar(omega) y = (Kr + i*omega*Cr - omega^2*Mr + V^T A2(omega) V) y
//	            = i*omega*RHS1r + V^T RHS2(omega),
//
// and expands y back to a full-order approximation. The port operator is
// frequency dependent and therefore reprojected from scratch on every call;
// everything else comes from the incremental projections.
//
// Every rank holds an identical copy of the reduced system, so the dense LU
// solve runs redundantly on all ranks and the expansion needs no further
// communication.
func (p *ROM) SolvePROM(omega float64) *linalg.ComplexVector {
	if p.dimV == 0 {
		panic("rom: PROM solve requires a model with nonzero dimension")
	}
	n := p.dimV
	ar := mat.NewCDense(n, n, nil)
	scratch := linalg.NewComplexVector(p.n)

	if p.hasA2 {
		if a2 := p.sys.PortMatrix(omega); a2 != nil {
			projectMatrix(p.comm, p.V, 0, n, a2, ar, scratch)
		} else {
			p.hasA2 = false
		}
	}
	linalg.CAdd(ar, p.kr)
	if p.cr != nil {
		linalg.CAddScaled(ar, complex(0, omega), p.cr)
	}
	linalg.CAddScaled(ar, complex(-omega*omega, 0), p.mr)

	rhsr := make([]complex128, n)
	if p.hasRHS2 {
		if b2 := p.sys.Excitation2(omega); b2 != nil {
			projectVector(p.comm, p.V, 0, n, b2, rhsr)
		} else {
			p.hasRHS2 = false
		}
	}
	if p.rhs1r != nil {
		iw := complex(0, omega)
		for i := range rhsr {
			rhsr[i] += iw * p.rhs1r[i]
		}
	}

	y, err := linalg.SolveLU(ar, rhsr)
	if err != nil {
		var cond mat.Condition
		if y == nil || !errors.As(err, &cond) {
			panic(err)
		}
		klog.Warningf("Reduced system is ill-conditioned at omega = %g: %v", omega, err)
	}

	// Expand into the full space, combining the paired real/imaginary basis
	// columns of each sample two at a time.
	u := linalg.NewComplexVector(p.n)
	for j := 0; j < n; j += 2 {
		floats.AddScaled(u.Re, real(y[j]), p.V[j])
		floats.AddScaled(u.Im, imag(y[j]), p.V[j])
		if j+1 < n {
			floats.AddScaled(u.Re, real(y[j+1]), p.V[j+1])
			floats.AddScaled(u.Im, imag(y[j+1]), p.V[j+1])
		}
	}
	return u
}
