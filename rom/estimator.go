package rom

import (
	"fmt"
	"math"
	"math/cmplx"

	"k8s.io/klog/v2"

	"github.com/notargets/ROMKernel/linalg"
)

// computeMRI recomputes the coefficients of the minimal rational
// interpolation of the sampled solution curve,
//
//	u(z) = [sum_s u_s q_s / (z - z_s)] / [sum_s q_s / (z - z_s)],
//
// from the triangular snapshot factor R. The coefficient vector q is the
// right singular vector of R for its smallest singular value. A singular
// value below 1e-12 of the largest marks near-duplicate snapshots; the
// estimator then falls back to the next non-degenerate singular direction
// rather than aborting.
func (p *ROM) computeMRI() {
	sigma, right, err := linalg.SVDRight(p.r)
	if err != nil {
		panic(fmt.Sprintf("rom: SVD of the snapshot factor failed: %v", err))
	}
	m := p.dimQ - 1
	for m > 0 && sigma[m] < orthogTol*sigma[0] {
		klog.Warningf("Minimal rational interpolation encountered rank-deficient matrix: sigma[%d] = %.3e (sigma[0] = %.3e)", m, sigma[m], sigma[0])
		m--
	}
	p.q = make([]complex128, p.dimQ)
	for i := 0; i < p.dimQ; i++ {
		p.q[i] = right.At(i, m)
	}
}

// surrogate evaluates |Q(omega)| with Q(z) = sum_s q_s / (z_s - z), the
// denominator of the barycentric interpolant. |Q| is smallest where the
// interpolant is least trustworthy and diverges at the sample points.
func (p *ROM) surrogate(omega float64) float64 {
	var s complex128
	for i, zs := range p.z {
		s += p.q[i] / complex(zs-omega, 0)
	}
	return cmplx.Abs(s)
}

// FindMaxError scans numSteps equally spaced frequencies beginning at start
// with increment delta and returns the point where the estimated reduction
// error is largest, i.e. where |Q| is smallest. A negative delta is
// normalized by walking the scan range backwards first.
//
// FindMaxError panics when no snapshot has been accepted yet or when the
// scan yields no valid frequency (degenerate input).
func (p *ROM) FindMaxError(start, delta float64, numSteps int) float64 {
	if p.dimQ == 0 {
		panic("rom: error estimate requires at least one snapshot")
	}
	if delta < 0 {
		start += float64(numSteps-1) * delta
		delta = -delta
	}
	omegaStar, qStar := 0.0, math.Inf(1)
	for step := 0; step < numSteps; step++ {
		omega := start + float64(step)*delta
		if q := p.surrogate(omega); q < qStar {
			omegaStar, qStar = omega, q
		}
	}
	if !(omegaStar > 0) {
		panic(fmt.Sprintf("rom: unable to find location for maximum error in [%g, %g]", start, start+float64(numSteps-1)*delta))
	}
	return omegaStar
}
