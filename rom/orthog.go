package rom

import (
	"gonum.org/v1/gonum/floats"

	"github.com/notargets/ROMKernel/linalg"
)

// OrthogType selects the Gram-Schmidt variant used to grow the PROM bases.
// The choice trades robustness against the number of global reductions per
// appended column and is fixed for the lifetime of a sweep.
type OrthogType int

const (
	// MGS is modified Gram-Schmidt: sequential projection against each
	// existing column, one global reduction per column. Most robust.
	MGS OrthogType = iota
	// CGS is classical Gram-Schmidt: one batched projection against all
	// columns, a single global reduction. Cheapest, least robust.
	CGS
	// CGS2 is CGS with one reorthogonalization pass, recovering most of the
	// robustness of MGS at roughly twice the cost of CGS.
	CGS2
)

func (t OrthogType) String() string {
	switch t {
	case MGS:
		return "mgs"
	case CGS:
		return "cgs"
	case CGS2:
		return "cgs2"
	}
	return "unknown"
}

// orthogTol is the relative cutoff below which a candidate direction is
// treated as numerically zero.
const orthogTol = 1e-12

// orthogonalizeColumn makes w orthogonal to the leading j columns of V. The
// projection coefficients accumulate into h[:j]; normalization of w is left
// to the caller.
func orthogonalizeColumn(typ OrthogType, comm linalg.Communicator, V [][]float64, w []float64, h []float64, j int) {
	for i := 0; i < j; i++ {
		h[i] = 0
	}
	switch typ {
	case MGS:
		var buf [1]float64
		for i := 0; i < j; i++ {
			buf[0] = floats.Dot(V[i], w)
			comm.AllSum(buf[:])
			h[i] = buf[0]
			floats.AddScaled(w, -h[i], V[i])
		}
	case CGS:
		cgsPass(comm, V, w, h, j)
	case CGS2:
		cgsPass(comm, V, w, h, j)
		cgsPass(comm, V, w, h, j)
	}
}

func cgsPass(comm linalg.Communicator, V [][]float64, w []float64, h []float64, j int) {
	if j == 0 {
		return
	}
	c := make([]float64, j)
	for i := 0; i < j; i++ {
		c[i] = floats.Dot(V[i], w)
	}
	comm.AllSum(c)
	for i := 0; i < j; i++ {
		floats.AddScaled(w, -c[i], V[i])
		h[i] += c[i]
	}
}

// orthogonalizeColumnC is the complex-arithmetic counterpart used for the
// snapshot basis, with the Hermitian inner product <q, w> = q^H w.
func orthogonalizeColumnC(typ OrthogType, comm linalg.Communicator, Q []*linalg.ComplexVector, w *linalg.ComplexVector, h []complex128, j int) {
	for i := 0; i < j; i++ {
		h[i] = 0
	}
	switch typ {
	case MGS:
		var buf [1]complex128
		for i := 0; i < j; i++ {
			buf[0] = localHDot(Q[i], w)
			comm.AllSumComplex(buf[:])
			h[i] = buf[0]
			subScaledC(w, buf[0], Q[i])
		}
	case CGS:
		cgsPassC(comm, Q, w, h, j)
	case CGS2:
		cgsPassC(comm, Q, w, h, j)
		cgsPassC(comm, Q, w, h, j)
	}
}

func cgsPassC(comm linalg.Communicator, Q []*linalg.ComplexVector, w *linalg.ComplexVector, h []complex128, j int) {
	if j == 0 {
		return
	}
	c := make([]complex128, j)
	for i := 0; i < j; i++ {
		c[i] = localHDot(Q[i], w)
	}
	comm.AllSumComplex(c)
	for i := 0; i < j; i++ {
		subScaledC(w, c[i], Q[i])
		h[i] += c[i]
	}
}

// localHDot is the process-local contribution to the Hermitian inner product
// conj(q) . w.
func localHDot(q, w *linalg.ComplexVector) complex128 {
	re := floats.Dot(q.Re, w.Re) + floats.Dot(q.Im, w.Im)
	im := floats.Dot(q.Re, w.Im) - floats.Dot(q.Im, w.Re)
	return complex(re, im)
}

// subScaledC computes w -= c * q.
func subScaledC(w *linalg.ComplexVector, c complex128, q *linalg.ComplexVector) {
	floats.AddScaled(w.Re, -real(c), q.Re)
	floats.AddScaled(w.Re, imag(c), q.Im)
	floats.AddScaled(w.Im, -real(c), q.Im)
	floats.AddScaled(w.Im, -imag(c), q.Re)
}
