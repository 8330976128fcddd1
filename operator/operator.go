// Package operator defines the narrow contract between the reduced-order
// model engine and the external high-dimensional model (HDM) collaborator:
// application of the fixed stiffness/damping/mass operators, the
// frequency-dependent port operator, and the excitation vectors. It also
// provides small concrete operators used by tests and the demo driver.
package operator

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/notargets/ROMKernel/linalg"
)

// Operator applies a real linear operator to the process-local block of a
// distributed vector. Cross-process coupling, if any, is handled inside the
// implementation; the ROM engine only ever composes local applications with
// global reductions.
type Operator interface {
	Dim() int
	Apply(dst, src []float64)
}

// Complex pairs the real and imaginary parts of a complex-symmetric operator.
// Either part may be nil when identically zero, but not both.
type Complex struct {
	Re, Im Operator
}

// HasReal reports whether the operator has a nonzero real part.
func (a *Complex) HasReal() bool { return a != nil && a.Re != nil }

// HasImag reports whether the operator has a nonzero imaginary part.
func (a *Complex) HasImag() bool { return a != nil && a.Im != nil }

// Dim returns the local dimension of the operator.
func (a *Complex) Dim() int {
	if a.HasReal() {
		return a.Re.Dim()
	}
	if a.HasImag() {
		return a.Im.Dim()
	}
	return 0
}

// System is the HDM collaborator contract. The fixed operator triple is
// produced once per sweep; the port operator and the frequency-dependent
// excitation are produced on demand. Damping, port and excitation terms may
// all be absent.
type System interface {
	// Dim returns the process-local dimension of the full-order vectors.
	Dim() int

	// Stiffness returns K. Must not be nil.
	Stiffness() *Complex

	// Damping returns C, or nil for an undamped system.
	Damping() *Complex

	// Mass returns M. Must not be nil.
	Mass() *Complex

	// PortMatrix returns the frequency-dependent port operator A2(omega), or
	// nil when the system has no port term.
	PortMatrix(omega float64) *Complex

	// Excitation1 returns the frequency-independent excitation RHS1 (applied
	// as i*omega*RHS1), or nil when absent.
	Excitation1() *linalg.ComplexVector

	// Excitation2 returns the frequency-dependent excitation RHS2(omega), or
	// nil when absent.
	Excitation2(omega float64) *linalg.ComplexVector
}

// Dense wraps a gonum dense matrix as an Operator.
type Dense struct {
	M *mat.Dense
}

// Dim implements Operator.
func (d *Dense) Dim() int {
	r, _ := d.M.Dims()
	return r
}

// Apply implements Operator.
func (d *Dense) Apply(dst, src []float64) {
	y := mat.NewVecDense(len(dst), dst)
	y.MulVec(d.M, mat.NewVecDense(len(src), src))
}

// Diagonal is a diagonal operator.
type Diagonal struct {
	D []float64
}

// Dim implements Operator.
func (d *Diagonal) Dim() int { return len(d.D) }

// Apply implements Operator.
func (d *Diagonal) Apply(dst, src []float64) {
	for i, v := range d.D {
		dst[i] = v * src[i]
	}
}

// Tridiag is a tridiagonal operator with sub-, main and super-diagonals.
type Tridiag struct {
	Lower []float64 // length n-1
	Diag  []float64 // length n
	Upper []float64 // length n-1
}

// Dim implements Operator.
func (t *Tridiag) Dim() int { return len(t.Diag) }

// Apply implements Operator.
func (t *Tridiag) Apply(dst, src []float64) {
	n := len(t.Diag)
	for i := 0; i < n; i++ {
		s := t.Diag[i] * src[i]
		if i > 0 {
			s += t.Lower[i-1] * src[i-1]
		}
		if i < n-1 {
			s += t.Upper[i] * src[i+1]
		}
		dst[i] = s
	}
}

// Entry is a single-entry operator c * e_i e_j^T, the building block for
// lumped port contributions.
type Entry struct {
	I, J  int
	Coeff float64
	N     int
}

// Dim implements Operator.
func (e *Entry) Dim() int { return e.N }

// Apply implements Operator.
func (e *Entry) Apply(dst, src []float64) {
	for i := range dst[:e.N] {
		dst[i] = 0
	}
	dst[e.I] = e.Coeff * src[e.J]
}

// AssembleDense materializes the full complex system matrix
// K + i*omega*C - omega^2*M + A2(omega) by applying the operators to the
// columns of the identity. Intended for modest dimensions in tests and the
// reference HDM solve.
func AssembleDense(sys System, omega float64) *mat.CDense {
	n := sys.Dim()
	a := mat.NewCDense(n, n, nil)
	ej := make([]float64, n)
	re := make([]float64, n)
	im := make([]float64, n)
	addCol := func(op *Complex, scale complex128, j int) {
		if op == nil {
			return
		}
		if op.HasReal() {
			op.Re.Apply(re, ej)
		}
		if op.HasImag() {
			op.Im.Apply(im, ej)
		}
		for i := 0; i < n; i++ {
			var v complex128
			if op.HasReal() {
				v += complex(re[i], 0)
			}
			if op.HasImag() {
				v += complex(0, im[i])
			}
			a.Set(i, j, a.At(i, j)+scale*v)
		}
	}
	k, m := sys.Stiffness(), sys.Mass()
	if k == nil || m == nil {
		panic(fmt.Sprintf("operator: system is missing required operators (K=%v, M=%v)", k != nil, m != nil))
	}
	c := sys.Damping()
	a2 := sys.PortMatrix(omega)
	for j := 0; j < n; j++ {
		ej[j] = 1
		addCol(k, 1, j)
		addCol(c, complex(0, omega), j)
		addCol(m, complex(-omega*omega, 0), j)
		addCol(a2, 1, j)
		ej[j] = 0
	}
	return a
}
