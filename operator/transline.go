package operator

import (
	"fmt"

	"github.com/notargets/ROMKernel/linalg"
)

// TransmissionLine is a one-dimensional standing-wave resonator discretized
// with second-order finite differences on the unit interval: a Dirichlet wall
// at x = 1 and a lumped drive port at x = 0. It is the reference HDM
// collaborator for tests and the demo driver.
//
// The continuous model is -u'' - i*omega*c*u - omega^2*u = f with resonances
// near omega_k = (k - 1/2)*pi for the free port (or k*pi when the port
// admittance pins the end). The discrete operators are
//
//	K = (1/h^2) tridiag(-1, 2, -1),  M = I,  C = damping * I,
//	A2(omega) = i*omega*portG * e_0 e_0^T,  RHS1 = e_0.
type TransmissionLine struct {
	n       int
	damping float64
	portG   float64

	k    *Tridiag
	c    *Diagonal
	m    *Diagonal
	rhs1 *linalg.ComplexVector
}

// NewTransmissionLine builds the model with n interior nodes. damping and
// portG may be zero, which drops the damping operator and the port term
// entirely.
func NewTransmissionLine(n int, damping, portG float64) *TransmissionLine {
	if n < 1 {
		panic(fmt.Sprintf("operator: transmission line needs at least one node, got %d", n))
	}
	h := 1.0 / float64(n)
	t := &TransmissionLine{n: n, damping: damping, portG: portG}

	diag := make([]float64, n)
	lower := make([]float64, n-1)
	upper := make([]float64, n-1)
	ih2 := 1.0 / (h * h)
	for i := 0; i < n; i++ {
		diag[i] = 2 * ih2
	}
	// Neumann-type closure at the port end; the port admittance enters
	// through A2(omega).
	diag[0] = ih2
	for i := 0; i < n-1; i++ {
		lower[i] = -ih2
		upper[i] = -ih2
	}
	t.k = &Tridiag{Lower: lower, Diag: diag, Upper: upper}

	mass := make([]float64, n)
	for i := range mass {
		mass[i] = 1
	}
	t.m = &Diagonal{D: mass}

	if damping != 0 {
		cd := make([]float64, n)
		for i := range cd {
			cd[i] = damping
		}
		t.c = &Diagonal{D: cd}
	}

	t.rhs1 = linalg.NewComplexVector(n)
	t.rhs1.Re[0] = 1
	return t
}

// Dim implements System.
func (t *TransmissionLine) Dim() int { return t.n }

// Stiffness implements System.
func (t *TransmissionLine) Stiffness() *Complex { return &Complex{Re: t.k} }

// Damping implements System.
func (t *TransmissionLine) Damping() *Complex {
	if t.c == nil {
		return nil
	}
	return &Complex{Re: t.c}
}

// Mass implements System.
func (t *TransmissionLine) Mass() *Complex { return &Complex{Re: t.m} }

// PortMatrix implements System.
func (t *TransmissionLine) PortMatrix(omega float64) *Complex {
	if t.portG == 0 {
		return nil
	}
	return &Complex{Im: &Entry{I: 0, J: 0, Coeff: omega * t.portG, N: t.n}}
}

// Excitation1 implements System.
func (t *TransmissionLine) Excitation1() *linalg.ComplexVector { return t.rhs1 }

// Excitation2 implements System.
func (t *TransmissionLine) Excitation2(omega float64) *linalg.ComplexVector { return nil }

// SolveHDM computes the full-order solution at omega with a dense complex LU
// factorization. It stands in for the external sparse solver and is intended
// for the modest dimensions used in tests and demos.
func (t *TransmissionLine) SolveHDM(omega float64) (*linalg.ComplexVector, error) {
	a := AssembleDense(t, omega)
	b := make([]complex128, t.n)
	for i := 0; i < t.n; i++ {
		b[i] = complex(0, omega) * t.rhs1.At(i)
	}
	x, err := linalg.SolveLU(a, b)
	if x == nil {
		return nil, err
	}
	// An ill-conditioned solve near a resonance still yields a usable
	// snapshot; only a hard failure propagates.
	u := linalg.NewComplexVector(t.n)
	for i, v := range x {
		u.Set(i, v)
	}
	return u, nil
}
