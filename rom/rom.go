// Package rom implements the reduced-order-model engine for many-query
// frequency-domain solves: incremental orthonormal basis construction,
// incremental Galerkin projection of the system operators, a minimal rational
// interpolation error surrogate driving adaptive sampling, the reduced dense
// solve, and a nonlinear eigensolver for resonance extraction.
//
// The engine owns no mesh, no assembly and no sparse solver; full-order
// solutions arrive from the external HDM collaborator through Extend, and
// everything downstream operates on small replicated dense quantities.
package rom

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/notargets/ROMKernel/linalg"
	"github.com/notargets/ROMKernel/operator"
)

// Options configures a ROM instance for one frequency sweep.
type Options struct {
	// MaxSize is the maximum number of sample points. The solution basis
	// holds up to 2*MaxSize columns (real and imaginary direction per
	// sample), the snapshot basis up to MaxSize. Required, > 0.
	MaxSize int

	// Orthog selects the Gram-Schmidt variant. Defaults to MGS.
	Orthog OrthogType

	// NumEig bounds the number of eigenvalue estimates returned by
	// ComputeEigenvalueEstimates. Zero means one per basis dimension.
	NumEig int

	// Seed seeds the deterministic random starts of the nonlinear
	// eigensolver. Zero selects a fixed default so that all ranks agree.
	Seed int64
}

// ROM is a parametric reduced-order model for the frequency-dependent system
//
//	A(omega) u = (K + i*omega*C - omega^2*M + A2(omega)) u = i*omega*RHS1 + RHS2(omega).
//
// It accumulates a real orthonormal basis V of solution directions, the
// incremental projections Kr/Cr/Mr/RHS1r onto V, and a separate complex
// orthonormal snapshot basis Q with triangular factor R feeding the error
// surrogate.
//
// A ROM is exclusively owned by one sweep: it is single-writer, and queries
// must not be interleaved with an in-flight Extend.
type ROM struct {
	sys  operator.System
	comm linalg.Communicator
	opts Options

	n int // local dimension of full-order vectors

	k, c, m *operator.Complex

	// Solution basis and reduced operators. V never shrinks or reorders;
	// columns are referenced by the projection blocks computed at the time
	// of their growth.
	V    [][]float64
	dimV int

	kr, cr, mr *mat.CDense
	rhs1       *linalg.ComplexVector
	rhs1r      []complex128

	// Snapshot basis, triangular factor and sample set for the error
	// surrogate. z is parallel to the columns of Q and the diagonal of R.
	Q    []*linalg.ComplexVector
	dimQ int
	r    *mat.CDense
	z    []float64
	q    []complex128

	hasA2, hasRHS2 bool
}

// New constructs an empty ROM bound to the given system and communicator.
// The system must provide stiffness and mass operators; damping, port and
// excitation terms are optional.
func New(sys operator.System, comm linalg.Communicator, opts Options) *ROM {
	if opts.MaxSize <= 0 {
		panic(fmt.Sprintf("rom: reduced basis storage must have > 0 columns, got max size %d", opts.MaxSize))
	}
	k, m := sys.Stiffness(), sys.Mass()
	if !k.HasReal() && !k.HasImag() {
		panic("rom: empty stiffness operator")
	}
	if !m.HasReal() && !m.HasImag() {
		panic("rom: empty mass operator")
	}
	if opts.Seed == 0 {
		opts.Seed = 1
	}
	p := &ROM{
		sys:     sys,
		comm:    comm,
		opts:    opts,
		n:       sys.Dim(),
		k:       k,
		c:       sys.Damping(),
		m:       m,
		rhs1:    sys.Excitation1(),
		V:       make([][]float64, 2*opts.MaxSize),
		Q:       make([]*linalg.ComplexVector, opts.MaxSize),
		hasA2:   true,
		hasRHS2: true,
	}
	return p
}

// DimV returns the current dimension of the solution basis.
func (p *ROM) DimV() int { return p.dimV }

// DimQ returns the number of accumulated snapshots.
func (p *ROM) DimQ() int { return p.dimQ }

// MaxSize returns the sample budget the storage was sized for.
func (p *ROM) MaxSize() int { return p.opts.MaxSize }

// Samples returns a copy of the sampled frequencies in acceptance order.
func (p *ROM) Samples() []float64 {
	return append([]float64(nil), p.z...)
}

// Extend grows the model with a full-order solution u computed at frequency
// omega: the real and imaginary parts of u are orthogonalized into V (each
// only when numerically significant), the reduced operators and excitation
// are updated incrementally for the new dimension, and u itself joins the
// snapshot basis feeding the error surrogate.
//
// Extend panics when the preallocated basis capacity would be exceeded or on
// a dimension mismatch; both are caller contract violations.
func (p *ROM) Extend(u *linalg.ComplexVector, omega float64) {
	if u.Len() != p.n {
		panic(fmt.Sprintf("rom: solution has local dimension %d, system has %d", u.Len(), p.n))
	}

	// The basis is always real: a complex solution contributes up to two
	// directions. A direction is accepted only when its share of the
	// combined norm is above the orthogonalization cutoff, which keeps
	// noise-level components of nearly pure-real or pure-imaginary
	// solutions out of the basis.
	normr := linalg.Norml2(p.comm, u.Re)
	normi := linalg.Norml2(p.comm, u.Im)
	norm := math.Hypot(normr, normi)
	hasReal := normr > orthogTol*norm
	hasImag := normi > orthogTol*norm

	grow := 0
	if hasReal {
		grow++
	}
	if hasImag {
		grow++
	}
	if p.dimV+grow > len(p.V) {
		panic(fmt.Sprintf("rom: unable to grow basis storage beyond %d columns, increase the maximum number of vectors", len(p.V)))
	}

	dimV0 := p.dimV
	h := make([]float64, p.dimV+grow)
	if hasReal {
		p.appendColumn(u.Re, h)
	}
	if hasImag {
		p.appendColumn(u.Im, h)
	}

	// Update the reduced operators. The resize preserves the leading
	// dimV0 x dimV0 block, and the projection computes only the entries
	// involving the new columns.
	scratch := linalg.NewComplexVector(p.n)
	p.kr = growCDense(p.kr, p.dimV)
	projectMatrix(p.comm, p.V, dimV0, p.dimV, p.k, p.kr, scratch)
	if p.c != nil {
		p.cr = growCDense(p.cr, p.dimV)
		projectMatrix(p.comm, p.V, dimV0, p.dimV, p.c, p.cr, scratch)
	}
	p.mr = growCDense(p.mr, p.dimV)
	projectMatrix(p.comm, p.V, dimV0, p.dimV, p.m, p.mr, scratch)
	if p.rhs1 != nil {
		p.rhs1r = append(p.rhs1r, make([]complex128, p.dimV-dimV0)...)
		projectVector(p.comm, p.V, dimV0, p.dimV, p.rhs1, p.rhs1r)
	}

	// Accumulate the snapshot: the complex solution is orthogonalized
	// against the existing columns of Q, and the coefficients become a new
	// column of the triangular factor R.
	if p.dimQ+1 > len(p.Q) {
		panic(fmt.Sprintf("rom: unable to grow snapshot storage beyond %d columns, increase the maximum number of vectors", len(p.Q)))
	}
	p.r = growCDense(p.r, p.dimQ+1)
	hc := make([]complex128, p.dimQ+1)
	w := u.Clone()
	orthogonalizeColumnC(p.opts.Orthog, p.comm, p.Q, w, hc, p.dimQ)
	for i := 0; i < p.dimQ; i++ {
		p.r.Set(i, p.dimQ, hc[i])
	}
	qnorm := linalg.Norml2c(p.comm, w)
	p.r.Set(p.dimQ, p.dimQ, complex(qnorm, 0))
	scaleC(w, 1/qnorm)
	p.Q[p.dimQ] = w
	p.z = append(p.z, omega)
	p.dimQ++

	p.computeMRI()
}

// appendColumn orthogonalizes w against the current basis and appends the
// normalized result as column dimV.
func (p *ROM) appendColumn(w []float64, h []float64) {
	col := append([]float64(nil), w...)
	orthogonalizeColumn(p.opts.Orthog, p.comm, p.V, col, h, p.dimV)
	nrm := linalg.Norml2(p.comm, col)
	h[p.dimV] = nrm
	for i := range col {
		col[i] /= nrm
	}
	p.V[p.dimV] = col
	p.dimV++
}

func scaleC(v *linalg.ComplexVector, s float64) {
	for i := range v.Re {
		v.Re[i] *= s
		v.Im[i] *= s
	}
}

// growCDense returns an n x n matrix whose leading block is a copy of a,
// padding new entries with zero.
func growCDense(a *mat.CDense, n int) *mat.CDense {
	b := mat.NewCDense(n, n, nil)
	if a != nil {
		r, c := a.Dims()
		if r > n {
			r = n
		}
		if c > n {
			c = n
		}
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				b.Set(i, j, a.At(i, j))
			}
		}
	}
	return b
}
