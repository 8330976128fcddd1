// Package linalg provides the distributed-vector primitives and the dense
// complex kernels (LU, SVD, eigendecomposition) used by the reduced-order
// model engine. The complex kernels are built on gonum's real factorizations
// through the standard real embedding
//
//	A = X + iY  ->  [ X  -Y ]
//	               [ Y   X ]
//
// which trades a constant factor in flops for gonum's mature pivoting and
// balancing. All reduced matrices are small, so the overhead is irrelevant
// next to the full-order work.
package linalg

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/cblas128"
	"gonum.org/v1/gonum/cmplxs"
	"gonum.org/v1/gonum/mat"
)

// Embed writes the real 2r x 2c embedding of a into dst, which must be
// preallocated with dimensions 2r x 2c.
func Embed(dst *mat.Dense, a *mat.CDense) {
	r, c := a.Dims()
	dr, dc := dst.Dims()
	if dr != 2*r || dc != 2*c {
		panic(fmt.Sprintf("linalg: embedding target is %dx%d, need %dx%d", dr, dc, 2*r, 2*c))
	}
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := a.At(i, j)
			dst.Set(i, j, real(v))
			dst.Set(i, j+c, -imag(v))
			dst.Set(i+r, j, imag(v))
			dst.Set(i+r, j+c, real(v))
		}
	}
}

// unembed extracts the complex r x c matrix whose embedding occupies the
// leading c columns of w.
func unembed(dst *mat.CDense, w mat.Matrix, r, c int) {
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			dst.Set(i, j, complex(w.At(i, j), w.At(i+r, j)))
		}
	}
}

// SolveLU solves the dense complex system a x = b by LU factorization with
// partial pivoting. A mat.Condition error reports an ill-conditioned system;
// the returned solution is still valid in that case.
func SolveLU(a *mat.CDense, b []complex128) ([]complex128, error) {
	n, c := a.Dims()
	if n != c || len(b) != n {
		panic(fmt.Sprintf("linalg: dimension mismatch in LU solve: %dx%d matrix, rhs %d", n, c, len(b)))
	}
	e := mat.NewDense(2*n, 2*n, nil)
	Embed(e, a)
	rhs := mat.NewVecDense(2*n, nil)
	for i := 0; i < n; i++ {
		rhs.SetVec(i, real(b[i]))
		rhs.SetVec(n+i, imag(b[i]))
	}
	var lu mat.LU
	lu.Factorize(e)
	// Preallocated so the unembedding below stays in range even when the
	// solve bails out with a Condition error.
	sol := mat.NewVecDense(2*n, nil)
	err := lu.SolveVecTo(sol, false, rhs)
	if err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return nil, err
		}
	}
	x := make([]complex128, n)
	for i := 0; i < n; i++ {
		x[i] = complex(sol.AtVec(i), sol.AtVec(n+i))
	}
	return x, err
}

// SolveLUDense solves a X = b for the complex matrix X.
func SolveLUDense(a, b *mat.CDense) (*mat.CDense, error) {
	n, c := a.Dims()
	br, bc := b.Dims()
	if n != c || br != n {
		panic(fmt.Sprintf("linalg: dimension mismatch in LU solve: %dx%d matrix, rhs %dx%d", n, c, br, bc))
	}
	ea := mat.NewDense(2*n, 2*n, nil)
	Embed(ea, a)
	eb := mat.NewDense(2*n, 2*bc, nil)
	Embed(eb, b)
	var lu mat.LU
	lu.Factorize(ea)
	sol := mat.NewDense(2*n, 2*bc, nil)
	err := lu.SolveTo(sol, false, eb)
	if err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return nil, err
		}
	}
	x := mat.NewCDense(n, bc, nil)
	unembed(x, sol, n, bc)
	return x, err
}

// SVDRight computes the singular values of the square complex matrix a in
// descending order together with the corresponding right singular vectors
// (returned as columns). Each singular value of a appears twice in the
// embedding; adjacent pairs are collapsed back to a single value and vector.
func SVDRight(a *mat.CDense) ([]float64, *mat.CDense, error) {
	n, c := a.Dims()
	if n != c {
		panic(fmt.Sprintf("linalg: SVD requires a square matrix, got %dx%d", n, c))
	}
	e := mat.NewDense(2*n, 2*n, nil)
	Embed(e, a)
	var svd mat.SVD
	if !svd.Factorize(e, mat.SVDFull) {
		return nil, nil, errors.New("linalg: SVD failed to converge")
	}
	sv := svd.Values(nil)
	var v mat.Dense
	svd.VTo(&v)
	sigma := make([]float64, n)
	right := mat.NewCDense(n, n, nil)
	for k := 0; k < n; k++ {
		sigma[k] = sv[2*k]
		for i := 0; i < n; i++ {
			right.Set(i, k, complex(v.At(i, 2*k), v.At(n+i, 2*k)))
		}
	}
	return sigma, right, nil
}

// EigenPairs computes eigenpairs of the square complex matrix a via its real
// embedding. The embedding carries the spectrum of a alongside its complex
// conjugate, so the returned list may contain duplicates, but every
// eigenvalue of a appears at least once. Eigenvectors have unit norm.
func EigenPairs(a *mat.CDense) ([]complex128, [][]complex128, error) {
	n, c := a.Dims()
	if n != c {
		panic(fmt.Sprintf("linalg: eigendecomposition requires a square matrix, got %dx%d", n, c))
	}
	e := mat.NewDense(2*n, 2*n, nil)
	Embed(e, a)
	var eig mat.Eigen
	if !eig.Factorize(e, mat.EigenRight) {
		return nil, nil, errors.New("linalg: eigendecomposition failed to converge")
	}
	vals := eig.Values(nil)
	var vecs mat.CDense
	eig.VectorsTo(&vecs)

	// An embedding eigenvector w = (w1; w2) encodes an eigenvector of a as
	// z = w1 + i w2 when that combination is nonzero, and an eigenvector for
	// the conjugate eigenvalue as conj(w1 - i w2) otherwise. The linear
	// recovery annihilates the wrong component even for mixed vectors from
	// near-degenerate conjugate pairs.
	const recoverTol = 1e-8
	var outVals []complex128
	var outVecs [][]complex128
	for j := 0; j < 2*n; j++ {
		z := make([]complex128, n)
		zc := make([]complex128, n)
		for i := 0; i < n; i++ {
			w1 := vecs.At(i, j)
			w2 := vecs.At(n+i, j)
			z[i] = w1 + 1i*w2
			zc[i] = cmplx.Conj(w1 - 1i*w2)
		}
		if nz := cmplxs.Norm(z, 2); nz > recoverTol {
			cmplxs.Scale(complex(1/nz, 0), z)
			outVals = append(outVals, vals[j])
			outVecs = append(outVecs, z)
		}
		if nzc := cmplxs.Norm(zc, 2); nzc > recoverTol {
			cmplxs.Scale(complex(1/nzc, 0), zc)
			outVals = append(outVals, cmplx.Conj(vals[j]))
			outVecs = append(outVecs, zc)
		}
	}
	if len(outVals) == 0 {
		return nil, nil, errors.New("linalg: no eigenpairs recovered from embedding")
	}
	return outVals, outVecs, nil
}

// FrobNorm returns the Frobenius norm of a.
func FrobNorm(a *mat.CDense) float64 {
	r, c := a.Dims()
	var s float64
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := a.At(i, j)
			s += real(v)*real(v) + imag(v)*imag(v)
		}
	}
	return math.Sqrt(s)
}

// CZero zeroes every entry of a.
func CZero(a *mat.CDense) {
	r, c := a.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			a.Set(i, j, 0)
		}
	}
}

// CAdd computes dst += a. Dimensions must match.
func CAdd(dst, a *mat.CDense) {
	CAddScaled(dst, 1, a)
}

// CAddScaled computes dst += alpha * a. Dimensions must match.
func CAddScaled(dst *mat.CDense, alpha complex128, a *mat.CDense) {
	r, c := dst.Dims()
	ar, ac := a.Dims()
	if r != ar || c != ac {
		panic(fmt.Sprintf("linalg: dimension mismatch %dx%d += %dx%d", r, c, ar, ac))
	}
	if d, s := packed(dst), packed(a); d != nil && s != nil {
		cmplxs.AddScaled(d, alpha, s)
		return
	}
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			dst.Set(i, j, dst.At(i, j)+alpha*a.At(i, j))
		}
	}
}

// CScale computes a *= alpha.
func CScale(alpha complex128, a *mat.CDense) {
	if d := packed(a); d != nil {
		cmplxs.Scale(alpha, d)
		return
	}
	r, c := a.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			a.Set(i, j, alpha*a.At(i, j))
		}
	}
}

// CMul computes dst = a b. dst must not alias a or b.
func CMul(dst, a, b *mat.CDense) {
	ar, ac := a.Dims()
	br, bc := b.Dims()
	dr, dc := dst.Dims()
	if ac != br || dr != ar || dc != bc {
		panic(fmt.Sprintf("linalg: dimension mismatch in matmul: %dx%d by %dx%d into %dx%d", ar, ac, br, bc, dr, dc))
	}
	cblas128.Gemm(blas.NoTrans, blas.NoTrans, 1, a.RawCMatrix(), b.RawCMatrix(), 0, dst.RawCMatrix())
}

// CMulVec computes dst = a x.
func CMulVec(dst []complex128, a *mat.CDense, x []complex128) {
	r, c := a.Dims()
	if len(dst) != r || len(x) != c {
		panic(fmt.Sprintf("linalg: dimension mismatch in matvec: %dx%d by %d into %d", r, c, len(x), len(dst)))
	}
	for i := 0; i < r; i++ {
		var s complex128
		for j := 0; j < c; j++ {
			s += a.At(i, j) * x[j]
		}
		dst[i] = s
	}
}

// packed returns the contiguous backing slice of a, or nil when the matrix is
// a strided view.
func packed(a *mat.CDense) []complex128 {
	raw := a.RawCMatrix()
	if raw.Stride != raw.Cols {
		return nil
	}
	return raw.Data[:raw.Rows*raw.Cols]
}
