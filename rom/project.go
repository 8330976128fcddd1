package rom

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/notargets/ROMKernel/linalg"
	"github.com/notargets/ROMKernel/operator"
)

// projectMatrix updates ar = V^T A V for the basis growth n0 -> n. Only the
// entries involving new columns are computed: one operator application per
// new column, local inner products against all n columns, and exactly one
// global reduction for the whole (n-n0) x n block. The symmetric lower-left
// block is mirrored by plain transposition, without conjugation, which is
// exact because V is real and A is complex-symmetric.
//
// ar is replicated across all ranks as a sequential n x n matrix.
func projectMatrix(comm linalg.Communicator, V [][]float64, n0, n int, a *operator.Complex, ar *mat.CDense, scratch *linalg.ComplexVector) {
	if n0 >= n {
		panic(fmt.Sprintf("rom: invalid dimensions %d -> %d in PROM matrix projection", n0, n))
	}
	if !a.HasReal() && !a.HasImag() {
		panic("rom: empty operator in PROM matrix projection")
	}
	block := make([]complex128, (n-n0)*n)
	for j := n0; j < n; j++ {
		if a.HasReal() {
			a.Re.Apply(scratch.Re, V[j])
		}
		if a.HasImag() {
			a.Im.Apply(scratch.Im, V[j])
		}
		for i := 0; i < n; i++ {
			var re, im float64
			if a.HasReal() {
				re = floats.Dot(V[i], scratch.Re)
			}
			if a.HasImag() {
				im = floats.Dot(V[i], scratch.Im)
			}
			block[(j-n0)*n+i] = complex(re, im)
		}
	}
	comm.AllSumComplex(block)
	for j := n0; j < n; j++ {
		for i := 0; i < n; i++ {
			ar.Set(i, j, block[(j-n0)*n+i])
		}
	}
	for j := 0; j < n0; j++ {
		for i := n0; i < n; i++ {
			ar.Set(i, j, ar.At(j, i))
		}
	}
}

// projectVector updates br = V^T b for the basis growth n0 -> n, with one
// global reduction for the new entries. br is replicated across all ranks.
func projectVector(comm linalg.Communicator, V [][]float64, n0, n int, b *linalg.ComplexVector, br []complex128) {
	if n0 >= n {
		panic(fmt.Sprintf("rom: invalid dimensions %d -> %d in PROM vector projection", n0, n))
	}
	seg := br[n0:n]
	for i := n0; i < n; i++ {
		seg[i-n0] = complex(floats.Dot(V[i], b.Re), floats.Dot(V[i], b.Im))
	}
	comm.AllSumComplex(seg)
}
