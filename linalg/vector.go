package linalg

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// ComplexVector holds the process-local block of a complex field vector,
// stored as split real and imaginary parts so that real-arithmetic kernels
// can address each part directly.
type ComplexVector struct {
	Re, Im []float64
}

// NewComplexVector allocates a zero complex vector with a local block of
// length n.
func NewComplexVector(n int) *ComplexVector {
	return &ComplexVector{Re: make([]float64, n), Im: make([]float64, n)}
}

// Len returns the local block length.
func (v *ComplexVector) Len() int { return len(v.Re) }

// Zero sets every local entry to zero.
func (v *ComplexVector) Zero() {
	for i := range v.Re {
		v.Re[i] = 0
		v.Im[i] = 0
	}
}

// Clone returns a deep copy of v.
func (v *ComplexVector) Clone() *ComplexVector {
	w := NewComplexVector(v.Len())
	copy(w.Re, v.Re)
	copy(w.Im, v.Im)
	return w
}

// At returns the i-th local entry.
func (v *ComplexVector) At(i int) complex128 {
	return complex(v.Re[i], v.Im[i])
}

// Set assigns the i-th local entry.
func (v *ComplexVector) Set(i int, c complex128) {
	v.Re[i] = real(c)
	v.Im[i] = imag(c)
}

// Dot returns the global inner product of two distributed real vectors.
func Dot(comm Communicator, x, y []float64) float64 {
	buf := [1]float64{floats.Dot(x, y)}
	comm.AllSum(buf[:])
	return buf[0]
}

// Norml2 returns the global l2 norm of a distributed real vector.
func Norml2(comm Communicator, x []float64) float64 {
	return math.Sqrt(Dot(comm, x, x))
}

// Norml2c returns the global l2 norm of a distributed complex vector.
func Norml2c(comm Communicator, v *ComplexVector) float64 {
	buf := [1]float64{floats.Dot(v.Re, v.Re) + floats.Dot(v.Im, v.Im)}
	comm.AllSum(buf[:])
	return math.Sqrt(buf[0])
}
