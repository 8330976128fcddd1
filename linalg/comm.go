package linalg

// Communicator supplies the global reductions required by distributed inner
// products. Full-order vectors are split into contiguous process-local blocks;
// every reduced quantity is replicated, so the only cross-process operation
// the ROM engine ever performs is an all-reduce sum of a small buffer.
//
// Implementations must combine contributions in rank order so that every rank
// observes the identical floating-point result. The reduced systems are solved
// redundantly on each rank without further communication, and any divergence
// between ranks after a reduction is a correctness bug.
type Communicator interface {
	Rank() int
	Size() int

	// AllSum replaces buf on every rank with the element-wise sum of the
	// buffers passed by all ranks.
	AllSum(buf []float64)

	// AllSumComplex is AllSum for complex buffers.
	AllSumComplex(buf []complex128)
}

// Serial is the single-process communicator. Reductions are identity
// operations, which makes it the natural choice for unit tests and for
// sequential runs.
type Serial struct{}

func (Serial) Rank() int { return 0 }

func (Serial) Size() int { return 1 }

func (Serial) AllSum([]float64) {}

func (Serial) AllSumComplex([]complex128) {}
