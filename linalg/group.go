package linalg

import (
	"fmt"
	"sync"

	"gonum.org/v1/gonum/floats"
)

// Group coordinates a fixed set of goroutine "ranks" acting as one process
// group, standing in for an MPI communicator in multi-process tests and
// in-process parallel runs. All ranks must issue the same sequence of
// collective calls; the group sums contributions in rank order, so the result
// is deterministic and identical on every rank.
type Group struct {
	size int

	mu   sync.Mutex
	cond *sync.Cond

	stageF    [][]float64
	stageC    [][]complex128
	sumF      []float64
	sumC      []complex128
	arrivedF  int
	departedF int
	arrivedC  int
	departedC int
}

// NewGroup creates a process group with the given number of ranks.
func NewGroup(size int) *Group {
	if size <= 0 {
		panic(fmt.Sprintf("linalg: invalid group size %d", size))
	}
	g := &Group{
		size:   size,
		stageF: make([][]float64, size),
		stageC: make([][]complex128, size),
	}
	g.cond = sync.NewCond(&g.mu)
	return g
}

// Comm returns the Communicator bound to one rank of the group.
func (g *Group) Comm(rank int) Communicator {
	if rank < 0 || rank >= g.size {
		panic(fmt.Sprintf("linalg: rank %d out of range for group of size %d", rank, g.size))
	}
	return &groupComm{g: g, rank: rank}
}

func (g *Group) allSum(rank int, buf []float64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	// A rank may re-enter the next round before the previous one has fully
	// drained; its staging slot is only cleared once all ranks departed.
	for g.stageF[rank] != nil {
		g.cond.Wait()
	}
	g.stageF[rank] = append([]float64(nil), buf...)
	g.arrivedF++
	if g.arrivedF == g.size {
		sum := make([]float64, len(buf))
		for r := 0; r < g.size; r++ {
			floats.Add(sum, g.stageF[r])
		}
		g.sumF = sum
		g.cond.Broadcast()
	}
	for g.sumF == nil {
		g.cond.Wait()
	}
	copy(buf, g.sumF)
	g.departedF++
	if g.departedF == g.size {
		g.arrivedF, g.departedF, g.sumF = 0, 0, nil
		for r := range g.stageF {
			g.stageF[r] = nil
		}
		g.cond.Broadcast()
	}
}

func (g *Group) allSumComplex(rank int, buf []complex128) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for g.stageC[rank] != nil {
		g.cond.Wait()
	}
	g.stageC[rank] = append([]complex128(nil), buf...)
	g.arrivedC++
	if g.arrivedC == g.size {
		sum := make([]complex128, len(buf))
		for r := 0; r < g.size; r++ {
			for i, v := range g.stageC[r] {
				sum[i] += v
			}
		}
		g.sumC = sum
		g.cond.Broadcast()
	}
	for g.sumC == nil {
		g.cond.Wait()
	}
	copy(buf, g.sumC)
	g.departedC++
	if g.departedC == g.size {
		g.arrivedC, g.departedC, g.sumC = 0, 0, nil
		for r := range g.stageC {
			g.stageC[r] = nil
		}
		g.cond.Broadcast()
	}
}

type groupComm struct {
	g    *Group
	rank int
}

func (c *groupComm) Rank() int { return c.rank }

func (c *groupComm) Size() int { return c.g.size }

func (c *groupComm) AllSum(buf []float64) { c.g.allSum(c.rank, buf) }

func (c *groupComm) AllSumComplex(buf []complex128) { c.g.allSumComplex(c.rank, buf) }
