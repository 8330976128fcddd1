// Package sweep drives a frequency sweep over a reduced-order model. The
// adaptive driver alternates full-order sampling with the model's own error
// surrogate to place samples where the reduction is weakest, then answers the
// dense output grid from the reduced model alone. Convergence policy lives
// here; the rom package only supplies the primitives.
package sweep

import (
	"fmt"
	"math"

	"k8s.io/klog/v2"

	"github.com/notargets/ROMKernel/linalg"
	"github.com/notargets/ROMKernel/rom"
)

// HDMSolver produces the full-order solution at a frequency. It stands for
// the external high-dimensional solve and is the expensive operation the
// sweep tries to call as rarely as possible.
type HDMSolver func(omega float64) (*linalg.ComplexVector, error)

// Config controls a sweep over [Start, End].
type Config struct {
	Start float64
	End   float64

	// NumSteps is the resolution of both the error-surrogate scan and the
	// final output grid.
	NumSteps int

	// MaxSamples caps the number of full-order solves in the adaptive
	// driver. It must not exceed the MaxSize the model was built with.
	MaxSamples int
}

func (c Config) validate() error {
	if !(c.End > c.Start) || c.Start <= 0 {
		return fmt.Errorf("sweep: invalid frequency range [%g, %g]", c.Start, c.End)
	}
	if c.NumSteps < 2 {
		return fmt.Errorf("sweep: need at least 2 scan steps, got %d", c.NumSteps)
	}
	return nil
}

// Result collects the sampled frequencies and the reduced-model solutions on
// the output grid.
type Result struct {
	Samples   []float64
	Omegas    []float64
	Solutions []*linalg.ComplexVector
}

// Adaptive grows p by greedy sampling: the interval endpoints first, then
// repeatedly the frequency the error surrogate flags as worst, until the
// sample budget is exhausted or the surrogate re-proposes an existing sample
// (no new information in the scan grid). The output grid is then filled with
// reduced solves only.
func Adaptive(p *rom.ROM, solve HDMSolver, cfg Config) (*Result, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	maxSamples := cfg.MaxSamples
	if maxSamples <= 0 || maxSamples > p.MaxSize() {
		maxSamples = p.MaxSize()
	}
	if maxSamples < 2 {
		return nil, fmt.Errorf("sweep: adaptive driver needs a budget of at least 2 samples, got %d", maxSamples)
	}
	delta := (cfg.End - cfg.Start) / float64(cfg.NumSteps-1)

	sample := func(omega float64) error {
		u, err := solve(omega)
		if err != nil {
			return fmt.Errorf("sweep: HDM solve at omega = %g: %w", omega, err)
		}
		p.Extend(u, omega)
		return nil
	}
	if err := sample(cfg.Start); err != nil {
		return nil, err
	}
	if err := sample(cfg.End); err != nil {
		return nil, err
	}
	for p.DimQ() < maxSamples {
		omegaStar := p.FindMaxError(cfg.Start, delta, cfg.NumSteps)
		if nearestSampleDistance(p.Samples(), omegaStar) < delta/2 {
			klog.V(1).Infof("Adaptive sweep converged after %d samples: surrogate re-proposed omega = %g", p.DimQ(), omegaStar)
			break
		}
		if err := sample(omegaStar); err != nil {
			return nil, err
		}
	}

	res, err := Uniform(p, cfg)
	if err != nil {
		return nil, err
	}
	res.Samples = p.Samples()
	return res, nil
}

// Uniform answers the output grid from the reduced model alone. The model
// must have been extended at least once.
func Uniform(p *rom.ROM, cfg Config) (*Result, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	res := &Result{
		Omegas:    make([]float64, cfg.NumSteps),
		Solutions: make([]*linalg.ComplexVector, cfg.NumSteps),
	}
	delta := (cfg.End - cfg.Start) / float64(cfg.NumSteps-1)
	for i := 0; i < cfg.NumSteps; i++ {
		omega := cfg.Start + float64(i)*delta
		res.Omegas[i] = omega
		res.Solutions[i] = p.SolvePROM(omega)
	}
	return res, nil
}

func nearestSampleDistance(samples []float64, omega float64) float64 {
	d := math.Inf(1)
	for _, s := range samples {
		if v := math.Abs(s - omega); v < d {
			d = v
		}
	}
	return d
}
