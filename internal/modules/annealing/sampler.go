package annealing

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"runtime"
	"time"

	"github.com/aristath/valuation/internal/modules/qubo"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultNumReads is the number of independent reads per sampler run
	DefaultNumReads = 10
	// DefaultSweeps is the number of sweeps per read
	DefaultSweeps = 1000

	// MaxNumReads bounds the number of reads a single run may request
	MaxNumReads = 10_000
	// MaxSweeps bounds the sweeps of a single read
	MaxSweeps = 1_000_000
	// MaxTotalSweeps bounds NumReads·Sweeps for a single run
	MaxTotalSweeps = 10_000_000
)

// Params configures a sampler run
type Params struct {
	NumReads int     `json:"num_reads"`
	Sweeps   int     `json:"sweeps"`
	TMax     float64 `json:"t_max"` // 0 together with TMin derives the range from the model
	TMin     float64 `json:"t_min"`
	Seed     uint64  `json:"seed"`    // 0 seeds from the clock
	Workers  int     `json:"workers"` // 0 uses GOMAXPROCS

	// OnSample is invoked once per finished read, possibly from several goroutines
	OnSample func(Sample) `json:"-"`
}

// DefaultParams returns the default sampler configuration
func DefaultParams() Params {
	return Params{
		NumReads: DefaultNumReads,
		Sweeps:   DefaultSweeps,
	}
}

// Validate checks the sampler configuration
func (p Params) Validate() error {
	if p.NumReads < 1 {
		return fmt.Errorf("num_reads must be at least 1, got %d", p.NumReads)
	}
	if p.NumReads > MaxNumReads {
		return fmt.Errorf("num_reads must not exceed %d, got %d", MaxNumReads, p.NumReads)
	}
	if p.Sweeps < 1 {
		return fmt.Errorf("sweeps must be at least 1, got %d", p.Sweeps)
	}
	if p.Sweeps > MaxSweeps {
		return fmt.Errorf("sweeps must not exceed %d, got %d", MaxSweeps, p.Sweeps)
	}
	if p.NumReads*p.Sweeps > MaxTotalSweeps {
		return fmt.Errorf("num_reads*sweeps must not exceed %d, got %d", MaxTotalSweeps, p.NumReads*p.Sweeps)
	}
	if p.TMax < 0 || p.TMin < 0 {
		return errors.New("temperatures must be non-negative")
	}
	if (p.TMax == 0) != (p.TMin == 0) {
		return errors.New("t_max and t_min must both be set or both be zero")
	}
	if p.TMin > p.TMax {
		return fmt.Errorf("t_min (%g) must not exceed t_max (%g)", p.TMin, p.TMax)
	}
	if p.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", p.Workers)
	}
	return nil
}

// Sampler drives independent annealing reads and collects them into a Response
type Sampler struct {
	log zerolog.Logger
}

// NewSampler creates a new sampler
func NewSampler(log zerolog.Logger) *Sampler {
	return &Sampler{
		log: log.With().Str("component", "sampler").Logger(),
	}
}

// Sample runs p.NumReads annealing reads of m and returns them ordered by energy.
//
// Read k draws from its own PCG stream seeded with (seed, k), so a fixed seed
// reproduces the same samples regardless of how reads are scheduled. Reads run
// concurrently and only read m; m must not be mutated until Sample returns.
func (s *Sampler) Sample(ctx context.Context, m *qubo.Model, p Params) (*Response, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid sampler params: %w", err)
	}

	annealer := NewAnnealer(m)

	tMax, tMin := p.TMax, p.TMin
	if tMax == 0 && tMin == 0 {
		tMax, tMin = annealer.DefaultTemperatureRange()
	}
	schedule := GeometricSchedule{Start: tMax, End: tMin}

	seed := p.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	workers := p.Workers
	if workers == 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	s.log.Debug().
		Int("variables", m.NumVariables()).
		Int("entries", m.Len()).
		Int("num_reads", p.NumReads).
		Int("sweeps", p.Sweeps).
		Float64("t_max", tMax).
		Float64("t_min", tMin).
		Uint64("seed", seed).
		Int("workers", workers).
		Msg("Starting sampler run")

	start := time.Now()
	samples := make([]Sample, p.NumReads)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for read := 0; read < p.NumReads; read++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rng := rand.New(rand.NewPCG(seed, uint64(read)))
			sample := annealer.Run(rng, p.Sweeps, schedule)
			sample.Read = read
			samples[read] = sample
			if p.OnSample != nil {
				p.OnSample(sample)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("sampling interrupted: %w", err)
	}

	resp := NewResponse(samples, annealer.Variables())
	resp.Seed = seed
	resp.Sweeps = p.Sweeps
	resp.TMax = tMax
	resp.TMin = tMin

	best, _ := resp.Best()
	s.log.Debug().
		Float64("best_energy", best.Energy).
		Int("best_read", best.Read).
		Dur("duration", time.Since(start)).
		Msg("Sampler run completed")

	return resp, nil
}
