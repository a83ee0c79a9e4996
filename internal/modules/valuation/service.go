package valuation

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/valuation/internal/modules/annealing"
	"github.com/aristath/valuation/internal/modules/qubo"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// RunStore persists completed valuation runs
type RunStore interface {
	Save(ctx context.Context, run *Run) error
}

// Observer receives every completed valuation result
type Observer interface {
	ObserveRun(result *Result)
}

// Request describes one valuation run
type Request struct {
	Inputs Inputs           `json:"inputs"`
	Params annealing.Params `json:"params"`
}

// Result is the outcome of a valuation run
type Result struct {
	RunID     string                       `json:"run_id"`
	CreatedAt time.Time                    `json:"created_at"`
	Inputs    Inputs                       `json:"inputs"`
	Encoder   EncoderConfig                `json:"encoder"`
	NumReads  int                          `json:"num_reads"`
	Sweeps    int                          `json:"sweeps"`
	Seed      uint64                       `json:"seed"`
	TMax      float64                      `json:"t_max"`
	TMin      float64                      `json:"t_min"`
	Best      annealing.Sample             `json:"best"`
	Decoded   Decoded                      `json:"decoded"`
	Stats     annealing.Stats              `json:"stats"`
	Samples   []annealing.Sample           `json:"samples"`
	Aggregate []annealing.AggregatedSample `json:"aggregate"`
	Duration  time.Duration                `json:"duration_ns"`

	Model *qubo.Model `json:"-"`
}

// Run converts the result into its persisted form
func (r *Result) Run() *Run {
	var table []qubo.Entry
	if r.Model != nil {
		table = r.Model.Table()
	}
	return &Run{
		ID:         r.RunID,
		CreatedAt:  r.CreatedAt,
		Inputs:     r.Inputs,
		NumReads:   r.NumReads,
		Sweeps:     r.Sweeps,
		Seed:       r.Seed,
		TMax:       r.TMax,
		TMin:       r.TMin,
		BestEnergy: r.Best.Energy,
		Valuation:  r.Decoded.Valuation,
		Degenerate: r.Decoded.Degenerate,
		Assignment: r.Best.Assignment,
		Table:      table,
		DurationMs: r.Duration.Milliseconds(),
	}
}

// Service builds valuation models, samples them and reports the best outcome
type Service struct {
	sampler  *annealing.Sampler
	store    RunStore
	observer Observer
	log      zerolog.Logger
}

// NewService creates a new valuation service. store and observer may be nil.
func NewService(sampler *annealing.Sampler, store RunStore, observer Observer, log zerolog.Logger) *Service {
	return &Service{
		sampler:  sampler,
		store:    store,
		observer: observer,
		log:      log.With().Str("service", "valuation").Logger(),
	}
}

// Preview builds the model for inputs without solving it
func (s *Service) Preview(inputs Inputs) (*qubo.Model, error) {
	if err := inputs.Validate(); err != nil {
		return nil, fmt.Errorf("invalid inputs: %w", err)
	}
	return BuildModel(inputs.EncoderConfig())
}

// Valuate encodes the request, samples it and returns the decoded best sample.
// A degenerate best sample is logged and flagged on the result, never returned as an error.
func (s *Service) Valuate(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()

	model, err := s.Preview(req.Inputs)
	if err != nil {
		return nil, err
	}
	s.logModel(model)

	resp, err := s.sampler.Sample(ctx, model, req.Params)
	if err != nil {
		return nil, fmt.Errorf("failed to sample valuation model: %w", err)
	}

	best, _ := resp.Best()
	cfg := req.Inputs.EncoderConfig()
	decoded := Decode(best.Assignment, cfg)

	result := &Result{
		RunID:     uuid.New().String(),
		CreatedAt: start.UTC(),
		Inputs:    req.Inputs,
		Encoder:   cfg,
		NumReads:  resp.Len(),
		Sweeps:    resp.Sweeps,
		Seed:      resp.Seed,
		TMax:      resp.TMax,
		TMin:      resp.TMin,
		Best:      best,
		Decoded:   decoded,
		Stats:     resp.Stats(),
		Samples:   resp.Samples(),
		Aggregate: resp.Aggregate(),
		Duration:  time.Since(start),
		Model:     model,
	}

	if decoded.Degenerate {
		s.log.Warn().
			Str("run_id", result.RunID).
			Float64("best_energy", best.Energy).
			Msg("Solver returned no selected revenue or asset bits")
	}

	s.log.Info().
		Str("run_id", result.RunID).
		Float64("valuation", decoded.Valuation).
		Float64("best_energy", best.Energy).
		Int("selected", decoded.SelectedForcing).
		Dur("duration", result.Duration).
		Msg("Valuation completed")

	if s.store != nil {
		if err := s.store.Save(ctx, result.Run()); err != nil {
			return nil, fmt.Errorf("failed to store valuation run: %w", err)
		}
	}

	if s.observer != nil {
		s.observer.ObserveRun(result)
	}

	return result, nil
}

func (s *Service) logModel(model *qubo.Model) {
	if s.log.GetLevel() > zerolog.DebugLevel || zerolog.GlobalLevel() > zerolog.DebugLevel {
		return
	}
	for p, coeff := range model.Coefficients() {
		s.log.Debug().
			Str("u", string(p.U)).
			Str("v", string(p.V)).
			Float64("coefficient", coeff).
			Msg("QUBO entry")
	}
}
