package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/valuation/internal/modules/valuation"
	"github.com/rs/zerolog"
)

// Valuator runs one valuation
type Valuator interface {
	Valuate(ctx context.Context, req valuation.Request) (*valuation.Result, error)
}

// ValuationJob re-runs the configured valuation
type ValuationJob struct {
	valuator Valuator
	request  valuation.Request
	timeout  time.Duration
	log      zerolog.Logger
}

// NewValuationJob creates a new ValuationJob. A zero timeout means no timeout.
func NewValuationJob(valuator Valuator, request valuation.Request, timeout time.Duration, log zerolog.Logger) *ValuationJob {
	return &ValuationJob{
		valuator: valuator,
		request:  request,
		timeout:  timeout,
		log:      log.With().Str("job", "scheduled_valuation").Logger(),
	}
}

// Name returns the job name
func (j *ValuationJob) Name() string {
	return "scheduled_valuation"
}

// Run executes one valuation
func (j *ValuationJob) Run() error {
	ctx := context.Background()
	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}

	result, err := j.valuator.Valuate(ctx, j.request)
	if err != nil {
		return fmt.Errorf("scheduled valuation failed: %w", err)
	}

	j.log.Info().
		Str("run_id", result.RunID).
		Float64("valuation", result.Decoded.Valuation).
		Bool("degenerate", result.Decoded.Degenerate).
		Msg("Scheduled valuation stored")
	return nil
}
