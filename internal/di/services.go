package di

import (
	"fmt"

	"github.com/aristath/valuation/internal/config"
	"github.com/aristath/valuation/internal/metrics"
	"github.com/aristath/valuation/internal/modules/annealing"
	"github.com/aristath/valuation/internal/modules/valuation"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// InitializeServices creates the repository, sampler, service and metrics
func InitializeServices(container *Container, cfg *config.Config, log zerolog.Logger) error {
	if container == nil || container.ValuationDB == nil {
		return fmt.Errorf("valuation database must be initialized first")
	}

	runRepo, err := valuation.NewRunRepository(container.ValuationDB.Conn(), log)
	if err != nil {
		return fmt.Errorf("failed to create run repository: %w", err)
	}
	container.RunRepo = runRepo

	container.Metrics = metrics.NewRecorder()
	container.Sampler = annealing.NewSampler(log)
	container.ValuationService = valuation.NewService(container.Sampler, runRepo, container.Metrics, log)
	container.SolveLimiter = rate.NewLimiter(rate.Limit(cfg.SolveRateLimit), cfg.SolveRateBurst)

	return nil
}
