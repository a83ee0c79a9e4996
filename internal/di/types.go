package di

import (
	"github.com/aristath/valuation/internal/database"
	"github.com/aristath/valuation/internal/metrics"
	"github.com/aristath/valuation/internal/modules/annealing"
	"github.com/aristath/valuation/internal/modules/valuation"
	"github.com/aristath/valuation/internal/scheduler"
	"golang.org/x/time/rate"
)

// Container holds all application dependencies
type Container struct {
	// Databases
	ValuationDB *database.DB

	// Repositories
	RunRepo *valuation.RunRepository

	// Services
	Sampler          *annealing.Sampler
	ValuationService *valuation.Service
	Metrics          *metrics.Recorder
	SolveLimiter     *rate.Limiter

	// Background jobs
	Scheduler *scheduler.Scheduler
}

// JobInstances holds job references for manual triggering via API
type JobInstances struct {
	ScheduledValuation scheduler.Job
	CheckDatabase      scheduler.Job
	Maintenance        scheduler.Job
}

// Close releases every resource held by the container
func (c *Container) Close() error {
	if c.ValuationDB == nil {
		return nil
	}
	return c.ValuationDB.Close()
}
