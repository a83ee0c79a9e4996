package di

import (
	"fmt"
	"time"

	"github.com/aristath/valuation/internal/config"
	"github.com/aristath/valuation/internal/scheduler"
	"github.com/rs/zerolog"
)

const (
	valuationJobTimeout   = 5 * time.Minute
	maintenanceSchedule   = "0 0 2 * * *" // Daily at 02:00
	databaseCheckSchedule = "0 0 3 * * *" // Daily at 03:00
)

// RegisterJobs creates the background jobs and schedules them.
// The valuation job is only scheduled when cfg.Schedule is set.
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) (*JobInstances, error) {
	if container == nil || container.ValuationService == nil {
		return nil, fmt.Errorf("services must be initialized first")
	}

	instances := &JobInstances{
		ScheduledValuation: scheduler.NewValuationJob(container.ValuationService, cfg.Request(), valuationJobTimeout, log),
		CheckDatabase:      scheduler.NewCheckDatabaseJob(container.ValuationDB, log),
		Maintenance:        scheduler.NewMaintenanceJob(container.ValuationDB, cfg.DataDir, log),
	}

	sched := scheduler.New(log)
	if cfg.Schedule != "" {
		if err := sched.AddJob(cfg.Schedule, instances.ScheduledValuation); err != nil {
			return nil, err
		}
	}
	if err := sched.AddJob(maintenanceSchedule, instances.Maintenance); err != nil {
		return nil, err
	}
	if err := sched.AddJob(databaseCheckSchedule, instances.CheckDatabase); err != nil {
		return nil, err
	}
	container.Scheduler = sched

	return instances, nil
}
