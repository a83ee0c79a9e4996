package scheduler

import (
	"fmt"
	"time"

	"github.com/aristath/valuation/internal/database"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/disk"
)

const (
	criticalFreeGB = 0.5
	lowFreeGB      = 5.0
)

// MaintenanceJob checkpoints the run history WAL and checks free disk space
type MaintenanceJob struct {
	db      *database.DB
	dataDir string
	usage   func(path string) (*disk.UsageStat, error)
	log     zerolog.Logger
}

// NewMaintenanceJob creates a new daily maintenance job
func NewMaintenanceJob(db *database.DB, dataDir string, log zerolog.Logger) *MaintenanceJob {
	return &MaintenanceJob{
		db:      db,
		dataDir: dataDir,
		usage:   disk.Usage,
		log:     log.With().Str("job", "maintenance").Logger(),
	}
}

// Name returns the job name
func (j *MaintenanceJob) Name() string {
	return "maintenance"
}

// Run executes the maintenance steps. Only a critically full disk fails the job.
func (j *MaintenanceJob) Run() error {
	start := time.Now()

	// WAL checkpoint (prevent bloat); not critical
	if err := j.db.WALCheckpoint(); err != nil {
		j.log.Warn().Err(err).Msg("WAL checkpoint failed")
	}

	if err := j.checkDiskSpace(); err != nil {
		return err
	}

	dbMB, walMB := j.db.SizeMB()
	j.log.Info().
		Float64("size_mb", dbMB).
		Float64("wal_size_mb", walMB).
		Dur("duration_ms", time.Since(start)).
		Msg("Maintenance completed")

	return nil
}

// checkDiskSpace verifies sufficient disk space is available in the data directory
func (j *MaintenanceJob) checkDiskSpace() error {
	stat, err := j.usage(j.dataDir)
	if err != nil {
		return fmt.Errorf("failed to stat filesystem: %w", err)
	}

	availableGB := float64(stat.Free) / 1e9
	j.log.Debug().Float64("available_gb", availableGB).Msg("Disk space check")

	if availableGB < criticalFreeGB {
		j.log.Error().Float64("available_gb", availableGB).Msg("Insufficient disk space for run history")
		return fmt.Errorf("only %.2f GB free in %s", availableGB, j.dataDir)
	}
	if availableGB < lowFreeGB {
		j.log.Warn().Float64("available_gb", availableGB).Msg("Disk space running low")
	}

	return nil
}
