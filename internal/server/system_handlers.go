package server

import (
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/aristath/valuation/internal/database"
	"github.com/aristath/valuation/internal/di"
	"github.com/aristath/valuation/internal/scheduler"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// SystemHandlers serves host status and manual job triggers
type SystemHandlers struct {
	log     zerolog.Logger
	dataDir string
	db      *database.DB
	jobs    *di.JobInstances
	started time.Time
}

// NewSystemHandlers creates new system handlers. jobs may be nil.
func NewSystemHandlers(log zerolog.Logger, dataDir string, db *database.DB, jobs *di.JobInstances) *SystemHandlers {
	return &SystemHandlers{
		log:     log.With().Str("handler", "system").Logger(),
		dataDir: dataDir,
		db:      db,
		jobs:    jobs,
		started: time.Now(),
	}
}

// SystemStatusResponse is the payload of GET /api/system/status
type SystemStatusResponse struct {
	Status        string  `json:"status"`
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	LogicalCores  int     `json:"logical_cores"`
	Goroutines    int     `json:"goroutines"`
	DataDir       string  `json:"data_dir"`
	DatabaseMB    float64 `json:"database_mb"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	Timestamp     string  `json:"timestamp"`
}

// HandleSystemStatus returns host and process status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	h.log.Debug().Msg("Getting system status")

	cpuPercent, memPercent := h.getSystemStats()

	cores, err := cpu.Counts(true)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to count logical CPUs")
		cores = runtime.NumCPU()
	}

	h.writeJSON(w, http.StatusOK, SystemStatusResponse{
		Status:        "ok",
		CPUPercent:    cpuPercent,
		MemoryPercent: memPercent,
		LogicalCores:  cores,
		Goroutines:    runtime.NumGoroutine(),
		DataDir:       h.dataDir,
		DatabaseMB:    h.databaseSize(),
		UptimeSeconds: time.Since(h.started).Seconds(),
		Timestamp:     time.Now().Format(time.RFC3339),
	})
}

// HandleTriggerValuation runs the scheduled valuation job immediately
// POST /api/system/jobs/valuation
func (h *SystemHandlers) HandleTriggerValuation(w http.ResponseWriter, r *http.Request) {
	if h.jobs == nil {
		h.triggerJob(w, nil)
		return
	}
	h.triggerJob(w, h.jobs.ScheduledValuation)
}

// HandleTriggerDatabaseCheck runs the database integrity check immediately
// POST /api/system/jobs/check-database
func (h *SystemHandlers) HandleTriggerDatabaseCheck(w http.ResponseWriter, r *http.Request) {
	if h.jobs == nil {
		h.triggerJob(w, nil)
		return
	}
	h.triggerJob(w, h.jobs.CheckDatabase)
}

// HandleTriggerMaintenance runs the maintenance job immediately
// POST /api/system/jobs/maintenance
func (h *SystemHandlers) HandleTriggerMaintenance(w http.ResponseWriter, r *http.Request) {
	if h.jobs == nil {
		h.triggerJob(w, nil)
		return
	}
	h.triggerJob(w, h.jobs.Maintenance)
}

func (h *SystemHandlers) triggerJob(w http.ResponseWriter, job scheduler.Job) {
	if job == nil {
		h.log.Warn().Msg("Job not registered")
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":  "error",
			"message": "Job not registered",
		})
		return
	}

	if err := job.Run(); err != nil {
		h.log.Error().Err(err).Str("job", job.Name()).Msg("Manually triggered job failed")
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{
			"status":  "error",
			"job":     job.Name(),
			"message": err.Error(),
		})
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{
		"status": "success",
		"job":    job.Name(),
	})
}

// getSystemStats returns CPU and RAM usage percentages.
// CPU is sampled over 100ms to keep the endpoint responsive.
func (h *SystemHandlers) getSystemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	return cpuAvg, memStat.UsedPercent
}

// databaseSize returns the size of the database file and its WAL in MB
func (h *SystemHandlers) databaseSize() float64 {
	if h.db == nil {
		return 0
	}
	dbMB, walMB := h.db.SizeMB()
	return dbMB + walMB
}

func (h *SystemHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
