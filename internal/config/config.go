// Package config provides configuration management functionality.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/aristath/valuation/internal/modules/annealing"
	"github.com/aristath/valuation/internal/modules/valuation"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/shirou/gopsutil/v3/cpu"
)

// Config holds application configuration
type Config struct {
	DataDir  string // Directory holding valuation.db (always absolute)
	LogLevel string
	Port     int
	DevMode  bool

	Valuation valuation.Inputs
	Anneal    annealing.Params

	Schedule       string  // Cron spec (with seconds) for periodic runs; empty disables
	SolveRateLimit float64 // Solve requests per second
	SolveRateBurst int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	absDataDir, err := filepath.Abs(getEnv("DATA_DIR", "./data"))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	defaults := valuation.DefaultInputs()

	cfg := &Config{
		DataDir:  absDataDir,
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Port:     getEnvAsInt("GO_PORT", 8001),
		DevMode:  getEnvAsBool("DEV_MODE", false),
		Valuation: valuation.Inputs{
			Financials: valuation.Financials{
				Revenue:     getEnvAsFloat("VALUATION_REVENUE", defaults.Financials.Revenue),
				Assets:      getEnvAsFloat("VALUATION_ASSETS", defaults.Financials.Assets),
				Liabilities: getEnvAsFloat("VALUATION_LIABILITIES", defaults.Financials.Liabilities),
			},
			ScaleDivisor:     getEnvAsFloat("VALUATION_SCALE", defaults.ScaleDivisor),
			Bits:             getEnvAsInt("VALUATION_BITS", defaults.Bits),
			Alpha:            getEnvAsFloat("VALUATION_ALPHA", defaults.Alpha),
			Beta:             getEnvAsFloat("VALUATION_BETA", defaults.Beta),
			Gamma:            getEnvAsFloat("VALUATION_GAMMA", defaults.Gamma),
			Threshold:        getEnvAsFloat("VALUATION_THRESHOLD", defaults.Threshold),
			LargePenalty:     getEnvAsFloat("VALUATION_LARGE_PENALTY", defaults.LargePenalty),
			ThresholdPenalty: getEnvAsFloat("VALUATION_THRESHOLD_PENALTY", defaults.ThresholdPenalty),
		},
		Anneal: annealing.Params{
			NumReads: getEnvAsInt("ANNEAL_NUM_READS", annealing.DefaultNumReads),
			Sweeps:   getEnvAsInt("ANNEAL_SWEEPS", annealing.DefaultSweeps),
			TMax:     getEnvAsFloat("ANNEAL_T_MAX", 0),
			TMin:     getEnvAsFloat("ANNEAL_T_MIN", 0),
			Seed:     getEnvAsUint64("ANNEAL_SEED", 0),
			Workers:  getEnvAsInt("ANNEAL_WORKERS", defaultWorkers()),
		},
		Schedule:       getEnv("VALUATION_SCHEDULE", ""),
		SolveRateLimit: getEnvAsFloat("SOLVE_RATE_LIMIT", 2),
		SolveRateBurst: getEnvAsInt("SOLVE_RATE_BURST", 4),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the configuration
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if err := c.Valuation.Validate(); err != nil {
		return fmt.Errorf("invalid valuation config: %w", err)
	}
	if err := c.Anneal.Validate(); err != nil {
		return fmt.Errorf("invalid annealing config: %w", err)
	}
	if c.SolveRateLimit <= 0 || c.SolveRateBurst < 1 {
		return errors.New("solve rate limit and burst must be positive")
	}
	if c.Schedule != "" {
		if _, err := cron.NewParser(cronSpec).Parse(c.Schedule); err != nil {
			return fmt.Errorf("invalid VALUATION_SCHEDULE %q: %w", c.Schedule, err)
		}
	}
	return nil
}

// Request returns the configured valuation request
func (c *Config) Request() valuation.Request {
	return valuation.Request{Inputs: c.Valuation, Params: c.Anneal}
}

// DatabasePath returns the path of the run history database
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "valuation.db")
}

// cronSpec matches the scheduler's cron.WithSeconds parser
const cronSpec = cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor

// defaultWorkers is the number of logical CPUs, or 0 (GOMAXPROCS) when unknown
func defaultWorkers() int {
	n, err := cpu.Counts(true)
	if err != nil || n < 1 {
		return 0
	}
	return n
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsUint64(key string, defaultValue uint64) uint64 {
	if value := os.Getenv(key); value != "" {
		if v, err := strconv.ParseUint(value, 10, 64); err == nil {
			return v
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if v, err := strconv.ParseFloat(value, 64); err == nil {
			return v
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
