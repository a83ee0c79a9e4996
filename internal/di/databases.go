package di

import (
	"fmt"

	"github.com/aristath/valuation/internal/config"
	"github.com/aristath/valuation/internal/database"
	"github.com/rs/zerolog"
)

// InitializeDatabases opens valuation.db and applies its schema
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{}

	// valuation.db - append-only run history
	valuationDB, err := database.New(database.Config{
		Path:    cfg.DatabasePath(),
		Profile: database.ProfileLedger,
		Name:    "valuation",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize valuation database: %w", err)
	}

	if err := valuationDB.Migrate(); err != nil {
		valuationDB.Close()
		return nil, fmt.Errorf("failed to migrate valuation database: %w", err)
	}
	container.ValuationDB = valuationDB

	log.Info().Str("path", valuationDB.Path()).Msg("Valuation database initialized")
	return container, nil
}
