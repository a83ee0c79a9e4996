package valuation

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/valuation/internal/modules/qubo"
	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// ErrRunNotFound is returned when a run id is unknown
var ErrRunNotFound = errors.New("valuation run not found")

// Run is the persisted record of a valuation run
type Run struct {
	ID         string          `json:"id"`
	CreatedAt  time.Time       `json:"created_at"`
	Inputs     Inputs          `json:"inputs"`
	NumReads   int             `json:"num_reads"`
	Sweeps     int             `json:"sweeps"`
	Seed       uint64          `json:"seed"`
	TMax       float64         `json:"t_max"`
	TMin       float64         `json:"t_min"`
	BestEnergy float64         `json:"best_energy"`
	Valuation  float64         `json:"valuation"`
	Degenerate bool            `json:"degenerate"`
	Assignment qubo.Assignment `json:"assignment"`
	Table      []qubo.Entry    `json:"qubo,omitempty"`
	DurationMs int64           `json:"duration_ms"`
}

// RunRepository stores valuation runs in the runs database.
// Assignments are msgpack encoded; the QUBO table is msgpack encoded and zstd compressed.
type RunRepository struct {
	db      *sql.DB
	encoder *zstd.Encoder
	decoder *zstd.Decoder
	log     zerolog.Logger
}

// NewRunRepository creates a new run repository
func NewRunRepository(db *sql.DB, log zerolog.Logger) (*RunRepository, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		encoder.Close()
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}

	return &RunRepository{
		db:      db,
		encoder: encoder,
		decoder: decoder,
		log:     log.With().Str("repo", "valuation_runs").Logger(),
	}, nil
}

// Save inserts a run
func (r *RunRepository) Save(ctx context.Context, run *Run) error {
	inputs, err := json.Marshal(run.Inputs)
	if err != nil {
		return fmt.Errorf("failed to encode inputs: %w", err)
	}
	assignment, err := msgpack.Marshal(run.Assignment)
	if err != nil {
		return fmt.Errorf("failed to encode assignment: %w", err)
	}
	table, err := msgpack.Marshal(run.Table)
	if err != nil {
		return fmt.Errorf("failed to encode qubo table: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO valuation_runs
		(id, created_at, inputs, num_reads, sweeps, t_max, t_min, seed,
		 best_energy, valuation, degenerate, assignment, qubo_table, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		run.CreatedAt.Unix(),
		string(inputs),
		run.NumReads,
		run.Sweeps,
		run.TMax,
		run.TMin,
		int64(run.Seed),
		run.BestEnergy,
		run.Valuation,
		boolToInt(run.Degenerate),
		assignment,
		r.encoder.EncodeAll(table, nil),
		run.DurationMs,
	)
	if err != nil {
		return fmt.Errorf("failed to insert valuation run %s: %w", run.ID, err)
	}

	r.log.Debug().Str("id", run.ID).Msg("Stored valuation run")
	return nil
}

// Get returns a run including its QUBO table
func (r *RunRepository) Get(ctx context.Context, id string) (*Run, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, created_at, inputs, num_reads, sweeps, t_max, t_min, seed,
		       best_energy, valuation, degenerate, assignment, qubo_table, duration_ms
		FROM valuation_runs
		WHERE id = ?
	`, id)

	run, err := r.scan(row, true)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load valuation run %s: %w", id, err)
	}
	return run, nil
}

// List returns the most recent runs without their QUBO tables
func (r *RunRepository) List(ctx context.Context, limit int) ([]Run, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, created_at, inputs, num_reads, sweeps, t_max, t_min, seed,
		       best_energy, valuation, degenerate, assignment, qubo_table, duration_ms
		FROM valuation_runs
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query valuation runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := r.scan(rows, false)
		if err != nil {
			return nil, fmt.Errorf("failed to scan valuation run: %w", err)
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating valuation runs: %w", err)
	}

	return runs, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *RunRepository) scan(row rowScanner, withTable bool) (*Run, error) {
	var run Run
	var createdAt, seed int64
	var degenerate int
	var inputs string
	var assignment, table []byte

	err := row.Scan(
		&run.ID,
		&createdAt,
		&inputs,
		&run.NumReads,
		&run.Sweeps,
		&run.TMax,
		&run.TMin,
		&seed,
		&run.BestEnergy,
		&run.Valuation,
		&degenerate,
		&assignment,
		&table,
		&run.DurationMs,
	)
	if err != nil {
		return nil, err
	}

	run.CreatedAt = time.Unix(createdAt, 0).UTC()
	run.Seed = uint64(seed)
	run.Degenerate = degenerate != 0

	if err := json.Unmarshal([]byte(inputs), &run.Inputs); err != nil {
		return nil, fmt.Errorf("failed to decode inputs: %w", err)
	}
	if err := msgpack.Unmarshal(assignment, &run.Assignment); err != nil {
		return nil, fmt.Errorf("failed to decode assignment: %w", err)
	}

	if withTable {
		raw, err := r.decoder.DecodeAll(table, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to decompress qubo table: %w", err)
		}
		if err := msgpack.Unmarshal(raw, &run.Table); err != nil {
			return nil, fmt.Errorf("failed to decode qubo table: %w", err)
		}
	}

	return &run, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
