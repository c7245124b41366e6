// Package postgres persists batch runs and correlation results.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"genecorr/domain/core"
	"genecorr/domain/corr"
)

const schema = `
CREATE TABLE IF NOT EXISTS batch_runs (
	id            TEXT PRIMARY KEY,
	created_at    TIMESTAMPTZ NOT NULL,
	n             INTEGER NOT NULL,
	residual_df   INTEGER NOT NULL,
	iterations    INTEGER NOT NULL,
	seed          BIGINT NOT NULL,
	alternative   TEXT NOT NULL,
	floor_enabled BOOLEAN NOT NULL,
	gene_count    INTEGER NOT NULL,
	pair_count    INTEGER NOT NULL,
	null_summary  JSONB NOT NULL DEFAULT '{}'
);

CREATE TABLE IF NOT EXISTS correlation_results (
	id         BIGSERIAL PRIMARY KEY,
	run_id     TEXT NOT NULL REFERENCES batch_runs(id) ON DELETE CASCADE,
	gene_x     TEXT NOT NULL,
	gene_y     TEXT NOT NULL,
	rho        DOUBLE PRECISION,
	p_value    DOUBLE PRECISION,
	adjusted_p DOUBLE PRECISION,
	n          INTEGER NOT NULL,
	warnings   JSONB NOT NULL DEFAULT '[]'
);

CREATE INDEX IF NOT EXISTS idx_correlation_results_run
	ON correlation_results(run_id);
`

// ResultRepository implements ports.ResultRepositoryPort on PostgreSQL.
type ResultRepository struct {
	db *sqlx.DB
}

// NewResultRepository creates a result repository.
func NewResultRepository(db *sqlx.DB) *ResultRepository {
	return &ResultRepository{db: db}
}

// EnsureSchema creates the tables if they do not exist.
func (r *ResultRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// SaveRun inserts a batch run.
func (r *ResultRepository) SaveRun(ctx context.Context, run *corr.BatchRun) error {
	query := `
		INSERT INTO batch_runs (
			id, created_at, n, residual_df, iterations, seed,
			alternative, floor_enabled, gene_count, pair_count, null_summary
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	summaryJSON, err := json.Marshal(run.NullSummary)
	if err != nil {
		return fmt.Errorf("marshal null summary: %w", err)
	}

	_, err = r.db.ExecContext(ctx, query,
		run.ID.String(),
		run.CreatedAt.Time(),
		run.NullParams.N,
		run.NullParams.ResidualDF,
		run.NullParams.Iterations,
		run.NullParams.Seed,
		string(run.Alternative),
		run.FloorEnabled,
		run.GeneCount,
		run.PairCount,
		summaryJSON,
	)
	if err != nil {
		return fmt.Errorf("insert batch run %s: %w", run.ID, err)
	}
	return nil
}

// Run fetches a batch run by ID.
func (r *ResultRepository) Run(ctx context.Context, id core.RunID) (*corr.BatchRun, error) {
	query := `
		SELECT id, created_at, n, residual_df, iterations, seed,
		       alternative, floor_enabled, gene_count, pair_count, null_summary
		FROM batch_runs WHERE id = $1`

	var row struct {
		ID           string    `db:"id"`
		CreatedAt    time.Time `db:"created_at"`
		N            int       `db:"n"`
		ResidualDF   int       `db:"residual_df"`
		Iterations   int       `db:"iterations"`
		Seed         int64     `db:"seed"`
		Alternative  string    `db:"alternative"`
		FloorEnabled bool      `db:"floor_enabled"`
		GeneCount    int       `db:"gene_count"`
		PairCount    int       `db:"pair_count"`
		NullSummary  []byte    `db:"null_summary"`
	}
	if err := r.db.GetContext(ctx, &row, query, id.String()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", core.ErrRunNotFound, id)
		}
		return nil, fmt.Errorf("fetch batch run %s: %w", id, err)
	}

	var summary corr.NullSummary
	if len(row.NullSummary) > 0 {
		if err := json.Unmarshal(row.NullSummary, &summary); err != nil {
			return nil, fmt.Errorf("unmarshal null summary: %w", err)
		}
	}

	return &corr.BatchRun{
		ID:        core.RunID(row.ID),
		CreatedAt: core.NewTimestamp(row.CreatedAt),
		NullParams: corr.NullParams{
			N:          row.N,
			ResidualDF: row.ResidualDF,
			Iterations: row.Iterations,
			Seed:       row.Seed,
		},
		NullSummary:  summary,
		Alternative:  corr.Alternative(row.Alternative),
		FloorEnabled: row.FloorEnabled,
		GeneCount:    row.GeneCount,
		PairCount:    row.PairCount,
	}, nil
}

// ListRuns returns the most recent batch runs.
func (r *ResultRepository) ListRuns(ctx context.Context, limit int) ([]corr.BatchRun, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id FROM batch_runs
		ORDER BY created_at DESC
		LIMIT $1`

	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, limit); err != nil {
		return nil, fmt.Errorf("list batch runs: %w", err)
	}

	runs := make([]corr.BatchRun, 0, len(ids))
	for _, id := range ids {
		run, err := r.Run(ctx, core.RunID(id))
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, nil
}

// SaveResults bulk-inserts the results of one run inside a transaction.
func (r *ResultRepository) SaveResults(ctx context.Context, runID core.RunID, results []corr.CorrelationResult) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO correlation_results (
			run_id, gene_x, gene_y, rho, p_value, adjusted_p, n, warnings
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	for _, res := range results {
		warningsJSON, err := json.Marshal(res.Warnings)
		if err != nil {
			return fmt.Errorf("marshal warnings: %w", err)
		}
		_, err = tx.ExecContext(ctx, query,
			runID.String(),
			res.GeneX.String(),
			res.GeneY.String(),
			nullableFloat(res.Rho),
			nullableFloat(res.PValue),
			nullableFloat(res.AdjustedP),
			res.N,
			warningsJSON,
		)
		if err != nil {
			return fmt.Errorf("insert result (%s, %s): %w", res.GeneX, res.GeneY, err)
		}
	}
	return tx.Commit()
}

// ResultsByRun fetches all results of a run in insertion order.
func (r *ResultRepository) ResultsByRun(ctx context.Context, runID core.RunID) ([]corr.CorrelationResult, error) {
	query := `
		SELECT gene_x, gene_y, rho, p_value, adjusted_p, n, warnings
		FROM correlation_results
		WHERE run_id = $1
		ORDER BY id`

	rows, err := r.db.QueryxContext(ctx, query, runID.String())
	if err != nil {
		return nil, fmt.Errorf("fetch results for run %s: %w", runID, err)
	}
	defer rows.Close()

	var results []corr.CorrelationResult
	for rows.Next() {
		var (
			res          corr.CorrelationResult
			rho, p, adjP sql.NullFloat64
			warningsJSON []byte
		)
		if err := rows.Scan(&res.GeneX, &res.GeneY, &rho, &p, &adjP, &res.N, &warningsJSON); err != nil {
			return nil, fmt.Errorf("scan result row: %w", err)
		}
		res.Rho = floatOrNaN(rho)
		res.PValue = floatOrNaN(p)
		res.AdjustedP = floatOrNaN(adjP)
		if err := json.Unmarshal(warningsJSON, &res.Warnings); err != nil {
			return nil, fmt.Errorf("unmarshal warnings: %w", err)
		}
		results = append(results, res)
	}
	return results, rows.Err()
}

// NaN has no SQL representation; undefined statistics are stored as NULL.
func nullableFloat(v float64) interface{} {
	if math.IsNaN(v) {
		return nil
	}
	return v
}

func floatOrNaN(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}
