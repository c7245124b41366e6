package ports

import (
	"context"

	"genecorr/domain/core"
	"genecorr/domain/corr"
)

// ResultRepositoryPort persists batch runs and their pairwise correlation
// results.
type ResultRepositoryPort interface {
	SaveRun(ctx context.Context, run *corr.BatchRun) error
	Run(ctx context.Context, id core.RunID) (*corr.BatchRun, error)
	ListRuns(ctx context.Context, limit int) ([]corr.BatchRun, error)
	SaveResults(ctx context.Context, runID core.RunID, results []corr.CorrelationResult) error
	ResultsByRun(ctx context.Context, runID core.RunID) ([]corr.CorrelationResult, error)
}
