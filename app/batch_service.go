package app

import (
	"context"
	"fmt"
	"log"
	"math"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"genecorr/domain/core"
	"genecorr/domain/corr"
	"genecorr/domain/expr"
	"genecorr/internal/adjust"
	"genecorr/internal/design"
	"genecorr/internal/nulldist"
	"genecorr/ports"
)

// BatchConfig configures one pairwise sweep.
type BatchConfig struct {
	Iterations  int               // null simulation iterations, 0 = default
	Seed        int64             // null simulation seed
	Floor       bool              // lower-bound floor for zero counts
	Alternative corr.Alternative  // p-value sidedness, "" = two-sided
	AdjustP     bool              // Benjamini-Hochberg adjusted p-values
	Pairs       [][2]core.GeneKey // explicit pairs; empty = all pairs
}

// BatchService runs pairwise correlation sweeps over an expression matrix.
// One null distribution is generated (or fetched from the cache) per
// configuration and shared read-only across all pairs.
type BatchService struct {
	generator *nulldist.Generator
	nullStore ports.NullStorePort
	results   ports.ResultRepositoryPort
	workers   int
}

// NewBatchService creates a batch service around a null-distribution
// generator.
func NewBatchService(generator *nulldist.Generator) *BatchService {
	return &BatchService{
		generator: generator,
		workers:   runtime.NumCPU(),
	}
}

// SetNullStore attaches an optional cache for generated null distributions.
func (s *BatchService) SetNullStore(store ports.NullStorePort) { s.nullStore = store }

// SetResultRepository attaches optional persistence for runs and results.
func (s *BatchService) SetResultRepository(repo ports.ResultRepositoryPort) { s.results = repo }

// SetWorkers bounds pairwise parallelism (minimum 1).
func (s *BatchService) SetWorkers(n int) {
	if n < 1 {
		n = 1
	}
	s.workers = n
}

// Run executes the sweep. The design may be nil. Configuration errors abort
// the batch before any correlation results are produced.
func (s *BatchService) Run(ctx context.Context, m *expr.Matrix, d *design.Design, cfg BatchConfig) (*corr.BatchRun, []corr.CorrelationResult, error) {
	n := m.CellCount()
	if n < 2 {
		return nil, nil, fmt.Errorf("%w: matrix has %d cells", core.ErrInsufficientData, n)
	}
	if m.GeneCount() < 2 {
		return nil, nil, fmt.Errorf("%w: matrix has %d genes, need at least 2", core.ErrInsufficientData, m.GeneCount())
	}
	if cfg.Alternative == "" {
		cfg.Alternative = corr.TwoSided
	}
	if !cfg.Alternative.Valid() {
		return nil, nil, core.NewConfigurationError("alternative", string(cfg.Alternative))
	}
	if d != nil && d.Rows() != n {
		return nil, nil, core.NewDimensionError("design", d.Rows(), n)
	}

	null, err := s.obtainNull(ctx, n, d, cfg)
	if err != nil {
		return nil, nil, err
	}

	pairs, err := s.resolvePairs(m, cfg)
	if err != nil {
		return nil, nil, err
	}

	opts := adjust.Options{Design: d, Floor: cfg.Floor, Alternative: cfg.Alternative}
	results := make([]corr.CorrelationResult, len(pairs))

	sem := semaphore.NewWeighted(int64(s.workers))
	grp, gctx := errgroup.WithContext(ctx)

	for idx, pair := range pairs {
		idx, pair := idx, pair
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		grp.Go(func() error {
			defer sem.Release(1)

			x, ok := m.Sample(pair[0])
			if !ok {
				return core.NewNotFoundError("gene", pair[0].String())
			}
			y, ok := m.Sample(pair[1])
			if !ok {
				return core.NewNotFoundError("gene", pair[1].String())
			}

			res, err := adjust.Correlate(x, y, null, opts)
			if err != nil {
				return fmt.Errorf("pair (%s, %s): %w", pair[0], pair[1], err)
			}
			results[idx] = res
			return nil
		})
	}

	if err := grp.Wait(); err != nil {
		return nil, nil, err
	}

	if cfg.AdjustP {
		BenjaminiHochberg(results)
	}

	s.logWarnings(results)

	run := &corr.BatchRun{
		ID:           core.RunID(core.NewID()),
		CreatedAt:    core.Now(),
		NullParams:   null.Params(),
		NullSummary:  null.Summary(),
		Alternative:  cfg.Alternative,
		FloorEnabled: cfg.Floor,
		GeneCount:    m.GeneCount(),
		PairCount:    len(results),
	}

	if s.results != nil {
		if err := s.results.SaveRun(ctx, run); err != nil {
			return nil, nil, fmt.Errorf("save run: %w", err)
		}
		if err := s.results.SaveResults(ctx, run.ID, results); err != nil {
			return nil, nil, fmt.Errorf("save results: %w", err)
		}
	}

	return run, results, nil
}

// obtainNull fetches a matching null distribution from the cache or
// simulates a fresh one.
func (s *BatchService) obtainNull(ctx context.Context, n int, d *design.Design, cfg BatchConfig) (*corr.NullDistribution, error) {
	iterations := cfg.Iterations
	if iterations <= 0 {
		iterations = nulldist.DefaultIterations
	}
	residualDF := n
	if d != nil {
		residualDF = d.ResidualDF()
	}
	params := corr.NullParams{N: n, ResidualDF: residualDF, Iterations: iterations, Seed: cfg.Seed}

	if s.nullStore != nil {
		cached, hit, err := s.nullStore.Get(ctx, params)
		if err != nil {
			log.Printf("[BatchService] null cache lookup failed: %v", err)
		} else if hit {
			log.Printf("[BatchService] reusing cached null distribution (%s)", params)
			return cached, nil
		}
	}

	null, err := s.generator.Generate(ctx, nulldist.Config{
		N: n, Iterations: iterations, Seed: cfg.Seed, Design: d,
	})
	if err != nil {
		return nil, fmt.Errorf("null simulation: %w", err)
	}

	if s.nullStore != nil {
		if err := s.nullStore.Put(ctx, null); err != nil {
			log.Printf("[BatchService] null cache store failed: %v", err)
		}
	}
	return null, nil
}

// resolvePairs returns explicit pairs or all gene pairs in deterministic
// order.
func (s *BatchService) resolvePairs(m *expr.Matrix, cfg BatchConfig) ([][2]core.GeneKey, error) {
	if len(cfg.Pairs) > 0 {
		for _, p := range cfg.Pairs {
			if p[0] == p[1] {
				return nil, core.NewConfigurationError("pairs", fmt.Sprintf("gene %s paired with itself", p[0]))
			}
		}
		return cfg.Pairs, nil
	}

	genes := m.SortedGenes()
	pairs := make([][2]core.GeneKey, 0, len(genes)*(len(genes)-1)/2)
	for i := 0; i < len(genes); i++ {
		for j := i + 1; j < len(genes); j++ {
			pairs = append(pairs, [2]core.GeneKey{genes[i], genes[j]})
		}
	}
	return pairs, nil
}

func (s *BatchService) logWarnings(results []corr.CorrelationResult) {
	censored := 0
	for _, r := range results {
		if r.HasWarning(corr.WarningCensoredOrdering) {
			censored++
		}
	}
	if censored > 0 {
		log.Printf("[BatchService] WARNING: %d pair(s) ranked censored observations by raw residuals; "+
			"spurious near-perfect correlations are likely - enable the lower-bound floor", censored)
	}
}

// BenjaminiHochberg fills AdjustedP with FDR-adjusted p-values in place.
// Undefined results (NaN p-values) are left out of the correction.
func BenjaminiHochberg(results []corr.CorrelationResult) {
	idx := make([]int, 0, len(results))
	for i := range results {
		if math.IsNaN(results[i].PValue) {
			results[i].AdjustedP = math.NaN()
			continue
		}
		idx = append(idx, i)
	}
	m := len(idx)
	if m == 0 {
		return
	}

	sort.Slice(idx, func(a, b int) bool {
		return results[idx[a]].PValue < results[idx[b]].PValue
	})

	adjusted := make([]float64, m)
	for k, i := range idx {
		adjusted[k] = results[i].PValue * float64(m) / float64(k+1)
	}
	// Enforce monotonicity from the largest p downward
	for k := m - 2; k >= 0; k-- {
		if adjusted[k] > adjusted[k+1] {
			adjusted[k] = adjusted[k+1]
		}
	}
	for k, i := range idx {
		if adjusted[k] > 1 {
			adjusted[k] = 1
		}
		results[i].AdjustedP = adjusted[k]
	}
}
