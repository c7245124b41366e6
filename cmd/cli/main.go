package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"genecorr/adapters/excel"
	"genecorr/adapters/matrix"
	"genecorr/adapters/nullcache"
	"genecorr/adapters/report"
	"genecorr/adapters/rng"
	"genecorr/app"
	"genecorr/domain/core"
	"genecorr/domain/corr"
	"genecorr/domain/expr"
	"genecorr/internal/design"
	"genecorr/internal/nulldist"
	"genecorr/ports"
)

func main() {
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "genecorr-cli",
		Short: "Tie-corrected rank correlation sweeps for expression matrices",
	}

	rootCmd.AddCommand(
		newCorrelateCmd(),
		newNullCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newCorrelateCmd() *cobra.Command {
	var (
		matrixPath  string
		designPath  string
		pairs       []string
		iterations  int
		seed        int64
		floor       bool
		alternative string
		adjustP     bool
		cachePath   string
		reportPath  string
		topPairs    int
	)

	cmd := &cobra.Command{
		Use:   "correlate",
		Short: "Run a pairwise correlation sweep over an expression matrix",
		Long: `Run tie-corrected rank correlations for gene pairs against a simulated
null distribution.

Example: genecorr-cli correlate --matrix counts.csv --design batches.csv --floor --seed 7`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCorrelate(cmd.Context(), correlateOptions{
				matrixPath:  matrixPath,
				designPath:  designPath,
				pairs:       pairs,
				iterations:  iterations,
				seed:        seed,
				floor:       floor,
				alternative: alternative,
				adjustP:     adjustP,
				cachePath:   cachePath,
				reportPath:  reportPath,
				topPairs:    topPairs,
			})
		},
	}

	cmd.Flags().StringVar(&matrixPath, "matrix", "", "Expression matrix file (.csv or .xlsx)")
	cmd.Flags().StringVar(&designPath, "design", "", "Nuisance design matrix CSV (optional)")
	cmd.Flags().StringSliceVar(&pairs, "pair", nil, "Gene pair as geneX:geneY (repeatable; default all pairs)")
	cmd.Flags().IntVar(&iterations, "iterations", 0, "Null simulation iterations (0 = default)")
	cmd.Flags().Int64Var(&seed, "seed", 42, "Random seed for deterministic simulation")
	cmd.Flags().BoolVar(&floor, "floor", false, "Apply the lower-bound floor to censored zero counts")
	cmd.Flags().StringVar(&alternative, "alternative", "two_sided", "Alternative: two_sided, greater or less")
	cmd.Flags().BoolVar(&adjustP, "adjust-p", false, "Add Benjamini-Hochberg adjusted p-values")
	cmd.Flags().StringVar(&cachePath, "null-cache", "", "Bolt file caching null distributions (optional)")
	cmd.Flags().StringVar(&reportPath, "report", "", "Write a markdown report to this path")
	cmd.Flags().IntVar(&topPairs, "top", 25, "Pairs shown in the report")
	cmd.MarkFlagRequired("matrix")

	return cmd
}

type correlateOptions struct {
	matrixPath  string
	designPath  string
	pairs       []string
	iterations  int
	seed        int64
	floor       bool
	alternative string
	adjustP     bool
	cachePath   string
	reportPath  string
	topPairs    int
}

func runCorrelate(ctx context.Context, opts correlateOptions) error {
	m, err := readMatrix(ctx, opts.matrixPath)
	if err != nil {
		return err
	}

	var d *design.Design
	if opts.designPath != "" {
		rows, err := matrix.ReadDesign(opts.designPath)
		if err != nil {
			return fmt.Errorf("read design: %w", err)
		}
		if d, err = design.New(rows); err != nil {
			return fmt.Errorf("build design: %w", err)
		}
	}

	cfg := app.BatchConfig{
		Iterations:  opts.iterations,
		Seed:        opts.seed,
		Floor:       opts.floor,
		Alternative: corr.Alternative(opts.alternative),
		AdjustP:     opts.adjustP,
	}
	if cfg.Pairs, err = parsePairs(opts.pairs); err != nil {
		return err
	}

	service := app.NewBatchService(nulldist.NewGenerator(rng.NewStreamFactory()))
	if opts.cachePath != "" {
		store, err := nullcache.Open(opts.cachePath)
		if err != nil {
			return fmt.Errorf("open null cache: %w", err)
		}
		defer store.Close()
		service.SetNullStore(store)
	}

	run, results, err := service.Run(ctx, m, d, cfg)
	if err != nil {
		return err
	}

	if opts.reportPath != "" {
		md := report.NewBuilder(opts.topPairs).Markdown(run, run.NullSummary, results)
		if err := os.WriteFile(opts.reportPath, []byte(md), 0o644); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		fmt.Printf("Report written to %s\n", opts.reportPath)
		return nil
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		Run     *corr.BatchRun           `json:"run"`
		Results []corr.CorrelationResult `json:"results"`
	}{run, results})
}

func newNullCmd() *cobra.Command {
	var (
		n          int
		residual   string
		iterations int
		seed       int64
		cachePath  string
	)

	cmd := &cobra.Command{
		Use:   "null",
		Short: "Pre-generate a null distribution into the cache",
		Long: `Simulate a null distribution for the given sample size and store it so
later sweeps can reuse it.

Example: genecorr-cli null --n 500 --iterations 20000 --seed 7 --null-cache nulls.db`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNull(cmd.Context(), n, residual, iterations, seed, cachePath)
		},
	}

	cmd.Flags().IntVar(&n, "n", 0, "Number of cells the null is simulated for")
	cmd.Flags().StringVar(&residual, "design", "", "Nuisance design matrix CSV (optional)")
	cmd.Flags().IntVar(&iterations, "iterations", 0, "Simulation iterations (0 = default)")
	cmd.Flags().Int64Var(&seed, "seed", 42, "Random seed")
	cmd.Flags().StringVar(&cachePath, "null-cache", "", "Bolt file to store the distribution in")
	cmd.MarkFlagRequired("n")
	cmd.MarkFlagRequired("null-cache")

	return cmd
}

func runNull(ctx context.Context, n int, designPath string, iterations int, seed int64, cachePath string) error {
	var (
		d   *design.Design
		err error
	)
	if designPath != "" {
		rows, err := matrix.ReadDesign(designPath)
		if err != nil {
			return fmt.Errorf("read design: %w", err)
		}
		if d, err = design.New(rows); err != nil {
			return fmt.Errorf("build design: %w", err)
		}
	}

	generator := nulldist.NewGenerator(rng.NewStreamFactory())
	null, err := generator.Generate(ctx, nulldist.Config{
		N: n, Iterations: iterations, Seed: seed, Design: d,
	})
	if err != nil {
		return fmt.Errorf("null simulation: %w", err)
	}

	store, err := nullcache.Open(cachePath)
	if err != nil {
		return fmt.Errorf("open null cache: %w", err)
	}
	defer store.Close()

	if err := store.Put(ctx, null); err != nil {
		return fmt.Errorf("store null distribution: %w", err)
	}

	summary := null.Summary()
	fmt.Printf("Stored null distribution (%s): mean=%.5f sd=%.5f\n",
		null.Params(), summary.Mean, summary.StdDev)
	return nil
}

func readMatrix(ctx context.Context, path string) (*expr.Matrix, error) {
	var reader ports.MatrixReaderPort
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		reader = matrix.NewCSVReader()
	case ".xlsx":
		reader = excel.NewReader()
	default:
		return nil, fmt.Errorf("unsupported matrix format %q (want .csv or .xlsx)", filepath.Ext(path))
	}
	m, err := reader.ReadMatrix(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("read matrix: %w", err)
	}
	return m, nil
}

func parsePairs(raw []string) ([][2]core.GeneKey, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	pairs := make([][2]core.GeneKey, 0, len(raw))
	for _, p := range raw {
		parts := strings.SplitN(p, ":", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("invalid pair %q (want geneX:geneY)", p)
		}
		pairs = append(pairs, [2]core.GeneKey{core.GeneKey(parts[0]), core.GeneKey(parts[1])})
	}
	return pairs, nil
}
