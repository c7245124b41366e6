package app

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"genecorr/adapters/rng"
	"genecorr/domain/core"
	"genecorr/domain/corr"
	"genecorr/domain/expr"
	"genecorr/internal/nulldist"
)

// memNullStore is an in-memory NullStorePort recording hits and puts.
type memNullStore struct {
	dists map[corr.NullParams]*corr.NullDistribution
	gets  int
	hits  int
	puts  int
}

func newMemNullStore() *memNullStore {
	return &memNullStore{dists: make(map[corr.NullParams]*corr.NullDistribution)}
}

func (s *memNullStore) Get(_ context.Context, p corr.NullParams) (*corr.NullDistribution, bool, error) {
	s.gets++
	d, ok := s.dists[p]
	if ok {
		s.hits++
	}
	return d, ok, nil
}

func (s *memNullStore) Put(_ context.Context, d *corr.NullDistribution) error {
	s.puts++
	s.dists[d.Params()] = d
	return nil
}

func (s *memNullStore) Close() error { return nil }

func newTestService() *BatchService {
	g := nulldist.NewGenerator(rng.NewStreamFactory())
	g.SetWorkers(2)
	svc := NewBatchService(g)
	svc.SetWorkers(4)
	return svc
}

func testMatrix(t *testing.T, n int) *expr.Matrix {
	t.Helper()
	cells := make([]string, n)
	for i := range cells {
		cells[i] = "cell"
	}
	m := expr.NewMatrix(cells)

	src := rand.New(rand.NewSource(77))
	base := make([]float64, n)
	anti := make([]float64, n)
	noise := make([]float64, n)
	for i := 0; i < n; i++ {
		base[i] = float64(i) + src.Float64()
		anti[i] = float64(n-i) + src.Float64()
		noise[i] = src.NormFloat64()
	}
	require.NoError(t, m.SetColumn("geneA", base))
	require.NoError(t, m.SetColumn("geneB", anti))
	require.NoError(t, m.SetColumn("geneC", noise))
	return m
}

func TestRun_AllPairsDeterministicOrder(t *testing.T) {
	svc := newTestService()
	m := testMatrix(t, 40)

	run, results, err := svc.Run(context.Background(), m, nil, BatchConfig{
		Iterations: 1000, Seed: 4,
	})
	require.NoError(t, err)

	require.Len(t, results, 3)
	assert.Equal(t, 3, run.PairCount)
	assert.Equal(t, 3, run.GeneCount)
	assert.False(t, run.ID.String() == "")

	// Pairs are emitted in lexical gene order
	assert.Equal(t, core.GeneKey("geneA"), results[0].GeneX)
	assert.Equal(t, core.GeneKey("geneB"), results[0].GeneY)
	assert.Equal(t, core.GeneKey("geneA"), results[1].GeneX)
	assert.Equal(t, core.GeneKey("geneC"), results[1].GeneY)
	assert.Equal(t, core.GeneKey("geneB"), results[2].GeneX)
	assert.Equal(t, core.GeneKey("geneC"), results[2].GeneY)

	// geneA and geneB are strictly anti-monotone
	assert.InDelta(t, -1, results[0].Rho, 1e-9)
	assert.Less(t, results[0].PValue, 0.01)
}

func TestRun_RepeatedRunsAreIdentical(t *testing.T) {
	svc := newTestService()
	m := testMatrix(t, 40)
	cfg := BatchConfig{Iterations: 800, Seed: 9}

	_, first, err := svc.Run(context.Background(), m, nil, cfg)
	require.NoError(t, err)
	_, second, err := svc.Run(context.Background(), m, nil, cfg)
	require.NoError(t, err)

	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].GeneX, second[i].GeneX)
		assert.Equal(t, first[i].Rho, second[i].Rho)
		assert.Equal(t, first[i].PValue, second[i].PValue)
	}
}

func TestRun_NullCacheReused(t *testing.T) {
	svc := newTestService()
	store := newMemNullStore()
	svc.SetNullStore(store)
	m := testMatrix(t, 30)
	cfg := BatchConfig{Iterations: 500, Seed: 2}

	_, _, err := svc.Run(context.Background(), m, nil, cfg)
	require.NoError(t, err)
	assert.Equal(t, 1, store.puts)
	assert.Equal(t, 0, store.hits)

	_, _, err = svc.Run(context.Background(), m, nil, cfg)
	require.NoError(t, err)
	assert.Equal(t, 1, store.puts, "second run must not re-simulate")
	assert.Equal(t, 1, store.hits)
}

func TestRun_ExplicitPairs(t *testing.T) {
	svc := newTestService()
	m := testMatrix(t, 30)

	_, results, err := svc.Run(context.Background(), m, nil, BatchConfig{
		Iterations: 500, Seed: 2,
		Pairs: [][2]core.GeneKey{{"geneC", "geneA"}},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, core.GeneKey("geneC"), results[0].GeneX)
}

func TestRun_SelfPairRejected(t *testing.T) {
	svc := newTestService()
	m := testMatrix(t, 30)

	_, _, err := svc.Run(context.Background(), m, nil, BatchConfig{
		Iterations: 500, Seed: 2,
		Pairs: [][2]core.GeneKey{{"geneA", "geneA"}},
	})
	assert.True(t, core.IsConfigurationError(err))
}

func TestRun_UnknownGene(t *testing.T) {
	svc := newTestService()
	m := testMatrix(t, 30)

	_, _, err := svc.Run(context.Background(), m, nil, BatchConfig{
		Iterations: 500, Seed: 2,
		Pairs: [][2]core.GeneKey{{"geneA", "missing"}},
	})
	assert.True(t, core.IsNotFoundError(err))
}

func TestBenjaminiHochberg(t *testing.T) {
	results := []corr.CorrelationResult{
		{PValue: 0.01},
		{PValue: 0.04},
		{PValue: 0.03},
		{PValue: 0.5},
		{PValue: math.NaN()},
	}
	BenjaminiHochberg(results)

	// m = 4 valid tests; adjusted = p * m / rank with monotonicity
	assert.InDelta(t, 0.04, results[0].AdjustedP, 1e-12)
	assert.InDelta(t, 0.053333, results[1].AdjustedP, 1e-4)
	assert.InDelta(t, 0.053333, results[2].AdjustedP, 1e-4)
	assert.InDelta(t, 0.5, results[3].AdjustedP, 1e-12)
	assert.True(t, math.IsNaN(results[4].AdjustedP))
}
