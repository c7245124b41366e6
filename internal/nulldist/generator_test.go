package nulldist

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"genecorr/adapters/rng"
	"genecorr/domain/core"
	"genecorr/domain/corr"
	"genecorr/internal/design"
	"genecorr/internal/rank"
)

func newTestGenerator() *Generator {
	g := NewGenerator(rng.NewStreamFactory())
	g.SetWorkers(4)
	return g
}

func groupingDesign(t *testing.T, n, groups int) *design.Design {
	t.Helper()
	labels := make([]string, n)
	for i := range labels {
		labels[i] = string(rune('a' + i%groups))
	}
	d, err := design.NewGrouping(labels)
	require.NoError(t, err)
	return d
}

func TestGenerate_Deterministic(t *testing.T) {
	g := newTestGenerator()
	cfg := Config{N: 30, Iterations: 2000, Seed: 99}

	first, err := g.Generate(context.Background(), cfg)
	require.NoError(t, err)
	second, err := g.Generate(context.Background(), cfg)
	require.NoError(t, err)

	// Chunked seeding makes the simulation independent of scheduling:
	// identical configs produce bit-identical distributions.
	assert.Equal(t, first.Values(), second.Values())
	assert.Equal(t, first.Params(), second.Params())
}

func TestGenerate_UnconditionedShape(t *testing.T) {
	g := newTestGenerator()
	dist, err := g.Generate(context.Background(), Config{N: 50, Iterations: 5000, Seed: 1})
	require.NoError(t, err)

	params := dist.Params()
	assert.Equal(t, 50, params.N)
	assert.Equal(t, 50, params.ResidualDF)
	assert.False(t, params.Conditioned())

	vals := dist.Values()
	mean := stat.Mean(vals, nil)
	variance := stat.Variance(vals, nil)

	assert.InDelta(t, 0, mean, 0.01)
	// Under independence Var(rho) is about 1/(n-1)
	assert.InDelta(t, 1.0/49.0, variance, 0.005)
}

func TestGenerate_ConditionedNullIsWider(t *testing.T) {
	g := newTestGenerator()
	n := 20
	d := groupingDesign(t, n, 10) // residual d.f. = 10

	plain, err := g.Generate(context.Background(), Config{N: n, Iterations: 4000, Seed: 5})
	require.NoError(t, err)
	conditioned, err := g.Generate(context.Background(), Config{N: n, Iterations: 4000, Seed: 5, Design: d})
	require.NoError(t, err)

	require.Equal(t, 10, conditioned.Params().ResidualDF)
	require.True(t, conditioned.Params().Conditioned())

	varPlain := stat.Variance(plain.Values(), nil)
	varCond := stat.Variance(conditioned.Values(), nil)

	// Halving the degrees of freedom must visibly widen the null.
	assert.Greater(t, varCond, varPlain*1.3,
		"conditioned null variance %v not meaningfully above unconditioned %v", varCond, varPlain)
}

// Using the unconditioned null against design-adjusted data loses type-I
// error control: the observed rejection rate at alpha=0.05 must sit
// significantly above 0.05, while the matched null keeps it near nominal.
func TestGenerate_WrongNullIsAntiConservative(t *testing.T) {
	g := newTestGenerator()
	n := 20
	d := groupingDesign(t, n, 10)

	wrongNull, err := g.Generate(context.Background(), Config{N: n, Iterations: 2000, Seed: 11})
	require.NoError(t, err)
	matchedNull, err := g.Generate(context.Background(), Config{N: n, Iterations: 2000, Seed: 11, Design: d})
	require.NoError(t, err)

	const trials = 300
	src := rand.New(rand.NewSource(123))
	rejectWrong, rejectMatched := 0, 0

	for trial := 0; trial < trials; trial++ {
		x := make([]float64, n)
		y := make([]float64, n)
		for i := 0; i < n; i++ {
			x[i] = src.NormFloat64()
			y[i] = src.NormFloat64()
		}

		rx, rerr := d.Residuals(x)
		require.NoError(t, rerr)
		ry, rerr := d.Residuals(y)
		require.NoError(t, rerr)

		rho, rerr := rank.Rho(rank.Transform(rx), rank.Transform(ry))
		require.NoError(t, rerr)

		if wrongNull.PValue(rho, corr.TwoSided) < 0.05 {
			rejectWrong++
		}
		if matchedNull.PValue(rho, corr.TwoSided) < 0.05 {
			rejectMatched++
		}
	}

	rateWrong := float64(rejectWrong) / trials
	rateMatched := float64(rejectMatched) / trials

	// One-sided binomial z-test against p0 = 0.05 at the 0.001 level.
	p0 := 0.05
	z := (rateWrong - p0) / math.Sqrt(p0*(1-p0)/trials)
	zCrit := distuv.Normal{Mu: 0, Sigma: 1}.Quantile(0.999)
	assert.Greater(t, z, zCrit,
		"wrong-null rejection rate %v not significantly above nominal 0.05", rateWrong)

	assert.Less(t, rateMatched, 0.10,
		"matched-null rejection rate %v drifted from nominal", rateMatched)
	assert.Greater(t, rateMatched, 0.005)
}

func TestGenerate_DesignRowMismatch(t *testing.T) {
	g := newTestGenerator()
	d := groupingDesign(t, 20, 4)

	_, err := g.Generate(context.Background(), Config{N: 30, Iterations: 100, Seed: 1, Design: d})
	assert.ErrorIs(t, err, core.ErrDimensionMismatch)
}

func TestGenerate_TooSmallSample(t *testing.T) {
	g := newTestGenerator()
	_, err := g.Generate(context.Background(), Config{N: 1, Iterations: 100, Seed: 1})
	assert.ErrorIs(t, err, core.ErrInsufficientData)
}

func TestGenerate_DefaultIterations(t *testing.T) {
	g := newTestGenerator()
	dist, err := g.Generate(context.Background(), Config{N: 10, Seed: 1})
	require.NoError(t, err)
	assert.Equal(t, DefaultIterations, dist.Len())
}
