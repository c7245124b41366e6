package nullcache

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"genecorr/domain/corr"
)

func openTestStore(t *testing.T) *BoltStore {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "null.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestPutGetRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	params := corr.NullParams{N: 50, ResidualDF: 48, Iterations: 100, Seed: 7}
	values := []float64{-0.3, 0.1, 0.0, 0.25, -0.05}
	dist := corr.NewNullDistribution(params, values)

	require.NoError(t, store.Put(ctx, dist))

	got, hit, err := store.Get(ctx, params)
	require.NoError(t, err)
	require.True(t, hit)
	assert.Equal(t, params, got.Params())
	assert.Equal(t, dist.Values(), got.Values())
}

func TestGet_MissIsNotAnError(t *testing.T) {
	store := openTestStore(t)

	_, hit, err := store.Get(context.Background(), corr.NullParams{N: 10, ResidualDF: 10, Iterations: 5, Seed: 1})
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestPut_DistinctParameterizationsCoexist(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	a := corr.NewNullDistribution(corr.NullParams{N: 10, ResidualDF: 10, Iterations: 3, Seed: 1}, []float64{0.1, 0.2, 0.3})
	b := corr.NewNullDistribution(corr.NullParams{N: 10, ResidualDF: 8, Iterations: 3, Seed: 1}, []float64{-0.1, -0.2, -0.3})

	require.NoError(t, store.Put(ctx, a))
	require.NoError(t, store.Put(ctx, b))

	gotA, hit, err := store.Get(ctx, a.Params())
	require.NoError(t, err)
	require.True(t, hit)
	gotB, hit, err := store.Get(ctx, b.Params())
	require.NoError(t, err)
	require.True(t, hit)

	assert.NotEqual(t, gotA.Values(), gotB.Values())
}
