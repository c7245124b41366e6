package corr

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"genecorr/domain/core"
)

func symmetricNull() *NullDistribution {
	// 9 values symmetric around zero
	values := []float64{-0.8, -0.6, -0.4, -0.2, 0, 0.2, 0.4, 0.6, 0.8}
	params := NullParams{N: 10, ResidualDF: 10, Iterations: len(values), Seed: 1}
	return NewNullDistribution(params, values)
}

func TestPValue_TwoSidedCountsBothTails(t *testing.T) {
	d := symmetricNull()

	// |observed| = 0.5: four values with |v| >= 0.5 -> (1+4)/(1+9)
	p := d.PValue(0.5, TwoSided)
	assert.InDelta(t, 0.5, p, 1e-12)
	assert.Equal(t, p, d.PValue(-0.5, TwoSided))
}

func TestPValue_OneSided(t *testing.T) {
	d := symmetricNull()

	// Two values >= 0.5 -> (1+2)/(1+9)
	assert.InDelta(t, 0.3, d.PValue(0.5, Greater), 1e-12)
	// Seven values <= 0.5 -> (1+7)/(1+9)
	assert.InDelta(t, 0.8, d.PValue(0.5, Less), 1e-12)
}

func TestPValue_NeverZero(t *testing.T) {
	d := symmetricNull()

	// More extreme than anything simulated still gets the +1 correction
	p := d.PValue(0.99, Greater)
	assert.InDelta(t, 0.1, p, 1e-12)
	assert.Greater(t, p, 0.0)
}

func TestPValue_NaNObserved(t *testing.T) {
	d := symmetricNull()
	assert.True(t, math.IsNaN(d.PValue(math.NaN(), TwoSided)))
}

func TestValues_ReturnsSortedCopy(t *testing.T) {
	d := NewNullDistribution(NullParams{N: 5, ResidualDF: 5, Iterations: 3, Seed: 1},
		[]float64{0.3, -0.1, 0.2})

	values := d.Values()
	assert.Equal(t, []float64{-0.1, 0.2, 0.3}, values)

	values[0] = 99
	assert.Equal(t, []float64{-0.1, 0.2, 0.3}, d.Values())
}

func TestMatches(t *testing.T) {
	d := symmetricNull()

	require.NoError(t, d.Matches(10, 10))

	err := d.Matches(10, 8)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrNullMismatch)
}

func TestSummary(t *testing.T) {
	d := symmetricNull()
	s := d.Summary()

	assert.InDelta(t, 0.0, s.Mean, 1e-12)
	assert.Equal(t, -0.8, s.Min)
	assert.Equal(t, 0.8, s.Max)
	assert.Greater(t, s.StdDev, 0.0)
	assert.GreaterOrEqual(t, s.Max, s.Percentile99)
	assert.GreaterOrEqual(t, s.Percentile99, s.Percentile95)
}

func TestConditioned(t *testing.T) {
	assert.False(t, NullParams{N: 10, ResidualDF: 10}.Conditioned())
	assert.True(t, NullParams{N: 10, ResidualDF: 7}.Conditioned())
}
