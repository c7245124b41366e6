package corr

import (
	"fmt"
	"math"
	"sort"

	"github.com/montanaflynn/stats"

	"genecorr/domain/core"
)

// NullParams identifies the configuration a null distribution was simulated
// under. Two distributions with equal params are interchangeable.
//
// ResidualDF equals N when no design matrix was involved, and
// N - rank(design) otherwise.
type NullParams struct {
	N          int   `json:"n"`
	ResidualDF int   `json:"residual_df"`
	Iterations int   `json:"iterations"`
	Seed       int64 `json:"seed"`
}

// Conditioned reports whether the null was simulated against a design matrix.
func (p NullParams) Conditioned() bool {
	return p.ResidualDF != p.N
}

func (p NullParams) String() string {
	return fmt.Sprintf("n=%d df=%d iters=%d seed=%d", p.N, p.ResidualDF, p.Iterations, p.Seed)
}

// NullDistribution is a reference sample of the tie-corrected statistic under
// independence. Immutable once built; shared read-only across all pairwise
// tests of a batch.
type NullDistribution struct {
	params NullParams
	sorted []float64
}

// NewNullDistribution builds a distribution from simulated values. The input
// slice is copied and sorted; the caller keeps ownership of its slice.
func NewNullDistribution(params NullParams, values []float64) *NullDistribution {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	return &NullDistribution{params: params, sorted: sorted}
}

// Params returns the simulation configuration.
func (d *NullDistribution) Params() NullParams { return d.params }

// Len returns the number of simulated values.
func (d *NullDistribution) Len() int { return len(d.sorted) }

// Values returns a copy of the sorted simulated values.
func (d *NullDistribution) Values() []float64 {
	out := make([]float64, len(d.sorted))
	copy(out, d.sorted)
	return out
}

// ProportionAtLeast returns the fraction of null values >= x.
func (d *NullDistribution) ProportionAtLeast(x float64) float64 {
	idx := sort.Search(len(d.sorted), func(i int) bool { return d.sorted[i] >= x })
	return float64(len(d.sorted)-idx) / float64(len(d.sorted))
}

// ProportionAtMost returns the fraction of null values <= x.
func (d *NullDistribution) ProportionAtMost(x float64) float64 {
	idx := sort.Search(len(d.sorted), func(i int) bool { return d.sorted[i] > x })
	return float64(idx) / float64(len(d.sorted))
}

// PValue computes the empirical p-value for an observed statistic. Counts use
// the (1+b)/(1+k) convention so a finite simulation never reports exactly
// zero.
func (d *NullDistribution) PValue(observed float64, alt Alternative) float64 {
	if math.IsNaN(observed) {
		return math.NaN()
	}
	k := len(d.sorted)
	var extreme int
	switch alt {
	case Greater:
		extreme = d.countAtLeast(observed)
	case Less:
		extreme = d.countAtMost(observed)
	default:
		abs := math.Abs(observed)
		extreme = d.countAtLeast(abs) + d.countAtMost(-abs)
	}
	p := float64(1+extreme) / float64(1+k)
	if p > 1 {
		p = 1
	}
	return p
}

func (d *NullDistribution) countAtLeast(x float64) int {
	idx := sort.Search(len(d.sorted), func(i int) bool { return d.sorted[i] >= x })
	return len(d.sorted) - idx
}

func (d *NullDistribution) countAtMost(x float64) int {
	return sort.Search(len(d.sorted), func(i int) bool { return d.sorted[i] > x })
}

// NullSummary describes the shape of a null distribution, for reports and
// stored run metadata.
type NullSummary struct {
	Mean         float64 `json:"mean"`
	StdDev       float64 `json:"std_dev"`
	Min          float64 `json:"min"`
	Max          float64 `json:"max"`
	Percentile95 float64 `json:"p95"`
	Percentile99 float64 `json:"p99"`
}

// Summary computes descriptive statistics of the simulated values.
func (d *NullDistribution) Summary() NullSummary {
	if len(d.sorted) == 0 {
		return NullSummary{}
	}
	data := stats.Float64Data(d.sorted)
	mean, _ := stats.Mean(data)
	sd, _ := stats.StandardDeviationSample(data)
	min, _ := stats.Min(data)
	max, _ := stats.Max(data)
	p95, _ := stats.Percentile(data, 95)
	p99, _ := stats.Percentile(data, 99)
	return NullSummary{
		Mean:         mean,
		StdDev:       sd,
		Min:          min,
		Max:          max,
		Percentile95: p95,
		Percentile99: p99,
	}
}

// Matches verifies that the distribution was simulated for the given sample
// size and residual degrees of freedom.
func (d *NullDistribution) Matches(n, residualDF int) error {
	if d.params.N != n || d.params.ResidualDF != residualDF {
		return fmt.Errorf("%w: null has (n=%d, df=%d), data requires (n=%d, df=%d)",
			core.ErrNullMismatch, d.params.N, d.params.ResidualDF, n, residualDF)
	}
	return nil
}
