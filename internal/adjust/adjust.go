// Package adjust computes design-adjusted rank correlations with a
// lower-bound floor for censored observations.
//
// Each sample is regressed on the nuisance design; residuals of observations
// at the lower bound (zero counts) are replaced by a sentinel strictly below
// every non-floored residual. A value already at the theoretical floor cannot
// be corrected above or below it, and the sentinel preserves the mutual tie
// among censored observations instead of letting covariate-driven fitted
// values impose an ordering on them.
package adjust

import (
	"math"

	"genecorr/domain/core"
	"genecorr/domain/corr"
	"genecorr/domain/expr"
	"genecorr/internal/design"
	"genecorr/internal/rank"
)

// Options configures one pairwise computation. Design may be nil, in which
// case samples are ranked directly with no nuisance correction.
type Options struct {
	Design      *design.Design
	Floor       bool
	Alternative corr.Alternative
}

// Correlate computes the tie-corrected statistic for a pair of samples
// against a matched null distribution.
//
// A zero-variance sample yields a result with NaN statistic and p-value plus
// WarningUndefined; that is a computed outcome, not an error. Configuration
// problems (dimension or null mismatches) are errors and produce no result.
func Correlate(x, y expr.Sample, null *corr.NullDistribution, opts Options) (corr.CorrelationResult, error) {
	if err := x.Validate(); err != nil {
		return corr.CorrelationResult{}, err
	}
	if err := y.Validate(); err != nil {
		return corr.CorrelationResult{}, err
	}
	n := x.Len()
	if y.Len() != n {
		return corr.CorrelationResult{}, core.NewDimensionError("sample pair", y.Len(), n)
	}

	alt := opts.Alternative
	if alt == "" {
		alt = corr.TwoSided
	}
	if !alt.Valid() {
		return corr.CorrelationResult{}, core.NewConfigurationError("alternative", string(alt))
	}

	residualDF := n
	if opts.Design != nil {
		if opts.Design.Rows() != n {
			return corr.CorrelationResult{}, core.NewDimensionError("design", opts.Design.Rows(), n)
		}
		residualDF = opts.Design.ResidualDF()
	}
	if err := null.Matches(n, residualDF); err != nil {
		return corr.CorrelationResult{}, err
	}

	result := corr.CorrelationResult{
		GeneX:     x.Gene,
		GeneY:     y.Gene,
		N:         n,
		AdjustedP: math.NaN(),
	}

	adjX, warnX, err := adjustedValues(x, opts)
	if err != nil {
		return corr.CorrelationResult{}, err
	}
	adjY, warnY, err := adjustedValues(y, opts)
	if err != nil {
		return corr.CorrelationResult{}, err
	}
	result.Warnings = mergeWarnings(warnX, warnY)

	rho, err := rank.Rho(rank.Transform(adjX), rank.Transform(adjY))
	if core.IsUndefinedStatistic(err) {
		result.Rho = math.NaN()
		result.PValue = math.NaN()
		result.Warnings = append(result.Warnings, corr.WarningUndefined)
		return result, nil
	}
	if err != nil {
		return corr.CorrelationResult{}, err
	}

	result.Rho = rho
	result.PValue = null.PValue(rho, alt)
	return result, nil
}

// adjustedValues produces the values to be ranked for one sample: residuals
// when a design is present, with the floor applied to censored observations.
func adjustedValues(s expr.Sample, opts Options) ([]float64, []corr.Warning, error) {
	values := s.Values
	if opts.Design != nil {
		resid, err := opts.Design.Residuals(s.Values)
		if err != nil {
			return nil, nil, err
		}
		values = resid
	}

	bound := s.BoundCount()
	var warnings []corr.Warning

	if !opts.Floor {
		if bound > 0 {
			// Censored residuals will be ranked by covariate-driven fitted
			// values; this can manufacture spurious perfect correlations.
			warnings = append(warnings, corr.WarningCensoredOrdering)
		}
		return values, warnings, nil
	}

	if bound == 0 {
		warnings = append(warnings, corr.WarningFloorNoOp)
		return values, warnings, nil
	}

	// Sentinel strictly below the smallest non-floored residual keeps all
	// censored observations mutually tied at the bottom of the ranking.
	minOpen := math.Inf(1)
	for i, v := range values {
		if !s.AtBound[i] && v < minOpen {
			minOpen = v
		}
	}
	sentinel := 0.0
	if !math.IsInf(minOpen, 1) {
		sentinel = minOpen - 1
	}

	floored := make([]float64, len(values))
	copy(floored, values)
	for i := range floored {
		if s.AtBound[i] {
			floored[i] = sentinel
		}
	}
	return floored, warnings, nil
}

func mergeWarnings(a, b []corr.Warning) []corr.Warning {
	seen := make(map[corr.Warning]bool)
	var out []corr.Warning
	for _, w := range append(a, b...) {
		if !seen[w] {
			seen[w] = true
			out = append(out, w)
		}
	}
	return out
}
