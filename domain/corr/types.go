package corr

import (
	"encoding/json"
	"math"

	"genecorr/domain/core"
)

// Alternative selects the sidedness of the p-value.
type Alternative string

const (
	TwoSided Alternative = "two_sided"
	Greater  Alternative = "greater"
	Less     Alternative = "less"
)

// Valid reports whether the alternative is one of the known values.
func (a Alternative) Valid() bool {
	switch a {
	case TwoSided, Greater, Less:
		return true
	}
	return false
}

// Warning flags non-fatal conditions attached to a result.
type Warning string

const (
	// WarningCensoredOrdering: the lower-bound floor was disabled while
	// censored observations were present. Residual ranking of censored values
	// can manufacture spurious near-perfect correlations.
	WarningCensoredOrdering Warning = "censored_ordering_risk"
	// WarningFloorNoOp: the floor was enabled but no observation sat at the
	// lower bound, so the adjustment did nothing.
	WarningFloorNoOp Warning = "floor_no_op"
	// WarningUndefined: a zero-variance sample made the statistic undefined.
	WarningUndefined Warning = "undefined_statistic"
)

// CorrelationResult holds the tie-corrected statistic for one gene pair and
// its p-value against a matched null distribution. Computed once, never
// mutated afterward.
type CorrelationResult struct {
	GeneX     core.GeneKey `json:"gene_x"`
	GeneY     core.GeneKey `json:"gene_y"`
	Rho       float64      `json:"rho"`
	PValue    float64      `json:"p_value"`
	AdjustedP float64      `json:"adjusted_p"` // NaN until a correction is applied
	N         int          `json:"n"`
	Warnings  []Warning    `json:"warnings,omitempty"`
}

// MarshalJSON renders NaN statistic fields as null; encoding/json has no
// representation for NaN.
func (r CorrelationResult) MarshalJSON() ([]byte, error) {
	type payload struct {
		GeneX     core.GeneKey `json:"gene_x"`
		GeneY     core.GeneKey `json:"gene_y"`
		Rho       *float64     `json:"rho"`
		PValue    *float64     `json:"p_value"`
		AdjustedP *float64     `json:"adjusted_p"`
		N         int          `json:"n"`
		Warnings  []Warning    `json:"warnings,omitempty"`
	}
	return json.Marshal(payload{
		GeneX:     r.GeneX,
		GeneY:     r.GeneY,
		Rho:       jsonFloat(r.Rho),
		PValue:    jsonFloat(r.PValue),
		AdjustedP: jsonFloat(r.AdjustedP),
		N:         r.N,
		Warnings:  r.Warnings,
	})
}

func jsonFloat(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}

// Undefined reports whether the statistic could not be computed
// (zero-variance input). Rho and PValue are NaN in that case.
func (r CorrelationResult) Undefined() bool {
	return math.IsNaN(r.Rho)
}

// HasWarning reports whether the result carries the given warning.
func (r CorrelationResult) HasWarning(w Warning) bool {
	for _, got := range r.Warnings {
		if got == w {
			return true
		}
	}
	return false
}

// BatchRun records one pairwise sweep: its configuration, the shape of the
// null it was tested against, and timing.
type BatchRun struct {
	ID           core.RunID     `json:"id"`
	CreatedAt    core.Timestamp `json:"created_at"`
	NullParams   NullParams     `json:"null_params"`
	NullSummary  NullSummary    `json:"null_summary"`
	Alternative  Alternative    `json:"alternative"`
	FloorEnabled bool           `json:"floor_enabled"`
	GeneCount    int            `json:"gene_count"`
	PairCount    int            `json:"pair_count"`
}
