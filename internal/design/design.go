// Package design wraps the nuisance design matrix: full-column-rank
// validation, least-squares residuals, and residual degrees of freedom.
package design

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"genecorr/domain/core"
)

// Design is a validated n x p nuisance design matrix. The QR factorization is
// computed once and reused for every response vector regressed against it.
type Design struct {
	x    *mat.Dense
	qr   mat.QR
	rows int
	cols int
	rank int
}

// New builds a design from row-major data (one row per observation). The
// matrix must be full column rank and must have strictly more observations
// than parameters, otherwise residuals are not well-defined.
func New(rows [][]float64) (*Design, error) {
	n := len(rows)
	if n == 0 {
		return nil, core.NewConfigurationError("design", "no rows")
	}
	p := len(rows[0])
	if p == 0 {
		return nil, core.NewConfigurationError("design", "no columns")
	}
	if n <= p {
		return nil, fmt.Errorf("%w: %d observations for %d design parameters",
			core.ErrInsufficientData, n, p)
	}

	data := make([]float64, 0, n*p)
	for i, row := range rows {
		if len(row) != p {
			return nil, core.NewDimensionError(fmt.Sprintf("design row %d", i), len(row), p)
		}
		data = append(data, row...)
	}
	x := mat.NewDense(n, p, data)

	d := &Design{x: x, rows: n, cols: p}
	d.rank = matrixRank(x)
	if d.rank < p {
		return nil, fmt.Errorf("%w: column rank %d of %d", core.ErrRankDeficient, d.rank, p)
	}
	d.qr.Factorize(x)
	return d, nil
}

// NewGrouping builds a one-hot design from group labels: one indicator column
// per distinct level, in order of first appearance. Always full column rank.
func NewGrouping(labels []string) (*Design, error) {
	levels := make(map[string]int)
	var order []string
	for _, l := range labels {
		if _, seen := levels[l]; !seen {
			levels[l] = len(order)
			order = append(order, l)
		}
	}

	rows := make([][]float64, len(labels))
	for i, l := range labels {
		row := make([]float64, len(order))
		row[levels[l]] = 1
		rows[i] = row
	}
	return New(rows)
}

// Rows returns the number of observations.
func (d *Design) Rows() int { return d.rows }

// Params returns the number of design columns.
func (d *Design) Params() int { return d.cols }

// ResidualDF returns the residual degrees of freedom, n - rank.
func (d *Design) ResidualDF() int { return d.rows - d.rank }

// Residuals regresses y on the design via least squares and returns y minus
// the fitted values.
func (d *Design) Residuals(y []float64) ([]float64, error) {
	if len(y) != d.rows {
		return nil, core.NewDimensionError("response", len(y), d.rows)
	}

	b := mat.NewVecDense(d.rows, y)
	var beta mat.VecDense
	if err := d.qr.SolveVecTo(&beta, false, b); err != nil {
		return nil, fmt.Errorf("%w: least squares solve: %v", core.ErrConfiguration, err)
	}

	var fitted mat.VecDense
	fitted.MulVec(d.x, &beta)

	resid := make([]float64, d.rows)
	for i := range resid {
		resid[i] = y[i] - fitted.AtVec(i)
	}
	return resid, nil
}

// matrixRank computes the numerical rank from singular values.
func matrixRank(x *mat.Dense) int {
	var svd mat.SVD
	if !svd.Factorize(x, mat.SVDNone) {
		return 0
	}
	sv := svd.Values(nil)
	if len(sv) == 0 {
		return 0
	}
	r, c := x.Dims()
	tol := float64(max(r, c)) * sv[0] * 1e-12
	rank := 0
	for _, s := range sv {
		if s > tol && !math.IsNaN(s) {
			rank++
		}
	}
	return rank
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
