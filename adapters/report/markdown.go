// Package report renders batch sweep summaries as markdown and HTML.
package report

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	"genecorr/domain/corr"
)

// Builder renders a report for one batch run.
type Builder struct {
	topPairs int
}

// NewBuilder creates a report builder showing the topPairs strongest pairs
// (default 25 when <= 0).
func NewBuilder(topPairs int) *Builder {
	if topPairs <= 0 {
		topPairs = 25
	}
	return &Builder{topPairs: topPairs}
}

// Markdown renders the run summary, null-distribution shape, and the
// strongest pairs as a markdown document.
func (b *Builder) Markdown(run *corr.BatchRun, summary corr.NullSummary, results []corr.CorrelationResult) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# Correlation sweep %s\n\n", run.ID)
	fmt.Fprintf(&sb, "Generated %s.\n\n", run.CreatedAt)

	sb.WriteString("## Configuration\n\n")
	fmt.Fprintf(&sb, "| Setting | Value |\n|---|---|\n")
	fmt.Fprintf(&sb, "| Cells (n) | %d |\n", run.NullParams.N)
	fmt.Fprintf(&sb, "| Residual d.f. | %d |\n", run.NullParams.ResidualDF)
	fmt.Fprintf(&sb, "| Null iterations | %d |\n", run.NullParams.Iterations)
	fmt.Fprintf(&sb, "| Seed | %d |\n", run.NullParams.Seed)
	fmt.Fprintf(&sb, "| Alternative | %s |\n", run.Alternative)
	fmt.Fprintf(&sb, "| Lower-bound floor | %t |\n", run.FloorEnabled)
	fmt.Fprintf(&sb, "| Genes | %d |\n", run.GeneCount)
	fmt.Fprintf(&sb, "| Pairs tested | %d |\n\n", run.PairCount)

	sb.WriteString("## Null distribution\n\n")
	fmt.Fprintf(&sb, "| Mean | Std dev | Min | Max | P95 | P99 |\n|---|---|---|---|---|---|\n")
	fmt.Fprintf(&sb, "| %.4f | %.4f | %.4f | %.4f | %.4f | %.4f |\n\n",
		summary.Mean, summary.StdDev, summary.Min, summary.Max,
		summary.Percentile95, summary.Percentile99)

	top := strongestPairs(results, b.topPairs)
	fmt.Fprintf(&sb, "## Top %d pairs by |rho|\n\n", len(top))
	sb.WriteString("| Gene X | Gene Y | rho | p | adjusted p | warnings |\n|---|---|---|---|---|---|\n")
	for _, r := range top {
		fmt.Fprintf(&sb, "| %s | %s | %s | %s | %s | %s |\n",
			r.GeneX, r.GeneY, formatFloat(r.Rho), formatFloat(r.PValue),
			formatFloat(r.AdjustedP), formatWarnings(r.Warnings))
	}

	undefined := 0
	for _, r := range results {
		if r.Undefined() {
			undefined++
		}
	}
	if undefined > 0 {
		fmt.Fprintf(&sb, "\n%d pair(s) had an undefined statistic (zero-variance sample).\n", undefined)
	}

	return sb.String()
}

// HTML renders the markdown report as a standalone HTML fragment.
func (b *Builder) HTML(run *corr.BatchRun, summary corr.NullSummary, results []corr.CorrelationResult) []byte {
	md := b.Markdown(run, summary, results)

	p := parser.NewWithExtensions(parser.CommonExtensions | parser.Tables)
	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags})
	return markdown.ToHTML([]byte(md), p, renderer)
}

// strongestPairs returns up to limit defined results ordered by descending
// |rho|, ties broken by gene keys for stable output.
func strongestPairs(results []corr.CorrelationResult, limit int) []corr.CorrelationResult {
	defined := make([]corr.CorrelationResult, 0, len(results))
	for _, r := range results {
		if !r.Undefined() {
			defined = append(defined, r)
		}
	}
	sort.Slice(defined, func(i, j int) bool {
		ai, aj := math.Abs(defined[i].Rho), math.Abs(defined[j].Rho)
		if ai != aj {
			return ai > aj
		}
		if defined[i].GeneX != defined[j].GeneX {
			return defined[i].GeneX < defined[j].GeneX
		}
		return defined[i].GeneY < defined[j].GeneY
	})
	if len(defined) > limit {
		defined = defined[:limit]
	}
	return defined
}

func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return "NA"
	}
	return fmt.Sprintf("%.4f", v)
}

func formatWarnings(warnings []corr.Warning) string {
	if len(warnings) == 0 {
		return "-"
	}
	parts := make([]string, len(warnings))
	for i, w := range warnings {
		parts[i] = string(w)
	}
	return strings.Join(parts, ", ")
}
