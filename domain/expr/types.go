package expr

import (
	"fmt"
	"sort"

	"genecorr/domain/core"
)

// Sample is an ordered sequence of observations for one gene across cells.
// AtBound marks observations sitting at the censoring lower bound (typically
// zero counts); it is either empty or the same length as Values.
type Sample struct {
	Gene    core.GeneKey
	Values  []float64
	AtBound []bool
}

// NewSample creates a sample with no lower-bound annotation.
func NewSample(gene core.GeneKey, values []float64) Sample {
	return Sample{Gene: gene, Values: values}
}

// WithLowerBound returns a copy of the sample with AtBound set for every
// observation equal to bound.
func (s Sample) WithLowerBound(bound float64) Sample {
	flags := make([]bool, len(s.Values))
	for i, v := range s.Values {
		flags[i] = v == bound
	}
	return Sample{Gene: s.Gene, Values: s.Values, AtBound: flags}
}

// Len returns the number of observations.
func (s Sample) Len() int {
	return len(s.Values)
}

// BoundCount returns how many observations are flagged at the lower bound.
func (s Sample) BoundCount() int {
	n := 0
	for _, f := range s.AtBound {
		if f {
			n++
		}
	}
	return n
}

// Validate checks internal consistency.
func (s Sample) Validate() error {
	if len(s.Values) < 2 {
		return fmt.Errorf("%w: sample %s has %d observations, need at least 2",
			core.ErrInsufficientData, s.Gene, len(s.Values))
	}
	if len(s.AtBound) != 0 && len(s.AtBound) != len(s.Values) {
		return core.NewDimensionError(fmt.Sprintf("bound flags for %s", s.Gene),
			len(s.AtBound), len(s.Values))
	}
	return nil
}

// Matrix is a gene-major expression bundle: one column of values per gene,
// one row per cell. Columns share the cell ordering.
type Matrix struct {
	Cells []string
	genes []core.GeneKey
	data  map[core.GeneKey][]float64
}

// NewMatrix creates an empty matrix over the given cell identifiers.
func NewMatrix(cells []string) *Matrix {
	return &Matrix{
		Cells: cells,
		data:  make(map[core.GeneKey][]float64),
	}
}

// SetColumn adds or replaces a gene's expression column.
func (m *Matrix) SetColumn(gene core.GeneKey, values []float64) error {
	if len(values) != len(m.Cells) {
		return core.NewDimensionError(fmt.Sprintf("column %s", gene), len(values), len(m.Cells))
	}
	if _, exists := m.data[gene]; !exists {
		m.genes = append(m.genes, gene)
	}
	m.data[gene] = values
	return nil
}

// Column returns a gene's values.
func (m *Matrix) Column(gene core.GeneKey) ([]float64, bool) {
	v, ok := m.data[gene]
	return v, ok
}

// Sample returns a gene's column as a Sample with zero-count observations
// flagged at the lower bound.
func (m *Matrix) Sample(gene core.GeneKey) (Sample, bool) {
	v, ok := m.data[gene]
	if !ok {
		return Sample{}, false
	}
	return NewSample(gene, v).WithLowerBound(0), true
}

// Genes returns gene keys in insertion order.
func (m *Matrix) Genes() []core.GeneKey {
	return m.genes
}

// SortedGenes returns gene keys in lexical order, for deterministic sweeps.
func (m *Matrix) SortedGenes() []core.GeneKey {
	out := make([]core.GeneKey, len(m.genes))
	copy(out, m.genes)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// GeneCount returns the number of genes.
func (m *Matrix) GeneCount() int { return len(m.genes) }

// CellCount returns the number of cells.
func (m *Matrix) CellCount() int { return len(m.Cells) }
