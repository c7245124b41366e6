package matrix

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReadMatrix(t *testing.T) {
	path := writeFile(t, "expr.csv",
		"cell,geneA,geneB\n"+
			"c1,0,1.5\n"+
			"c2,2,0\n"+
			"c3,4,3\n")

	m, err := NewCSVReader().ReadMatrix(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, 2, m.GeneCount())
	assert.Equal(t, 3, m.CellCount())
	assert.Equal(t, []string{"c1", "c2", "c3"}, m.Cells)

	col, ok := m.Column("geneA")
	require.True(t, ok)
	assert.Equal(t, []float64{0, 2, 4}, col)

	// Zero counts are flagged at the lower bound
	s, ok := m.Sample("geneB")
	require.True(t, ok)
	assert.Equal(t, []bool{false, true, false}, s.AtBound)
}

func TestReadMatrix_RaggedRowRejected(t *testing.T) {
	path := writeFile(t, "bad.csv",
		"cell,geneA,geneB\n"+
			"c1,0\n"+
			"c2,1,2\n")

	_, err := NewCSVReader().ReadMatrix(context.Background(), path)
	assert.Error(t, err)
}

func TestReadMatrix_NonNumericRejected(t *testing.T) {
	path := writeFile(t, "bad.csv",
		"cell,geneA\n"+
			"c1,xyz\n"+
			"c2,1\n")

	_, err := NewCSVReader().ReadMatrix(context.Background(), path)
	assert.Error(t, err)
}

func TestReadDesign(t *testing.T) {
	path := writeFile(t, "design.csv",
		"intercept,batch\n"+
			"1,0\n"+
			"1,1\n"+
			"1,0\n")

	rows, err := ReadDesign(path)
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{1, 0}, {1, 1}, {1, 0}}, rows)
}
