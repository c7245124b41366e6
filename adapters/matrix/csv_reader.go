// Package matrix reads expression matrices and design matrices from CSV.
package matrix

import (
	"context"
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"strconv"

	"genecorr/domain/core"
	"genecorr/domain/expr"
)

// CSVReader loads a cells-by-genes expression matrix from a CSV file. The
// first column holds cell identifiers, the header row holds gene names.
type CSVReader struct{}

// NewCSVReader creates a CSV matrix reader.
func NewCSVReader() *CSVReader {
	return &CSVReader{}
}

// ReadMatrix implements ports.MatrixReaderPort.
func (r *CSVReader) ReadMatrix(ctx context.Context, path string) (*expr.Matrix, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	records, err := readAll(path)
	if err != nil {
		return nil, err
	}
	if len(records) < 3 {
		return nil, fmt.Errorf("matrix file %s: need a header row and at least 2 cell rows", path)
	}

	header := records[0]
	if len(header) < 2 {
		return nil, fmt.Errorf("matrix file %s: header must list at least one gene", path)
	}
	geneNames := header[1:]

	cells := make([]string, 0, len(records)-1)
	columns := make([][]float64, len(geneNames))
	for i := range columns {
		columns[i] = make([]float64, 0, len(records)-1)
	}

	for rowIdx, record := range records[1:] {
		if len(record) != len(header) {
			return nil, fmt.Errorf("matrix file %s row %d: %d fields, expected %d",
				path, rowIdx+2, len(record), len(header))
		}
		cells = append(cells, record[0])
		for col, raw := range record[1:] {
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, fmt.Errorf("matrix file %s row %d gene %s: %w",
					path, rowIdx+2, geneNames[col], err)
			}
			columns[col] = append(columns[col], v)
		}
	}

	m := expr.NewMatrix(cells)
	for i, name := range geneNames {
		key, err := core.ParseGeneKey(name)
		if err != nil {
			return nil, fmt.Errorf("matrix file %s column %d: %w", path, i+2, err)
		}
		if err := m.SetColumn(key, columns[i]); err != nil {
			return nil, err
		}
	}

	log.Printf("[CSVReader] loaded %d genes x %d cells from %s", m.GeneCount(), m.CellCount(), path)
	return m, nil
}

// ReadDesign loads a numeric nuisance design matrix from a CSV file with a
// header row: one row per cell, one column per covariate.
func ReadDesign(path string) ([][]float64, error) {
	records, err := readAll(path)
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("design file %s: need a header row and data rows", path)
	}

	header := records[0]
	rows := make([][]float64, 0, len(records)-1)
	for rowIdx, record := range records[1:] {
		if len(record) != len(header) {
			return nil, fmt.Errorf("design file %s row %d: %d fields, expected %d",
				path, rowIdx+2, len(record), len(header))
		}
		row := make([]float64, len(record))
		for col, raw := range record {
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, fmt.Errorf("design file %s row %d column %s: %w",
					path, rowIdx+2, header[col], err)
			}
			row[col] = v
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func readAll(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return records, nil
}
