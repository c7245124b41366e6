// Package excel reads expression matrices from .xlsx workbooks.
package excel

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"genecorr/domain/core"
	"genecorr/domain/expr"
)

// Reader loads a cells-by-genes expression matrix from Sheet1 of an Excel
// workbook: first column cell identifiers, header row gene names.
type Reader struct {
	sheet string
}

// NewReader creates an Excel matrix reader for Sheet1.
func NewReader() *Reader {
	return &Reader{sheet: "Sheet1"}
}

// SetSheet overrides the worksheet name.
func (r *Reader) SetSheet(name string) { r.sheet = name }

// ReadMatrix implements ports.MatrixReaderPort.
func (r *Reader) ReadMatrix(ctx context.Context, path string) (*expr.Matrix, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("excel file not found: %s", path)
	}

	start := time.Now()
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(r.sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", r.sheet, err)
	}
	log.Printf("[ExcelReader] %s read in %.2fms (%d rows)",
		r.sheet, float64(time.Since(start).Nanoseconds())/1e6, len(rows))

	if len(rows) < 3 {
		return nil, fmt.Errorf("excel file %s: need a header row and at least 2 cell rows", path)
	}

	header := rows[0]
	if len(header) < 2 {
		return nil, fmt.Errorf("excel file %s: header must list at least one gene", path)
	}
	geneNames := header[1:]

	cells := make([]string, 0, len(rows)-1)
	columns := make([][]float64, len(geneNames))
	for i := range columns {
		columns[i] = make([]float64, 0, len(rows)-1)
	}

	for rowIdx, row := range rows[1:] {
		cells = append(cells, cellID(row, rowIdx))
		for col := range geneNames {
			v, err := cellValue(row, col+1)
			if err != nil {
				return nil, fmt.Errorf("excel file %s row %d gene %s: %w",
					path, rowIdx+2, geneNames[col], err)
			}
			columns[col] = append(columns[col], v)
		}
	}

	m := expr.NewMatrix(cells)
	for i, name := range geneNames {
		key, err := core.ParseGeneKey(name)
		if err != nil {
			return nil, fmt.Errorf("excel file %s column %d: %w", path, i+2, err)
		}
		if err := m.SetColumn(key, columns[i]); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func cellID(row []string, rowIdx int) string {
	if len(row) > 0 && strings.TrimSpace(row[0]) != "" {
		return strings.TrimSpace(row[0])
	}
	return fmt.Sprintf("cell-%d", rowIdx+1)
}

// cellValue parses a worksheet cell as a float. Trailing cells omitted by
// excelize are treated as zero counts.
func cellValue(row []string, col int) (float64, error) {
	if col >= len(row) || strings.TrimSpace(row[col]) == "" {
		return 0, nil
	}
	return strconv.ParseFloat(strings.TrimSpace(row[col]), 64)
}
