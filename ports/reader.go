package ports

import (
	"context"

	"genecorr/domain/expr"
)

// MatrixReaderPort loads an expression matrix (cells as rows, genes as
// columns) from an external source.
type MatrixReaderPort interface {
	ReadMatrix(ctx context.Context, path string) (*expr.Matrix, error)
}
