package ports

import (
	"context"
	"math/rand"
)

// RNGPort provides seeded random number generation for deterministic
// simulation. Identical (name, seed) pairs must yield identical streams so
// that null-distribution generation is reproducible across runs.
type RNGPort interface {
	// SeededStream creates a deterministic random number generator for a
	// named operation.
	SeededStream(ctx context.Context, name string, seed int64) (*rand.Rand, error)
}
