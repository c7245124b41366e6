// Package rng provides deterministic seeded random streams behind the
// RNGPort. Stream identity is (name, seed): the name is hashed into the seed
// so independent operations never share a stream.
package rng

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand"
)

// StreamFactory implements ports.RNGPort.
type StreamFactory struct{}

// NewStreamFactory creates a new stream factory.
func NewStreamFactory() *StreamFactory {
	return &StreamFactory{}
}

// SeededStream derives a deterministic *rand.Rand from the operation name and
// base seed. Identical inputs always yield identical streams.
func (f *StreamFactory) SeededStream(ctx context.Context, name string, seed int64) (*rand.Rand, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, fmt.Errorf("stream name cannot be empty")
	}

	h := fnv.New64a()
	h.Write([]byte(name))
	derived := int64(h.Sum64()) ^ seed

	return rand.New(rand.NewSource(derived)), nil
}
