package ports

import (
	"context"

	"genecorr/domain/corr"
)

// NullStorePort caches simulated null distributions keyed by their
// parameterization. Simulation cost dominates batch runtime, so a
// distribution is generated once per (n, residual d.f., iterations, seed)
// configuration and reused.
type NullStorePort interface {
	Get(ctx context.Context, params corr.NullParams) (*corr.NullDistribution, bool, error)
	Put(ctx context.Context, dist *corr.NullDistribution) error
	Close() error
}
