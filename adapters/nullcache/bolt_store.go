// Package nullcache caches simulated null distributions in an embedded bolt
// database. Simulation cost dominates batch runtime; a distribution is
// generated once per parameterization and reused across runs and processes.
package nullcache

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"genecorr/domain/corr"
)

var bucketName = []byte("null_distributions")

// storedDistribution is the gob payload for one cached distribution.
type storedDistribution struct {
	Params corr.NullParams
	Values []float64
}

// BoltStore implements ports.NullStorePort on bbolt.
type BoltStore struct {
	db *bolt.DB
}

// Open opens (creating if needed) a bolt-backed null cache at path.
func Open(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open null cache %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init null cache bucket: %w", err)
	}
	return &BoltStore{db: db}, nil
}

// Get fetches a cached distribution by parameterization.
func (s *BoltStore) Get(ctx context.Context, params corr.NullParams) (*corr.NullDistribution, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	var payload []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketName).Get(key(params))
		if raw != nil {
			payload = make([]byte, len(raw))
			copy(payload, raw)
		}
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("null cache get: %w", err)
	}
	if payload == nil {
		return nil, false, nil
	}

	var stored storedDistribution
	if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(&stored); err != nil {
		return nil, false, fmt.Errorf("decode cached null %s: %w", params, err)
	}
	if stored.Params != params {
		return nil, false, fmt.Errorf("null cache corruption: key %s holds %s", params, stored.Params)
	}
	return corr.NewNullDistribution(stored.Params, stored.Values), true, nil
}

// Put stores a distribution, overwriting any previous entry for the same
// parameterization.
func (s *BoltStore) Put(ctx context.Context, dist *corr.NullDistribution) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var buf bytes.Buffer
	stored := storedDistribution{Params: dist.Params(), Values: dist.Values()}
	if err := gob.NewEncoder(&buf).Encode(stored); err != nil {
		return fmt.Errorf("encode null %s: %w", dist.Params(), err)
	}

	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Put(key(dist.Params()), buf.Bytes())
	})
	if err != nil {
		return fmt.Errorf("null cache put: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func key(p corr.NullParams) []byte {
	return []byte(fmt.Sprintf("n=%d|df=%d|iters=%d|seed=%d", p.N, p.ResidualDF, p.Iterations, p.Seed))
}
