// Package redis provides a sweep strategy that purges dev-cache keys under
// a prefix. Interpreted application code often caches computed values in
// Redis; after a reload those entries describe the previous generation's
// world and must not be served to the fresh handle.
package redis

import (
	"context"
	"fmt"

	backend "github.com/redis/go-redis/v9"
)

// Sweeper implements ports.SweepStrategy by deleting every key under a
// prefix in SCAN+DEL batches.
type Sweeper struct {
	client    *backend.Client
	prefix    string
	scanCount int64
}

// Option defines a functional option for configuring the Sweeper.
type Option func(*Sweeper)

// WithPrefix sets the key prefix to purge.
func WithPrefix(prefix string) Option {
	return func(s *Sweeper) {
		s.prefix = prefix
	}
}

// WithScanCount sets the SCAN batch size hint.
func WithScanCount(count int64) Option {
	return func(s *Sweeper) {
		s.scanCount = count
	}
}

// New creates a sweeper with its own Redis client.
func New(address, password string, db int, opts ...Option) *Sweeper {
	client := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(client, opts...)
}

// NewFromClient creates a sweeper from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Sweeper {
	s := &Sweeper{
		client:    client,
		prefix:    "graft:cache:",
		scanCount: 100,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name identifies the strategy in logs and metrics.
func (s *Sweeper) Name() string { return "redis" }

// Sweep deletes every key under the prefix. Unlike most sweep work this one
// talks to a real backend, so failures are returned; the reloader logs and
// swallows them.
func (s *Sweeper) Sweep(ctx context.Context) error {
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, s.prefix+"*", s.scanCount).Result()
		if err != nil {
			return fmt.Errorf("scanning %q keys: %w", s.prefix, err)
		}

		if len(keys) > 0 {
			if err := s.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("deleting %d stale keys: %w", len(keys), err)
			}
		}

		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

// Close closes the redis client.
func (s *Sweeper) Close() error {
	return s.client.Close()
}
