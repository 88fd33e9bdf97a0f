// Package db defines the key-value contracts the run repository needs and
// the errors every store implementation returns.
package db

import (
	"context"
	"fmt"
	"time"
)

// Store is the database facade used by the repositories. Runs are stored
// as opaque values; the run index is a hash.
type Store interface {
	Pinger
	KVStore
	HashStore
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// KVStore provides simple key-value operations. Get reports a missing or
// expired key as ErrKeyNotFound.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// HashStore provides hash field operations. HGetAll of a missing key is an
// empty map.
type HashStore interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HDel(ctx context.Context, key string, fields ...string) error
}

// DefaultPollInterval is the ping spacing of WaitForReady.
const DefaultPollInterval = 100 * time.Millisecond

// WaitForReady pings p immediately and then every interval until it
// answers or timeout expires. The last ping error is kept in the result.
func WaitForReady(ctx context.Context, p Pinger, timeout, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last error
	for {
		if last = p.Ping(ctx); last == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for database: %w (last error: %w)", ctx.Err(), last)
		case <-ticker.C:
		}
	}
}
