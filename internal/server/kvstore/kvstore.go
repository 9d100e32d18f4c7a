// Package kvstore provides the ephemeral, expiring, keyed storage behind
// CSRF state tokens and rate-limit counters. The in-memory backend is the
// default for single-instance deployments; multi-instance deployments swap in
// the redis backend without touching calling code.
package kvstore

import (
	"context"
	"time"
)

// Store is a small TTL-scoped key-value contract. Absent and expired keys
// are reported as common.ErrNotFound.
type Store interface {
	// Set stores value under key for ttl.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Get returns the value under key.
	Get(ctx context.Context, key string) ([]byte, error)

	// GetDel atomically returns and removes the value under key. Used for
	// single-use tokens.
	GetDel(ctx context.Context, key string) ([]byte, error)

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Increment bumps a fixed-window counter. The first increment of a key
	// opens a window of the given length; the counter expires when the window
	// closes. Returns the new count and the window reset time.
	Increment(ctx context.Context, key string, window time.Duration) (int64, time.Time, error)

	// Close releases backend resources and stops background sweeps.
	Close() error
}
