// Package kvstore defines the key/value store contract spec.md treats as an
// external collaborator (get/set with TTL, hash-set/hash-values with TTL)
// and a github.com/go-redis/redis/v8 implementation of it.
package kvstore

import (
	"context"
	"time"
)

// Store is the contract the connector and reassembly layers depend on.
// All accesses are per-key and idempotent; no cross-key transactions are
// required (spec §5 "Shared resources").
type Store interface {
	// Get returns the value stored under key, or ok=false if absent or
	// expired.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	// Set stores value under key with the given TTL.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// HSet stores value under hash key's field, extending the hash's TTL
	// to ttl on every write (so the last-written segment governs
	// expiry, matching spec §3's "set key TTL=300s" on every segment
	// write).
	HSet(ctx context.Context, key, field, value string, ttl time.Duration) error
	// HVals returns all field values currently stored in the hash at
	// key.
	HVals(ctx context.Context, key string) ([]string, error)
	// Del removes a key outright (used to clear a reassembly record once
	// it's been published).
	Del(ctx context.Context, key string) error
}
