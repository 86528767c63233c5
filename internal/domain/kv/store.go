// Package kv defines the storage-agnostic key/value contract that the
// session, token, and event-journal subsystems build on.
package kv

import (
	"context"
	"errors"
	"time"
)

// ErrTransient indicates a network/IO failure that may succeed on retry.
var ErrTransient = errors.New("kv: transient failure")

// ErrSerde indicates a stored value could not be deserialized. Callers
// treat this as not-found plus a logged warning; they do not attempt
// auto-repair of the corrupt value.
var ErrSerde = errors.New("kv: corrupt stored value")

// Store is the outbound port implemented by the in-memory and
// Redis-compatible backends. Both the scalar and list keyspaces share the
// same namespace: Delete removes a key regardless of which kind it holds.
type Store interface {
	// Get returns the raw bytes stored at key, or (nil, false) if the key
	// does not exist or has expired.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value at key. A zero ttl means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key from either keyspace. Returns whether it existed.
	Delete(ctx context.Context, key string) (bool, error)

	// Keys returns every key with the given prefix.
	Keys(ctx context.Context, prefix string) ([]string, error)

	// Length returns the total number of live keys.
	Length(ctx context.Context) (int, error)

	// AppendToList atomically appends value to the list at key, refreshing
	// its TTL (a zero ttl leaves the key without expiry), and returns the
	// list's new length. On backends with multi-step writes (pipelined
	// RPUSH+EXPIRE), a failure at any step fails the whole operation: the
	// caller must never observe a partial list.
	AppendToList(ctx context.Context, key string, value []byte, ttl time.Duration) (int, error)

	// GetList returns the list at key in insertion order.
	GetList(ctx context.Context, key string) ([][]byte, error)

	// Close releases backend resources (background goroutines, network
	// connections). Safe to call once during shutdown.
	Close() error
}
