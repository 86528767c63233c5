// Package memorykv implements the kv.Store port as a sharded in-process map
// with TTL expiry. It is the default backend when storage.type is "memory".
package memorykv

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/mcpgateway/mcpgateway/internal/domain/kv"
)

const shardCount = 32

// sweepEvery triggers a probabilistic expiry scan after this many writes
// land on a given shard.
const sweepEvery = 64

type entry struct {
	scalar    []byte
	list      [][]byte
	isList    bool
	expiresAt time.Time // zero means no expiry
}

func (e *entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

type shard struct {
	mu      sync.RWMutex
	data    map[string]*entry
	writes  uint64
	logger  *slog.Logger
	shardNo int
}

// Store is an in-memory kv.Store. Safe for concurrent use.
type Store struct {
	shards [shardCount]*shard
	logger *slog.Logger
}

// New creates an in-memory Store.
func New() *Store {
	return NewWithLogger(slog.Default())
}

// NewWithLogger creates an in-memory Store with the given logger used for
// expiry-sweep diagnostics.
func NewWithLogger(logger *slog.Logger) *Store {
	s := &Store{logger: logger}
	for i := range s.shards {
		s.shards[i] = &shard{data: make(map[string]*entry), logger: logger, shardNo: i}
	}
	return s
}

func (s *Store) shardFor(key string) *shard {
	h := xxhash.Sum64String(key)
	return s.shards[h%shardCount]
}

// Get implements kv.Store.
func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	e, ok := sh.data[key]
	if !ok {
		return nil, false, nil
	}
	if e.expired(time.Now()) {
		delete(sh.data, key)
		return nil, false, nil
	}
	if e.isList {
		return nil, false, nil
	}
	out := make([]byte, len(e.scalar))
	copy(out, e.scalar)
	return out, true, nil
}

// Set implements kv.Store.
func (s *Store) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	stored := make([]byte, len(value))
	copy(stored, value)

	sh.data[key] = &entry{scalar: stored, expiresAt: expiryFor(ttl)}
	sh.maybeSweepLocked()
	return nil
}

// Delete implements kv.Store.
func (s *Store) Delete(_ context.Context, key string) (bool, error) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	_, existed := sh.data[key]
	delete(sh.data, key)
	return existed, nil
}

// Keys implements kv.Store.
func (s *Store) Keys(_ context.Context, prefix string) ([]string, error) {
	var out []string
	now := time.Now()
	for _, sh := range s.shards {
		sh.mu.RLock()
		for k, e := range sh.data {
			if e.expired(now) {
				continue
			}
			if hasPrefix(k, prefix) {
				out = append(out, k)
			}
		}
		sh.mu.RUnlock()
	}
	return out, nil
}

// Length implements kv.Store.
func (s *Store) Length(_ context.Context) (int, error) {
	total := 0
	now := time.Now()
	for _, sh := range s.shards {
		sh.mu.RLock()
		for _, e := range sh.data {
			if !e.expired(now) {
				total++
			}
		}
		sh.mu.RUnlock()
	}
	return total, nil
}

// AppendToList implements kv.Store.
func (s *Store) AppendToList(_ context.Context, key string, value []byte, ttl time.Duration) (int, error) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	stored := make([]byte, len(value))
	copy(stored, value)

	e, ok := sh.data[key]
	if !ok || e.expired(time.Now()) || !e.isList {
		e = &entry{isList: true}
		sh.data[key] = e
	}
	e.list = append(e.list, stored)
	e.expiresAt = expiryFor(ttl)
	sh.maybeSweepLocked()
	return len(e.list), nil
}

// GetList implements kv.Store.
func (s *Store) GetList(_ context.Context, key string) ([][]byte, error) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	e, ok := sh.data[key]
	if !ok {
		return nil, nil
	}
	if e.expired(time.Now()) {
		delete(sh.data, key)
		return nil, nil
	}
	if !e.isList {
		return nil, nil
	}
	out := make([][]byte, len(e.list))
	for i, v := range e.list {
		cp := make([]byte, len(v))
		copy(cp, v)
		out[i] = cp
	}
	return out, nil
}

// Close implements kv.Store. The in-memory backend owns no background
// goroutines (expiry is swept inline on write and on read), so Close is a
// no-op kept for interface symmetry with the Redis-compatible backend.
func (s *Store) Close() error {
	return nil
}

// maybeSweepLocked runs a probabilistic expiry scan. Caller must hold
// sh.mu for writing.
func (sh *shard) maybeSweepLocked() {
	sh.writes++
	if sh.writes%sweepEvery != 0 {
		return
	}
	now := time.Now()
	cleaned := 0
	for k, e := range sh.data {
		if e.expired(now) {
			delete(sh.data, k)
			cleaned++
		}
	}
	if cleaned > 0 && sh.logger != nil {
		sh.logger.Debug("memorykv expiry sweep", "shard", sh.shardNo, "cleaned", cleaned)
	}
}

func expiryFor(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return time.Now().Add(ttl)
}

func hasPrefix(s, prefix string) bool {
	if len(prefix) > len(s) {
		return false
	}
	return s[:len(prefix)] == prefix
}

var _ kv.Store = (*Store)(nil)
