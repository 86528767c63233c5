// Package rediskv implements the kv.Store port against a Redis-compatible
// server via go-redis. It is selected when storage.type is "redis" or
// "valkey".
package rediskv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mcpgateway/mcpgateway/internal/domain/kv"
)

// Store is a kv.Store backed by a Redis-compatible client.
type Store struct {
	rdb *redis.Client
}

// New creates a Store from a Redis connection URL, e.g.
// "redis://[:password@]host:port/db" or "valkey://host:port".
func New(url string) (*Store, error) {
	opts, err := redis.ParseURL(normalizeURL(url))
	if err != nil {
		return nil, fmt.Errorf("rediskv: parse url: %w", err)
	}
	return &Store{rdb: redis.NewClient(opts)}, nil
}

// NewFromClient wraps an already-constructed go-redis client, primarily for
// tests run against a fake/miniredis server.
func NewFromClient(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

func normalizeURL(url string) string {
	// go-redis only understands the redis:// and rediss:// schemes; Valkey
	// is wire-compatible, so treat valkey:// as an alias.
	const valkeyPrefix = "valkey://"
	if len(url) >= len(valkeyPrefix) && url[:len(valkeyPrefix)] == valkeyPrefix {
		return "redis://" + url[len(valkeyPrefix):]
	}
	return url
}

func wrapErr(err error) error {
	if err == nil || errors.Is(err, redis.Nil) {
		return nil
	}
	return fmt.Errorf("%w: %v", kv.ErrTransient, err)
}

// Get implements kv.Store.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, wrapErr(err)
	}
	return v, true, nil
}

// Set implements kv.Store.
func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		return wrapErr(err)
	}
	return nil
}

// Delete implements kv.Store.
func (s *Store) Delete(ctx context.Context, key string) (bool, error) {
	n, err := s.rdb.Del(ctx, key).Result()
	if err != nil {
		return false, wrapErr(err)
	}
	return n > 0, nil
}

// Keys implements kv.Store. Uses SCAN rather than KEYS to avoid blocking
// the server on large keyspaces.
func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	var out []string
	iter := s.rdb.Scan(ctx, 0, prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		out = append(out, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, wrapErr(err)
	}
	return out, nil
}

// Length implements kv.Store.
func (s *Store) Length(ctx context.Context) (int, error) {
	n, err := s.rdb.DBSize(ctx).Result()
	if err != nil {
		return 0, wrapErr(err)
	}
	return int(n), nil
}

// AppendToList implements kv.Store. The RPUSH and EXPIRE run as a single
// MULTI/EXEC transaction pipeline so that list growth and TTL refresh are applied atomically: if
// EXPIRE fails after RPUSH succeeded, the whole operation reports failure
// and the caller must not treat the append as having happened.
func (s *Store) AppendToList(ctx context.Context, key string, value []byte, ttl time.Duration) (int, error) {
	pipe := s.rdb.TxPipeline()
	pushCmd := pipe.RPush(ctx, key, value)
	var expireCmd *redis.BoolCmd
	if ttl > 0 {
		expireCmd = pipe.Expire(ctx, key, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, wrapErr(err)
	}
	if err := pushCmd.Err(); err != nil {
		return 0, wrapErr(err)
	}
	if expireCmd != nil {
		if err := expireCmd.Err(); err != nil {
			return 0, wrapErr(err)
		}
	}
	return int(pushCmd.Val()), nil
}

// GetList implements kv.Store.
func (s *Store) GetList(ctx context.Context, key string) ([][]byte, error) {
	vals, err := s.rdb.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, wrapErr(err)
	}
	out := make([][]byte, len(vals))
	for i, v := range vals {
		out[i] = []byte(v)
	}
	return out, nil
}

// Close implements kv.Store.
func (s *Store) Close() error {
	return s.rdb.Close()
}

var _ kv.Store = (*Store)(nil)
