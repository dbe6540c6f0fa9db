package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"

	"dxdrive/internal/project"
)

// DefaultTTL bounds how long shared entries live.
const DefaultTTL = 7 * 24 * time.Hour

// KV is the part of the redis client the store uses.
type KV interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

var _ KV = (*redis.Client)(nil)

// RedisStore shares entries between machines through redis.
type RedisStore struct {
	kv     KV
	prefix string
	ttl    time.Duration
}

// NewRedisStore wraps kv. An empty prefix defaults to "dxdrive:obj:".
func NewRedisStore(kv KV, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "dxdrive:obj:"
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{kv: kv, prefix: prefix, ttl: ttl}
}

// DialRedis connects to addr and pings it.
func DialRedis(ctx context.Context, addr string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return rdb, nil
}

func (r *RedisStore) key(key project.Digest) string {
	return r.prefix + key.String()
}

// Get fetches and decodes an entry.
func (r *RedisStore) Get(ctx context.Context, key project.Digest, out *Entry) (bool, error) {
	data, err := r.kv.Get(ctx, r.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("redis get failed: %w", err)
	}
	if err := msgpack.Unmarshal(data, out); err != nil {
		return false, err
	}
	if err := out.check(); err != nil {
		return false, err
	}
	return true, nil
}

// Put encodes and stores an entry with the store's TTL.
func (r *RedisStore) Put(ctx context.Context, key project.Digest, e *Entry) error {
	data, err := msgpack.Marshal(e)
	if err != nil {
		return err
	}
	if err := r.kv.Set(ctx, r.key(key), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}
