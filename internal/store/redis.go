package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// keyPrefix namespaces collection keys in a shared Redis instance.
const keyPrefix = "expense-ingest:"

// RedisCollections keeps each collection as one Redis string value. Redis
// serializes the GET/SET pair per key, and the expense Store above holds its
// own mutex around read-modify-write, so overlapping sessions cannot lose
// updates.
type RedisCollections struct {
	client *redis.Client
}

// NewRedisCollections connects and pings the instance so a bad address fails
// at startup rather than on first use.
func NewRedisCollections(ctx context.Context, addr string) (*RedisCollections, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis %s: %w", addr, err)
	}
	return &RedisCollections{client: client}, nil
}

func (r *RedisCollections) Get(ctx context.Context, name string) ([]byte, error) {
	data, err := r.client.Get(ctx, keyPrefix+name).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read collection %s: %w", name, err)
	}
	return data, nil
}

func (r *RedisCollections) Set(ctx context.Context, name string, data []byte) error {
	if err := r.client.Set(ctx, keyPrefix+name, data, 0).Err(); err != nil {
		return fmt.Errorf("write collection %s: %w", name, err)
	}
	return nil
}

// Close releases the client connection pool.
func (r *RedisCollections) Close() error {
	return r.client.Close()
}
