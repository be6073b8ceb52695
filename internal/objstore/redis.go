package objstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "tenant:config:"

// RedisStore keeps one string value per key
type RedisStore struct {
	rdb redis.UniversalClient
}

func NewRedis(rdb redis.UniversalClient) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (r *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := r.rdb.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis GET: %w", err)
	}
	return data, nil
}

func (r *RedisStore) Put(ctx context.Context, key string, data []byte) error {
	if err := r.rdb.Set(ctx, redisKeyPrefix+key, data, 0).Err(); err != nil {
		return fmt.Errorf("redis SET: %w", err)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, key string) error {
	if err := r.rdb.Del(ctx, redisKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("redis DEL: %w", err)
	}
	return nil
}
