package session

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "session:"

// RedisBackend keeps sessions in Redis with a sliding TTL.
type RedisBackend struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisBackend(client *redis.Client, ttl time.Duration) *RedisBackend {
	return &RedisBackend{client: client, ttl: ttl}
}

func (b *RedisBackend) Load(ctx context.Context, id string) ([]byte, error) {
	key := redisKeyPrefix + id
	data, err := b.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := b.client.Expire(ctx, key, b.ttl).Err(); err != nil {
		return nil, err
	}
	return data, nil
}

func (b *RedisBackend) Save(ctx context.Context, id string, data []byte) error {
	return b.client.Set(ctx, redisKeyPrefix+id, data, b.ttl).Err()
}

func (b *RedisBackend) Delete(ctx context.Context, id string) error {
	return b.client.Del(ctx, redisKeyPrefix+id).Err()
}
