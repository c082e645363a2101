package kv

import (
	"context"
	"time"

	"parent-portal/internal/common/database"
)

// RedisStore keeps drafts in Redis under prefix+key, optionally expiring them.
type RedisStore struct {
	client *database.RedisClient
	prefix string
	ttl    time.Duration
}

func NewRedisStore(client *database.RedisClient, prefix string, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

func (r *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	return r.client.Lookup(ctx, r.prefix+key)
}

func (r *RedisStore) Set(ctx context.Context, key, value string) error {
	return r.client.Set(ctx, r.prefix+key, value, r.ttl)
}

func (r *RedisStore) Remove(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.prefix+key)
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
