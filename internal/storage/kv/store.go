// Package kv is the key-value storage the draft agent writes to.
package kv

import (
	"context"
	"fmt"
	"time"

	"parent-portal/internal/common/config"
	"parent-portal/internal/common/database"
)

// Store is the minimal storage contract: get, set and remove a string by key.
// Get reports found=false for a missing key; that is not an error.
type Store interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// Closer is implemented by stores holding a connection.
type Closer interface {
	Close() error
}

// Open builds the store selected by cfg.Driver and checks connectivity.
func Open(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	switch cfg.Driver {
	case "", config.DriverMemory:
		return NewMemoryStore(), nil

	case config.DriverRedis:
		rc, err := database.ConnectRedis(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		ttl := time.Duration(cfg.Redis.TTLHours) * time.Hour
		return NewRedisStore(rc, cfg.Redis.KeyPrefix, ttl), nil

	case config.DriverPostgres:
		pg, err := database.ConnectPostgres(ctx, cfg.Postgres)
		if err != nil {
			return nil, err
		}
		store, err := NewPostgresStore(pg, cfg.Postgres.Table)
		if err != nil {
			_ = pg.Close()
			return nil, err
		}
		if err := store.EnsureSchema(ctx); err != nil {
			_ = pg.Close()
			return nil, err
		}
		return store, nil
	}
	return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
}
