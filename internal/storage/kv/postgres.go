package kv

import (
	"context"
	"fmt"
	"regexp"

	"parent-portal/internal/common/database"
)

var tableNameRegex = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)

// PostgresStore keeps drafts in a single key/value table.
type PostgresStore struct {
	client *database.PostgresClient
	table  string
}

func NewPostgresStore(client *database.PostgresClient, table string) (*PostgresStore, error) {
	if !tableNameRegex.MatchString(table) {
		return nil, fmt.Errorf("invalid draft table name %q", table)
	}
	return &PostgresStore{client: client, table: table}, nil
}

// EnsureSchema creates the draft table when missing.
func (p *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := p.client.Exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			key        TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`, p.table))
	if err != nil {
		return fmt.Errorf("create draft table: %w", err)
	}
	return nil
}

func (p *PostgresStore) Get(ctx context.Context, key string) (string, bool, error) {
	return p.client.QueryString(ctx, fmt.Sprintf(`SELECT value FROM %s WHERE key = $1`, p.table), key)
}

func (p *PostgresStore) Set(ctx context.Context, key, value string) error {
	_, err := p.client.Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s (key, value, updated_at) VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`, p.table),
		key, value)
	return err
}

func (p *PostgresStore) Remove(ctx context.Context, key string) error {
	_, err := p.client.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE key = $1`, p.table), key)
	return err
}

func (p *PostgresStore) Close() error {
	return p.client.Close()
}
