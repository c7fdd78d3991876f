package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres implements Store on a single pgx-backed table
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres creates a Postgres store on the given pool
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// EnsureSchema creates the backing table and index if they do not exist
func (s *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS recapd_store (
			namespace TEXT NOT NULL,
			key TEXT NOT NULL,
			value JSONB NOT NULL,
			expires_at TIMESTAMPTZ,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (namespace, key)
		)
	`); err != nil {
		return fmt.Errorf("failed to ensure store table: %w", err)
	}

	if _, err := s.pool.Exec(ctx,
		`CREATE INDEX IF NOT EXISTS idx_recapd_store_expires_at ON recapd_store(expires_at) WHERE expires_at IS NOT NULL`,
	); err != nil {
		return fmt.Errorf("failed to ensure store index: %w", err)
	}

	return nil
}

// Get retrieves a value by namespace and key
func (s *Postgres) Get(ctx context.Context, namespace, key string) ([]byte, *time.Time, error) {
	query := `
		SELECT value, expires_at
		FROM recapd_store
		WHERE namespace = $1 AND key = $2
	`

	var value []byte
	var expiresAt *time.Time
	err := s.pool.QueryRow(ctx, query, namespace, key).Scan(&value, &expiresAt)
	if err == pgx.ErrNoRows {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get %s/%s: %w", namespace, key, err)
	}

	return value, expiresAt, nil
}

// Set upserts a value, replacing any existing entry for the key
func (s *Postgres) Set(ctx context.Context, namespace, key string, value []byte, expiresAt *time.Time) error {
	query := `
		INSERT INTO recapd_store (namespace, key, value, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (namespace, key) DO UPDATE SET
			value = EXCLUDED.value,
			expires_at = EXCLUDED.expires_at,
			updated_at = NOW()
	`

	if _, err := s.pool.Exec(ctx, query, namespace, key, value, expiresAt); err != nil {
		return fmt.Errorf("failed to set %s/%s: %w", namespace, key, err)
	}

	return nil
}

// Delete removes a key
func (s *Postgres) Delete(ctx context.Context, namespace, key string) error {
	if _, err := s.pool.Exec(ctx,
		`DELETE FROM recapd_store WHERE namespace = $1 AND key = $2`,
		namespace, key,
	); err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", namespace, key, err)
	}

	return nil
}

// DeleteExpired removes all expired entries across every namespace
func (s *Postgres) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM recapd_store WHERE expires_at IS NOT NULL AND expires_at <= $1`,
		now,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired entries: %w", err)
	}

	return tag.RowsAffected(), nil
}

// Close is a no-op; the pool is owned by the caller
func (s *Postgres) Close() {}
