package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const createSessionTable = `CREATE TABLE IF NOT EXISTS frontoffice_session (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PGStore keeps values in a Postgres table.
type PGStore struct {
	pool      *pgxpool.Pool
	namespace string
}

// NewPGStore wraps an existing pool. Call EnsureSchema before first use.
func NewPGStore(pool *pgxpool.Pool, namespace string) *PGStore {
	return &PGStore{pool: pool, namespace: namespace}
}

// NewPool opens and pings a pgx pool.
func NewPool(ctx context.Context, databaseURL string, maxConns, minConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	cfg.MaxConns = maxConns
	cfg.MinConns = minConns

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// EnsureSchema creates the session table when missing.
func (s *PGStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, createSessionTable); err != nil {
		return fmt.Errorf("create session table: %w", err)
	}
	return nil
}

func (s *PGStore) key(k string) string { return s.namespace + k }

func (s *PGStore) Get(ctx context.Context, key string) (string, error) {
	var v string
	err := s.pool.QueryRow(ctx,
		`SELECT value FROM frontoffice_session WHERE key = $1`, s.key(key)).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("select session key %s: %w", key, err)
	}
	return v, nil
}

func (s *PGStore) SetAll(ctx context.Context, values map[string]string) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		for k, v := range values {
			_, err := tx.Exec(ctx, `
				INSERT INTO frontoffice_session (key, value, updated_at)
				VALUES ($1, $2, now())
				ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
				s.key(k), v)
			if err != nil {
				return fmt.Errorf("upsert session key %s: %w", k, err)
			}
		}
		return nil
	})
}

func (s *PGStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = s.key(k)
	}
	if _, err := s.pool.Exec(ctx, `DELETE FROM frontoffice_session WHERE key = ANY($1)`, full); err != nil {
		return fmt.Errorf("delete session keys: %w", err)
	}
	return nil
}

// Close releases the pool.
func (s *PGStore) Close() {
	s.pool.Close()
}

// Ping checks the database connection.
func (s *PGStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// PoolStats returns connection pool statistics.
func (s *PGStore) PoolStats() *PoolStats {
	stat := s.pool.Stat()
	return &PoolStats{
		TotalConns:      stat.TotalConns(),
		IdleConns:       stat.IdleConns(),
		AcquiredConns:   stat.AcquiredConns(),
		MaxConns:        stat.MaxConns(),
		AcquireCount:    stat.AcquireCount(),
		AcquireDuration: stat.AcquireDuration().String(),
	}
}
