package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"
)

// PostgresKV backs the store with a Postgres table, for deployments where
// multiple core processes share state.
type PostgresKV struct {
	db *sql.DB
}

// OpenPostgres connects to databaseURL and ensures the kv table exists.
func OpenPostgres(databaseURL string) (*PostgresKV, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	p := &PostgresKV{db: db}
	if err := p.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return p, nil
}

// NewPostgresKV wraps an existing connection. The caller owns migration;
// tests use this with sqlmock.
func NewPostgresKV(db *sql.DB) *PostgresKV {
	return &PostgresKV{db: db}
}

func (p *PostgresKV) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS aec_kv (
		key   TEXT PRIMARY KEY,
		value BYTEA NOT NULL
	);`
	if _, err := p.db.ExecContext(context.Background(), query); err != nil {
		return fmt.Errorf("migrate aec_kv table: %w", err)
	}
	return nil
}

func (p *PostgresKV) Put(ctx context.Context, key string, value []byte) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO aec_kv (key, value) VALUES ($1, $2)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`, key, value)
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

func (p *PostgresKV) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := p.db.QueryRowContext(ctx, `SELECT value FROM aec_kv WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return value, nil
}

func (p *PostgresKV) Delete(ctx context.Context, key string) error {
	if _, err := p.db.ExecContext(ctx, `DELETE FROM aec_kv WHERE key = $1`, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

func (p *PostgresKV) Scan(ctx context.Context, prefix string) ([]Entry, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT key, value FROM aec_kv WHERE key LIKE $1 || '%' ORDER BY key`, prefix)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", prefix, err)
	}
	defer func() { _ = rows.Close() }()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Key, &e.Value); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan rows: %w", err)
	}
	return out, nil
}

func (p *PostgresKV) Close() error {
	return p.db.Close()
}
