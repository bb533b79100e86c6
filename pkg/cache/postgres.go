package cache

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schemaSQL string

// PostgresStore keeps entries in the comet_cache_entries table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// OpenPostgres creates a connection pool and verifies the connection.
func OpenPostgres(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return pool, nil
}

// NewPostgresStore creates a store on top of pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	if pool == nil {
		panic("postgres pool cannot be nil")
	}
	return &PostgresStore{pool: pool}
}

// EnsureSchema creates the table and lookup index if they do not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return storeError(BackendPostgres, "schema", err)
	}
	return nil
}

// Get retrieves the entry stored under key.
func (s *PostgresStore) Get(ctx context.Context, key Key) (*Entry, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT object_id, kind, written_at, payload
		FROM comet_cache_entries
		WHERE object_id = $1 AND kind = $2
	`, key.ObjectID, string(key.Kind))

	entry, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			recordMiss(BackendPostgres, key.Kind)
			return nil, ErrCacheMiss
		}
		return nil, storeError(BackendPostgres, "get", err)
	}

	recordHit(BackendPostgres, key.Kind)
	return entry, nil
}

// Put upserts entry.
func (s *PostgresStore) Put(ctx context.Context, entry *Entry) error {
	if err := entry.validate(); err != nil {
		return err
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO comet_cache_entries (object_id, kind, written_at, payload)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (object_id, kind) DO UPDATE
		SET written_at = EXCLUDED.written_at,
		    payload = EXCLUDED.payload
	`, entry.ObjectID, string(entry.Kind), entry.WrittenAt, []byte(entry.Payload))
	if err != nil {
		return storeError(BackendPostgres, "put", err)
	}

	recordWrite(BackendPostgres, entry)
	return nil
}

// List returns every entry of objectID, newest first.
func (s *PostgresStore) List(ctx context.Context, objectID string) ([]*Entry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT object_id, kind, written_at, payload
		FROM comet_cache_entries
		WHERE object_id = $1
		ORDER BY written_at DESC
	`, objectID)
	if err != nil {
		return nil, storeError(BackendPostgres, "list", err)
	}
	defer rows.Close()

	out := make([]*Entry, 0, 2)
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, storeError(BackendPostgres, "list", err)
		}
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError(BackendPostgres, "list", err)
	}
	return out, nil
}

// Ping checks the connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return storeError(BackendPostgres, "ping", err)
	}
	return nil
}

// Backend returns "postgres".
func (s *PostgresStore) Backend() string {
	return BackendPostgres
}

func scanEntry(row pgx.Row) (*Entry, error) {
	var (
		entry   Entry
		kind    string
		payload []byte
	)
	if err := row.Scan(&entry.ObjectID, &kind, &entry.WrittenAt, &payload); err != nil {
		return nil, err
	}
	entry.Kind = Kind(kind)
	entry.WrittenAt = entry.WrittenAt.UTC()
	entry.Payload = payload
	return &entry, nil
}
