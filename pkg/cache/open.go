package cache

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

// Options selects and addresses a backend for Open.
type Options struct {
	// Backend is BackendRedis, BackendPostgres or BackendMemory.
	Backend string

	RedisURL    string
	PostgresDSN string
}

// Open connects the selected backend. The Postgres schema is ensured before
// returning. The returned func releases the connection.
func Open(ctx context.Context, opts Options) (Store, func(), error) {
	switch opts.Backend {
	case BackendRedis:
		client, err := OpenRedis(ctx, opts.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		log.Info().Str("component", "cache").Str("backend", BackendRedis).Msg("Connected to Redis")
		return NewRedisStore(client), func() { _ = client.Close() }, nil

	case BackendPostgres:
		pool, err := OpenPostgres(ctx, opts.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		store := NewPostgresStore(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("ensure schema: %w", err)
		}
		log.Info().Str("component", "cache").Str("backend", BackendPostgres).Msg("Connected to Postgres, schema ensured")
		return store, pool.Close, nil

	case BackendMemory:
		log.Warn().Str("component", "cache").Str("backend", BackendMemory).Msg("Using in-memory cache; entries are lost on restart")
		return NewMemoryStore(), func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unknown cache backend %q", opts.Backend)
	}
}
