package docstore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

type Options struct {
	Backend       string
	RedisAddr     string
	RedisPassword string
	DatabaseURL   string
	Logger        zerolog.Logger
}

// Open builds the backend named by opts.Backend. The returned close function
// releases its connections and is safe to call once.
func Open(ctx context.Context, opts Options) (Store, func(), error) {
	switch opts.Backend {
	case "", BackendMemory:
		return NewMemoryStore(), func() {}, nil

	case BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     opts.RedisAddr,
			Password: opts.RedisPassword,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("redis ping failed: %w", err)
		}
		closeFn := func() {
			if err := client.Close(); err != nil {
				opts.Logger.Warn().Err(err).Msg("redis close error")
			}
		}
		return NewRedisStore(client, opts.Logger), closeFn, nil

	case BackendPostgres:
		pool, err := NewPool(ctx, opts.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("db connection failed: %w", err)
		}
		store := NewPostgresStore(pool, opts.Logger)
		if err := store.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("db migrate failed: %w", err)
		}
		return store, pool.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", opts.Backend)
	}
}
