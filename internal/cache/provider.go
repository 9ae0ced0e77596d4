package cache

import (
	"context"
	"sync"

	logx "github.com/stylebot/server/pkg/logger"
	pkgredis "github.com/stylebot/server/pkg/redis"
)

// Config selects the backend for the process-wide store.
type Config struct {
	Redis pkgredis.Config

	// UseMemoryStore forces the in-process backend regardless of Redis
	// availability.
	UseMemoryStore bool `split_words:"true" default:"false"`
}

var (
	storeMu sync.Mutex
	store   Store
)

// GetStore returns the process-wide store, creating it on first use.
//
// Selection: when UseMemoryStore is set the in-process backend is always
// used. Otherwise a Redis client is constructed and pinged; any failure
// falls back to the in-process backend for the rest of the process lifetime.
// There is no automatic re-promotion to Redis; call ResetStore to retry.
func GetStore(ctx context.Context, cfg Config) Store {
	storeMu.Lock()
	defer storeMu.Unlock()

	if store != nil {
		return store
	}

	store = selectStore(ctx, cfg)
	return store
}

func selectStore(ctx context.Context, cfg Config) Store {
	if cfg.UseMemoryStore {
		logx.Info().Str("reason", "explicitly configured").Msg("selected in-memory store")
		return NewMemoryStore()
	}

	client, err := cfg.Redis.New()
	if err != nil {
		logx.Warn().Err(err).Msg("redis connection failed, falling back to in-memory store")
		return NewMemoryStore()
	}

	rs := NewRedisStore(client)
	if !rs.Ping(ctx) {
		logx.Warn().Msg("redis ping failed, falling back to in-memory store")
		return NewMemoryStore()
	}

	logx.Info().Msg("connected to redis store")
	return rs
}

// ResetStore closes and forgets the singleton so the next GetStore call
// re-runs backend selection. Intended for tests and administrative recovery.
func ResetStore() {
	storeMu.Lock()
	defer storeMu.Unlock()

	if store != nil {
		if err := store.Close(); err != nil {
			logx.Warn().Err(err).Msg("error closing store during reset")
		}
		store = nil
	}
}
