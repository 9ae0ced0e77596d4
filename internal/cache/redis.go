package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	errx "github.com/stylebot/server/internal/core/error"
	logx "github.com/stylebot/server/pkg/logger"
)

// RedisStore wraps a pooled Redis client behind the Store contract.
//
// Every operation catches the backend error, logs it, and returns a neutral
// failure value instead of propagating. Session and resilience callers are
// written to degrade rather than crash when Redis misbehaves.
type RedisStore struct {
	rdb redis.Cmdable
}

func NewRedisStore(rdb redis.Cmdable) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool) {
	val, err := s.rdb.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logx.Error().Err(errx.WrapRedis(err)).Str("key", key).Msg("redis get failed")
		}
		return "", false
	}
	return val, true
}

func (s *RedisStore) Set(ctx context.Context, key, value string, ttlSeconds int) bool {
	var err error
	if ttlSeconds > 0 {
		err = s.rdb.SetEx(ctx, key, value, time.Duration(ttlSeconds)*time.Second).Err()
	} else {
		err = s.rdb.Set(ctx, key, value, 0).Err()
	}
	if err != nil {
		logx.Error().Err(errx.WrapRedis(err)).Str("key", key).Msg("redis set failed")
		return false
	}
	return true
}

func (s *RedisStore) Delete(ctx context.Context, key string) bool {
	if err := s.rdb.Del(ctx, key).Err(); err != nil {
		logx.Error().Err(errx.WrapRedis(err)).Str("key", key).Msg("redis delete failed")
		return false
	}
	return true
}

func (s *RedisStore) Exists(ctx context.Context, key string) bool {
	n, err := s.rdb.Exists(ctx, key).Result()
	if err != nil {
		logx.Error().Err(errx.WrapRedis(err)).Str("key", key).Msg("redis exists failed")
		return false
	}
	return n > 0
}

func (s *RedisStore) Increment(ctx context.Context, key string) (int64, bool) {
	n, err := s.rdb.Incr(ctx, key).Result()
	if err != nil {
		logx.Error().Err(errx.WrapRedis(err)).Str("key", key).Msg("redis incr failed")
		return 0, false
	}
	return n, true
}

func (s *RedisStore) Expire(ctx context.Context, key string, ttlSeconds int) bool {
	ok, err := s.rdb.Expire(ctx, key, time.Duration(ttlSeconds)*time.Second).Result()
	if err != nil {
		logx.Error().Err(errx.WrapRedis(err)).Str("key", key).Msg("redis expire failed")
		return false
	}
	return ok
}

func (s *RedisStore) Ping(ctx context.Context) bool {
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		logx.Error().Err(errx.WrapRedis(err)).Msg("redis ping failed")
		return false
	}
	return true
}

func (s *RedisStore) Close() error {
	if c, ok := s.rdb.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

var _ Store = (*RedisStore)(nil)
