package resilience

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(name string, opts ...ConfigOption) ServiceConfig {
	base := []ConfigOption{
		WithRetryAttempts(3),
		WithRetryWait(time.Millisecond, 5*time.Millisecond),
		WithRateLimit(1000, time.Second),
		WithTimeout(time.Second),
		WithCircuitFailMax(100),
		WithCacheTTL(0),
	}
	return NewServiceConfig(name, append(base, opts...)...)
}

func resetRegistries(t *testing.T) {
	t.Helper()
	resetBreakersForTest()
	resetLimitersForTest()
}

func TestCallSucceedsFirstAttempt(t *testing.T) {
	resetRegistries(t)
	cfg := testConfig("svc-first")

	res := Call(context.Background(), cfg, func(ctx context.Context) (any, error) {
		return "ok", nil
	})

	require.True(t, res.Success)
	assert.Equal(t, "ok", res.Value)
	assert.Equal(t, 1, res.Attempts)
	assert.False(t, res.FromCache)
	assert.False(t, res.FromFallback)
	assert.Empty(t, res.Error)
	assert.Equal(t, StateClosed, res.CircuitState)
}

func TestCallRetriesUntilSuccess(t *testing.T) {
	resetRegistries(t)
	cfg := testConfig("svc-flaky")

	var calls int32
	res := Call(context.Background(), cfg, func(ctx context.Context) (any, error) {
		if atomic.AddInt32(&calls, 1) < 3 {
			return nil, errors.New("connection reset by peer")
		}
		return 42, nil
	})

	require.True(t, res.Success)
	assert.Equal(t, 42, res.Value)
	assert.Equal(t, 3, res.Attempts)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestCallExhaustsRetries(t *testing.T) {
	resetRegistries(t)
	cfg := testConfig("svc-down")

	var calls int32
	res := Call(context.Background(), cfg, func(ctx context.Context) (any, error) {
		atomic.AddInt32(&calls, 1)
		return nil, errors.New("connection refused")
	})

	require.False(t, res.Success)
	assert.Equal(t, cfg.RetryAttempts, res.Attempts)
	assert.EqualValues(t, cfg.RetryAttempts, atomic.LoadInt32(&calls))
	assert.Contains(t, res.Error, "connection refused")
	assert.Equal(t, CategoryTransient, res.Category)
}

func TestCallNonRetryableStillExhausts(t *testing.T) {
	resetRegistries(t)
	cfg := testConfig("svc-badkey")

	// Classification happens after exhaustion; a configuration error is
	// still attempted RetryAttempts times.
	var calls int32
	res := Call(context.Background(), cfg, func(ctx context.Context) (any, error) {
		atomic.AddInt32(&calls, 1)
		return nil, errors.New("invalid api key")
	})

	require.False(t, res.Success)
	assert.EqualValues(t, cfg.RetryAttempts, atomic.LoadInt32(&calls))
	assert.Equal(t, CategoryConfiguration, res.Category)
}

func TestCallFallbackValue(t *testing.T) {
	resetRegistries(t)
	cfg := testConfig("svc-fallback")

	res := Call(context.Background(), cfg,
		func(ctx context.Context) (any, error) {
			return nil, errors.New("connection refused")
		},
		WithFallbackValue("plan b"),
	)

	require.True(t, res.Success)
	assert.True(t, res.FromFallback)
	assert.False(t, res.FromCache)
	assert.Equal(t, "plan b", res.Value)
	// A successful fallback clears the failure fields.
	assert.Empty(t, res.Error)
	assert.Empty(t, string(res.Category))
}

func TestCallFallbackFuncError(t *testing.T) {
	resetRegistries(t)
	cfg := testConfig("svc-fallback-err")

	res := Call(context.Background(), cfg,
		func(ctx context.Context) (any, error) {
			return nil, errors.New("connection refused")
		},
		WithFallbackFunc(func() (any, error) {
			return nil, errors.New("fallback store empty")
		}),
	)

	require.False(t, res.Success)
	assert.Contains(t, res.Error, "fallback store empty")
}

func TestCallCacheHitAfterFailure(t *testing.T) {
	resetRegistries(t)
	cfg := testConfig("svc-stale", WithCacheTTL(time.Minute))

	get := func(ctx context.Context, key string) (any, bool) {
		return "stale but usable", true
	}
	set := func(ctx context.Context, key string, value any) {}

	res := Call(context.Background(), cfg,
		func(ctx context.Context) (any, error) {
			return nil, errors.New("503 unavailable")
		},
		WithCache(get, set, "k1"),
	)

	require.True(t, res.Success)
	assert.True(t, res.FromCache)
	assert.False(t, res.FromFallback)
	assert.Equal(t, "stale but usable", res.Value)
	// A cache hit after failure keeps the failure description.
	assert.NotEmpty(t, res.Error)
	assert.Equal(t, CategoryServerError, res.Category)
}

func TestCallCachePreferredOverFallback(t *testing.T) {
	resetRegistries(t)
	cfg := testConfig("svc-order", WithCacheTTL(time.Minute))

	get := func(ctx context.Context, key string) (any, bool) { return "cached", true }
	set := func(ctx context.Context, key string, value any) {}

	res := Call(context.Background(), cfg,
		func(ctx context.Context) (any, error) {
			return nil, errors.New("connection refused")
		},
		WithCache(get, set, "k2"),
		WithFallbackValue("fallback"),
	)

	require.True(t, res.Success)
	assert.True(t, res.FromCache)
	assert.Equal(t, "cached", res.Value)
}

func TestCallPopulatesCacheOnSuccess(t *testing.T) {
	resetRegistries(t)
	cfg := testConfig("svc-populate", WithCacheTTL(time.Minute))

	var storedKey string
	var storedValue any
	get := func(ctx context.Context, key string) (any, bool) { return nil, false }
	set := func(ctx context.Context, key string, value any) {
		storedKey = key
		storedValue = value
	}

	res := Call(context.Background(), cfg,
		func(ctx context.Context) (any, error) { return "fresh", nil },
		WithCache(get, set, "k3"),
	)

	require.True(t, res.Success)
	assert.Equal(t, "k3", storedKey)
	assert.Equal(t, "fresh", storedValue)
}

func TestCallZeroTTLSkipsCachePopulation(t *testing.T) {
	resetRegistries(t)
	cfg := testConfig("svc-nocache", WithCacheTTL(0))

	var sets int
	get := func(ctx context.Context, key string) (any, bool) { return nil, false }
	set := func(ctx context.Context, key string, value any) { sets++ }

	res := Call(context.Background(), cfg,
		func(ctx context.Context) (any, error) { return "fresh", nil },
		WithCache(get, set, "k4"),
	)

	require.True(t, res.Success)
	assert.Zero(t, sets)
}

func TestCallOpenCircuitShortCircuits(t *testing.T) {
	resetRegistries(t)
	cfg := testConfig("svc-tripped",
		WithCircuitFailMax(1),
		WithRetryAttempts(1),
		WithCircuitResetTimeout(time.Minute),
	)

	// One failure trips the breaker.
	first := Call(context.Background(), cfg, func(ctx context.Context) (any, error) {
		return nil, errors.New("connection refused")
	})
	require.False(t, first.Success)
	require.Equal(t, StateOpen, GetCircuitState(cfg.Name))

	// With the circuit open the operation must not be invoked at all.
	var calls int32
	second := Call(context.Background(), cfg,
		func(ctx context.Context) (any, error) {
			atomic.AddInt32(&calls, 1)
			return "live", nil
		},
		WithFallbackValue("degraded"),
	)

	require.True(t, second.Success)
	assert.True(t, second.FromFallback)
	assert.Equal(t, "degraded", second.Value)
	assert.Equal(t, StateOpen, second.CircuitState)
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestCallHalfOpenProbeCloses(t *testing.T) {
	resetRegistries(t)
	cfg := testConfig("svc-recover",
		WithCircuitFailMax(1),
		WithRetryAttempts(1),
		WithCircuitResetTimeout(30*time.Millisecond),
	)

	Call(context.Background(), cfg, func(ctx context.Context) (any, error) {
		return nil, errors.New("connection refused")
	})
	require.Equal(t, StateOpen, GetCircuitState(cfg.Name))

	time.Sleep(50 * time.Millisecond)

	res := Call(context.Background(), cfg, func(ctx context.Context) (any, error) {
		return "recovered", nil
	})

	require.True(t, res.Success)
	assert.Equal(t, "recovered", res.Value)
	assert.Equal(t, StateClosed, GetCircuitState(cfg.Name))
}

func TestCallTimeout(t *testing.T) {
	resetRegistries(t)
	cfg := testConfig("svc-slow",
		WithRetryAttempts(1),
		WithTimeout(20*time.Millisecond),
	)

	res := Call(context.Background(), cfg, func(ctx context.Context) (any, error) {
		select {
		case <-time.After(500 * time.Millisecond):
			return "too late", nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})

	require.False(t, res.Success)
	assert.Contains(t, res.Error, "timeout")
	assert.Equal(t, CategoryTransient, res.Category)
}

func TestTimeoutErrorClassifiesTransient(t *testing.T) {
	err := timeoutError(NewServiceConfig(ServiceGemini))

	assert.Equal(t, CategoryTransient, Categorize(err))
	assert.True(t, ShouldRetry(err))
	// The marker survives flattening to a plain string, so downstream
	// classifiers keep seeing a timeout.
	assert.Equal(t, CategoryTransient, Categorize(errors.New(err.Error())))
}

func TestDoReturnsCallError(t *testing.T) {
	resetRegistries(t)
	cfg := testConfig("svc-do")

	_, err := Do(context.Background(), cfg, func(ctx context.Context) (any, error) {
		return nil, errors.New("503 unavailable")
	})

	require.Error(t, err)
	var callErr *CallError
	require.ErrorAs(t, err, &callErr)
	assert.Equal(t, cfg.Name, callErr.Service)
	assert.Equal(t, CategoryServerError, callErr.Category)
	assert.Contains(t, err.Error(), cfg.Name)
}

func TestDoReturnsValueOnSuccess(t *testing.T) {
	resetRegistries(t)
	cfg := testConfig("svc-do-ok")

	v, err := Do(context.Background(), cfg, func(ctx context.Context) (any, error) {
		return "value", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "value", v)
}

func TestResetCircuitBreaker(t *testing.T) {
	resetRegistries(t)
	cfg := testConfig("svc-reset",
		WithCircuitFailMax(1),
		WithRetryAttempts(1),
		WithCircuitResetTimeout(time.Minute),
	)

	Call(context.Background(), cfg, func(ctx context.Context) (any, error) {
		return nil, errors.New("connection refused")
	})
	require.Equal(t, StateOpen, GetCircuitState(cfg.Name))

	require.True(t, ResetCircuitBreaker(cfg.Name))
	assert.Equal(t, StateClosed, GetCircuitState(cfg.Name))

	assert.False(t, ResetCircuitBreaker("never-created"))
}

func TestGetAllServiceHealth(t *testing.T) {
	resetRegistries(t)

	health := GetAllServiceHealth()
	require.NotEmpty(t, health)

	byName := map[string]ServiceHealth{}
	for _, h := range health {
		byName[h.Name] = h
	}
	for _, name := range KnownServiceNames() {
		h, ok := byName[name]
		require.True(t, ok, "missing health entry for %s", name)
		assert.True(t, h.Healthy)
		assert.Equal(t, StateClosed, h.CircuitState)
	}
}
