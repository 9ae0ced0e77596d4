package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker/v2"

	"github.com/stylebot/server/internal/telemetry"
	logx "github.com/stylebot/server/pkg/logger"
)

// Operation is a protected external call. It should honor ctx cancellation;
// the engine additionally bounds each attempt with the configured timeout.
type Operation func(ctx context.Context) (any, error)

// Result is the envelope every protected call returns instead of an error.
// Success implies exactly one of: a live value (FromCache and FromFallback
// both false), a cached value, or a fallback value.
type Result struct {
	Success      bool
	Value        any
	Error        string
	Category     Category
	Attempts     int
	FromCache    bool
	FromFallback bool
	CircuitState State
}

// CacheGetFunc looks up a cached value for a key. False means miss or
// backend failure.
type CacheGetFunc func(ctx context.Context, key string) (any, bool)

// CacheSetFunc stores a value. Failures must be handled internally; the
// engine treats population as best-effort.
type CacheSetFunc func(ctx context.Context, key string, value any)

type callOptions struct {
	hasFallback  bool
	fallbackFunc func() (any, error)

	cacheGet CacheGetFunc
	cacheSet CacheSetFunc
	cacheKey string
}

// CallOption configures one Call invocation.
type CallOption func(*callOptions)

// WithFallbackValue substitutes a static value when the call cannot succeed.
func WithFallbackValue(v any) CallOption {
	return func(o *callOptions) {
		o.hasFallback = true
		o.fallbackFunc = func() (any, error) { return v, nil }
	}
}

// WithFallbackFunc substitutes a produced value when the call cannot
// succeed. A producer error is logged and leaves the result as a failure.
func WithFallbackFunc(fn func() (any, error)) CallOption {
	return func(o *callOptions) {
		o.hasFallback = true
		o.fallbackFunc = fn
	}
}

// WithCache wires a cache lookup/population pair and key into the call.
func WithCache(get CacheGetFunc, set CacheSetFunc, key string) CallOption {
	return func(o *callOptions) {
		o.cacheGet = get
		o.cacheSet = set
		o.cacheKey = key
	}
}

func (o *callOptions) lookupCache(ctx context.Context) (any, bool) {
	if o.cacheGet == nil || o.cacheKey == "" {
		return nil, false
	}
	return o.cacheGet(ctx, o.cacheKey)
}

// Call invokes op under the service's circuit breaker, rate limiter, retry
// policy, and timeout, consulting the cache and fallback when the live call
// cannot succeed.
//
// It never returns an error for operation failures; every failure path
// terminates in the returned Result.
func Call(ctx context.Context, cfg ServiceConfig, op Operation, opts ...CallOption) Result {
	o := &callOptions{}
	for _, opt := range opts {
		opt(o)
	}

	cb := getBreaker(cfg)
	limiter := getLimiter(cfg)

	res := Result{CircuitState: stateFrom(cb.State())}

	// An open breaker short-circuits to cache, then fallback.
	if cb.State() == gobreaker.StateOpen {
		logx.Warn().Str("service", cfg.Name).Msg("circuit open, checking cache and fallback")
		res.CircuitState = StateOpen

		if v, ok := o.lookupCache(ctx); ok {
			res.Success = true
			res.Value = v
			res.FromCache = true
			telemetry.RecordCall(cfg.Name, telemetry.OutcomeCache, 0)
			logx.Info().Str("service", cfg.Name).Str("cache_key", o.cacheKey).Msg("cache hit while circuit open")
			return res
		}

		return applyFallback(res, o, cfg.Name)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = cfg.RetryMinWait
	bo.MaxInterval = cfg.RetryMaxWait
	bo.Multiplier = cfg.RetryMultiplier
	bo.RandomizationFactor = 0
	bo.MaxElapsedTime = 0
	bo.Reset()

	var lastErr error
	attempts := 0
	tripped := false

	for attempts < cfg.RetryAttempts {
		if attempts > 0 {
			canceled := false
			select {
			case <-time.After(bo.NextBackOff()):
			case <-ctx.Done():
				lastErr = ctx.Err()
				canceled = true
			}
			if canceled {
				break
			}
		}
		attempts++

		// Token acquisition suspends until the service has capacity.
		if err := limiter.Wait(ctx); err != nil {
			lastErr = err
			break
		}

		value, err := cb.Execute(func() (any, error) {
			return runWithTimeout(ctx, cfg, op)
		})
		if err == nil {
			if o.cacheSet != nil && o.cacheKey != "" && cfg.CacheTTL > 0 {
				o.cacheSet(ctx, o.cacheKey, value)
			}
			res.Success = true
			res.Value = value
			res.Attempts = attempts
			res.CircuitState = stateFrom(cb.State())
			telemetry.RecordCall(cfg.Name, telemetry.OutcomeSuccess, attempts)
			logx.Debug().Str("service", cfg.Name).Int("attempts", attempts).Msg("resilient call succeeded")
			return res
		}

		lastErr = err

		// The breaker opening mid-loop aborts further attempts.
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			res.CircuitState = StateOpen
			res.Error = "service temporarily unavailable"
			res.Category = CategoryTransient
			res.Attempts = attempts
			tripped = true
			logx.Warn().Str("service", cfg.Name).Msg("circuit breaker tripped")
			break
		}
	}

	if !tripped && lastErr != nil {
		res.Error = lastErr.Error()
		res.Category = Categorize(lastErr)
		res.Attempts = attempts
		logx.Error().
			Str("service", cfg.Name).
			Int("attempts", attempts).
			Str("category", string(res.Category)).
			Err(lastErr).
			Msg("resilient call exhausted")
	}

	// Cache as a last resort before giving up.
	if v, ok := o.lookupCache(ctx); ok {
		res.Success = true
		res.Value = v
		res.FromCache = true
		telemetry.RecordCall(cfg.Name, telemetry.OutcomeCache, res.Attempts)
		logx.Info().Str("service", cfg.Name).Str("cache_key", o.cacheKey).Msg("served stale value from cache")
		return res
	}

	return applyFallback(res, o, cfg.Name)
}

func applyFallback(res Result, o *callOptions, serviceName string) Result {
	if !o.hasFallback {
		telemetry.RecordCall(serviceName, telemetry.OutcomeFailure, res.Attempts)
		return res
	}

	v, err := o.fallbackFunc()
	if err != nil {
		logx.Error().Str("service", serviceName).Err(err).Msg("fallback producer failed")
		res.Error = err.Error()
		telemetry.RecordCall(serviceName, telemetry.OutcomeFailure, res.Attempts)
		return res
	}

	res.Success = true
	res.Value = v
	res.FromFallback = true
	res.Error = ""
	res.Category = ""
	telemetry.RecordCall(serviceName, telemetry.OutcomeFallback, res.Attempts)
	logx.Info().Str("service", serviceName).Msg("applied fallback")
	return res
}

// runWithTimeout bounds a single attempt. The operation runs in its own
// goroutine so a call that ignores ctx still cannot hold the attempt past
// the deadline; a timeout surfaces as an error the classifier and breaker
// both count.
func runWithTimeout(ctx context.Context, cfg ServiceConfig, op Operation) (any, error) {
	callCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	type outcome struct {
		value any
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		v, err := op(callCtx)
		done <- outcome{v, err}
	}()

	select {
	case out := <-done:
		if out.err != nil && errors.Is(out.err, context.DeadlineExceeded) {
			return nil, timeoutError(cfg)
		}
		return out.value, out.err
	case <-callCtx.Done():
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return nil, timeoutError(cfg)
		}
		return nil, callCtx.Err()
	}
}

// TimeoutError marks an attempt that exceeded the per-attempt budget. Both
// its type name and message carry the "timeout" marker the classifiers match
// on, so the error stays transient even after being flattened to a string.
type TimeoutError struct {
	Service string
	Limit   time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("call to %s exceeded timeout of %s", e.Service, e.Limit)
}

func timeoutError(cfg ServiceConfig) error {
	return &TimeoutError{Service: cfg.Name, Limit: cfg.Timeout}
}

// CallError is returned by Do when a protected call fails without a usable
// fallback.
type CallError struct {
	Service  string
	Category Category
	Message  string
}

func (e *CallError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: resilient call failed", e.Service)
	}
	return fmt.Sprintf("%s: %s", e.Service, e.Message)
}

// Do is the opt-in error-propagating form of Call: callers that prefer a
// (value, error) pair over inspecting the Result envelope get the classified
// failure back as a CallError.
func Do(ctx context.Context, cfg ServiceConfig, op Operation, opts ...CallOption) (any, error) {
	res := Call(ctx, cfg, op, opts...)
	if res.Success {
		return res.Value, nil
	}
	return nil, &CallError{
		Service:  cfg.Name,
		Category: res.Category,
		Message:  res.Error,
	}
}
