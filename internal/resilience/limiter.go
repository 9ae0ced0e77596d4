package resilience

import (
	"sync"

	"golang.org/x/time/rate"
)

// Process-wide limiter registry, one token bucket per service name.
var (
	limitersMu sync.Mutex
	limiters   = map[string]*rate.Limiter{}
)

// getLimiter returns the shared limiter for the service, creating it with
// RateLimitCalls tokens per RateLimitPeriod on first use. Waiting on the
// limiter suspends the caller until capacity is available; it never rejects.
func getLimiter(cfg ServiceConfig) *rate.Limiter {
	limitersMu.Lock()
	defer limitersMu.Unlock()

	l, ok := limiters[cfg.Name]
	if !ok {
		perSecond := float64(cfg.RateLimitCalls) / cfg.RateLimitPeriod.Seconds()
		l = rate.NewLimiter(rate.Limit(perSecond), cfg.RateLimitCalls)
		limiters[cfg.Name] = l
	}
	return l
}

func resetLimitersForTest() {
	limitersMu.Lock()
	defer limitersMu.Unlock()
	limiters = map[string]*rate.Limiter{}
}
