// Package resilience wraps every external service call with circuit
// breaking, rate limiting, bounded retry with backoff, optional response
// caching, and fallback substitution.
//
// The central primitive is Call, which composes all of the above and always
// returns a Result envelope instead of an error for operation failures. The
// per-service breaker and limiter registries are process-wide and safe for
// concurrent use.
package resilience

import "time"

// ServiceConfig is the immutable per-service resilience policy. Instances
// are looked up from the defaults table by name or built ad hoc with
// NewServiceConfig.
type ServiceConfig struct {
	Name string

	// Circuit breaker: trip after CircuitFailMax consecutive failures,
	// allow a probe after CircuitResetTimeout.
	CircuitFailMax      int
	CircuitResetTimeout time.Duration

	// Retry loop bounds and exponential backoff shape.
	RetryAttempts   int
	RetryMinWait    time.Duration
	RetryMaxWait    time.Duration
	RetryMultiplier float64

	// Token bucket: RateLimitCalls per RateLimitPeriod. Acquiring waits,
	// it never rejects.
	RateLimitCalls  int
	RateLimitPeriod time.Duration

	// Per-attempt timeout.
	Timeout time.Duration

	// Cache TTL for successful responses; zero disables caching.
	CacheTTL time.Duration
}

// Service names with tuned default policies.
const (
	ServiceGemini    = "gemini"
	ServicePlaces    = "google_places"
	ServiceAmadeus   = "amadeus"
	ServiceHotelbeds = "hotelbeds"
	ServiceTransport = "transport"
)

func defaultServiceConfigs() map[string]ServiceConfig {
	base := ServiceConfig{
		CircuitFailMax:      5,
		CircuitResetTimeout: 30 * time.Second,
		RetryAttempts:       3,
		RetryMinWait:        time.Second,
		RetryMaxWait:        10 * time.Second,
		RetryMultiplier:     2.0,
		RateLimitCalls:      50,
		RateLimitPeriod:     time.Minute,
		Timeout:             30 * time.Second,
		CacheTTL:            5 * time.Minute,
	}

	gemini := base
	gemini.Name = ServiceGemini
	gemini.Timeout = 60 * time.Second
	gemini.CacheTTL = 0 // vision results are not cached

	places := base
	places.Name = ServicePlaces
	places.RetryMinWait = 500 * time.Millisecond
	places.RetryMaxWait = 5 * time.Second
	places.RateLimitCalls = 10
	places.RateLimitPeriod = time.Second
	places.Timeout = 10 * time.Second
	places.CacheTTL = 30 * time.Minute

	amadeus := base
	amadeus.Name = ServiceAmadeus
	amadeus.RetryMaxWait = 8 * time.Second
	amadeus.RateLimitCalls = 5
	amadeus.RateLimitPeriod = time.Second
	amadeus.Timeout = 15 * time.Second
	amadeus.CacheTTL = 5 * time.Minute

	hotelbeds := amadeus
	hotelbeds.Name = ServiceHotelbeds
	hotelbeds.CacheTTL = 10 * time.Minute

	// The chat transport gets a more forgiving breaker.
	transport := base
	transport.Name = ServiceTransport
	transport.CircuitFailMax = base.CircuitFailMax * 2
	transport.CircuitResetTimeout = base.CircuitResetTimeout * 2
	transport.RetryMinWait = 500 * time.Millisecond
	transport.RetryMaxWait = 5 * time.Second
	transport.RateLimitCalls = 30
	transport.RateLimitPeriod = time.Second
	transport.CacheTTL = 0

	return map[string]ServiceConfig{
		ServiceGemini:    gemini,
		ServicePlaces:    places,
		ServiceAmadeus:   amadeus,
		ServiceHotelbeds: hotelbeds,
		ServiceTransport: transport,
	}
}

var serviceConfigs = defaultServiceConfigs()

// ConfigOption overrides a field when cloning a ServiceConfig.
type ConfigOption func(*ServiceConfig)

func WithCircuitFailMax(n int) ConfigOption {
	return func(c *ServiceConfig) { c.CircuitFailMax = n }
}

func WithCircuitResetTimeout(d time.Duration) ConfigOption {
	return func(c *ServiceConfig) { c.CircuitResetTimeout = d }
}

func WithRetryAttempts(n int) ConfigOption {
	return func(c *ServiceConfig) { c.RetryAttempts = n }
}

func WithRetryWait(min, max time.Duration) ConfigOption {
	return func(c *ServiceConfig) {
		c.RetryMinWait = min
		c.RetryMaxWait = max
	}
}

func WithRetryMultiplier(m float64) ConfigOption {
	return func(c *ServiceConfig) { c.RetryMultiplier = m }
}

func WithRateLimit(calls int, period time.Duration) ConfigOption {
	return func(c *ServiceConfig) {
		c.RateLimitCalls = calls
		c.RateLimitPeriod = period
	}
}

func WithTimeout(d time.Duration) ConfigOption {
	return func(c *ServiceConfig) { c.Timeout = d }
}

func WithCacheTTL(d time.Duration) ConfigOption {
	return func(c *ServiceConfig) { c.CacheTTL = d }
}

// NewServiceConfig clones the named default config, or starts from the
// generic baseline for unknown names, and applies overrides.
func NewServiceConfig(name string, opts ...ConfigOption) ServiceConfig {
	cfg, ok := serviceConfigs[name]
	if !ok {
		cfg = ServiceConfig{
			Name:                name,
			CircuitFailMax:      5,
			CircuitResetTimeout: 30 * time.Second,
			RetryAttempts:       3,
			RetryMinWait:        time.Second,
			RetryMaxWait:        10 * time.Second,
			RetryMultiplier:     2.0,
			RateLimitCalls:      50,
			RateLimitPeriod:     time.Minute,
			Timeout:             30 * time.Second,
			CacheTTL:            5 * time.Minute,
		}
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// KnownServiceNames returns the names with default policies, for the health
// surface.
func KnownServiceNames() []string {
	names := make([]string, 0, len(serviceConfigs))
	for name := range serviceConfigs {
		names = append(names, name)
	}
	return names
}
