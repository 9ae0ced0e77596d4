package resilience

import (
	"sort"
	"sync"

	"github.com/sony/gobreaker/v2"

	"github.com/stylebot/server/internal/telemetry"
	logx "github.com/stylebot/server/pkg/logger"
)

// State is the externally visible circuit breaker state.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half_open"
)

func stateFrom(s gobreaker.State) State {
	switch s {
	case gobreaker.StateOpen:
		return StateOpen
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	default:
		return StateClosed
	}
}

func stateGaugeValue(s State) int {
	switch s {
	case StateOpen:
		return 1
	case StateHalfOpen:
		return 2
	default:
		return 0
	}
}

// ServiceHealth summarises one service for the health surface.
type ServiceHealth struct {
	Name         string `json:"name"`
	CircuitState State  `json:"circuit_state"`
	Healthy      bool   `json:"healthy"`
	FailureCount int    `json:"failure_count"`
}

// Process-wide breaker registry, one instance per service name, created
// lazily and kept for the process lifetime.
var (
	breakersMu sync.Mutex
	breakers   = map[string]*gobreaker.CircuitBreaker[any]{}
)

func newBreaker(cfg ServiceConfig) *gobreaker.CircuitBreaker[any] {
	return gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name: cfg.Name,
		// One probe call in half-open; success closes, failure reopens.
		MaxRequests: 1,
		Timeout:     cfg.CircuitResetTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(cfg.CircuitFailMax)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logx.Warn().
				Str("service", name).
				Str("from", string(stateFrom(from))).
				Str("to", string(stateFrom(to))).
				Msg("circuit state changed")
			telemetry.RecordCircuitState(name, stateGaugeValue(stateFrom(to)))
		},
	})
}

func getBreaker(cfg ServiceConfig) *gobreaker.CircuitBreaker[any] {
	breakersMu.Lock()
	defer breakersMu.Unlock()

	cb, ok := breakers[cfg.Name]
	if !ok {
		cb = newBreaker(cfg)
		breakers[cfg.Name] = cb
	}
	return cb
}

// GetCircuitState returns the breaker state for a service, Closed when no
// breaker has been created yet.
func GetCircuitState(name string) State {
	breakersMu.Lock()
	cb, ok := breakers[name]
	breakersMu.Unlock()

	if !ok {
		return StateClosed
	}
	return stateFrom(cb.State())
}

// GetAllCircuitStates returns the state of every instantiated breaker.
func GetAllCircuitStates() map[string]State {
	breakersMu.Lock()
	defer breakersMu.Unlock()

	out := make(map[string]State, len(breakers))
	for name, cb := range breakers {
		out[name] = stateFrom(cb.State())
	}
	return out
}

// ResetCircuitBreaker recreates the breaker for a service with a fresh
// closed state. Returns false when the service has no breaker yet.
func ResetCircuitBreaker(name string) bool {
	breakersMu.Lock()
	defer breakersMu.Unlock()

	if _, ok := breakers[name]; !ok {
		return false
	}
	breakers[name] = newBreaker(NewServiceConfig(name))
	logx.Info().Str("service", name).Msg("circuit breaker reset")
	telemetry.RecordCircuitState(name, 0)
	return true
}

// GetServiceHealth reports health for one service; unknown services are
// healthy by definition.
func GetServiceHealth(name string) ServiceHealth {
	breakersMu.Lock()
	cb, ok := breakers[name]
	breakersMu.Unlock()

	if !ok {
		return ServiceHealth{
			Name:         name,
			CircuitState: StateClosed,
			Healthy:      true,
		}
	}

	state := stateFrom(cb.State())
	return ServiceHealth{
		Name:         name,
		CircuitState: state,
		Healthy:      state == StateClosed,
		FailureCount: int(cb.Counts().ConsecutiveFailures),
	}
}

// GetAllServiceHealth reports health for every known or instantiated
// service, sorted by name.
func GetAllServiceHealth() []ServiceHealth {
	names := map[string]struct{}{}
	for _, n := range KnownServiceNames() {
		names[n] = struct{}{}
	}
	breakersMu.Lock()
	for n := range breakers {
		names[n] = struct{}{}
	}
	breakersMu.Unlock()

	sorted := make([]string, 0, len(names))
	for n := range names {
		sorted = append(sorted, n)
	}
	sort.Strings(sorted)

	out := make([]ServiceHealth, 0, len(sorted))
	for _, n := range sorted {
		out = append(out, GetServiceHealth(n))
	}
	return out
}

// resetBreakersForTest empties the registry so tests start from a clean
// closed state.
func resetBreakersForTest() {
	breakersMu.Lock()
	defer breakersMu.Unlock()
	breakers = map[string]*gobreaker.CircuitBreaker[any]{}
}
