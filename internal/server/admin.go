package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/stylebot/server/internal/resilience"
	logx "github.com/stylebot/server/pkg/logger"
)

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HealthServices reports per-service circuit health for all known services.
func (h *Handler) HealthServices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, resilience.GetAllServiceHealth())
}

// HealthCircuits reports the raw state of every instantiated breaker.
func (h *Handler) HealthCircuits(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, resilience.GetAllCircuitStates())
}

// ResetCircuit force-closes one circuit breaker by name.
func (h *Handler) ResetCircuit(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if !resilience.ResetCircuitBreaker(name) {
		writeError(w, http.StatusNotFound, "no circuit breaker for service "+name)
		return
	}

	logx.Info().Str("service", name).Msg("Circuit breaker reset via admin endpoint")
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset", "service": name})
}
