package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stylebot/server/internal/agent/graph"
	"github.com/stylebot/server/internal/agent/model"
	"github.com/stylebot/server/internal/services"
	"github.com/stylebot/server/internal/session"
	logx "github.com/stylebot/server/pkg/logger"
)

// MaxMessageLength bounds one outbound chat message; longer replies are
// split into chunks.
const MaxMessageLength = 4096

// Handler carries the dependencies for the HTTP surface. Vision may be nil
// when no API key is configured; the photo endpoint then answers with its
// degraded-mode message.
type Handler struct {
	sessions *session.Manager
	runner   graph.Runner
	vision   *services.VisionClient
	rateCfg  model.ConversationConfig
}

func NewHandler(sessions *session.Manager, runner graph.Runner, vision *services.VisionClient, conv model.ConversationConfig) *Handler {
	return &Handler{
		sessions: sessions,
		runner:   runner,
		vision:   vision,
		rateCfg:  conv,
	}
}

// NewRouter creates a router with all routes configured
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Post("/chat", h.Chat)
	r.Post("/chat/photo", h.ChatPhoto)
	r.Post("/sessions/{id}/clear", h.ClearSession)

	r.Get("/healthz", h.Healthz)
	r.Get("/health/services", h.HealthServices)
	r.Get("/health/circuits", h.HealthCircuits)
	r.Post("/admin/circuits/{name}/reset", h.ResetCircuit)

	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logx.Error().Err(err).Msg("Failed to encode response")
	}
}

type errorBody struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}
