package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/stylebot/server/internal/agent/graph"
	"github.com/stylebot/server/internal/agent/model"
	"github.com/stylebot/server/internal/cache"
	"github.com/stylebot/server/internal/core"
	"github.com/stylebot/server/internal/server"
	"github.com/stylebot/server/internal/services"
	"github.com/stylebot/server/internal/session"
	logx "github.com/stylebot/server/pkg/logger"
)

// AppConfig defines all configurable parameters for the server, sourced
// from environment variables (loaded from .env for local runs).
type AppConfig struct {
	Environment string `envconfig:"APP_ENV" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	ListenAddr  string `envconfig:"LISTEN_ADDR" default:":8080"`

	// Infrastructure
	Cache cache.Config

	// LLM provider
	APIKey  string `envconfig:"GEMINI_API_KEY" required:"true"`
	BaseURL string `envconfig:"GEMINI_BASE_URL"`

	// Optional integrations
	PlacesAPIKey string `envconfig:"GOOGLE_PLACES_API_KEY"`

	// Agent configs
	Stylist      model.StylistModelConfig
	Vision       model.VisionModelConfig
	Prompt       model.PromptConfig
	Conversation model.ConversationConfig
}

func main() {
	// Load .env file
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("Failed to process environment config: %v", err)
	}

	logx.Init(logx.LoggerOpts{Environment: core.ParseEnvironment(cfg.Environment), Level: cfg.LogLevel})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := cache.GetStore(ctx, cfg.Cache)
	defer store.Close()

	sessions := session.NewManager(store)

	var places *services.PlacesClient
	if cfg.PlacesAPIKey != "" {
		places = services.NewPlacesClient(cfg.PlacesAPIKey, store)
	} else {
		logx.Warn().Msg("GOOGLE_PLACES_API_KEY not set, studio search disabled")
	}

	vision, err := services.NewVisionClient(ctx, cfg.APIKey, cfg.BaseURL, cfg.Vision.Model)
	if err != nil {
		logx.Warn().Err(err).Msg("Vision client unavailable, photo analysis disabled")
		vision = nil
	}

	runner, err := graph.BuildStylistGraph(ctx, graph.Config{
		APIKey:       cfg.APIKey,
		BaseURL:      cfg.BaseURL,
		StylistModel: cfg.Stylist,
		Prompt:       cfg.Prompt,
		Conversation: cfg.Conversation,
		Sessions:     sessions,
		Places:       places,
	})
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to build stylist graph")
	}

	handler := server.NewHandler(sessions, runner, vision, cfg.Conversation)
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           server.NewRouter(handler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logx.Info().Str("addr", cfg.ListenAddr).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logx.Fatal().Err(err).Msg("Server failed")
		}
	}()

	<-ctx.Done()
	logx.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logx.Error().Err(err).Msg("Graceful shutdown failed")
	}
}
