// Package server assembles the chi router over the API handlers.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/drywaters/recapd/internal/config"
	"github.com/drywaters/recapd/internal/coordinator"
	"github.com/drywaters/recapd/internal/extractor"
	"github.com/drywaters/recapd/internal/handler"
	"github.com/drywaters/recapd/internal/middleware"
)

// Server represents the HTTP server
type Server struct {
	cfg         *config.Config
	coordinator *coordinator.Coordinator
	runtime     *extractor.Runtime
}

// New creates a new Server
func New(cfg *config.Config, coord *coordinator.Coordinator, runtime *extractor.Runtime) *Server {
	return &Server{
		cfg:         cfg,
		coordinator: coord,
		runtime:     runtime,
	}
}

// Router returns the configured chi router
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger)
	r.Use(chimw.Recoverer)

	api := handler.NewAPI(s.coordinator, s.runtime)

	r.Get("/health", api.Health)

	// Protected API
	r.Group(func(r chi.Router) {
		r.Use(middleware.APIKey(s.cfg.APIKeyHash))

		r.Post("/api/summarize", api.Summarize)
		r.Get("/api/summaries/{videoID}", api.GetSummary)
		r.Post("/api/export", api.Export)
		r.Post("/api/key", api.SetKey)

		r.Post("/api/tabs/{contextID}", api.AttachTab)
		r.Delete("/api/tabs/{contextID}", api.DetachTab)
		r.Get("/api/tabs/{contextID}/verify", api.VerifyTab)
		r.Get("/api/tabs/{contextID}/metadata", api.TabMetadata)

		r.Get("/api/preferences", api.GetPreferences)
		r.Put("/api/preferences", api.PutPreferences)
	})

	return r
}
