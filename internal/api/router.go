package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/rflorenc/apim-template-extractor/internal/config"
	"github.com/rflorenc/apim-template-extractor/internal/extract"
	"github.com/rflorenc/apim-template-extractor/internal/logging"
	"github.com/rflorenc/apim-template-extractor/internal/models"
)

// SourceFactory opens the source service of a run.
type SourceFactory func(cfg *config.Config, logger *slog.Logger) extract.Source

// Server holds shared state for all API handlers.
type Server struct {
	Jobs *models.JobStore
	// Defaults fills fields a request leaves unset (endpoint, token, output folder).
	Defaults config.Config
	// NewSource defaults to the management API client.
	NewSource SourceFactory
	Logger    *slog.Logger
}

// NewRouter builds the chi router with all API routes.
func NewRouter(s *Server) http.Handler {
	if s.Logger == nil {
		s.Logger = logging.Nop()
	}
	if s.NewSource == nil {
		s.NewSource = PlatformSource
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware)

	r.Route("/api", func(r chi.Router) {
		// Extractions (async)
		r.Post("/extractions", s.RunExtraction)
		r.Get("/kinds", s.ListKinds)

		// Jobs
		r.Get("/jobs", s.ListJobs)
		r.Get("/jobs/{id}", s.GetJob)
		r.Post("/jobs/{id}/cancel", s.CancelJob)
		r.Get("/jobs/{id}/bundle", s.GetJobBundle)
	})

	// WebSocket (outside /api to avoid JSON content-type assumptions)
	r.Get("/ws/jobs/{id}/logs", s.StreamJobLogs)

	return r
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
