// Package api assembles the HTTP router.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/dbgenie/dbgenie/internal/api/handlers"
	"github.com/dbgenie/dbgenie/internal/api/middleware"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates the HTTP router with all API routes.
func NewRouter(version string, h *handlers.Handlers) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Logger)
	r.Use(middleware.Telemetry)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", healthHandler)
	r.Get("/version", versionHandler(version))

	r.Post("/chat", h.Chat)
	r.Post("/chat/stream", h.ChatStream)

	r.Post("/session", h.CreateSession)
	r.Route("/session/{sessionID}", func(r chi.Router) {
		r.Get("/history", h.SessionHistory)
		r.Post("/clear", h.ClearSession)
		r.Delete("/", h.DeleteSession)
	})

	r.Route("/database", func(r chi.Router) {
		r.Get("/schema", h.DatabaseSchema)
		r.Get("/tables/{table}/sample", h.TableSample)
	})

	r.Post("/query/sql", h.RawSQL)
	r.Post("/visualize", h.Visualize)
	r.Post("/upload-pdf", h.UploadPDF)

	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "healthy",
		"service": "dbgenie-server",
	})
}

func versionHandler(version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"version": version,
			"service": "dbgenie-server",
		})
	}
}
