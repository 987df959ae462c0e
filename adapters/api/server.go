// Package api exposes the analysis engine over HTTP. The surface is thin:
// requests map directly onto application-service calls and responses are the
// same documents the report emitter writes.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"phonostat/app"
	"phonostat/internal"
)

// Server wires HTTP routes to the analysis service
type Server struct {
	service *app.AnalysisService
	logger  *internal.Logger
	router  chi.Router
}

// NewServer creates the HTTP server with routes mounted
func NewServer(service *app.AnalysisService, logger *internal.Logger) *Server {
	s := &Server{
		service: service,
		logger:  logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Minute))

	r.Get("/healthz", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/analyze", s.handleAnalyze)
		r.Post("/extract", s.handleExtract)
		r.Post("/meta", s.handleMeta)
	})
	s.router = r
	return s
}

// Handler returns the mounted router
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe starts the server on addr
func (s *Server) ListenAndServe(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("http server listening on %s", addr)
	return srv.ListenAndServe()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":            "ok",
		"extractor_version": string(s.service.ExtractorVersion()),
	})
}
