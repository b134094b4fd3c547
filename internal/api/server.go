package api

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/pocketllm/mediabox/internal/service"
)

// Server represents the HTTP API server for the mediabox sidecar.
type Server struct {
	service *service.MediaboxService
	version string
	server  *http.Server
}

// New creates a new Server instance.
func New(svc *service.MediaboxService, version string) *Server {
	return &Server{
		service: svc,
		version: version,
	}
}

// Start initializes and starts the HTTP server on the specified port.
func (s *Server) Start(port string) error {
	s.server = &http.Server{
		Addr:              ":" + port,
		Handler:           s.router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s.server.ListenAndServe()
}

// router assembles the middleware stack and routes.
func (s *Server) router() http.Handler {
	router := chi.NewRouter()

	cop := http.NewCrossOriginProtection()
	router.Use(func(next http.Handler) http.Handler {
		return cop.Handler(next)
	})

	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(middleware.RealIP)

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		respondError(w, http.StatusNotFound, "Endpoint not found")
	})

	router.Route("/api", func(r chi.Router) {
		r.Use(middleware.SetHeader("Content-Type", "application/json; charset=utf-8"))

		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			respondError(w, http.StatusNotFound, "Endpoint not found")
		})

		r.Get("/health", s.handleHealth)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Use(middleware.Timeout(s.service.Config().API.GetRequestTimeout()))

			r.Route("/media", func(r chi.Router) {
				r.Post("/normalize", s.handleNormalize)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetMedia)
					r.Delete("/", s.handleDeleteMedia)
				})
			})

			r.Route("/cache", func(r chi.Router) {
				r.Get("/", s.handleCacheStats)
				r.Post("/evict", s.handleEvict)
				r.Get("/evict/status", s.handleEvictStatus)
			})
		})

		// File downloads are served via http.ServeFile and set their own
		// content type.
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Use(middleware.Timeout(s.service.Config().API.GetRequestTimeout()))

			r.Get("/media/{id}/file", s.handleGetMediaFile)
		})
	})

	return router
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cfg := s.service.Config()
		if !cfg.API.Enabled {
			next.ServeHTTP(w, r)
			return
		}

		apiKey := r.Header.Get("X-API-Key")

		if !s.isValidAPIKey(apiKey) {
			slog.Warn("Authentication failed",
				"reason", "invalid_api_key",
				"path", r.URL.Path,
				"method", r.Method,
				"remote_addr", r.RemoteAddr)

			respondError(w, http.StatusUnauthorized, "Unauthorized: invalid or missing API key")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) isValidAPIKey(key string) bool {
	return key != "" && slices.Contains(s.service.Config().API.Keys, key)
}

func mediaID(r *http.Request) string {
	return chi.URLParam(r, "id")
}
