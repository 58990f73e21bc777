package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MikeSquared-Agency/mimic/internal/chunker"
	"github.com/MikeSquared-Agency/mimic/internal/dataset"
)

// Builder is the part of *dataset.Builder the API drives.
type Builder interface {
	Build(ctx context.Context, o dataset.Overrides) (*dataset.Manifest, error)
	Last() *dataset.Manifest
	Running() bool
	Config() dataset.Config
	Counter() chunker.Counter
}

type Server struct {
	router  *chi.Mux
	port    int
	builder Builder
	logger  *slog.Logger
	ctx     context.Context
}

// NewServer wires the routes. With a non-empty apiToken every /api/v1 route
// requires it as a bearer token.
func NewServer(port int, apiToken string, b Builder, logger *slog.Logger) *Server {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	s := &Server{
		router:  router,
		port:    port,
		builder: b,
		logger:  logger,
		ctx:     context.Background(),
	}

	router.Get("/health", s.health)
	router.Route("/api/v1/mimic", func(r chi.Router) {
		if apiToken != "" {
			r.Use(BearerAuthMiddleware(apiToken))
		}
		r.Get("/status", s.status)
		r.Post("/chunks", s.chunks)
		r.Post("/builds", s.startBuild)
	})

	return s
}

// Start serves until ctx is cancelled, then shuts down gracefully. Builds
// started over HTTP run under ctx.
func (s *Server) Start(ctx context.Context) error {
	s.ctx = ctx
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("API server starting", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}

// BearerAuthMiddleware rejects requests that do not carry the token.
func BearerAuthMiddleware(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type statusResponse struct {
	Agent            string            `json:"agent"`
	Running          bool              `json:"running"`
	Encoding         string            `json:"encoding"`
	MaxContextLength int               `json:"max_context_length"`
	LastRun          *dataset.Manifest `json:"last_run,omitempty"`
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	cfg := s.builder.Config()
	writeJSON(w, http.StatusOK, statusResponse{
		Agent:            "mimic",
		Running:          s.builder.Running(),
		Encoding:         cfg.Encoding,
		MaxContextLength: cfg.MaxContextLength,
		LastRun:          s.builder.Last(),
	})
}

// BuildRequest is the body of POST /api/v1/mimic/builds. It may be empty.
type BuildRequest struct {
	MaxContextLength int `json:"max_context_length,omitempty"`
}

func (s *Server) startBuild(w http.ResponseWriter, r *http.Request) {
	var req BuildRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
			return
		}
	}
	if req.MaxContextLength < 0 {
		writeError(w, http.StatusBadRequest, "max_context_length must not be negative")
		return
	}
	if s.builder.Running() {
		writeError(w, http.StatusConflict, dataset.ErrBuildInProgress.Error())
		return
	}

	go func() {
		_, err := s.builder.Build(s.ctx, dataset.Overrides{MaxContextLength: req.MaxContextLength})
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, dataset.ErrBuildInProgress) {
			s.logger.Error("requested build failed", "error", err)
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
