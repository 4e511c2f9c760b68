// Package api provides the HTTP API server that exposes a letters store to
// remote clients.
package api

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/itsluminous/Letters/internal/backend"
	"github.com/itsluminous/Letters/internal/config"
)

// BackendFor returns a backend acting as the given user.
type BackendFor func(userID string) backend.Backend

// Server represents the HTTP API server.
type Server struct {
	cfg         *config.Config
	backends    BackendFor
	tokens      map[string]string
	logger      *slog.Logger
	router      chi.Router
	server      *http.Server
	rateLimiter *RateLimiter
}

// NewServer creates a new API server.
func NewServer(cfg *config.Config, backends BackendFor, logger *slog.Logger) *Server {
	s := &Server{
		cfg:      cfg,
		backends: backends,
		tokens:   cfg.Server.TokenUsers(),
		logger:   logger,
	}
	s.router = s.setupRouter()
	return s
}

// setupRouter configures the chi router with all routes and middleware.
func (s *Server) setupRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(s.loggerMiddleware)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))

	// CORS middleware (config-driven; disabled when no origins configured)
	corsConfig := DefaultCORSConfig()
	corsConfig.AllowedOrigins = s.cfg.Server.CORSOrigins
	corsConfig.AllowCredentials = s.cfg.Server.CORSCredentials
	if s.cfg.Server.CORSMaxAge > 0 {
		corsConfig.MaxAge = s.cfg.Server.CORSMaxAge
	}
	r.Use(CORSMiddleware(corsConfig))

	rps, burst := s.cfg.Server.RateLimitRPS, s.cfg.Server.RateLimitBurst
	if rps <= 0 {
		rps = 10
	}
	if burst <= 0 {
		burst = 20
	}
	s.rateLimiter = NewRateLimiter(rps, burst)
	r.Use(RateLimitMiddleware(s.rateLimiter))

	// Health check (no auth required)
	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Get("/auth/v1/user", s.handleUser)

		r.Get("/rest/v1/{table}", s.handleSelect)
		r.Patch("/rest/v1/{table}", s.handleUpdate)
		r.Post("/rest/v1/{table}", s.handleInsert)
		r.Delete("/rest/v1/{table}", s.handleDelete)
	})

	return r
}

// Start begins listening for HTTP requests.
// Returns an error if the security posture is invalid.
func (s *Server) Start() error {
	if err := s.cfg.Server.ValidateSecure(); err != nil {
		return err
	}

	bindAddr := s.cfg.Server.BindAddr
	if bindAddr == "" {
		bindAddr = "127.0.0.1"
	}
	addr := net.JoinHostPort(bindAddr, strconv.Itoa(s.cfg.Server.APIPort))

	if len(s.tokens) == 0 {
		s.logger.Warn("API server has no tokens; requests act as [identity] user_id",
			"user_id", s.cfg.Identity.UserID)
	}

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	s.logger.Info("starting API server", "addr", addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.rateLimiter != nil {
		s.rateLimiter.Close()
	}
	if s.server == nil {
		return nil
	}
	s.logger.Info("shutting down API server")
	return s.server.Shutdown(ctx)
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// loggerMiddleware logs HTTP requests.
func (s *Server) loggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			s.logger.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", chimw.GetReqID(r.Context()),
				"user_id", UserID(r.Context()),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}

// authMiddleware resolves the bearer token to a user id. With no tokens
// configured every request acts as the configured identity, if any.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var (
			userID string
			ok     bool
		)
		if len(s.tokens) == 0 {
			userID, ok = s.cfg.Identity.UserID, s.cfg.Identity.UserID != ""
		} else {
			userID, ok = lookupToken(s.tokens, requestToken(r))
		}

		if !ok {
			s.logger.Warn("unauthorized API request",
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr,
			)
			writeError(w, http.StatusUnauthorized, "unauthorized", "Invalid or missing token", "")
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
