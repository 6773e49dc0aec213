// Package api provides the development HTTP message server.
package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/mailpane/mailpane/internal/config"
	"github.com/mailpane/mailpane/internal/mailbox"
	"github.com/mailpane/mailpane/internal/store"
)

// shutdownTimeout bounds graceful shutdown once the run context ends.
const shutdownTimeout = 10 * time.Second

// MessageStore defines the store operations the API needs.
type MessageStore interface {
	Send(ctx context.Context, out store.Outgoing) (int64, error)
	Mailbox(ctx context.Context, owner string, mb mailbox.MailboxID) ([]mailbox.Summary, error)
	Message(ctx context.Context, owner string, id int64) (*mailbox.Message, error)
	Update(ctx context.Context, owner string, id int64, patch mailbox.Patch) error
	Counts(ctx context.Context, owner string) (mailbox.Counts, error)
}

// Server represents the HTTP API server.
type Server struct {
	cfg         *config.Config
	store       MessageStore
	logger      *slog.Logger
	router      chi.Router
	rateLimiter *RateLimiter
	now         func() time.Time
}

// NewServer creates a new API server that serves the mailboxes of
// cfg.Server.User.
func NewServer(cfg *config.Config, st MessageStore, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:    cfg,
		store:  st,
		logger: logger,
		now:    time.Now,
	}
	s.router = s.setupRouter()
	return s
}

// setupRouter configures the chi router with all routes and middleware.
func (s *Server) setupRouter() chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(chimw.RequestID)
	r.Use(s.loggerMiddleware)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))

	// CORS middleware (config-driven; disabled when no origins configured)
	r.Use(CORSMiddleware(CORSConfig{
		AllowedOrigins: s.cfg.Server.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-API-Key"},
		MaxAge:         86400,
	}))

	// Rate limiting (10 req/sec with burst of 20)
	s.rateLimiter = NewRateLimiter(10, 20)
	r.Use(RateLimitMiddleware(s.rateLimiter))

	// Health check (no auth required)
	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Post("/messages", s.handleSend)
		r.Get("/messages/{ref}", s.handleGetMessages)
		r.Put("/messages/{ref}", s.handleUpdateMessage)
		r.Get("/counts", s.handleCounts)
	})

	return r
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// Run listens on the configured address until ctx is canceled, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.ServerAddr())
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve handles requests on ln until ctx is canceled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if s.cfg.Server.APIKey == "" {
		s.logger.Warn("API server running without authentication, set [server] api_key in config.toml")
	}

	srv := &http.Server{
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("starting API server", "addr", ln.Addr().String(), "user", s.cfg.Server.User)
		if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		s.logger.Info("shutting down API server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
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
			)
		}()

		next.ServeHTTP(ww, r)
	})
}

// authMiddleware validates the API key.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Skip auth if no API key configured
		if s.cfg.Server.APIKey == "" {
			next.ServeHTTP(w, r)
			return
		}

		// Check Authorization header
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			// Also check X-API-Key header
			authHeader = r.Header.Get("X-API-Key")
		}

		// Strip "Bearer " prefix if present
		if len(authHeader) > 7 && authHeader[:7] == "Bearer " {
			authHeader = authHeader[7:]
		}

		if subtle.ConstantTimeCompare([]byte(authHeader), []byte(s.cfg.Server.APIKey)) != 1 {
			s.logger.Warn("unauthorized API request",
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr,
			)
			writeError(w, http.StatusUnauthorized, "Invalid or missing API key.")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
