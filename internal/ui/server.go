// Package ui provides the browser UI for leaptext.
package ui

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/sessions"
	uploadFeature "github.com/leapstack-labs/leaptext/internal/ui/features/upload"
	"github.com/leapstack-labs/leaptext/internal/ui/registry"
	"github.com/leapstack-labs/leaptext/internal/ui/resources"
	"github.com/leapstack-labs/leaptext/internal/ui/router"
	"golang.org/x/sync/errgroup"
)

// Server is the main UI server.
type Server struct {
	registry   *registry.Registry
	handler    http.Handler
	port       int
	sessionTTL time.Duration
	logger     *slog.Logger
}

// Config holds configuration for the UI server.
type Config struct {
	// NewSession creates the orchestrator behind a new browser session.
	NewSession registry.Factory
	Downloader uploadFeature.Downloader

	Port          int
	SessionSecret string
	SessionTTL    time.Duration
	MaxFileSize   int
	Logger        *slog.Logger
}

// NewServer creates a new UI server instance.
func NewServer(cfg Config) (*Server, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	secret := []byte(cfg.SessionSecret)
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("failed to generate session secret: %w", err)
		}
		logger.Warn("ui.session_secret is not set; sessions will not survive a restart")
	}

	ttl := cfg.SessionTTL
	if ttl <= 0 {
		ttl = registry.DefaultTTL
	}

	sessionStore := sessions.NewCookieStore(secret)
	sessionStore.MaxAge(int(ttl / time.Second))
	sessionStore.Options.Path = "/"
	sessionStore.Options.HttpOnly = true
	sessionStore.Options.SameSite = http.SameSiteLaxMode

	reg := registry.New(registry.Config{
		Store:   sessionStore,
		Factory: cfg.NewSession,
		TTL:     ttl,
		Logger:  logger,
	})

	r := chi.NewMux()
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.Compress(5, "text/html", "text/css"),
	)

	handlers := uploadFeature.NewHandlers(reg, cfg.Downloader, cfg.MaxFileSize, resources.IsDev, logger)
	if err := router.SetupRoutes(r, handlers, resources.IsDev); err != nil {
		return nil, fmt.Errorf("failed to setup routes: %w", err)
	}

	return &Server{
		registry:   reg,
		handler:    r,
		port:       cfg.Port,
		sessionTTL: ttl,
		logger:     logger,
	}, nil
}

// Handler returns the server's router.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Sessions returns the number of live browser sessions.
func (s *Server) Sessions() int {
	return s.registry.Len()
}

// Serve listens on the configured port and blocks until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		return fmt.Errorf("failed to listen on port %d: %w", s.port, err)
	}
	return s.ServeListener(ctx, ln)
}

// ServeListener serves on ln until ctx is cancelled, then shuts down
// gracefully and closes every session.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	s.logger.Info("starting UI server", "addr", ln.Addr().String())

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Handler: s.handler,
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		return s.registry.Run(egctx, s.sessionTTL/2)
	})

	// Graceful shutdown
	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Debug("shutting down UI server...")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}
