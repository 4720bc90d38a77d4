package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/davidbz/ember/internal/config"
	"github.com/davidbz/ember/internal/http/middleware"
	"github.com/davidbz/ember/internal/observability"
)

// Server represents the HTTP server.
type Server struct {
	config      config.ServerConfig
	handler     *Handler
	middlewares middleware.Middleware
	srv         *http.Server
}

// NewServer creates a new HTTP server.
func NewServer(
	cfg *config.ServerConfig,
	corsCfg *config.CORSConfig,
	handler *Handler,
) *Server {
	return &Server{
		config:      *cfg,
		handler:     handler,
		middlewares: middleware.BuildMiddlewareChain(corsCfg),
		srv:         nil,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	mux := http.NewServeMux()

	// Register routes.
	mux.HandleFunc("/api/chat", s.handler.HandleChat)
	mux.HandleFunc("/api/generate", s.handler.HandleGenerate)
	mux.HandleFunc("/api/health", s.handler.HandleHealth)
	mux.HandleFunc("/api/ready", s.handler.HandleReady)
	mux.HandleFunc("/api/cache/stats", s.handler.HandleCacheStats)
	mux.HandleFunc("/", s.handler.HandleNotFound)

	// Apply middleware chain.
	handlerWithMiddleware := s.middlewares(mux)

	// Create server with timeouts. The write timeout must outlast the
	// streaming delay budget of long responses.
	s.srv = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.config.Host, s.config.Port),
		Handler:      handlerWithMiddleware,
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
	}

	ctx := context.Background()
	observability.FromContext(ctx).Info("starting HTTP server",
		observability.String("host", s.config.Host),
		observability.Int("port", s.config.Port))

	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	observability.FromContext(ctx).Info("shutting down HTTP server")

	if s.srv == nil {
		return nil
	}

	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	return nil
}
