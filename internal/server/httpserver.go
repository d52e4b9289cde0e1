package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotrelay/internal/shared"
)

// Server wraps [http.Server] with context-driven graceful shutdown.
type Server struct {
	httpServer      *http.Server
	shutdownTimeout time.Duration
	logger          *log.Logger
}

// NewServer creates a [Server] listening on cfg's address with its timeouts.
func NewServer(handler http.Handler, cfg shared.ServerConfig, logger *log.Logger) *Server {
	if logger == nil {
		logger = shared.NewLogger(io.Discard)
	}
	return &Server{
		httpServer: &http.Server{
			Addr:              cfg.Addr(),
			Handler:           handler,
			ReadTimeout:       cfg.ReadTimeout,
			ReadHeaderTimeout: cfg.ReadTimeout,
			WriteTimeout:      cfg.WriteTimeout,
			IdleTimeout:       cfg.IdleTimeout,
		},
		shutdownTimeout: cfg.ShutdownTimeout,
		logger:          logger,
	}
}

// Addr returns the server address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Run listens on the configured address and serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done.
//
// In-flight requests get up to the shutdown timeout to finish.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	serverErr := make(chan error, 1)

	go func() {
		s.logger.Info("server starting", "addr", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down", "timeout", s.shutdownTimeout)

	shutdownCtx := context.Background()
	if s.shutdownTimeout > 0 {
		var cancel context.CancelFunc
		shutdownCtx, cancel = context.WithTimeout(shutdownCtx, s.shutdownTimeout)
		defer cancel()
	}

	s.httpServer.SetKeepAlivesEnabled(false)
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: graceful shutdown: %v", shared.ErrTimeout, err)
		}
		return fmt.Errorf("graceful shutdown: %w", err)
	}

	s.logger.Info("server stopped gracefully")
	return nil
}

// RouterOpts configures [NewRelayRouter].
type RouterOpts struct {
	Logger         *log.Logger
	RateLimitRPS   float64
	RateLimitBurst int
}

// NewRelayRouter builds the relay's router: middleware first, then the relay routes.
func NewRelayRouter(relay *RelayHandler, opts RouterOpts) *ChiRouter {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(io.Discard)
	}

	router := NewChiRouter()
	router.Use(
		RequestID,
		AccessLog(opts.Logger),
		Recoverer(opts.Logger),
		CORS,
		RateLimit(opts.RateLimitRPS, opts.RateLimitBurst, opts.Logger),
	)
	relay.Register(router)
	return router
}
