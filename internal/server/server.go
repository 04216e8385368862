package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/Uzair-DeVops/facebook-postsiva/internal/config"
)

// Server owns the debug listener lifecycle. Shutdown is graceful and runs
// once even when cancellation cascades.
type Server struct {
	logger     *slog.Logger
	httpServer *http.Server
	once       sync.Once

	mu    sync.Mutex
	bound net.Addr
	ready chan struct{}
}

// New binds handler to the configured debug address. Nothing listens until Run.
func New(cfg config.DebugConfig, logger *slog.Logger, handler http.Handler) (*Server, error) {
	switch {
	case handler == nil:
		return nil, errors.New("server: handler required")
	case logger == nil:
		return nil, errors.New("server: logger required")
	}

	return &Server{
		logger: logger.With(slog.String("component", "debug-server")),
		httpServer: &http.Server{
			Addr:              net.JoinHostPort(cfg.Listen.Address, strconv.Itoa(cfg.Listen.Port)),
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		ready: make(chan struct{}),
	}, nil
}

// Addr reports the configured listen address.
func (s *Server) Addr() string { return s.httpServer.Addr }

// Ready is closed once the listener is bound.
func (s *Server) Ready() <-chan struct{} { return s.ready }

// BoundAddr returns the address actually bound, which differs from Addr when
// the configured port is 0. Nil before Ready.
func (s *Server) BoundAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bound
}

// Run serves until ctx ends, then drains in-flight scrapes for up to five
// seconds and returns ctx.Err().
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", s.httpServer.Addr, err)
	}
	s.mu.Lock()
	s.bound = listener.Addr()
	s.mu.Unlock()
	close(s.ready)
	s.logger.Info("debug listener started", slog.String("address", listener.Addr().String()))

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server: serve: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := s.shutdown(shutdownCtx); err != nil {
			return err
		}
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

func (s *Server) shutdown(ctx context.Context) error {
	var err error
	s.once.Do(func() {
		s.logger.Info("debug listener stopping")
		err = s.httpServer.Shutdown(ctx)
	})
	return err
}
