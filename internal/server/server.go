package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/openmined/syftfiles/internal/server/auth"
	"github.com/openmined/syftfiles/internal/store/backend"
)

const shutdownTimeout = 5 * time.Second

type Server struct {
	config  *Config
	server  *http.Server
	backend *backend.Backend
}

func New(ctx context.Context, config *Config) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("server config: %w", err)
	}

	stores, err := backend.Open(ctx, config.Store)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	maxBlobSize := config.MaxBlobSize
	if maxBlobSize == 0 {
		maxBlobSize = DefaultMaxBlobSize
	}

	httpHandler, err := SetupRoutes(&Services{
		Blobs:      stores.Content,
		Containers: stores.Containers,
		Auth:       auth.NewAuthService(config.Auth),
	}, &RouteOptions{
		MaxBlobSize: maxBlobSize,
		RateLimit:   config.RateLimit,
		TLS:         config.Http.TLSEnabled(),
		DataDir:     config.Store.Dir,
	})
	if err != nil {
		stores.Close()
		return nil, err
	}

	return &Server{
		config:  config,
		backend: stores,
		server: &http.Server{
			Addr:              config.Http.Addr,
			Handler:           httpHandler,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	slog.Info("syftfiles server start", "store", s.backend.Kind)
	defer slog.Info("syftfiles server stop")

	ln, err := net.Listen("tcp", s.config.Http.Addr)
	if err != nil {
		s.backend.Close()
		return fmt.Errorf("listen %s: %w", s.config.Http.Addr, err)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.runHttpServer(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server start error", "error", err)
			errCh <- err
			return
		}
		slog.Info("http server stopped")
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		s.backend.Close()
		return err
	case <-ctx.Done():
	}

	slog.Info("syftfiles shutdown signal")
	if err := s.Stop(context.Background()); err != nil {
		slog.Error("syftfiles shutdown error", "error", err)
		return err
	}
	return <-errCh
}

func (s *Server) Stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	err := s.server.Shutdown(shutdownCtx)
	return errors.Join(err, s.backend.Close())
}

func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func (s *Server) runHttpServer(ln net.Listener) error {
	if s.config.Http.TLSEnabled() {
		slog.Info("server start tls", "addr", ln.Addr(), "cert", s.config.Http.CertFile, "key", s.config.Http.KeyFile)
		return s.server.ServeTLS(ln, s.config.Http.CertFile, s.config.Http.KeyFile)
	}
	slog.Info("server start http", "addr", ln.Addr())
	return s.server.Serve(ln)
}
