// Package server exposes the transformation pipeline and template
// registry over HTTP. Blockchain submission stays in the frontend SDK;
// this API only transforms and reports.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/allfeat/massload/engine/pipeline"
	"github.com/allfeat/massload/engine/registry"
	"github.com/allfeat/massload/pkg/config"
	"github.com/allfeat/massload/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

// Server owns the HTTP listener lifecycle.
type Server struct {
	http *http.Server
}

// New wires the router into an HTTP server bound per the config. ctx is
// used as the base context of every request so handlers inherit the
// application logger.
func New(ctx context.Context, cfg *config.ServerConfig, pipe *pipeline.Service, reg *registry.Registry) *Server {
	return &Server{
		http: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Handler:      NewRouter(pipe, reg),
			ReadTimeout:  cfg.Timeout,
			WriteTimeout: cfg.Timeout,
			BaseContext:  func(net.Listener) context.Context { return ctx },
		},
	}
}

// Run serves until ctx is canceled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	log := logger.FromContext(ctx)

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		log.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.http.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	}
}
