package server

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"penchy/pkg/logger"
)

// startHTTPServer binds the RPC surface in the background, grounded on
// engine/infra/server/lifecycle.go's createHTTPServer/startServer split
// (serve in a goroutine, surface failures without blocking the caller).
func (s *Server) startHTTPServer() *http.Server {
	log := logger.FromContext(s.ctx)
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	srv := &http.Server{
		Addr:        addr,
		Handler:     s.router,
		BaseContext: func(net.Listener) context.Context { return s.ctx },
	}
	log.Info("starting RPC endpoint", "address", fmt.Sprintf("http://%s", addr))
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("RPC endpoint failed", "error", err)
			s.Shutdown()
		}
	}()
	return srv
}

// shutdownHTTPServer gracefully drains in-flight RPCs, bounded by
// cfg.ShutdownTimeout, mirroring
// engine/infra/server/lifecycle.go's handleGracefulShutdown.
func (s *Server) shutdownHTTPServer() error {
	if s.httpServer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(s.ctx), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("RPC endpoint shutdown failed: %w", err)
	}
	return nil
}
