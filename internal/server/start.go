package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Start serves every listener until ctx is cancelled or one of them fails,
// then shuts down gracefully within the configured timeout.
func (s *Server) Start(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}

	errCh := make(chan error, len(s.listeners()))
	for _, l := range s.listeners() {
		s.logger.Info("Server listening", "server", l.name, "addr", l.echo.Listener.Addr().String())
		go func(l listener) {
			// The listener is already bound, so echo ignores the address.
			if err := l.echo.Start(""); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("%s server: %w", l.name, err)
			}
		}(l)
	}

	var serveErr error
	select {
	case <-ctx.Done():
		s.logger.Info("Shutdown requested")
	case serveErr = <-errCh:
		s.logger.Error("Server failed, shutting down", "error", serveErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	return errors.Join(serveErr, s.Shutdown(shutdownCtx))
}
