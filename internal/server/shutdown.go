package server

import (
	"context"
	"errors"
	"fmt"
)

// Shutdown stops accepting requests, closes every relay connection and waits
// for their cleanup until ctx expires. It is safe to call more than once.
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error
	for _, l := range s.listeners() {
		if err := l.echo.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown %s server: %w", l.name, err))
		}
	}

	// Upgraded connections are hijacked and outlive http.Server.Shutdown.
	s.cancelRelay()
	if err := s.handler.Wait(ctx); err != nil {
		errs = append(errs, fmt.Errorf("wait for relay connections: %w", err))
	}

	if len(errs) == 0 {
		s.logger.Info("Server stopped")
	}
	return errors.Join(errs...)
}
