package server

import (
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/labstack/echo/v4"

	appmiddleware "github.com/nfrund/topicrelay/internal/middleware"
)

// RegisterRoutes sets up the relay routes. Clients may upgrade on any path.
func (s *Server) RegisterRoutes() {
	upgradeLimiter := appmiddleware.RateLimiter(s.cfg.UpgradeRate)

	s.Relay.GET("/", s.handler.Serve, upgradeLimiter)
	s.Relay.GET("/*", s.handler.Serve, upgradeLimiter)
}

// setupErrorHandling logs unhandled errors with a stack trace before echo's
// default handler writes the response.
func setupErrorHandling(e *echo.Echo) {
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		var he *echo.HTTPError
		if !errors.As(err, &he) || he.Code >= http.StatusInternalServerError {
			slog.Error("Internal Server Error (Unhandled)",
				"error", err,
				"method", c.Request().Method,
				"path", c.Request().URL.Path,
				"stack_trace", string(debug.Stack()),
			)
		}
		e.DefaultHTTPErrorHandler(err, c)
	}
}
