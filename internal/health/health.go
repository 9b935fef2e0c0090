// Package health serves the liveness endpoint load balancers and orchestrators
// probe. It answers every request, whatever the method or path, with 200 and
// the plain-text body "Healthy".
package health

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Body is the liveness response body.
const Body = "Healthy"

// Handle writes the liveness response.
func Handle(c echo.Context) error {
	return c.Blob(http.StatusOK, echo.MIMETextPlain, []byte(Body))
}

// NewEcho returns an echo instance that answers every request with Handle.
func NewEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Answer before routing so unknown methods never reach the 405 handler.
	e.Pre(func(echo.HandlerFunc) echo.HandlerFunc {
		return Handle
	})
	return e
}
