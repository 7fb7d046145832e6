package core

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"
)

// RequestTimeout bounds store calls made on behalf of a single request.
const RequestTimeout = 10 * time.Second

// RequestContext returns the request context bounded by the request timeout.
func RequestContext(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), RequestTimeout)
}

// BindAndValidate binds the request body into req and runs the registered validator.
func BindAndValidate(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return NewValidationError("Invalid Request")
	}
	return c.Validate(req)
}
