package middleware

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"
)

// DefaultRequestTimeout used when AbortRequest gets no positive timeout
const DefaultRequestTimeout = 30 * time.Second

// AbortRequest bounds the request context, handlers see ctx.Done() once the
// timeout expires. Long lived connections like websockets must not use it.
func AbortRequest(timeout time.Duration) echo.MiddlewareFunc {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx, cancel := context.WithTimeout(c.Request().Context(), timeout)
			defer cancel()
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}
