package middleware

import (
	"context"

	"github.com/labstack/echo/v4"
	"github.com/pot-code/samba-client/internal/session"
)

// ContextUIDKey uid key in echo context
const ContextUIDKey = "uid"

// UIDResolver resolves the signed-in user
type UIDResolver interface {
	RequireUID(ctx context.Context) (string, error)
}

// RequireSession rejects requests made while signed out, the uid is stored
// under ContextUIDKey
func RequireSession(ids UIDResolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			uid, err := ids.RequireUID(c.Request().Context())
			if err != nil {
				return err
			}
			c.Set(ContextUIDKey, uid)
			return next(c)
		}
	}
}

// GetContextUID uid set by RequireSession
func GetContextUID(c echo.Context) (string, error) {
	if uid, ok := c.Get(ContextUIDKey).(string); ok && uid != "" {
		return uid, nil
	}
	return "", session.ErrUnauthenticated
}
