package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pot-code/samba-client/internal/infrastructure/logging"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// AccessLogConfig .
type AccessLogConfig struct {
	// SkipPrefixes requests whose path starts with one of these are not logged
	SkipPrefixes []string
}

// AccessLog writes one entry per request. Successful requests are logged at
// debug, client errors at warn and server errors at error.
func AccessLog(base *zap.Logger, options ...*AccessLogConfig) echo.MiddlewareFunc {
	cfg := new(AccessLogConfig)
	if len(options) > 0 && options[0] != nil {
		cfg = options[0]
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			path := c.Request().URL.Path
			for _, prefix := range cfg.SkipPrefixes {
				if strings.HasPrefix(path, prefix) {
					return next(c)
				}
			}

			start := time.Now()
			err := next(c)
			code := c.Response().Status
			ce := base.Check(accessLevel(code), http.StatusText(code))
			if ce == nil {
				return err
			}
			fields := []zap.Field{
				zap.String("trace.id", c.Response().Header().Get(echo.HeaderXRequestID)),
				zap.String("http.request.method", c.Request().Method),
				zap.String("url.path", path),
				zap.String("http.route", c.Path()),
				zap.Int("http.response.status_code", code),
				zap.Int64("http.response.body.bytes", c.Response().Size),
				zap.Duration("event.duration", time.Since(start)),
			}
			if uid, ok := c.Get(ContextUIDKey).(string); ok {
				fields = append(fields, zap.String("uid", uid))
			}
			if category := c.Param("category"); category != "" {
				fields = append(fields, zap.String("lesson.category", category))
			}
			if err != nil {
				fields = append(fields, zap.Error(err))
			}
			ce.Write(fields...)
			return err
		}
	}
}

func accessLevel(code int) zapcore.Level {
	switch {
	case code >= http.StatusInternalServerError:
		return zapcore.ErrorLevel
	case code >= http.StatusBadRequest:
		return zapcore.WarnLevel
	default:
		return zapcore.DebugLevel
	}
}

// SetTraceLogger puts a logger bound to the request id and route into the
// request context
func SetTraceLogger(base *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			r := c.Request()
			logger := base.With(
				zap.String("trace.id", c.Response().Header().Get(echo.HeaderXRequestID)),
				zap.String("http.route", c.Path()),
			)
			c.SetRequest(r.WithContext(logging.SetLoggerInContext(r.Context(), logger)))
			return next(c)
		}
	}
}
