package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestAccessLogLevels(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	app := echo.New()
	app.Use(AccessLog(zap.New(core), &AccessLogConfig{SkipPrefixes: []string{"/healthz"}}))
	app.GET("/healthz", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	app.GET("/lesson/:category", func(c echo.Context) error {
		c.Set(ContextUIDKey, "u1")
		return c.NoContent(http.StatusOK)
	})
	app.GET("/missing", func(c echo.Context) error { return c.NoContent(http.StatusNotFound) })
	app.GET("/broken", func(c echo.Context) error { return c.NoContent(http.StatusInternalServerError) })

	for _, path := range []string{"/healthz", "/lesson/beginner", "/missing", "/broken"} {
		app.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	entries := logs.AllUntimed()
	if len(entries) != 3 {
		t.Fatalf("entries = %d, want 3 (healthz skipped)", len(entries))
	}
	want := []zapcore.Level{zapcore.DebugLevel, zapcore.WarnLevel, zapcore.ErrorLevel}
	for i, e := range entries {
		if e.Level != want[i] {
			t.Errorf("entry %d level = %v, want %v", i, e.Level, want[i])
		}
	}
	fields := entries[0].ContextMap()
	if fields["uid"] != "u1" || fields["lesson.category"] != "beginner" || fields["http.route"] != "/lesson/:category" {
		t.Errorf("fields = %v", fields)
	}
}

func TestAccessLogRespectsLoggerLevel(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	app := echo.New()
	app.Use(AccessLog(zap.New(core)))
	app.GET("/ok", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	app.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ok", nil))
	if logs.Len() != 0 {
		t.Errorf("successful request logged above debug: %v", logs.All())
	}
}
