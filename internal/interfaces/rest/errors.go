package rest

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pot-code/samba-client/internal/infrastructure/validate"
	"github.com/pot-code/samba-client/internal/interfaces/rest/handler"
	"github.com/pot-code/samba-client/internal/lesson"
	"github.com/pot-code/samba-client/internal/media"
	"github.com/pot-code/samba-client/internal/session"
	"github.com/pot-code/samba-client/internal/user"
	"go.uber.org/zap"
)

// errorStatus known errors and the status they answer with, checked in order
var errorStatus = []struct {
	err  error
	code int
}{
	{session.ErrUnauthenticated, http.StatusUnauthorized},
	{user.ErrNoSuchUser, http.StatusUnauthorized},
	{user.ErrTooManyRetries, http.StatusTooManyRequests},
	{user.ErrDuplicatedUser, http.StatusConflict},
	{lesson.ErrNotPrivileged, http.StatusForbidden},
	{lesson.ErrUnknownCategory, http.StatusNotFound},
	{lesson.ErrNotFound, http.StatusNotFound},
	{lesson.ErrDocumentNotFound, http.StatusNotFound},
	{lesson.ErrFavoriteLocked, http.StatusConflict},
	{lesson.ErrCancelled, http.StatusBadRequest},
	{lesson.ErrUnsupportedField, http.StatusBadRequest},
	{lesson.ErrRemote, http.StatusBadGateway},
	{lesson.ErrCacheClosed, http.StatusServiceUnavailable},
	{media.ErrInvalidName, http.StatusBadRequest},
}

func statusOf(err error) (int, bool) {
	for _, es := range errorStatus {
		if errors.Is(err, es.err) {
			return es.code, true
		}
	}
	return http.StatusInternalServerError, false
}

// errorResponder writes err as a RESTStandardError or RESTValidationError,
// unknown errors are logged and answered with 500
func errorResponder(logger *zap.Logger) func(c echo.Context, err error) {
	return func(c echo.Context, err error) {
		traceID := c.Response().Header().Get(echo.HeaderXRequestID)
		if c.Response().Committed {
			logger.Warn("error after response was written", zap.String("trace.id", traceID), zap.Error(err))
			return
		}

		var ve *validate.ValidationError
		if errors.As(err, &ve) {
			c.JSON(http.StatusBadRequest,
				handler.NewRESTValidationError(http.StatusBadRequest, "Failed to validate fields", ve.Fields).SetTraceID(traceID))
			return
		}
		var he *echo.HTTPError
		if errors.As(err, &he) {
			c.JSON(he.Code, handler.NewRESTStandardError(he.Code, fmt.Sprint(he.Message)).SetTraceID(traceID))
			return
		}
		if code, ok := statusOf(err); ok {
			c.JSON(code, handler.NewRESTStandardError(code, err.Error()).SetTraceID(traceID))
			return
		}

		c.JSON(http.StatusInternalServerError,
			handler.NewRESTStandardError(http.StatusInternalServerError, err.Error()).SetTraceID(traceID),
		)
		logger.Error(err.Error(), zap.String("trace.id", traceID))
	}
}
