// Package handler echo handlers of the REST surface
package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// bind decodes the request body into post, decoding failures become 422
func bind(c echo.Context, post interface{}) error {
	if err := c.Bind(post); err != nil {
		detail := err.Error()
		if he, ok := err.(*echo.HTTPError); ok && he.Internal != nil {
			detail = he.Internal.Error()
		}
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "Failed to bind request body: "+detail)
	}
	return nil
}
