package httpapi

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/0xfaulty/tgcontest/internal/apperr"
)

// respondErr is the one place a domain error (from apperr's sentinels)
// becomes an HTTP status. Handlers never pick a status themselves; they
// wrap a sentinel and let this function translate it, so the mapping
// from domain failure to status code lives in exactly one place.
func respondErr(c echo.Context, err error) error {
	switch {
	case errors.Is(err, apperr.ErrBadRequest):
		return fail(c, http.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, apperr.ErrNotReady):
		return failNotReady(c, err.Error())
	case errors.Is(err, apperr.ErrNotFound):
		return failNotFound(c, err.Error())
	default:
		return internalError(c, "internal server error")
	}
}
