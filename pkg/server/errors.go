package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// apiError is the fixed JSON error body shape: {"error": "...", "detail": "..."}.
type apiError struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

func jsonError(c echo.Context, status int, message string, detail string) error {
	return c.JSON(status, apiError{Error: message, Detail: detail})
}

func errAuthMissing(c echo.Context) error {
	return jsonError(c, http.StatusUnauthorized, "authentication required", "")
}

func errAuthInvalid(c echo.Context, detail string) error {
	return jsonError(c, http.StatusUnauthorized, "invalid credentials", detail)
}

func errAuthForbidden(c echo.Context, detail string) error {
	return jsonError(c, http.StatusForbidden, "forbidden", detail)
}

func errValidation(c echo.Context, detail string) error {
	return jsonError(c, http.StatusBadRequest, "validation failed", detail)
}

func errPayloadTooLarge(c echo.Context) error {
	return jsonError(c, http.StatusRequestEntityTooLarge, "payload too large", "")
}

func errNotFound(c echo.Context, detail string) error {
	return jsonError(c, http.StatusNotFound, "not found", detail)
}

func errRepoNotAllowed(c echo.Context, repo string) error {
	return jsonError(c, http.StatusForbidden, "repository not allowed", repo)
}

func errInternal(c echo.Context) error {
	return jsonError(c, http.StatusInternalServerError, "internal error", "")
}

func errNotReady(c echo.Context) error {
	return jsonError(c, http.StatusServiceUnavailable, "not ready", "")
}
