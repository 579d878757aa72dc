package server

import (
	"strings"

	"github.com/labstack/echo/v4"

	"pository/pkg/apikeys"
	"pository/pkg/models"
)

const (
	roleRead  = models.RoleRead
	roleWrite = models.RoleWrite
	roleAdmin = models.RoleAdmin
)

const (
	ctxKeyAPIKey   = "pository_api_key"
	ctxKeyWorkload = "pository_workload_claims"
)

// requireRole resolves the caller's credentials — a Bearer workload
// identity JWT takes precedence over an X-Api-Key header when both are
// present — and rejects the request unless the resolved principal
// satisfies required. A workload identity token always satisfies
// roleWrite (it exists only to authorize uploads); whether it's allowed
// to push to the specific repo/package in the request is the
// authorization policy's job, checked inside the upload handler where the
// package name is actually known.
func (s *Server) requireRole(required models.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if bearer := bearerToken(c); bearer != "" {
				if s.verifier == nil {
					return errAuthInvalid(c, "workload identity auth is not configured")
				}
				claims, err := s.verifier.Verify(c.Request().Context(), bearer)
				if err != nil {
					s.metrics.AuthFailures.WithLabelValues("bearer_invalid").Inc()
					return errAuthInvalid(c, err.Error())
				}
				if !roleWrite.Satisfies(required) {
					s.metrics.AuthFailures.WithLabelValues("bearer_insufficient_role").Inc()
					return errAuthForbidden(c, "workload identity tokens may only be used for uploads")
				}
				c.Set(ctxKeyWorkload, claims)
				return next(c)
			}

			presented := c.Request().Header.Get("X-Api-Key")
			if presented == "" {
				s.metrics.AuthFailures.WithLabelValues("missing").Inc()
				return errAuthMissing(c)
			}

			key, err := s.keys.ValidateKey(presented)
			if err != nil {
				s.metrics.AuthFailures.WithLabelValues("api_key_invalid").Inc()
				return errAuthInvalid(c, "")
			}
			if !apikeys.HasPermission(key, required, c.Param("repo"), c.Param("distribution")) {
				s.metrics.AuthFailures.WithLabelValues("api_key_insufficient_role").Inc()
				return errAuthForbidden(c, "")
			}
			c.Set(ctxKeyAPIKey, key)
			return next(c)
		}
	}
}

func bearerToken(c echo.Context) string {
	header := c.Request().Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimPrefix(header, prefix)
}

func apiKeyFromContext(c echo.Context) *models.ApiKey {
	key, ok := c.Get(ctxKeyAPIKey).(*models.ApiKey)
	if !ok {
		return nil
	}
	return key
}

func workloadClaimsFromContext(c echo.Context) *models.WorkloadClaims {
	claims, ok := c.Get(ctxKeyWorkload).(*models.WorkloadClaims)
	if !ok {
		return nil
	}
	return claims
}

func keyIDFromContext(c echo.Context) string {
	if key := apiKeyFromContext(c); key != nil {
		return key.ID
	}
	if claims := workloadClaimsFromContext(c); claims != nil {
		return "workload:" + claims.Actor
	}
	return ""
}
