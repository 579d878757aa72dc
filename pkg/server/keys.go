package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"pository/pkg/apikeys"
	"pository/pkg/audit"
	"pository/pkg/log"
	"pository/pkg/models"
)

type createKeyRequest struct {
	Role        models.Role      `json:"role"`
	Scope       *models.KeyScope `json:"scope,omitempty"`
	Description string           `json:"description,omitempty"`
}

type createKeyResponse struct {
	models.ApiKeyPublic
	Secret string `json:"secret"`
}

func (s *Server) createKey(c echo.Context) error {
	var req createKeyRequest
	if err := c.Bind(&req); err != nil {
		return errValidation(c, "invalid request body")
	}
	switch req.Role {
	case models.RoleRead, models.RoleWrite, models.RoleAdmin:
	default:
		return errValidation(c, "role must be one of read, write, admin")
	}

	key, secret, err := s.keys.CreateKey(req.Role, req.Scope, req.Description)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create API key")
		return errInternal(c)
	}

	s.recordAudit(audit.Event{
		OccurredAt: time.Now().UTC(), Action: audit.ActionKeyCreate,
		Actor: keyIDFromContext(c), Outcome: audit.OutcomeSuccess,
		Detail: "created key " + key.ID + " with role " + string(key.Role),
	})

	return c.JSON(http.StatusCreated, createKeyResponse{ApiKeyPublic: key.Public(), Secret: secret})
}

func (s *Server) listKeys(c echo.Context) error {
	return c.JSON(http.StatusOK, s.keys.ListKeys())
}

func (s *Server) deleteKey(c echo.Context) error {
	if err := s.keys.DeleteKey(c.Param("id")); err != nil {
		if errors.Is(err, apikeys.ErrKeyNotFound) {
			return errNotFound(c, "api key not found")
		}
		log.Error().Err(err).Msg("Failed to delete API key")
		return errInternal(c)
	}
	s.recordAudit(audit.Event{
		OccurredAt: time.Now().UTC(), Action: audit.ActionKeyDelete,
		Actor: keyIDFromContext(c), Outcome: audit.OutcomeSuccess,
		Detail: "deleted key " + c.Param("id"),
	})
	return c.JSON(http.StatusOK, map[string]string{"message": "api key deleted"})
}
