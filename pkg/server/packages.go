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
	"pository/pkg/storage"
	"pository/pkg/validate"
)

// listPackages filters by an optional "repo" query param. When repo is
// omitted it aggregates across every repo the caller is allowed to see,
// rather than requiring a repo in the path.
func (s *Server) listPackages(c echo.Context) error {
	filter := storage.ListFilter{
		Distribution: c.QueryParam("distribution"),
		Component:    c.QueryParam("component"),
		Architecture: c.QueryParam("architecture"),
		Name:         c.QueryParam("name"),
	}

	if repoParam := c.QueryParam("repo"); repoParam != "" {
		repo, err := validate.Repo(repoParam, s.cfg.AllowedRepos)
		if err != nil {
			return errRepoNotAllowed(c, repoParam)
		}
		if key := apiKeyFromContext(c); key != nil && !apikeys.HasPermission(key, roleRead, repo, filter.Distribution) {
			return errAuthForbidden(c, "")
		}

		pkgs, err := s.storage.ListPackages(repo, filter)
		if err != nil {
			log.Error().Err(err).Str("repo", repo).Msg("Failed to list packages")
			return errInternal(c)
		}
		return c.JSON(http.StatusOK, pkgs)
	}

	repos, err := s.storage.ListRepos()
	if err != nil {
		log.Error().Err(err).Msg("Failed to enumerate repos")
		return errInternal(c)
	}

	key := apiKeyFromContext(c)
	all := make([]models.PackageMetadata, 0)
	for _, repo := range repos {
		if _, err := validate.Repo(repo, s.cfg.AllowedRepos); err != nil {
			continue
		}
		if key != nil && !apikeys.HasPermission(key, roleRead, repo, filter.Distribution) {
			continue
		}
		pkgs, err := s.storage.ListPackages(repo, filter)
		if err != nil {
			log.Error().Err(err).Str("repo", repo).Msg("Failed to list packages")
			return errInternal(c)
		}
		all = append(all, pkgs...)
	}
	return c.JSON(http.StatusOK, all)
}

func locationFromParams(c echo.Context) models.PackageLocation {
	return models.PackageLocation{
		Repo:         c.Param("repo"),
		Distribution: c.Param("distribution"),
		Component:    c.Param("component"),
		Architecture: c.Param("architecture"),
		Name:         c.Param("name"),
		Version:      c.Param("version"),
	}
}

func (s *Server) getPackageMetadata(c echo.Context) error {
	loc := locationFromParams(c)
	if _, err := validate.Repo(loc.Repo, s.cfg.AllowedRepos); err != nil {
		return errRepoNotAllowed(c, loc.Repo)
	}

	meta, err := s.storage.GetPackageMetadata(loc)
	if err != nil {
		var notFound storage.PackageNotFoundError
		if errors.As(err, &notFound) {
			return errNotFound(c, "package not found")
		}
		log.Error().Err(err).Msg("Failed to read package metadata")
		return errInternal(c)
	}
	return c.JSON(http.StatusOK, meta)
}

func (s *Server) deletePackage(c echo.Context) error {
	loc := locationFromParams(c)
	if _, err := validate.Repo(loc.Repo, s.cfg.AllowedRepos); err != nil {
		return errRepoNotAllowed(c, loc.Repo)
	}

	if err := s.storage.DeletePackage(loc); err != nil {
		var notFound storage.PackageNotFoundError
		if errors.As(err, &notFound) {
			return errNotFound(c, "package not found")
		}
		log.Error().Err(err).Msg("Failed to delete package")
		return errInternal(c)
	}

	s.metrics.DeletesTotal.WithLabelValues(loc.Repo).Inc()
	s.recordAudit(audit.Event{
		OccurredAt: time.Now().UTC(), Action: audit.ActionDelete,
		Repo: loc.Repo, Package: loc.Name, Version: loc.Version, Architecture: loc.Architecture,
		Actor: keyIDFromContext(c), Outcome: audit.OutcomeSuccess,
	})
	return c.JSON(http.StatusOK, map[string]string{"message": "package deleted"})
}
