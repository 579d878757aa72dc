package server

import (
	"errors"
	"io"
	"net/http"
	"os"
	"regexp"
	"time"

	"github.com/labstack/echo/v4"

	"pository/pkg/apikeys"
	"pository/pkg/audit"
	"pository/pkg/deb"
	"pository/pkg/log"
	"pository/pkg/models"
	"pository/pkg/validate"
)

// filenamePattern matches the conventional pool filename
// <name>_<version>_<arch>.deb, the last-resort source for a package's
// identity when its control stanza didn't declare Name/Version.
var filenamePattern = regexp.MustCompile(`^(.+)_(.+)_(.+)\.deb$`)

// controlFromFilename builds a minimal Control from an uploaded filename
// matching filenamePattern, or nil if it doesn't match.
func controlFromFilename(filename string) *deb.Control {
	matches := filenamePattern.FindStringSubmatch(filename)
	if matches == nil {
		return nil
	}
	return &deb.Control{Name: matches[1], Version: matches[2], Architecture: matches[3]}
}

// uploadPackage implements the upload procedure: validate the target
// location, stage the uploaded bytes to a temp file, extract the control
// stanza to learn name/version/architecture, authorize the upload against
// the caller's credentials, then hand the result to the storage engine.
func (s *Server) uploadPackage(c echo.Context) error {
	repoForm := c.FormValue("repo")
	if repoForm == "" {
		repoForm = "default"
	}
	repo, err := validate.Repo(repoForm, s.cfg.AllowedRepos)
	if err != nil {
		s.metrics.UploadsTotal.WithLabelValues(repoForm, "repo_not_allowed").Inc()
		return errRepoNotAllowed(c, repoForm)
	}

	distributionForm := c.FormValue("distribution")
	if distributionForm == "" {
		distributionForm = "stable"
	}
	distribution, err := validate.Distribution(distributionForm)
	if err != nil {
		return errValidation(c, "distribution: "+err.Error())
	}
	componentForm := c.FormValue("component")
	if componentForm == "" {
		componentForm = "main"
	}
	component, err := validate.ComponentName(componentForm)
	if err != nil {
		return errValidation(c, "component: "+err.Error())
	}

	if key := apiKeyFromContext(c); key != nil {
		if !apikeys.HasPermission(key, roleWrite, repo, distribution) {
			s.metrics.AuthFailures.WithLabelValues("api_key_insufficient_role").Inc()
			return errAuthForbidden(c, "")
		}
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return errValidation(c, "file field is required")
	}
	if s.cfg.MaxUploadBytes > 0 && fileHeader.Size > s.cfg.MaxUploadBytes {
		return errPayloadTooLarge(c)
	}

	src, err := fileHeader.Open()
	if err != nil {
		log.Error().Err(err).Msg("Failed to open uploaded file")
		return errInternal(c)
	}
	defer func() { _ = src.Close() }()

	tmp, err := os.CreateTemp("", "pository-upload-*.deb")
	if err != nil {
		log.Error().Err(err).Msg("Failed to create staging file")
		return errInternal(c)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := io.Copy(tmp, src); err != nil {
		log.Error().Err(err).Msg("Failed to stage uploaded file")
		return errInternal(c)
	}
	if err := tmp.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close staging file")
		return errInternal(c)
	}

	control, perr := deb.Parse(tmpPath, s.cfg.DpkgDebPath)
	if perr != nil {
		if errors.Is(perr, deb.ErrInvalidArchive) {
			s.metrics.UploadsTotal.WithLabelValues(repo, "invalid_package").Inc()
			return errValidation(c, "not a valid Debian package: "+perr.Error())
		}
		control = controlFromFilename(fileHeader.Filename)
		if control == nil {
			s.metrics.UploadsTotal.WithLabelValues(repo, "invalid_package").Inc()
			return errValidation(c, "not a valid Debian package: "+perr.Error())
		}
	}

	name, err := validate.Name(control.Name)
	if err != nil {
		return errValidation(c, "package name: "+err.Error())
	}
	version, err := validate.Version(control.Version)
	if err != nil {
		return errValidation(c, "package version: "+err.Error())
	}
	archSource := control.Architecture
	if archSource == "" {
		archSource = c.FormValue("architecture")
	}
	architecture, err := validate.Architecture(archSource)
	if err != nil {
		return errValidation(c, "architecture: "+err.Error())
	}

	if claims := workloadClaimsFromContext(c); claims != nil {
		if !s.policy.Allow(claims, name) {
			s.metrics.AuthFailures.WithLabelValues("workload_policy_denied").Inc()
			return errAuthForbidden(c, "workload identity does not authorize this upload")
		}
	}

	staged, err := os.Open(tmpPath)
	if err != nil {
		log.Error().Err(err).Msg("Failed to reopen staged file")
		return errInternal(c)
	}
	defer func() { _ = staged.Close() }()

	meta := models.PackageMetadata{
		Repo: repo, Distribution: distribution, Component: component,
		Architecture: architecture, Name: name, Version: version,
		UploadedAt:    time.Now().UTC(),
		UploaderKeyID: keyIDFromContext(c),

		Description:   control.Description,
		MultiArch:     control.MultiArch,
		Maintainer:    control.Maintainer,
		Depends:       control.Depends,
		PreDepends:    control.PreDepends,
		Suggests:      control.Suggests,
		Conflicts:     control.Conflicts,
		Breaks:        control.Breaks,
		Replaces:      control.Replaces,
		Provides:      control.Provides,
		Homepage:      control.Homepage,
		Section:       control.Section,
		Priority:      control.Priority,
		InstalledSize: control.InstalledSize,
	}

	result, err := s.storage.StorePackage(meta, staged)
	if err != nil {
		log.Error().Err(err).Str("repo", repo).Str("name", name).Msg("Failed to store package")
		s.metrics.UploadsTotal.WithLabelValues(repo, "storage_error").Inc()
		return errInternal(c)
	}

	outcome := "created"
	status := http.StatusCreated
	action := audit.ActionUpload
	if result.Replaced {
		outcome = "replaced"
		status = http.StatusOK
		action = audit.ActionReplace
	}
	s.metrics.UploadsTotal.WithLabelValues(repo, outcome).Inc()

	log.Info().Str("repo", repo).Str("name", name).Str("version", version).
		Str("architecture", architecture).Str("outcome", outcome).Msg("Package upload completed")

	s.recordAudit(audit.Event{
		OccurredAt: time.Now().UTC(), Action: action,
		Repo: repo, Package: name, Version: version, Architecture: architecture,
		Actor: keyIDFromContext(c), Outcome: audit.OutcomeSuccess,
	})

	return c.JSON(status, result.Metadata)
}
