package server

import (
	"errors"
	"net/http"
	"regexp"
	"sort"
	"strings"

	"github.com/labstack/echo/v4"

	"pository/pkg/aptindex"
	"pository/pkg/log"
	"pository/pkg/models"
	"pository/pkg/storage"
	"pository/pkg/validate"
)

// componentPackages groups a distribution's index by component, the
// shape aptindex.BuildPackagesFiles needs.
func (s *Server) componentPackages(repo, distribution string) ([]aptindex.PerComponentPackages, error) {
	all, err := s.storage.ListPackages(repo, storage.ListFilter{Distribution: distribution})
	if err != nil {
		return nil, err
	}

	byComponent := map[string][]models.PackageMetadata{}
	var order []string
	for _, pkg := range all {
		if _, seen := byComponent[pkg.Component]; !seen {
			order = append(order, pkg.Component)
		}
		byComponent[pkg.Component] = append(byComponent[pkg.Component], pkg)
	}

	out := make([]aptindex.PerComponentPackages, 0, len(order))
	for _, component := range order {
		out = append(out, aptindex.PerComponentPackages{Component: component, Packages: byComponent[component]})
	}
	return out, nil
}

func (s *Server) getRelease(c echo.Context) error {
	repo := c.Param("repo")
	if _, err := validate.Repo(repo, s.cfg.AllowedRepos); err != nil {
		return errRepoNotAllowed(c, repo)
	}
	distribution := c.Param("distribution")

	grouped, err := s.componentPackages(repo, distribution)
	if err != nil {
		log.Error().Err(err).Msg("Failed to build Release components")
		return errInternal(c)
	}

	files, err := aptindex.BuildPackagesFiles(grouped)
	if err != nil {
		log.Error().Err(err).Msg("Failed to render Packages files")
		return errInternal(c)
	}

	var components []string
	archSeen := map[string]bool{"amd64": true}
	architectures := []string{"amd64"}
	for _, g := range grouped {
		components = append(components, g.Component)
		for _, arch := range aptindex.Architectures(g.Packages) {
			if !archSeen[arch] {
				archSeen[arch] = true
				architectures = append(architectures, arch)
			}
		}
	}
	sort.Strings(architectures)

	release := aptindex.RenderRelease(aptindex.ReleaseConfig{
		Origin:      s.cfg.ReleaseOrigin,
		Label:       s.cfg.ReleaseLabel,
		Description: s.cfg.ReleaseDesc,
	}, distribution, distribution, components, architectures, files)

	return c.Blob(http.StatusOK, "text/plain; charset=utf-8", []byte(release))
}

func (s *Server) getPackagesFile(c echo.Context) error {
	return s.servePackagesFile(c, false)
}

func (s *Server) getPackagesFileGz(c echo.Context) error {
	return s.servePackagesFile(c, true)
}

func (s *Server) servePackagesFile(c echo.Context, gzipped bool) error {
	repo := c.Param("repo")
	if _, err := validate.Repo(repo, s.cfg.AllowedRepos); err != nil {
		return errRepoNotAllowed(c, repo)
	}
	distribution := c.Param("distribution")
	component := c.Param("component")
	architecture := strings.TrimPrefix(c.Param("binaryArch"), "binary-")

	grouped, err := s.componentPackages(repo, distribution)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load component packages")
		return errInternal(c)
	}

	var target []models.PackageMetadata
	for _, g := range grouped {
		if g.Component == component {
			target = g.Packages
			break
		}
	}

	rendered, err := aptindex.RenderPackages(target, architecture)
	if err != nil {
		if errors.Is(err, aptindex.ErrNoAllSlice) {
			return errNotFound(c, "binary-all/Packages is not served")
		}
		return errInternal(c)
	}

	if !gzipped {
		return c.Blob(http.StatusOK, "text/plain; charset=utf-8", []byte(rendered))
	}

	files, err := aptindex.BuildPackagesFiles([]aptindex.PerComponentPackages{{Component: component, Packages: target}})
	if err != nil {
		return errInternal(c)
	}
	for _, f := range files {
		if strings.HasSuffix(f.Path, "binary-"+architecture+"/Packages.gz") {
			return c.Blob(http.StatusOK, "application/gzip", f.Data)
		}
	}
	return errNotFound(c, "Packages.gz not available")
}

// poolFilenamePattern matches the conventional pool filename
// <name>_<version>_<architecture>.deb.
var poolFilenamePattern = regexp.MustCompile(`^(.+)_(.+)_(.+)\.deb$`)

func (s *Server) downloadPackage(c echo.Context) error {
	repo := c.Param("repo")
	if _, err := validate.Repo(repo, s.cfg.AllowedRepos); err != nil {
		return errRepoNotAllowed(c, repo)
	}

	matches := poolFilenamePattern.FindStringSubmatch(c.Param("pkgFile"))
	if matches == nil {
		return errValidation(c, "expected pool filename <name>_<version>_<architecture>.deb")
	}

	loc := models.PackageLocation{
		Repo:         repo,
		Distribution: c.Param("distribution"),
		Component:    c.Param("component"),
		Architecture: c.Param("architecture"),
		Name:         matches[1],
		Version:      matches[2],
	}

	path, err := s.storage.GetPackageFile(loc)
	if err != nil {
		var notFound storage.PackageNotFoundError
		if errors.As(err, &notFound) {
			return errNotFound(c, "package not found")
		}
		log.Error().Err(err).Msg("Failed to resolve package file")
		return errInternal(c)
	}

	s.metrics.DownloadsTotal.WithLabelValues(repo).Inc()
	return c.Attachment(path, loc.Filename())
}

// defaultRepo is the implicit repo for the /repo/... compatibility shortcut,
// which predates multi-repo support and never carries a repo segment.
const defaultRepo = "default"

// legacyFilenamePattern matches the /repo/... shortcut's filename,
// <name>_<version>.deb — unlike the apt pool convention, architecture is
// already its own path segment here, so the filename carries no third part.
var legacyFilenamePattern = regexp.MustCompile(`^(.+)_(.+)\.deb$`)

// downloadDefaultRepoPackage serves the same pool layout as downloadPackage
// but against the implicit "default" repo, for operators who never adopted
// multi-repo layouts and still point apt at the bare /repo/... path.
func (s *Server) downloadDefaultRepoPackage(c echo.Context) error {
	matches := legacyFilenamePattern.FindStringSubmatch(c.Param("pkgFile"))
	if matches == nil {
		return errValidation(c, "expected filename <name>_<version>.deb")
	}

	loc := models.PackageLocation{
		Repo:         defaultRepo,
		Distribution: c.Param("distribution"),
		Component:    c.Param("component"),
		Architecture: c.Param("architecture"),
		Name:         matches[1],
		Version:      matches[2],
	}

	path, err := s.storage.GetPackageFile(loc)
	if err != nil {
		var notFound storage.PackageNotFoundError
		if errors.As(err, &notFound) {
			return errNotFound(c, "package not found")
		}
		log.Error().Err(err).Msg("Failed to resolve package file")
		return errInternal(c)
	}

	s.metrics.DownloadsTotal.WithLabelValues(defaultRepo).Inc()
	return c.Attachment(path, loc.Filename())
}
