// Package server is the Management API and apt-wire surface (C7 + C8): the
// echo-based HTTP server that fronts the storage engine, key store,
// workload identity verifier, and authorization policy.
package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"pository/pkg/apikeys"
	"pository/pkg/audit"
	"pository/pkg/authz"
	"pository/pkg/identity"
	"pository/pkg/log"
	"pository/pkg/metrics"
	"pository/pkg/storage"
)

const shutdownTimeout = 10 * time.Second

// Config carries the request-time policy knobs the spec leaves
// configurable: repo allow-lists, whether downloads also require auth,
// and the dpkg-deb fallback path.
type Config struct {
	AllowedRepos   []string
	AuthOnDownload bool
	DpkgDebPath    string
	ReleaseOrigin  string
	ReleaseLabel   string
	ReleaseDesc    string
	MaxUploadBytes int64
	CorsOrigins    []string
}

// Server wires the storage engine, key store, identity verifier,
// authorization policy, and metrics registry behind an echo router.
type Server struct {
	echo       *echo.Echo
	storage    *storage.Engine
	keys       *apikeys.Store
	verifier   *identity.Verifier
	policy     *authz.Policy
	metrics    *metrics.Registry
	audit      *audit.Log
	cfg        Config
	routesOnce sync.Once
}

// New creates a Server. verifier may be nil, disabling Bearer/workload
// identity auth entirely (only X-Api-Key is then accepted). auditLog may
// also be nil, in which case uploads, deletes, and key changes simply
// aren't recorded anywhere but the access log.
func New(storageEngine *storage.Engine, keys *apikeys.Store, verifier *identity.Verifier,
	policy *authz.Policy, reg *metrics.Registry, auditLog *audit.Log, cfg Config) *Server {
	return &Server{
		echo:     echo.New(),
		storage:  storageEngine,
		keys:     keys,
		verifier: verifier,
		policy:   policy,
		metrics:  reg,
		audit:    auditLog,
		cfg:      cfg,
	}
}

// recordAudit is a nil-safe helper so handlers don't need to check
// s.audit != nil at every call site.
func (s *Server) recordAudit(ev audit.Event) {
	if s.audit == nil {
		return
	}
	s.audit.Record(ev)
}

func (s *Server) setupRoutes() {
	s.echo.HideBanner = true
	s.echo.HidePort = true

	s.echo.Use(middleware.RequestID())
	s.echo.Use(middleware.Recover())
	s.echo.Use(s.accessLogMiddleware())
	s.echo.Use(s.metricsMiddleware())
	corsOrigins := s.cfg.CorsOrigins
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}
	s.echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: corsOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
	}))

	api := s.echo.Group("/api/v1")

	api.POST("/packages", s.uploadPackage, s.requireRole(roleWrite))
	api.GET("/packages", s.listPackages, s.requireRole(roleRead))
	api.GET("/packages/:repo/:distribution/:component/:architecture/:name/:version", s.getPackageMetadata, s.requireRole(roleRead))
	api.DELETE("/packages/:repo/:distribution/:component/:architecture/:name/:version", s.deletePackage, s.requireRole(roleAdmin))

	api.POST("/keys", s.createKey, s.requireRole(roleAdmin))
	api.GET("/keys", s.listKeys, s.requireRole(roleAdmin))
	api.DELETE("/keys/:id", s.deleteKey, s.requireRole(roleAdmin))

	// The apt tree is never authenticated, regardless of AuthOnDownload:
	// apt clients don't carry credentials, and the contract promises these
	// four paths are public.
	aptGroup := s.echo.Group("/apt/:repo")
	aptGroup.GET("/dists/:distribution/Release", s.getRelease)
	aptGroup.GET("/dists/:distribution/:component/:binaryArch/Packages", s.getPackagesFile)
	aptGroup.GET("/dists/:distribution/:component/:binaryArch/Packages.gz", s.getPackagesFileGz)
	aptGroup.GET("/pool/:distribution/:component/:architecture/:pkgFile", s.downloadPackage)

	// Compatibility shortcut predating multi-repo support: implicit
	// repo=default, gated by AuthOnDownload since (unlike the apt tree)
	// this path is part of the authenticated Management API surface.
	repoGroup := s.echo.Group("/repo")
	if s.cfg.AuthOnDownload {
		repoGroup.Use(s.requireRole(roleRead))
	}
	repoGroup.GET("/:distribution/:component/:architecture/:pkgFile", s.downloadDefaultRepoPackage)

	s.echo.GET("/healthz", s.healthz)
	s.echo.GET("/readyz", s.readyz)
	s.echo.GET("/metrics", s.metricsHandler)
}

// Start runs the HTTP server at addr until an interrupt or terminate
// signal arrives, then shuts it down gracefully.
func (s *Server) Start(addr string) error {
	s.routesOnce.Do(s.setupRoutes)

	go func() {
		log.Info().Str("addr", addr).Msg("Starting Pository server")
		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server startup failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	return s.Shutdown()
}

// Shutdown gracefully stops the HTTP server, bounded by shutdownTimeout.
func (s *Server) Shutdown() error {
	log.Info().Msg("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.echo.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
		return err
	}
	log.Info().Msg("Server gracefully stopped")
	return nil
}

// Echo exposes the underlying router, for tests that want to drive
// requests through it directly without a live listener.
func (s *Server) Echo() *echo.Echo {
	s.routesOnce.Do(s.setupRoutes)
	return s.echo
}
