package main

import (
	_ "embed"
	"flag"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"pository/pkg/apikeys"
	"pository/pkg/audit"
	"pository/pkg/authz"
	"pository/pkg/config"
	"pository/pkg/identity"
	"pository/pkg/log"
	"pository/pkg/metrics"
	"pository/pkg/server"
	"pository/pkg/storage"
)

//go:embed VERSION
var Version string

func main() {
	configPath := flag.String("config", "", "Path to YAML config file (optional, POSITORY_CONFIG overrides)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Str("config", *configPath).Msg("Failed to load configuration")
	}

	if err := log.Init(cfg.LogPath); err != nil {
		log.Fatal().Err(err).Str("log_path", cfg.LogPath).Msg("Failed to initialize log file")
	}

	if err := os.MkdirAll(cfg.DataRoot, 0o750); err != nil {
		log.Fatal().Err(err).Str("data_root", cfg.DataRoot).Msg("Failed to create data root directory")
	}

	storageEngine := storage.New(cfg.DataRoot)
	storageEngine.DpkgDebPath = cfg.DpkgDebPath

	keys, err := apikeys.Load(cfg.ApiKeysPath)
	if err != nil {
		log.Fatal().Err(err).Str("api_keys_path", cfg.ApiKeysPath).Msg("Failed to load API key store")
	}
	keys.SetAdminSecret(cfg.AdminKey)

	var verifier *identity.Verifier
	if cfg.JWKSURL != "" {
		refetch := time.Duration(cfg.JWKSRefetchSeconds) * time.Second
		keySet := identity.NewKeySet(cfg.JWKSURL, refetch)
		verifier = identity.NewVerifier(keySet, cfg.OIDCIssuer, cfg.OIDCAudience)
	}

	policy := authz.New(cfg.DefaultOwners, cfg.RequirePrivate, cfg.Overrides)

	reg := metrics.New()

	var auditLog *audit.Log
	if cfg.AuditDBPath != "" {
		auditLog, err = audit.Open(cfg.AuditDBPath)
		if err != nil {
			log.Fatal().Err(err).Str("audit_db", cfg.AuditDBPath).Msg("Failed to open audit log")
		}
		defer func() { _ = auditLog.Close() }()
	}

	if free, err := storageEngine.DiskFree(); err == nil {
		log.Info().Str("data_root", cfg.DataRoot).Str("disk_free", humanize.Bytes(uint64(free))).
			Msg("Storage root ready")
	}

	srv := server.New(storageEngine, keys, verifier, policy, reg, auditLog, server.Config{
		AllowedRepos:   cfg.AllowedRepos,
		AuthOnDownload: cfg.AuthOnDownload,
		DpkgDebPath:    cfg.DpkgDebPath,
		ReleaseOrigin:  cfg.ReleaseOrigin,
		ReleaseLabel:   cfg.ReleaseLabel,
		ReleaseDesc:    cfg.ReleaseDesc,
		MaxUploadBytes: cfg.MaxUploadSize,
		CorsOrigins:    cfg.CorsOrigins,
	})

	log.Info().Str("version", strings.TrimSpace(Version)).Msg("Pository starting")

	if err := srv.Start(cfg.ListenAddr()); err != nil {
		log.Fatal().Err(err).Msg("Server failed to start")
	}

	os.Exit(0)
}
