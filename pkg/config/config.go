// Package config is C10's configuration half: a YAML file layered under
// environment variable overrides, matching the precedence most operators
// expect (env wins, so a container orchestrator can override a baked-in
// config file without rebuilding it).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// TLSConfig carries the certificate pair for TLS termination. Pository
// itself never terminates TLS (that's left to a reverse proxy or sidecar);
// these settings are parsed and overridable from the environment, but
// nothing else reads them.
type TLSConfig struct {
	Enabled bool   `yaml:"enabled"`
	Cert    string `yaml:"cert"`
	Key     string `yaml:"key"`
}

// RetentionConfig is accepted but not yet enforced by any component; it
// exists so a config file written against the documented schema parses
// without error.
type RetentionConfig struct {
	Enabled    bool `yaml:"enabled"`
	KeepLastN  int  `yaml:"keepLastN"`
	MaxAgeDays int  `yaml:"maxAgeDays"`
}

// Config is the full set of knobs the spec's components accept.
type Config struct {
	DataRoot    string `yaml:"dataRoot"`
	LogPath     string `yaml:"logPath"`
	Port        string `yaml:"port"`
	BindAddress string `yaml:"bindAddress"`

	TLS       TLSConfig       `yaml:"tls"`
	Retention RetentionConfig `yaml:"retention"`

	MaxUploadSize int64    `yaml:"maxUploadSize"`
	AllowedRepos  []string `yaml:"allowedRepos"`
	CorsOrigins   []string `yaml:"corsOrigins"`
	AdminKey      string   `yaml:"adminKey"`
	ApiKeysPath   string   `yaml:"apiKeysPath"`

	AuthOnDownload bool   `yaml:"authOnDownload"`
	DpkgDebPath    string `yaml:"dpkgDebPath"`

	ReleaseOrigin string `yaml:"releaseOrigin"`
	ReleaseLabel  string `yaml:"releaseLabel"`
	ReleaseDesc   string `yaml:"releaseDescription"`

	JWKSURL            string `yaml:"jwksUrl"`
	JWKSRefetchSeconds int    `yaml:"jwksRefetchSeconds"`
	OIDCIssuer         string `yaml:"oidcIssuer"`
	OIDCAudience       string `yaml:"oidcAudience"`

	DefaultOwners  []string            `yaml:"oidcAllowedOwners"`
	RequirePrivate bool                `yaml:"oidcRequirePrivate"`
	Overrides      map[string][]string `yaml:"oidcOverrides"`

	AuditDBPath string `yaml:"auditDbPath"`
	Debug       bool   `yaml:"debug"`
}

// ListenAddr combines BindAddress and Port into the host:port form
// net/http (and echo) expect. An empty BindAddress binds all interfaces.
func (c Config) ListenAddr() string {
	return c.BindAddress + ":" + c.Port
}

// Default returns the Config used before a config file and environment
// overrides are applied.
func Default() Config {
	return Config{
		DataRoot:           "build/data",
		LogPath:            "build/data/pository.log",
		Port:               "8080",
		MaxUploadSize:      512 * 1024 * 1024,
		ApiKeysPath:        "build/data/keys.json",
		AuthOnDownload:     false,
		DpkgDebPath:        "",
		ReleaseOrigin:      "Pository",
		ReleaseLabel:       "Pository",
		ReleaseDesc:        "Pository package repository",
		JWKSRefetchSeconds: 300,
		AuditDBPath:        "build/data/audit.db",
	}
}

// Load reads path (if non-empty and it exists) into a Config seeded with
// Default(), then applies environment variable overrides. path itself may
// be overridden by POSITORY_CONFIG when the caller passed an empty path.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("POSITORY_CONFIG")
	}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parsing %s: %w", path, err)
			}
		case os.IsNotExist(err):
			// No config file is fine; defaults plus env vars still apply.
		default:
			return Config{}, err
		}
	}

	applyEnvOverrides(&cfg)
	return cfg, nil
}

// applyEnvOverrides mutates cfg in place from POSITORY_* environment
// variables, taking precedence over whatever the YAML file set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("POSITORY_DATA_ROOT"); v != "" {
		cfg.DataRoot = v
	}
	if v := os.Getenv("POSITORY_LOG_PATH"); v != "" {
		cfg.LogPath = v
	}
	if v := os.Getenv("POSITORY_PORT"); v != "" {
		cfg.Port = v
	}
	if v := os.Getenv("POSITORY_BIND_ADDRESS"); v != "" {
		cfg.BindAddress = v
	}
	if v := os.Getenv("POSITORY_ADMIN_KEY"); v != "" {
		cfg.AdminKey = v
	}
	if v := os.Getenv("POSITORY_API_KEYS_PATH"); v != "" {
		cfg.ApiKeysPath = v
	}
	if v := os.Getenv("POSITORY_TLS_CERT"); v != "" {
		cfg.TLS.Cert = v
	}
	if v := os.Getenv("POSITORY_TLS_KEY"); v != "" {
		cfg.TLS.Key = v
	}
	if v := os.Getenv("POSITORY_MAX_UPLOAD_SIZE"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.MaxUploadSize = n
		}
	}
	if v := os.Getenv("POSITORY_CORS_ORIGINS"); v != "" {
		cfg.CorsOrigins = strings.Split(v, ",")
	}

	if v := os.Getenv("POSITORY_ALLOWED_REPOS"); v != "" {
		cfg.AllowedRepos = strings.Split(v, ",")
	}
	if v := os.Getenv("POSITORY_AUTH_ON_DOWNLOAD"); v != "" {
		cfg.AuthOnDownload = parseBool(v, cfg.AuthOnDownload)
	}
	if v := os.Getenv("POSITORY_DPKG_DEB_PATH"); v != "" {
		cfg.DpkgDebPath = v
	}
	if v := os.Getenv("POSITORY_JWKS_URL"); v != "" {
		cfg.JWKSURL = v
	}
	if v := os.Getenv("POSITORY_OIDC_ISSUER"); v != "" {
		cfg.OIDCIssuer = v
	}
	if v := os.Getenv("POSITORY_OIDC_AUDIENCE"); v != "" {
		cfg.OIDCAudience = v
	}
	if v := os.Getenv("POSITORY_OIDC_ALLOWED_OWNERS"); v != "" {
		cfg.DefaultOwners = strings.Split(v, ",")
	}
	if v := os.Getenv("POSITORY_OIDC_REQUIRE_PRIVATE"); v != "" {
		cfg.RequirePrivate = parseBool(v, cfg.RequirePrivate)
	}
	if v := os.Getenv("POSITORY_AUDIT_DB_PATH"); v != "" {
		cfg.AuditDBPath = v
	}
	if v := os.Getenv("POSITORY_DEBUG"); v != "" {
		cfg.Debug = parseBool(v, cfg.Debug)
	}
}

func parseBool(s string, fallback bool) bool {
	b, err := strconv.ParseBool(s)
	if err != nil {
		return fallback
	}
	return b
}
