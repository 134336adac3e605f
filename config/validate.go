package config

import (
	"fmt"
	"net/url"
	"strings"
)

const (
	defaultCSRFKey = "FWgaRnHOh8Nep_kGLCTiBXIB2k72_G2Ch1Q7HOM0zIo"
	defaultSealKey = "dev-only-session-seal-key-0123456789abcdef"
)

var (
	validDrivers     = map[string]bool{"sqlite": true, "postgres": true}
	validBackends    = map[string]bool{"sql": true, "redis": true, "memory": true}
	validRoleSources = map[string]bool{"profile": true, "claims": true, "auto": true}
)

func Validate(cfg *AppConfig) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	u, err := url.Parse(cfg.GraphQL.BaseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("graphql.base_url must be an absolute http(s) url: %q", cfg.GraphQL.BaseURL)
	}
	if !validRoleSources[cfg.Auth.RoleSource] {
		return fmt.Errorf("unsupported auth.role_source: %s", cfg.Auth.RoleSource)
	}
	if !validBackends[cfg.Session.Backend] {
		return fmt.Errorf("unsupported session.backend: %s", cfg.Session.Backend)
	}
	if cfg.Session.Backend == "sql" {
		if !validDrivers[cfg.DBDriver] {
			return fmt.Errorf("unsupported db_driver: %s", cfg.DBDriver)
		}
		if cfg.DBDriver == "postgres" && cfg.DBURL == "" {
			return fmt.Errorf("db_url must be set for postgres driver")
		}
		if cfg.DBDriver == "sqlite" && cfg.DBPath == "" {
			return fmt.Errorf("db_path must be set for sqlite driver")
		}
	}
	if cfg.Session.Backend == "redis" && strings.TrimSpace(cfg.Redis.Addr) == "" {
		return fmt.Errorf("redis.addr must be set for redis session backend")
	}
	if cfg.CSRFKey == "" || cfg.Session.SealKey == "" {
		return fmt.Errorf("csrf_key and session.seal_key must be set via env")
	}
	if len(cfg.Session.SealKey) < 32 {
		return fmt.Errorf("session.seal_key must be at least 32 characters")
	}
	if cfg.AppEnv != "dev" {
		if isDefaultSecret(cfg.CSRFKey) || isDefaultSecret(cfg.Session.SealKey) {
			return fmt.Errorf("default secrets are not allowed outside APP_ENV=dev")
		}
		if !cfg.TLSEnabled {
			return fmt.Errorf("tls_enabled=false is only allowed in APP_ENV=dev")
		}
		if cfg.Observability.MetricsEnabled && cfg.Observability.MetricsToken == "" {
			return fmt.Errorf("observability.metrics_token must be set when metrics are enabled outside APP_ENV=dev")
		}
	}
	if cfg.TLSEnabled && (cfg.TLSCert == "" || cfg.TLSKey == "") {
		return fmt.Errorf("tls_cert and tls_key must be set when tls_enabled=true")
	}
	return nil
}

func isDefaultSecret(val string) bool {
	switch val {
	case defaultCSRFKey, defaultSealKey:
		return true
	default:
		return false
	}
}
