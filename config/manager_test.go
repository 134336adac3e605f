package config

import (
	"testing"
	"time"
)

func TestLoadWithAliasEnv(t *testing.T) {
	t.Setenv("APP_CONFIG", "config/does-not-exist.yaml")
	t.Setenv("CONSOLE_LISTEN_ADDR", "127.0.0.1:8080")
	t.Setenv("PORT", "9090")
	t.Setenv("ENV", "dev")
	t.Setenv("API_BASE_URL", "http://api.internal:8000/")
	t.Setenv("CONSOLE_AUTH_ROLE_SOURCE", "AUTO")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.ListenAddr != "127.0.0.1:9090" {
		t.Fatalf("unexpected listen addr: %s", cfg.ListenAddr)
	}
	if cfg.GraphQL.Endpoint() != "http://api.internal:8000/graphql" {
		t.Fatalf("unexpected graphql endpoint: %s", cfg.GraphQL.Endpoint())
	}
	if cfg.Auth.RoleSource != "auto" {
		t.Fatalf("expected normalized role source, got %s", cfg.Auth.RoleSource)
	}
	if cfg.Session.Namespace != "next-admin-auth" {
		t.Fatalf("unexpected session namespace: %s", cfg.Session.Namespace)
	}
	if cfg.Session.RememberMaxAge != 7*24*time.Hour {
		t.Fatalf("unexpected remember max age: %s", cfg.Session.RememberMaxAge)
	}
	if cfg.CSRFKey == "" || cfg.Session.SealKey == "" {
		t.Fatalf("expected dev secrets to be filled")
	}
}

func TestLoadDatabaseURLSwitchesDriver(t *testing.T) {
	t.Setenv("APP_CONFIG", "config/does-not-exist.yaml")
	t.Setenv("ENV", "dev")
	t.Setenv("DATABASE_URL", "postgres://localhost/console")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.DBDriver != "postgres" || cfg.DBURL != "postgres://localhost/console" {
		t.Fatalf("unexpected db settings: %s %s", cfg.DBDriver, cfg.DBURL)
	}
}

func TestListenAddrWithPort(t *testing.T) {
	cases := map[string]string{
		"":             "0.0.0.0:8081",
		"127.0.0.1:80": "127.0.0.1:8081",
		"[::1]:80":     "[::1]:8081",
	}
	for in, want := range cases {
		if got := listenAddrWithPort(in, "8081"); got != want {
			t.Fatalf("listenAddrWithPort(%q) = %q, want %q", in, got, want)
		}
	}
	if got := listenAddrWithPort("127.0.0.1:80", "abc"); got != "127.0.0.1:80" {
		t.Fatalf("expected invalid port to be ignored, got %q", got)
	}
}
