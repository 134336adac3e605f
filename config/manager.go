package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	defaultConfigPath = "config/app.yaml"
	envPrefix         = "CONSOLE_"
)

func Load() (*AppConfig, error) {
	cfg := &AppConfig{}
	cfgPath := resolveConfigPath()
	if st, err := os.Stat(cfgPath); err == nil && !st.IsDir() {
		if err := cleanenv.ReadConfig(cfgPath, cfg); err != nil {
			return nil, err
		}
	} else if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, err
	}
	applyEnvAliases(cfg)
	normalizeConfig(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvAliases(cfg *AppConfig) {
	if cfg == nil {
		return
	}
	if v := getEnv("API_BASE_URL", "NEXT_PUBLIC_API_BASE_URL"); v != "" {
		cfg.GraphQL.BaseURL = strings.TrimSpace(v)
	}
	if v := getEnv("ENV", "APP_ENV"); v != "" {
		cfg.AppEnv = strings.TrimSpace(v)
	}
	if v := getEnv("PORT", envPrefix+"PORT"); v != "" {
		cfg.ListenAddr = listenAddrWithPort(cfg.ListenAddr, v)
	}
	if v := getEnv("CSRF_KEY"); v != "" {
		cfg.CSRFKey = strings.TrimSpace(v)
	}
	if v := getEnv("SESSION_SECRET"); v != "" {
		cfg.Session.SealKey = strings.TrimSpace(v)
	}
	if v := getEnv("DATABASE_URL"); v != "" {
		cfg.DBURL = strings.TrimSpace(v)
		cfg.DBDriver = "postgres"
	}
	if v := getEnv("REDIS_URL", "REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = strings.TrimPrefix(strings.TrimSpace(v), "redis://")
	}
	if v := getEnv("EDITORS_MAX_PARALLEL"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			cfg.Editors.MaxParallel = n
		}
	}
}

func normalizeConfig(cfg *AppConfig) {
	if cfg == nil {
		return
	}
	cfg.ListenAddr = strings.TrimSpace(cfg.ListenAddr)
	cfg.AppEnv = strings.ToLower(strings.TrimSpace(cfg.AppEnv))
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	cfg.LogFormat = strings.ToLower(strings.TrimSpace(cfg.LogFormat))
	cfg.CSRFKey = strings.TrimSpace(cfg.CSRFKey)
	cfg.DBDriver = strings.ToLower(strings.TrimSpace(cfg.DBDriver))
	cfg.DBURL = strings.TrimSpace(cfg.DBURL)
	cfg.DBPath = strings.TrimSpace(cfg.DBPath)
	cfg.GraphQL.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.GraphQL.BaseURL), "/")
	cfg.GraphQL.Path = strings.TrimSpace(cfg.GraphQL.Path)
	cfg.Session.Backend = strings.ToLower(strings.TrimSpace(cfg.Session.Backend))
	cfg.Session.Namespace = strings.TrimSpace(cfg.Session.Namespace)
	cfg.Session.SealKey = strings.TrimSpace(cfg.Session.SealKey)
	cfg.Auth.RoleSource = strings.ToLower(strings.TrimSpace(cfg.Auth.RoleSource))
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = "0.0.0.0:3000"
	}
	if cfg.GraphQL.BaseURL == "" {
		cfg.GraphQL.BaseURL = "http://localhost:8000"
	}
	if cfg.GraphQL.Path == "" {
		cfg.GraphQL.Path = "/graphql"
	}
	if !strings.HasPrefix(cfg.GraphQL.Path, "/") {
		cfg.GraphQL.Path = "/" + cfg.GraphQL.Path
	}
	if cfg.GraphQL.Timeout <= 0 {
		cfg.GraphQL.Timeout = 15 * time.Second
	}
	if cfg.GraphQL.BreakerFailures == 0 {
		cfg.GraphQL.BreakerFailures = 5
	}
	if cfg.GraphQL.BreakerCooldown <= 0 {
		cfg.GraphQL.BreakerCooldown = 30 * time.Second
	}
	if cfg.DBDriver == "pg" || cfg.DBDriver == "postgresql" {
		cfg.DBDriver = "postgres"
	}
	if cfg.DBDriver == "" {
		cfg.DBDriver = "sqlite"
	}
	if cfg.Session.Backend == "" {
		cfg.Session.Backend = "sql"
	}
	if cfg.Session.Namespace == "" {
		cfg.Session.Namespace = "next-admin-auth"
	}
	if cfg.Session.TTL <= 0 {
		cfg.Session.TTL = 24 * time.Hour
	}
	if cfg.Session.RememberMaxAge <= 0 {
		cfg.Session.RememberMaxAge = 7 * 24 * time.Hour
	}
	if cfg.Auth.RoleSource == "" {
		cfg.Auth.RoleSource = "profile"
	}
	if cfg.Auth.LoginBurst <= 0 {
		cfg.Auth.LoginBurst = 5
	}
	if cfg.Auth.LoginRatePerSec <= 0 {
		cfg.Auth.LoginRatePerSec = 0.2
	}
	if cfg.Editors.MaxParallel <= 0 {
		cfg.Editors.MaxParallel = 4
	}
	if cfg.AppEnv == "dev" {
		if cfg.CSRFKey == "" {
			cfg.CSRFKey = defaultCSRFKey
		}
		if cfg.Session.SealKey == "" {
			cfg.Session.SealKey = defaultSealKey
		}
	}
}

func getEnv(keys ...string) string {
	for _, key := range keys {
		if key == "" {
			continue
		}
		if val := os.Getenv(key); val != "" {
			return val
		}
	}
	return ""
}

func resolveConfigPath() string {
	if v := getEnv("APP_CONFIG", envPrefix+"APP_CONFIG"); v != "" {
		return strings.TrimSpace(v)
	}
	return defaultConfigPath
}

func listenAddrWithPort(currentAddr, portRaw string) string {
	port := strings.TrimSpace(portRaw)
	if port == "" {
		return currentAddr
	}
	if _, err := strconv.Atoi(port); err != nil {
		return currentAddr
	}
	host := "0.0.0.0"
	parts := strings.Split(strings.TrimSpace(currentAddr), ":")
	if len(parts) > 1 {
		host = strings.Join(parts[:len(parts)-1], ":")
	}
	if host == "" {
		host = "0.0.0.0"
	}
	return host + ":" + port
}
