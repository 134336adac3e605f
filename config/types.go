package config

import "time"

type AppConfig struct {
	ListenAddr    string              `yaml:"listen_addr" env:"CONSOLE_LISTEN_ADDR" env-default:"0.0.0.0:3000"`
	AppEnv        string              `yaml:"app_env" env:"CONSOLE_APP_ENV" env-default:"prod"`
	LogLevel      string              `yaml:"log_level" env:"CONSOLE_LOG_LEVEL" env-default:"info"`
	LogFormat     string              `yaml:"log_format" env:"CONSOLE_LOG_FORMAT" env-default:"text"`
	TLSEnabled    bool                `yaml:"tls_enabled" env:"CONSOLE_TLS_ENABLED"`
	TLSCert       string              `yaml:"tls_cert" env:"CONSOLE_TLS_CERT"`
	TLSKey        string              `yaml:"tls_key" env:"CONSOLE_TLS_KEY"`
	CSRFKey       string              `yaml:"csrf_key" env:"CONSOLE_CSRF_KEY"`
	GraphQL       GraphQLConfig       `yaml:"graphql"`
	Session       SessionConfig       `yaml:"session"`
	DBDriver      string              `yaml:"db_driver" env:"CONSOLE_DB_DRIVER" env-default:"sqlite"`
	DBURL         string              `yaml:"db_url" env:"CONSOLE_DB_URL"`
	DBPath        string              `yaml:"db_path" env:"CONSOLE_DB_PATH" env-default:"data/console.db"`
	Redis         RedisConfig         `yaml:"redis"`
	Auth          AuthConfig          `yaml:"auth"`
	Editors       EditorsConfig       `yaml:"editors"`
	Security      SecurityConfig      `yaml:"security"`
	Observability ObservabilityConfig `yaml:"observability"`
}

func (c *AppConfig) IsDev() bool {
	if c == nil {
		return false
	}
	return c.AppEnv == "dev"
}

// GraphQLConfig points at the remote admin API.
type GraphQLConfig struct {
	BaseURL         string        `yaml:"base_url" env:"CONSOLE_GRAPHQL_BASE_URL" env-default:"http://localhost:8000"`
	Path            string        `yaml:"path" env:"CONSOLE_GRAPHQL_PATH" env-default:"/graphql"`
	Timeout         time.Duration `yaml:"timeout" env:"CONSOLE_GRAPHQL_TIMEOUT" env-default:"15s"`
	BreakerFailures uint32        `yaml:"breaker_failures" env:"CONSOLE_GRAPHQL_BREAKER_FAILURES" env-default:"5"`
	BreakerCooldown time.Duration `yaml:"breaker_cooldown" env:"CONSOLE_GRAPHQL_BREAKER_COOLDOWN" env-default:"30s"`
}

func (g GraphQLConfig) Endpoint() string {
	return g.BaseURL + g.Path
}

type SessionConfig struct {
	Backend        string        `yaml:"backend" env:"CONSOLE_SESSION_BACKEND" env-default:"sql"`
	Namespace      string        `yaml:"namespace" env:"CONSOLE_SESSION_NAMESPACE" env-default:"next-admin-auth"`
	SealKey        string        `yaml:"seal_key" env:"CONSOLE_SESSION_SEAL_KEY"`
	TTL            time.Duration `yaml:"ttl" env:"CONSOLE_SESSION_TTL" env-default:"24h"`
	RememberMaxAge time.Duration `yaml:"remember_max_age" env:"CONSOLE_SESSION_REMEMBER_MAX_AGE" env-default:"168h"`
	PurgeSchedule  string        `yaml:"purge_schedule" env:"CONSOLE_SESSION_PURGE_SCHEDULE" env-default:"@every 15m"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr" env:"CONSOLE_REDIS_ADDR" env-default:"localhost:6379"`
	Password string `yaml:"password" env:"CONSOLE_REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"CONSOLE_REDIS_DB"`
}

type AuthConfig struct {
	// RoleSource selects how the signed-in role is resolved: profile, claims or auto.
	RoleSource      string  `yaml:"role_source" env:"CONSOLE_AUTH_ROLE_SOURCE" env-default:"profile"`
	LoginRatePerSec float64 `yaml:"login_rate_per_sec" env:"CONSOLE_AUTH_LOGIN_RATE" env-default:"0.2"`
	LoginBurst      int     `yaml:"login_burst" env:"CONSOLE_AUTH_LOGIN_BURST" env-default:"5"`
}

type EditorsConfig struct {
	MaxParallel int `yaml:"max_parallel" env:"CONSOLE_EDITORS_MAX_PARALLEL" env-default:"4"`
}

type SecurityConfig struct {
	TrustedProxies []string `yaml:"trusted_proxies" env:"CONSOLE_TRUSTED_PROXIES" env-separator:","`
}

type ObservabilityConfig struct {
	MetricsEnabled bool   `yaml:"metrics_enabled" env:"CONSOLE_METRICS_ENABLED" env-default:"true"`
	MetricsToken   string `yaml:"metrics_token" env:"CONSOLE_METRICS_TOKEN"`
}
