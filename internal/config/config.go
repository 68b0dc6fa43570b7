package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// PathEnvVar names an optional YAML file layered between defaults and env.
const PathEnvVar = "CONFIG_PATH"

// Config captures all runtime configuration. Keys match the lower-cased
// environment variable names so PORT overrides `port` from the file.
type Config struct {
	Port                string   `koanf:"port"`
	DBURL               string   `koanf:"db_url"`
	DBAutoMigrate       bool     `koanf:"db_auto_migrate"`
	JWTSecret           string   `koanf:"jwt_secret"`
	TokenTTLSecs        int      `koanf:"token_ttl_secs"`
	ReadTimeoutSecs     int      `koanf:"server_read_timeout"`
	WriteTimeoutSecs    int      `koanf:"server_write_timeout"`
	IdleTimeoutSecs     int      `koanf:"server_idle_timeout"`
	DBMaxConns          int      `koanf:"db_max_conns"`
	DBMinConns          int      `koanf:"db_min_conns"`
	DBMaxIdleSecs       int      `koanf:"db_max_conn_idle_secs"`
	DBMaxLifeSecs       int      `koanf:"db_max_conn_lifetime_secs"`
	DBConnTimeoutSecs   int      `koanf:"db_conn_timeout_secs"`
	DBStatementCache    int      `koanf:"db_statement_cache_capacity"`
	LogLevel            string   `koanf:"log_level"`
	LogFormat           string   `koanf:"log_format"`
	RateLimitRequests   int      `koanf:"rate_limit_requests"`
	RateLimitWindowSecs int      `koanf:"rate_limit_window_secs"`
	CORSOrigins         []string `koanf:"cors_origins"`
	MetricsEnabled      bool     `koanf:"metrics_enabled"`
}

func defaults() Config {
	return Config{
		Port:                "8080",
		DBAutoMigrate:       true,
		TokenTTLSecs:        86400,
		ReadTimeoutSecs:     15,
		WriteTimeoutSecs:    15,
		IdleTimeoutSecs:     60,
		DBMaxConns:          20,
		DBMinConns:          2,
		DBMaxIdleSecs:       300,
		DBMaxLifeSecs:       3600,
		DBConnTimeoutSecs:   10,
		DBStatementCache:    256,
		LogLevel:            "info",
		LogFormat:           "json",
		RateLimitRequests:   300,
		RateLimitWindowSecs: 60,
		CORSOrigins:         []string{"*"},
		MetricsEnabled:      true,
	}
}

// Load layers defaults, the optional CONFIG_PATH file and environment
// variables, then validates the result.
func Load() (Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaults(), "koanf"), nil); err != nil {
		return Config{}, fmt.Errorf("load defaults: %w", err)
	}

	if path := os.Getenv(PathEnvVar); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.ProviderWithValue("", ".", envValue), nil); err != nil {
		return Config{}, fmt.Errorf("load environment: %w", err)
	}

	if raw, ok := k.Get("cors_origins").(string); ok {
		if err := k.Set("cors_origins", splitList(raw)); err != nil {
			return Config{}, fmt.Errorf("parse CORS_ORIGINS: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (cfg Config) validate() error {
	if cfg.DBURL == "" {
		return fmt.Errorf("DB_URL is required")
	}
	if cfg.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.TokenTTLSecs <= 0 {
		return fmt.Errorf("TOKEN_TTL_SECS must be positive")
	}
	if cfg.DBMaxConns <= 0 {
		return fmt.Errorf("DB_MAX_CONNS must be positive")
	}
	if cfg.DBMinConns < 0 {
		return fmt.Errorf("DB_MIN_CONNS must be non-negative")
	}
	if cfg.DBMinConns > cfg.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS cannot exceed DB_MAX_CONNS")
	}
	if cfg.DBStatementCache < 0 {
		return fmt.Errorf("DB_STATEMENT_CACHE_CAPACITY must be non-negative")
	}
	if cfg.RateLimitRequests < 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be non-negative")
	}
	if cfg.RateLimitRequests > 0 && cfg.RateLimitWindowSecs <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW_SECS must be positive")
	}
	return nil
}

// envValue maps PORT to port and drops empty variables so they fall back to
// the file or default value.
func envValue(key, value string) (string, interface{}) {
	if strings.TrimSpace(value) == "" {
		return "", nil
	}
	return strings.ToLower(key), value
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
