// Package config loads service configuration from an optional YAML file and
// PORTAL_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalid marks a configuration that fails validation.
var ErrInvalid = errors.New("config: invalid")

// Snapshot sources.
const (
	SourceBackend  = "backend"
	SourcePostgres = "postgres"
)

type AuthConfig struct {
	Secret   string        `yaml:"secret"`
	Issuer   string        `yaml:"issuer"`
	TokenTTL time.Duration `yaml:"token_ttl"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// Enabled reports whether sessions live in redis rather than memory.
func (r RedisConfig) Enabled() bool { return strings.TrimSpace(r.Addr) != "" }

type Config struct {
	Env      string `yaml:"env"`
	LogLevel string `yaml:"log_level"`
	HTTPAddr string `yaml:"http_addr"`
	GRPCAddr string `yaml:"grpc_addr"`

	Auth AuthConfig `yaml:"auth"`

	// Source selects where snapshots come from: backend or postgres.
	Source       string `yaml:"source"`
	BackendURL   string `yaml:"backend_url"`
	BackendToken string `yaml:"backend_token"`
	PostgresDSN  string `yaml:"postgres_dsn"`

	Redis      RedisConfig   `yaml:"redis"`
	SessionTTL time.Duration `yaml:"session_ttl"`

	PollInterval time.Duration `yaml:"poll_interval"`
	LobbyRoutes  []string      `yaml:"lobby_routes"`

	RateLimitRPS   int   `yaml:"rate_limit_rps"`
	RateLimitBurst int   `yaml:"rate_limit_burst"`
	MaxBodyBytes   int64 `yaml:"max_body_bytes"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Env:            "prod",
		LogLevel:       "info",
		HTTPAddr:       ":8080",
		GRPCAddr:       ":9090",
		Auth:           AuthConfig{Issuer: "portal", TokenTTL: 15 * time.Minute},
		Source:         SourceBackend,
		SessionTTL:     12 * time.Hour,
		PollInterval:   5 * time.Second,
		LobbyRoutes:    []string{"/", "/tenants", "/onboarding", "/profile", "/logout"},
		RateLimitRPS:   50,
		RateLimitBurst: 100,
		MaxBodyBytes:   1 << 20,
	}
}

// Load reads the file named by PORTAL_CONFIG, if any, then applies
// environment overrides and validates the result.
func Load() (Config, error) {
	cfg, err := Read()
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Read is Load without validation, for tools that need only part of the
// configuration.
func Read() (Config, error) {
	cfg := Default()
	if path := strings.TrimSpace(os.Getenv("PORTAL_CONFIG")); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.applyEnv(os.Getenv); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	var errs []error
	dur := func(key string, dst *time.Duration) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}
	num := func(key string, dst *int) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}

	str("PORTAL_ENV", &c.Env)
	str("PORTAL_LOG_LEVEL", &c.LogLevel)
	str("PORTAL_HTTP_ADDR", &c.HTTPAddr)
	str("PORTAL_GRPC_ADDR", &c.GRPCAddr)
	str("PORTAL_AUTH_SECRET", &c.Auth.Secret)
	str("PORTAL_AUTH_ISSUER", &c.Auth.Issuer)
	dur("PORTAL_TOKEN_TTL", &c.Auth.TokenTTL)
	str("PORTAL_SOURCE", &c.Source)
	str("PORTAL_BACKEND_URL", &c.BackendURL)
	str("PORTAL_BACKEND_TOKEN", &c.BackendToken)
	str("PORTAL_PG_DSN", &c.PostgresDSN)
	str("PORTAL_REDIS_ADDR", &c.Redis.Addr)
	str("PORTAL_REDIS_PASSWORD", &c.Redis.Password)
	num("PORTAL_REDIS_DB", &c.Redis.DB)
	str("PORTAL_REDIS_PREFIX", &c.Redis.Prefix)
	dur("PORTAL_SESSION_TTL", &c.SessionTTL)
	dur("PORTAL_POLL_INTERVAL", &c.PollInterval)
	num("PORTAL_RATE_LIMIT_RPS", &c.RateLimitRPS)
	num("PORTAL_RATE_LIMIT_BURST", &c.RateLimitBurst)
	if v := strings.TrimSpace(getenv("PORTAL_LOBBY_ROUTES")); v != "" {
		c.LobbyRoutes = splitList(v)
	}
	return errors.Join(errs...)
}

// Validate reports every problem at once, each wrapped in ErrInvalid.
func (c Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}
	if strings.TrimSpace(c.Auth.Secret) == "" {
		bad("auth secret is required (PORTAL_AUTH_SECRET)")
	}
	if c.Auth.TokenTTL <= 0 {
		bad("token ttl must be positive")
	}
	if err := c.ValidateSource(); err != nil {
		errs = append(errs, err)
	}
	if c.PollInterval <= 0 {
		bad("poll interval must be positive")
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		bad("rate limit must be positive")
	}
	return errors.Join(errs...)
}

// Warnings lists settings that load but leave part of the service degraded.
func (c Config) Warnings() []string {
	var out []string
	if c.Source == SourceBackend && strings.TrimSpace(c.BackendToken) == "" {
		out = append(out, "backend token is empty (PORTAL_BACKEND_TOKEN): background snapshot polling sends no credentials and only per-request calls forward the caller token")
	}
	return out
}

// ValidateSource checks only the snapshot source settings.
func (c Config) ValidateSource() error {
	switch c.Source {
	case SourceBackend:
		if strings.TrimSpace(c.BackendURL) == "" {
			return fmt.Errorf("%w: backend url is required for source %q", ErrInvalid, c.Source)
		}
	case SourcePostgres:
		if strings.TrimSpace(c.PostgresDSN) == "" {
			return fmt.Errorf("%w: postgres dsn is required for source %q", ErrInvalid, c.Source)
		}
	default:
		return fmt.Errorf("%w: unknown snapshot source %q", ErrInvalid, c.Source)
	}
	return nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
