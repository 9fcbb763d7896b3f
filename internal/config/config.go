package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
)

var (
	ErrMissingDatabaseURL = errors.New("DATABASE_URL is required")
	ErrInvalidPort        = errors.New("PORT must be a number between 1 and 65535")
	ErrInvalidLogLevel    = errors.New("LOG_LEVEL must be one of debug, info, warn, error")
	ErrInvalidLogFormat   = errors.New("LOG_FORMAT must be json or text")
	ErrInvalidUpstream    = errors.New("UPSTREAM_TIMEOUT and UPSTREAM_RPS must be positive")
)

const (
	DefaultPort          = "5050"
	DefaultSchema        = "headwaters"
	DefaultNOAAUserAgent = "HeadwatersAI (contact@headwatersai.com)"
	DefaultConfigFile    = "config.yaml"
)

// Config holds everything the API server and the cmd tools need at startup.
type Config struct {
	Port            string        `yaml:"port"`
	Env             string        `yaml:"env"`
	DatabaseURL     string        `yaml:"database_url"`
	DBSchema        string        `yaml:"db_schema"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
	LogLevel        string        `yaml:"log_level"`
	LogFormat       string        `yaml:"log_format"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	UpstreamTimeout time.Duration `yaml:"upstream_timeout"`
	UpstreamRPS     float64       `yaml:"upstream_rps"`
	NOAAUserAgent   string        `yaml:"noaa_user_agent"`

	RedisAddr        string        `yaml:"redis_addr"`
	RedisPassword    string        `yaml:"redis_password"`
	RedisDB          int           `yaml:"redis_db"`
	ResponseCacheTTL time.Duration `yaml:"response_cache_ttl"`

	BillingWebhookSecret string `yaml:"billing_webhook_secret"`
}

// Production reports whether cookies should be marked Secure.
func (c *Config) Production() bool {
	return strings.EqualFold(c.Env, "production")
}

func defaults() *Config {
	return &Config{
		Port:             DefaultPort,
		Env:              "development",
		DBSchema:         DefaultSchema,
		AllowedOrigins:   []string{"http://localhost:3000", "http://localhost:5173"},
		LogLevel:         "info",
		LogFormat:        "json",
		ShutdownTimeout:  10 * time.Second,
		UpstreamTimeout:  30 * time.Second,
		UpstreamRPS:      10,
		NOAAUserAgent:    DefaultNOAAUserAgent,
		ResponseCacheTTL: 10 * time.Minute,
	}
}

// Load builds the configuration from defaults, an optional YAML file
// (HEADWATERS_CONFIG, default config.yaml) and environment variables, in that order.
func Load() (*Config, error) {
	cfg := defaults()

	path := EnvOrDefault("HEADWATERS_CONFIG", DefaultConfigFile)
	if err := cfg.mergeFile(path); err != nil {
		return nil, err
	}
	if err := cfg.mergeEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) mergeEnv() error {
	c.Port = EnvOrDefault("PORT", c.Port)
	c.Env = EnvOrDefault("APP_ENV", c.Env)
	c.DatabaseURL = EnvOrDefault("DATABASE_URL", c.DatabaseURL)
	c.DBSchema = EnvOrDefault("DB_SCHEMA", c.DBSchema)
	c.LogLevel = strings.ToLower(EnvOrDefault("LOG_LEVEL", c.LogLevel))
	c.LogFormat = strings.ToLower(EnvOrDefault("LOG_FORMAT", c.LogFormat))
	c.NOAAUserAgent = EnvOrDefault("NOAA_USER_AGENT", c.NOAAUserAgent)
	c.RedisAddr = EnvOrDefault("REDIS_ADDR", c.RedisAddr)
	c.RedisPassword = EnvOrDefault("REDIS_PASSWORD", c.RedisPassword)
	c.BillingWebhookSecret = EnvOrDefault("BILLING_WEBHOOK_SECRET", c.BillingWebhookSecret)

	if v := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS")); v != "" {
		c.AllowedOrigins = splitList(v)
	}

	var err error
	if c.ShutdownTimeout, err = durationEnv("SHUTDOWN_TIMEOUT", c.ShutdownTimeout); err != nil {
		return err
	}
	if c.UpstreamTimeout, err = durationEnv("UPSTREAM_TIMEOUT", c.UpstreamTimeout); err != nil {
		return err
	}
	if c.ResponseCacheTTL, err = durationEnv("RESPONSE_CACHE_TTL", c.ResponseCacheTTL); err != nil {
		return err
	}
	if v := os.Getenv("UPSTREAM_RPS"); v != "" {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid UPSTREAM_RPS %q: %w", v, err)
		}
		c.UpstreamRPS = rps
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid REDIS_DB %q: %w", v, err)
		}
		c.RedisDB = n
	}
	return nil
}

// Validate checks the merged configuration.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return ErrMissingDatabaseURL
	}
	if n, err := strconv.Atoi(c.Port); err != nil || n < 1 || n > 65535 {
		return ErrInvalidPort
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return ErrInvalidLogLevel
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		return ErrInvalidLogFormat
	}
	if c.UpstreamTimeout <= 0 || c.UpstreamRPS <= 0 {
		return ErrInvalidUpstream
	}
	return nil
}

// EnvOrDefault returns the trimmed value of key, or fallback when it is unset or blank.
func EnvOrDefault(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
