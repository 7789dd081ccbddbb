package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Tracking TrackingConfig `yaml:"tracking"`
	Dispatch DispatchConfig `yaml:"dispatch"`
	SMTP     SMTPConfig     `yaml:"smtp"`
}

// ServerConfig holds the admin API server settings.
type ServerConfig struct {
	Port           int      `yaml:"port"`
	TrackingPort   int      `yaml:"tracking_port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL          string `yaml:"url"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

// RedisConfig holds the optional Redis endpoint used for engine-run locks.
// When Addr is empty the dispatch engine falls back to Postgres advisory
// locks.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// TrackingConfig controls the public tracking links embedded in emails.
type TrackingConfig struct {
	PublicBaseURL string `yaml:"public_base_url"`
	SignInPath    string `yaml:"sign_in_path"`
	TokenLength   int    `yaml:"token_length"`
}

// DispatchConfig holds dispatch engine defaults and limits.
type DispatchConfig struct {
	LockTTLSeconds     int `yaml:"lock_ttl_seconds"`
	MaxTokenRetries    int `yaml:"max_token_retries"`
	DefaultConcurrency int `yaml:"default_concurrency"`
}

// SMTPConfig holds transport-level settings shared by all SMTP profiles.
type SMTPConfig struct {
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// SendTimeout returns the per-message SMTP conversation deadline.
func (c SMTPConfig) SendTimeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// LockTTL returns the engine-run lock TTL.
func (c DispatchConfig) LockTTL() time.Duration {
	return time.Duration(c.LockTTLSeconds) * time.Second
}

// Load reads configuration from a YAML file and applies defaults.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	// Defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.TrackingPort == 0 {
		cfg.Server.TrackingPort = 8081
	}
	if len(cfg.Server.AllowedOrigins) == 0 {
		cfg.Server.AllowedOrigins = []string{"http://localhost:5173"}
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Tracking.SignInPath == "" {
		cfg.Tracking.SignInPath = "/sign-in"
	}
	if cfg.Tracking.TokenLength == 0 {
		cfg.Tracking.TokenLength = 12
	}
	if cfg.Dispatch.LockTTLSeconds == 0 {
		cfg.Dispatch.LockTTLSeconds = 600
	}
	if cfg.Dispatch.MaxTokenRetries == 0 {
		cfg.Dispatch.MaxTokenRetries = 5
	}
	if cfg.Dispatch.DefaultConcurrency == 0 {
		cfg.Dispatch.DefaultConcurrency = 1
	}
	if cfg.SMTP.TimeoutSeconds == 0 {
		cfg.SMTP.TimeoutSeconds = 30
	}

	return &cfg, nil
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars in deployment.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = p
		}
	}
	if v := os.Getenv("TRACKING_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Server.TrackingPort = p
		}
	}
	if v := os.Getenv("PUBLIC_BASE_URL"); v != "" {
		cfg.Tracking.PublicBaseURL = v
	}

	return cfg, nil
}
