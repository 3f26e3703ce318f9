// Package config loads service configuration from an optional YAML file with
// SEKOLAHKU_* environment overrides.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const defaultConfigPath = "config/app.yaml"

// Config is the full service configuration.
type Config struct {
	ListenAddr string `yaml:"listen_addr" env:"SEKOLAHKU_LISTEN_ADDR" env-default:":8080"`
	DatabaseURL string `yaml:"database_url" env:"SEKOLAHKU_DATABASE_URL"`

	Auth AuthConfig `yaml:"auth"`
	HTTP HTTPConfig `yaml:"http"`
}

// AuthConfig controls the authentication flow.
type AuthConfig struct {
	Secret     string        `yaml:"secret" env:"SEKOLAHKU_AUTH_SECRET"`
	Issuer     string        `yaml:"issuer" env:"SEKOLAHKU_AUTH_ISSUER" env-default:"sekolahku"`
	SessionTTL time.Duration `yaml:"session_ttl" env:"SEKOLAHKU_SESSION_TTL" env-default:"12h"`
	OTPTTL     time.Duration `yaml:"otp_ttl" env:"SEKOLAHKU_OTP_TTL" env-default:"5m"`
}

// HTTPConfig controls the HTTP surface.
type HTTPConfig struct {
	RateLimitPerMinute int           `yaml:"rate_limit_per_minute" env:"SEKOLAHKU_RATE_LIMIT_PER_MINUTE" env-default:"120"`
	MaxBodyBytes       int64         `yaml:"max_body_bytes" env:"SEKOLAHKU_MAX_BODY_BYTES" env-default:"65536"`
	ShutdownTimeout    time.Duration `yaml:"shutdown_timeout" env:"SEKOLAHKU_SHUTDOWN_TIMEOUT" env-default:"10s"`
	CORSOrigin         string        `yaml:"cors_origin" env:"SEKOLAHKU_CORS_ORIGIN"`
}

// Load reads the config file (when present) and applies environment
// overrides. SEKOLAHKU_CONFIG points at an alternate file path.
func Load() (*Config, error) {
	cfg := &Config{}
	path := resolveConfigPath()
	if st, err := os.Stat(path); err == nil && !st.IsDir() {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("read env: %w", err)
	}
	normalize(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func resolveConfigPath() string {
	if v := strings.TrimSpace(os.Getenv("SEKOLAHKU_CONFIG")); v != "" {
		return v
	}
	return defaultConfigPath
}

func normalize(cfg *Config) {
	cfg.ListenAddr = strings.TrimSpace(cfg.ListenAddr)
	cfg.DatabaseURL = strings.TrimSpace(cfg.DatabaseURL)
	cfg.Auth.Secret = strings.TrimSpace(cfg.Auth.Secret)
	cfg.Auth.Issuer = strings.TrimSpace(cfg.Auth.Issuer)
	cfg.HTTP.CORSOrigin = strings.TrimSpace(cfg.HTTP.CORSOrigin)
}

// Validate rejects configurations the service cannot run with. The database
// URL may be empty: the API falls back to in-memory stores for development.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if cfg.ListenAddr == "" {
		return fmt.Errorf("listen_addr must be set")
	}
	if cfg.Auth.Secret == "" {
		return fmt.Errorf("auth.secret must be set via SEKOLAHKU_AUTH_SECRET")
	}
	if cfg.Auth.SessionTTL <= 0 {
		return fmt.Errorf("auth.session_ttl must be positive")
	}
	if cfg.Auth.OTPTTL <= 0 {
		return fmt.Errorf("auth.otp_ttl must be positive")
	}
	if cfg.HTTP.RateLimitPerMinute <= 0 {
		return fmt.Errorf("http.rate_limit_per_minute must be positive")
	}
	if cfg.HTTP.MaxBodyBytes <= 0 {
		return fmt.Errorf("http.max_body_bytes must be positive")
	}
	return nil
}
