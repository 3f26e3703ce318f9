package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("SEKOLAHKU_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("SEKOLAHKU_AUTH_SECRET", "env-secret")
	t.Setenv("SEKOLAHKU_LISTEN_ADDR", ":9090")
	t.Setenv("SEKOLAHKU_OTP_TTL", "90s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":9090" {
		t.Fatalf("ListenAddr = %q", cfg.ListenAddr)
	}
	if cfg.Auth.Secret != "env-secret" {
		t.Fatalf("Secret = %q", cfg.Auth.Secret)
	}
	if cfg.Auth.OTPTTL != 90*time.Second {
		t.Fatalf("OTPTTL = %s", cfg.Auth.OTPTTL)
	}
	if cfg.Auth.SessionTTL != 12*time.Hour {
		t.Fatalf("default SessionTTL = %s", cfg.Auth.SessionTTL)
	}
	if cfg.HTTP.RateLimitPerMinute != 120 {
		t.Fatalf("default RateLimitPerMinute = %d", cfg.HTTP.RateLimitPerMinute)
	}
}

func TestLoadFromFileWithEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.yaml")
	body := []byte(`
listen_addr: ":7070"
database_url: "postgres://localhost/sekolahku"
auth:
  secret: "file-secret"
  session_ttl: 1h
http:
  rate_limit_per_minute: 30
`)
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("SEKOLAHKU_CONFIG", path)
	t.Setenv("SEKOLAHKU_AUTH_SECRET", "override-secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":7070" {
		t.Fatalf("ListenAddr = %q", cfg.ListenAddr)
	}
	if cfg.DatabaseURL != "postgres://localhost/sekolahku" {
		t.Fatalf("DatabaseURL = %q", cfg.DatabaseURL)
	}
	if cfg.Auth.Secret != "override-secret" {
		t.Fatalf("env must override the file, got %q", cfg.Auth.Secret)
	}
	if cfg.Auth.SessionTTL != time.Hour {
		t.Fatalf("SessionTTL = %s", cfg.Auth.SessionTTL)
	}
	if cfg.HTTP.RateLimitPerMinute != 30 {
		t.Fatalf("RateLimitPerMinute = %d", cfg.HTTP.RateLimitPerMinute)
	}
}

func TestValidateRejectsMissingSecret(t *testing.T) {
	t.Setenv("SEKOLAHKU_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("SEKOLAHKU_AUTH_SECRET", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing secret")
	}
}
