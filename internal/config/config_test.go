package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	if cfg.ListenAddr != ":8080" {
		t.Fatalf("listen addr = %s", cfg.ListenAddr)
	}
	if cfg.Storage != "memory" {
		t.Fatalf("storage = %s", cfg.Storage)
	}
	if cfg.SessionTTL != 24*time.Hour {
		t.Fatalf("session ttl = %s", cfg.SessionTTL)
	}
	if !cfg.IsDevelopment() {
		t.Fatalf("default environment should be development")
	}
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
environment: production
listen_addr: ":9090"
log_level: debug
session_secret: super-secret
storage: postgres
postgres_dsn: postgres://localhost/marketplace
rate_limit_per_second: 5
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddr != ":9090" || cfg.LogLevel != "debug" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.IsDevelopment() {
		t.Fatalf("production config reported as development")
	}
	if cfg.RateLimitPerSecond != 5 {
		t.Fatalf("rate limit = %d", cfg.RateLimitPerSecond)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddr != ":8080" {
		t.Fatalf("listen addr = %s", cfg.ListenAddr)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("MARKETPLACE_LISTEN_ADDR", ":7070")
	t.Setenv("SESSION_TTL", "2h")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddr != ":7070" {
		t.Fatalf("listen addr = %s", cfg.ListenAddr)
	}
	if cfg.SessionTTL != 2*time.Hour {
		t.Fatalf("ttl = %s", cfg.SessionTTL)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://b.example" {
		t.Fatalf("origins = %v", cfg.CORSAllowedOrigins)
	}
}

func TestValidation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown storage", func(c *Config) { c.Storage = "etcd" }},
		{"postgres without dsn", func(c *Config) { c.Storage = "postgres" }},
		{"supabase without keys", func(c *Config) { c.Storage = "supabase" }},
		{"production without secret", func(c *Config) { c.Environment = "production" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			if err := cfg.validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}
