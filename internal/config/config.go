// Package config loads marketplace configuration from a YAML file with
// environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the full application configuration.
type Config struct {
	Environment string `yaml:"environment"`
	ListenAddr  string `yaml:"listen_addr"`
	LogLevel    string `yaml:"log_level"`

	SessionSecret string        `yaml:"session_secret"`
	SessionTTL    time.Duration `yaml:"session_ttl"`

	CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`

	RateLimitPerSecond int `yaml:"rate_limit_per_second"`
	RateLimitBurst     int `yaml:"rate_limit_burst"`

	// Storage selects the persistence backend: memory, postgres or
	// supabase.
	Storage     string `yaml:"storage"`
	PostgresDSN string `yaml:"postgres_dsn"`

	SupabaseURL        string `yaml:"supabase_url"`
	SupabaseServiceKey string `yaml:"supabase_service_key"`

	MailerEndpoint string `yaml:"mailer_endpoint"`
	MailerAPIKey   string `yaml:"mailer_api_key"`

	AuditLogPath         string `yaml:"audit_log_path"`
	HousekeepingSchedule string `yaml:"housekeeping_schedule"`
}

// Default returns the baseline configuration.
func Default() Config {
	return Config{
		Environment:          "development",
		ListenAddr:           ":8080",
		LogLevel:             "info",
		SessionTTL:           24 * time.Hour,
		CORSAllowedOrigins:   []string{"http://localhost:3000", "http://localhost:5173"},
		RateLimitPerSecond:   20,
		RateLimitBurst:       40,
		Storage:              "memory",
		HousekeepingSchedule: "@hourly",
	}
}

// Load reads the config file at path (optional), then applies
// environment overrides. A .env file in the working directory is
// honored when present.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("MARKETPLACE_ENV"); v != "" {
		cfg.Environment = v
	}
	if v := os.Getenv("MARKETPLACE_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("MARKETPLACE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("SESSION_SECRET"); v != "" {
		cfg.SessionSecret = v
	}
	if v := os.Getenv("SESSION_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.SessionTTL = d
		}
	}
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		cfg.CORSAllowedOrigins = splitCSV(v)
	}
	if v := os.Getenv("RATE_LIMIT_PER_SECOND"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimitPerSecond = n
		}
	}
	if v := os.Getenv("MARKETPLACE_STORAGE"); v != "" {
		cfg.Storage = v
	}
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		cfg.PostgresDSN = v
	}
	if v := os.Getenv("SUPABASE_URL"); v != "" {
		cfg.SupabaseURL = v
	}
	if v := os.Getenv("SUPABASE_SERVICE_KEY"); v != "" {
		cfg.SupabaseServiceKey = v
	}
	if v := os.Getenv("MAILER_ENDPOINT"); v != "" {
		cfg.MailerEndpoint = v
	}
	if v := os.Getenv("MAILER_API_KEY"); v != "" {
		cfg.MailerAPIKey = v
	}
	if v := os.Getenv("AUDIT_LOG_PATH"); v != "" {
		cfg.AuditLogPath = v
	}
}

func (c Config) validate() error {
	switch c.Storage {
	case "memory", "postgres", "supabase":
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage)
	}
	if c.Storage == "postgres" && c.PostgresDSN == "" {
		return fmt.Errorf("POSTGRES_DSN is required for postgres storage")
	}
	if c.Storage == "supabase" && (c.SupabaseURL == "" || c.SupabaseServiceKey == "") {
		return fmt.Errorf("SUPABASE_URL and SUPABASE_SERVICE_KEY are required for supabase storage")
	}
	if !c.IsDevelopment() && c.SessionSecret == "" {
		return fmt.Errorf("SESSION_SECRET is required outside development")
	}
	return nil
}

// IsDevelopment reports whether the app runs in a development
// configuration. Error responses include detail only in this mode.
func (c Config) IsDevelopment() bool {
	env := strings.ToLower(c.Environment)
	return env == "development" || env == "dev" || env == "test"
}

func splitCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
