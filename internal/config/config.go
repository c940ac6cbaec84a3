// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP API server listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// DatabaseURL is the Postgres DSN.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// AuthTokenSecret is the HMAC secret shared with the identity collaborator
	// for access-token validation. Required by the API server.
	AuthTokenSecret string `mapstructure:"AUTH_TOKEN_SECRET"`
	// AuthIssuer is the expected iss claim on access tokens.
	AuthIssuer string `mapstructure:"AUTH_ISSUER"`
	// AuthAudience is the expected aud claim on access tokens.
	AuthAudience string `mapstructure:"AUTH_AUDIENCE"`
	// CORSAllowedOrigins is a comma-separated list of allowed origins for the
	// browser frontend (e.g. "http://localhost:5173").
	CORSAllowedOrigins string `mapstructure:"CORS_ALLOWED_ORIGINS"`
	// SchedulerInterval is how often the worker wakes up to run the jobs
	// (e.g. "24h"). The reconciliation due check keeps more frequent wake-ups
	// harmless.
	SchedulerInterval string `mapstructure:"SCHEDULER_INTERVAL"`
	// StoreTimeout bounds each API request's store I/O (e.g. "10s").
	StoreTimeout string `mapstructure:"STORE_TIMEOUT"`

	// Notifications (optional). When Kafka brokers are set, created alerts are
	// published to the alerts topic for the notification surface.
	// KafkaBrokers is a comma-separated list of broker addresses.
	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// AlertsKafkaTopic is the Kafka topic for created alerts.
	AlertsKafkaTopic string `mapstructure:"ALERTS_KAFKA_TOPIC"`

	// OTLPEndpoint is the OTLP collector endpoint for telemetry
	// (e.g. http://localhost:4317); empty disables export.
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	// OTLPInsecure forces plaintext export to https endpoints (standard
	// OTEL_EXPORTER_OTLP_INSECURE behavior).
	OTLPInsecure bool `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("AUTH_TOKEN_SECRET", "")
	v.SetDefault("AUTH_ISSUER", "indicator-identity")
	v.SetDefault("AUTH_AUDIENCE", "indicator-api")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "")
	v.SetDefault("SCHEDULER_INTERVAL", "24h")
	v.SetDefault("STORE_TIMEOUT", "10s")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("ALERTS_KAFKA_TOPIC", "indicator-alerts")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}
	if _, err := time.ParseDuration(cfg.SchedulerInterval); err != nil {
		return nil, errors.New("config: SCHEDULER_INTERVAL must be a duration (e.g. 24h)")
	}
	if _, err := time.ParseDuration(cfg.StoreTimeout); err != nil {
		return nil, errors.New("config: STORE_TIMEOUT must be a duration (e.g. 10s)")
	}

	return &cfg, nil
}

// SchedulerIntervalDuration parses SchedulerInterval. Returns 24h if unset or invalid.
func (c *Config) SchedulerIntervalDuration() time.Duration {
	d, err := time.ParseDuration(c.SchedulerInterval)
	if err != nil || d <= 0 {
		return 24 * time.Hour
	}
	return d
}

// StoreTimeoutDuration parses StoreTimeout. Returns 10s if unset or invalid.
func (c *Config) StoreTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.StoreTimeout)
	if err != nil || d <= 0 {
		return 10 * time.Second
	}
	return d
}

// KafkaBrokersList returns broker addresses from the comma-separated config.
// Used to decide if alert publication is enabled (non-empty list) and to
// create the notifier.
func (c *Config) KafkaBrokersList() []string {
	return splitList(c.KafkaBrokers)
}

// CORSAllowedOriginsList returns allowed origins from the comma-separated config.
func (c *Config) CORSAllowedOriginsList() []string {
	return splitList(c.CORSAllowedOrigins)
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}
