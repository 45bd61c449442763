package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/stvn101/carbonconstruct-scope-lca/pkg/observability"
)

// Config holds process configuration read from the environment.
type Config struct {
	Port      string
	LogLevel  string
	LogFormat string
	RulesPath string

	// Report store: Postgres when DatabaseURL is set, else SQLite at SQLitePath
	// when set, else none.
	DatabaseURL string
	SQLitePath  string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	NATSURL     string
	NATSSubject string

	OTelEnabled  bool
	OTLPEndpoint string
	OTelInsecure bool

	Parallelism int
	WatchRules  bool

	// Evaluation requests per minute per client; 0 disables limiting.
	RateLimitRPM   int
	RateLimitBurst int
}

// Load reads configuration from environment variables, applying defaults for
// anything unset. Malformed numeric, boolean or duration values are errors.
func Load() (*Config, error) {
	cfg := &Config{
		Port:          getenv("PORT", "8080"),
		LogLevel:      getenv("LOG_LEVEL", "INFO"),
		LogFormat:     getenv("LOG_FORMAT", "json"),
		RulesPath:     getenv("RULES_PATH", "rules/catalogue.yaml"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		SQLitePath:    os.Getenv("SQLITE_PATH"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		NATSURL:       os.Getenv("NATS_URL"),
		NATSSubject:   getenv("NATS_SUBJECT", "compliance.reports"),
		OTLPEndpoint:  getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
	}

	var err error
	if cfg.RedisDB, err = intEnv("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.Parallelism, err = intEnv("EVAL_PARALLELISM", 1); err != nil {
		return nil, err
	}
	if cfg.CacheTTL, err = durationEnv("CACHE_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.OTelEnabled, err = boolEnv("OTEL_ENABLED", false); err != nil {
		return nil, err
	}
	if cfg.OTelInsecure, err = boolEnv("OTEL_EXPORTER_OTLP_INSECURE", false); err != nil {
		return nil, err
	}
	if cfg.WatchRules, err = boolEnv("WATCH_RULES", false); err != nil {
		return nil, err
	}
	if cfg.RateLimitRPM, err = intEnv("RATE_LIMIT_RPM", 0); err != nil {
		return nil, err
	}
	if cfg.RateLimitBurst, err = intEnv("RATE_LIMIT_BURST", 10); err != nil {
		return nil, err
	}
	if cfg.Parallelism < 1 {
		return nil, fmt.Errorf("config: EVAL_PARALLELISM must be at least 1, got %d", cfg.Parallelism)
	}
	return cfg, nil
}

// Observability derives the telemetry settings.
func (c *Config) Observability(serviceVersion string) *observability.Config {
	oc := observability.DefaultConfig()
	oc.ServiceVersion = serviceVersion
	oc.Enabled = c.OTelEnabled
	oc.OTLPEndpoint = c.OTLPEndpoint
	oc.Insecure = c.OTelInsecure
	oc.Environment = getenv("DEPLOYMENT_ENVIRONMENT", oc.Environment)
	oc.CAFile = os.Getenv("OTEL_EXPORTER_OTLP_CERTIFICATE")
	oc.CertFile = os.Getenv("OTEL_EXPORTER_OTLP_CLIENT_CERTIFICATE")
	oc.KeyFile = os.Getenv("OTEL_EXPORTER_OTLP_CLIENT_KEY")
	return oc
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func intEnv(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return n, nil
}

func boolEnv(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("config: %s: %w", key, err)
	}
	return b, nil
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return d, nil
}
