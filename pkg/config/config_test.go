package config_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stvn101/carbonconstruct-scope-lca/pkg/config"
)

var keys = []string{
	"PORT", "LOG_LEVEL", "LOG_FORMAT", "RULES_PATH", "DATABASE_URL", "SQLITE_PATH",
	"REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB", "CACHE_TTL", "NATS_URL", "NATS_SUBJECT",
	"OTEL_ENABLED", "OTEL_EXPORTER_OTLP_ENDPOINT", "OTEL_EXPORTER_OTLP_INSECURE",
	"EVAL_PARALLELISM", "WATCH_RULES", "RATE_LIMIT_RPM", "RATE_LIMIT_BURST",
}

func clearEnv(t *testing.T) {
	for _, k := range keys {
		t.Setenv(k, "")
	}
}

// TestLoad_Defaults verifies the process boots with local defaults.
func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "INFO", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "rules/catalogue.yaml", cfg.RulesPath)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Equal(t, 24*time.Hour, cfg.CacheTTL)
	assert.Equal(t, "compliance.reports", cfg.NATSSubject)
	assert.Equal(t, 1, cfg.Parallelism)
	assert.False(t, cfg.OTelEnabled)
	assert.False(t, cfg.WatchRules)
	assert.Zero(t, cfg.RateLimitRPM)
	assert.Equal(t, 10, cfg.RateLimitBurst)
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("DATABASE_URL", "postgres://compliance@db:5432/reports")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("CACHE_TTL", "90m")
	t.Setenv("EVAL_PARALLELISM", "4")
	t.Setenv("OTEL_ENABLED", "true")
	t.Setenv("WATCH_RULES", "1")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "DEBUG", cfg.LogLevel)
	assert.Equal(t, "postgres://compliance@db:5432/reports", cfg.DatabaseURL)
	assert.Equal(t, 3, cfg.RedisDB)
	assert.Equal(t, 90*time.Minute, cfg.CacheTTL)
	assert.Equal(t, 4, cfg.Parallelism)
	assert.True(t, cfg.OTelEnabled)
	assert.True(t, cfg.WatchRules)

	oc := cfg.Observability("1.0.0")
	assert.True(t, oc.Enabled)
	assert.Equal(t, "1.0.0", oc.ServiceVersion)
}

func TestLoad_Malformed(t *testing.T) {
	for key, value := range map[string]string{
		"REDIS_DB":         "three",
		"CACHE_TTL":        "a day",
		"OTEL_ENABLED":     "maybe",
		"EVAL_PARALLELISM": "0",
		"RATE_LIMIT_RPM":   "lots",
	} {
		t.Run(key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(key, value)
			_, err := config.Load()
			require.Error(t, err)
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := config.NewLogger("warn", "json", &buf)
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown", "rule_id", "epd_validity")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"rule_id":"epd_validity"`)

	_, err = config.NewLogger("loud", "json", &buf)
	require.Error(t, err)
	_, err = config.NewLogger("info", "xml", &buf)
	require.Error(t, err)

	text, err := config.NewLogger("debug", "text", &buf)
	require.NoError(t, err)
	require.NotNil(t, text)
}
