package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("EVENT_CONFIG_PATH", "")
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("SESSION_TTL", "")
	t.Setenv("DISABLE_RATE_LIMITING", "")
	t.Setenv("RATE_LIMIT_SUBMIT", "")
	t.Setenv("AUDIT_MEMORY_CAPACITY", "")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "Amadeus-autonatalmatutino", cfg.Event.Tag)
	assert.Equal(t, "Manhã", cfg.Event.Shift)
	assert.Equal(t, time.Second, cfg.Event.RedirectDelay)
	assert.Len(t, cfg.Event.Grades, 13)
	assert.Equal(t, 2*time.Hour, cfg.Session.TTL)
	assert.Nil(t, cfg.Kafka.Brokers)
	assert.False(t, cfg.RateLimit.Disabled)
	assert.Equal(t, 5, cfg.RateLimit.SubmitPerWindow)
	assert.Equal(t, 10000, cfg.Audit.MemoryCapacity)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("EVENT_CONFIG_PATH", "")
	t.Setenv("EVENTREG_ADDR", ":9090")
	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092,a:9092")
	t.Setenv("SESSION_TTL", "15m")
	t.Setenv("REDIS_POOL_SIZE", "not-a-number")
	t.Setenv("DISABLE_RATE_LIMITING", "true")
	t.Setenv("RATE_LIMIT_ALLOWLIST", "10.0.0.1")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 15*time.Minute, cfg.Session.TTL)
	assert.Equal(t, 10, cfg.Redis.PoolSize)
	assert.True(t, cfg.RateLimit.Disabled)
	assert.Equal(t, []string{"10.0.0.1"}, cfg.RateLimit.AllowlistIPs)
}

func TestParseEvent(t *testing.T) {
	t.Run("overrides and dedupes grades", func(t *testing.T) {
		raw := []byte(`
tag: Amadeus-formatura
grades: [" 9º Ano", "8º Ano", "9º Ano", ""]
redirect_delay: 2s
`)
		event, err := ParseEvent(raw, DefaultEvent())
		require.NoError(t, err)
		assert.Equal(t, "Amadeus-formatura", event.Tag)
		assert.Equal(t, "Manhã", event.Shift)
		assert.Equal(t, []string{"9º Ano", "8º Ano"}, event.Grades)
		assert.Equal(t, 2*time.Second, event.RedirectDelay)
		assert.True(t, event.HasGrade("8º Ano"))
		assert.False(t, event.HasGrade("Grupo IV"))
	})

	t.Run("rejects blank tag", func(t *testing.T) {
		_, err := ParseEvent([]byte(`tag: "  "`), DefaultEvent())
		require.Error(t, err)
	})

	t.Run("rejects malformed yaml", func(t *testing.T) {
		_, err := ParseEvent([]byte("tag: [unterminated"), DefaultEvent())
		require.Error(t, err)
	})
}

func TestFromEnvReadsEventFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "event.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tag: Amadeus-teste\nshift: Tarde\n"), 0o600))
	t.Setenv("EVENT_CONFIG_PATH", path)

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "Amadeus-teste", cfg.Event.Tag)
	assert.Equal(t, "Tarde", cfg.Event.Shift)
}

func TestFromEnvMissingEventFile(t *testing.T) {
	t.Setenv("EVENT_CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := FromEnv()
	require.Error(t, err)
}
