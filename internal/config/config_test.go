package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load(nil)
	require.NoError(t, err)

	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, ":8080", cfg.HTTPServerAddr)
	assert.Equal(t, "memory", cfg.Storage.Backend)
	assert.Equal(t, "memory", cfg.State.Backend)
	assert.Equal(t, 10000, cfg.State.MaxWorkspaces)
	assert.Equal(t, 30*time.Minute, cfg.State.WorkspaceIdle)
	assert.Equal(t, "memory", cfg.Uploads.Backend)
	assert.Equal(t, 24*time.Hour, cfg.Identity.TokenTTL)
	assert.Empty(t, cfg.Broker.SeedBrokers)
	assert.Equal(t, "order-events", cfg.Broker.Topics.OrderEvents)
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := writeConfig(t, `
log_level: debug
http_server_addr: ":9090"
storage:
  backend: postgres
identity:
  token_ttl: 30m
broker:
  seed_brokers: ["kafka-1:9092"]
`)
	t.Setenv("PHARMACY_STATE_BACKEND", "dynamodb")
	t.Setenv("PHARMACY_BROKER_TOPICS_FULFILLMENT", "shipments")

	cfg, err := load([]string{"--config", path})
	require.NoError(t, err)

	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, ":9090", cfg.HTTPServerAddr)
	assert.Equal(t, "postgres", cfg.Storage.Backend)
	assert.Equal(t, "dynamodb", cfg.State.Backend)
	assert.Equal(t, 30*time.Minute, cfg.Identity.TokenTTL)
	assert.Equal(t, []string{"kafka-1:9092"}, cfg.Broker.SeedBrokers)
	assert.Equal(t, "shipments", cfg.Broker.Topics.Fulfillment)
	assert.Equal(t, "pharmacy-fulfillment", cfg.Broker.Consumers.FulfillmentGroup)
}

func TestLoad_EnvFileOverridesFlag(t *testing.T) {
	flagged := writeConfig(t, "http_server_addr: \":1111\"\n")
	fromEnv := writeConfig(t, "http_server_addr: \":2222\"\n")
	t.Setenv(configFileEnvName, fromEnv)

	cfg, err := load([]string{"--config", flagged})
	require.NoError(t, err)
	assert.Equal(t, ":2222", cfg.HTTPServerAddr)
}

func TestLoad_Rejects(t *testing.T) {
	t.Run("unknown key", func(t *testing.T) {
		_, err := load([]string{"--config", writeConfig(t, "colour: blue\n")})
		assert.Error(t, err)
	})
	t.Run("unknown backend", func(t *testing.T) {
		_, err := load([]string{"--config", writeConfig(t, "storage:\n  backend: mongo\n")})
		assert.ErrorContains(t, err, "storage.backend")
	})
	t.Run("missing file", func(t *testing.T) {
		_, err := load([]string{"--config", filepath.Join(t.TempDir(), "nope.yaml")})
		assert.Error(t, err)
	})
	t.Run("unknown flag", func(t *testing.T) {
		_, err := load([]string{"--colour"})
		assert.Error(t, err)
	})
}
