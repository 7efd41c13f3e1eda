package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stg-network/chat-relay/internal/constants"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, "stg-chat-relay", cfg.Relay.Name)
	assert.Equal(t, ":3001", cfg.Relay.WSAddr)
	assert.Equal(t, "http", cfg.Relay.Mode)
	assert.Empty(t, cfg.Relay.AllowedOrigins)
	assert.Equal(t, 5*time.Minute, cfg.Relay.IdleTimeout)
	assert.Equal(t, 10000, cfg.Relay.ThrottlingConfig.MaxConnections)

	assert.Equal(t, "localhost:6379", cfg.Redis.Addr())
	assert.Equal(t, constants.ImageProcessingChannel, cfg.Redis.ImageProcessingChannel)
	assert.Equal(t, constants.ChatReadEventsChannel, cfg.Redis.ChatReadEventsChannel)
	assert.Equal(t, 2*time.Second, cfg.Redis.ImagePushDelay)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.True(t, cfg.Metrics.Enabled)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeConfigFile(t, `
relay:
  NAME: "edge-relay-1"
  WS_ADDR: ":4000"
  ALLOWED_ORIGINS:
    - "https://chat.example.com"
redis:
  HOST: "redis.internal"
  IMAGE_PUSH_DELAY: 500ms
`)

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, "edge-relay-1", cfg.Relay.Name)
	assert.Equal(t, ":4000", cfg.Relay.WSAddr)
	assert.Equal(t, []string{"https://chat.example.com"}, cfg.Relay.AllowedOrigins)
	assert.Equal(t, "redis.internal:6379", cfg.Redis.Addr())
	assert.Equal(t, 500*time.Millisecond, cfg.Redis.ImagePushDelay)

	// Untouched sections keep their defaults.
	assert.Equal(t, "http", cfg.Relay.Mode)
	assert.Equal(t, 8181, cfg.Metrics.Port)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name: "bad relay mode",
			content: `
relay:
  MODE: "tcp"
`,
		},
		{
			name: "bad listen address",
			content: `
relay:
  WS_ADDR: "not-an-address"
`,
		},
		{
			name: "bad log level",
			content: `
logging:
  LEVEL: "verbose"
`,
		},
		{
			name: "bad origin",
			content: `
relay:
  ALLOWED_ORIGINS:
    - "not a url"
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfigFile(t, tt.content)
			_, err := Load(path, nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "validation failed")
		})
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := writeConfigFile(t, `
relay:
  NAME: "edge-relay-1"
  LISTEN: ":4000"
`)

	_, err := Load(path, nil)
	require.Error(t, err)
}
