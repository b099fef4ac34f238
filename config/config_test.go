package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/gameframework/errors"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, TransportLoopback, cfg.Transport.Kind)
	assert.True(t, cfg.Router.QueueUnknownTargets)
}

func TestLoadYAMLOverlaysDefaults(t *testing.T) {
	path := writeFile(t, "bridge.yaml", `
router:
  queueUnknownTargets: false
  maxQueueSize: 50
transport:
  kind: nats
  nats:
    url: nats://broker:4222
    subjectPrefix: game.session1
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.False(t, cfg.Router.QueueUnknownTargets)
	assert.Equal(t, 50, cfg.Router.MaxQueueSize)
	assert.Equal(t, TransportNATS, cfg.Transport.Kind)
	assert.Equal(t, "nats://broker:4222", cfg.Transport.NATS.URL)
	assert.Equal(t, "game.session1", cfg.Transport.NATS.SubjectPrefix)

	// Untouched sections keep their defaults.
	assert.Equal(t, 60*time.Second, cfg.Transfer.TTL)
	assert.True(t, cfg.Metrics.Enabled)
}

func TestLoadJSON(t *testing.T) {
	path := writeFile(t, "bridge.json", `{
  "transport": {"kind": "websocket", "websocket": {"addr": "0.0.0.0:9000"}}
}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, TransportWebSocket, cfg.Transport.Kind)
	assert.Equal(t, "0.0.0.0:9000", cfg.Transport.WebSocket.Addr)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	path := writeFile(t, "bad.yaml", `
router:
  maxQueueSize: 0
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestValidateTransport(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"loopback ok", func(*Config) {}, false},
		{"nats missing url", func(c *Config) {
			c.Transport.Kind = TransportNATS
			c.Transport.NATS.URL = ""
		}, true},
		{"nats missing prefix", func(c *Config) {
			c.Transport.Kind = TransportNATS
			c.Transport.NATS.SubjectPrefix = ""
		}, true},
		{"websocket missing addr", func(c *Config) {
			c.Transport.Kind = TransportWebSocket
			c.Transport.WebSocket.Addr = ""
		}, true},
		{"empty kind", func(c *Config) { c.Transport.Kind = "" }, true},
		{"unknown kind", func(c *Config) { c.Transport.Kind = "carrier-pigeon" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsInvalid(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateMetrics(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Metrics.Addr = ""
	require.Error(t, cfg.Validate())

	cfg.Metrics.Enabled = false
	assert.NoError(t, cfg.Validate())
}

func TestValidateTransfer(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Transfer.TTL = 0
	require.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Transfer.MaxActive = 0
	require.Error(t, cfg.Validate())
}
