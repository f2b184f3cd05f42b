package server

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/coedit/internal/core/observability/log"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "coedit.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultConfig_Valid(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
}

func TestLoadConfig(t *testing.T) {
	static := t.TempDir()
	path := writeConfig(t, `
listen: 127.0.0.1:9000
log_level: debug
static_dir: `+static+`
relay:
  queue_size: 32
websocket:
  ping_interval: 5s
  pong_wait: 15s
quic:
  enabled: true
  addr: 127.0.0.1:9443
  max_frame_size: 1024
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Listen)
	assert.Equal(t, log.LevelDebug, cfg.LogLevel)
	assert.Equal(t, static, cfg.StaticDir)
	assert.Equal(t, 32, cfg.Relay.QueueSize)
	assert.Equal(t, 5*time.Second, cfg.WebSocket.PingInterval)
	assert.Equal(t, 15*time.Second, cfg.WebSocket.PongWait)
	assert.True(t, cfg.QUIC.Enabled)
	assert.Equal(t, "127.0.0.1:9443", cfg.QUIC.Addr)
	assert.Equal(t, uint32(1024), cfg.QUIC.MaxFrameSize)

	// untouched keys keep their defaults
	assert.Equal(t, DefaultConfig().WebSocket.ReadLimit, cfg.WebSocket.ReadLimit)
	assert.Equal(t, DefaultConfig().ShutdownTimeout, cfg.ShutdownTimeout)
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = LoadConfig(writeConfig(t, "listen: :1\nbogus: true\n"))
	assert.Error(t, err, "unknown keys are rejected")

	_, err = LoadConfig(writeConfig(t, "log_level: loud\n"))
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty listen", func(c *Config) { c.Listen = "" }},
		{"zero queue", func(c *Config) { c.Relay.QueueSize = 0 }},
		{"ping slower than pong", func(c *Config) { c.WebSocket.PingInterval = c.WebSocket.PongWait }},
		{"quic without addr", func(c *Config) { c.QUIC.Enabled = true; c.QUIC.Addr = "" }},
		{"cert without key", func(c *Config) { c.QUIC.Enabled = true; c.QUIC.CertFile = "cert.pem" }},
		{"missing static dir", func(c *Config) { c.StaticDir = "/does/not/exist" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}
