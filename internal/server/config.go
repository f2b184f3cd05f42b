package server

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/zeusync/coedit/internal/core/observability/log"
	"github.com/zeusync/coedit/internal/relay"
	"github.com/zeusync/coedit/internal/transport/quic"
	"github.com/zeusync/coedit/internal/transport/websocket"
)

// Config holds everything needed to run the relay process.
type Config struct {
	// Listen is the HTTP address serving /ws, /healthz, /metrics and static files.
	Listen    string     `yaml:"listen"`
	StaticDir string     `yaml:"static_dir"`
	LogLevel  log.Level  `yaml:"log_level"`
	QUIC      QUICConfig `yaml:"quic"`

	WebSocket websocket.Config `yaml:"websocket"`
	Relay     relay.Options    `yaml:"relay"`

	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
}

type QUICConfig struct {
	Enabled     bool `yaml:"enabled"`
	quic.Config `yaml:",inline"`
}

// DefaultConfig returns default server configuration
func DefaultConfig() Config {
	q := quic.DefaultConfig()
	q.Addr = ":8443"
	return Config{
		Listen:            ":8080",
		LogLevel:          log.LevelInfo,
		QUIC:              QUICConfig{Config: q},
		WebSocket:         websocket.DefaultConfig(),
		Relay:             relay.DefaultOptions(),
		ReadHeaderTimeout: 10 * time.Second,
		ShutdownTimeout:   5 * time.Second,
	}
}

// LoadConfig reads a YAML file on top of DefaultConfig. Unknown keys are
// rejected.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	f, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err = dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("decode config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("%w: listen address is empty", ErrInvalidConfig)
	}
	if c.Relay.QueueSize <= 0 {
		return fmt.Errorf("%w: relay.queue_size must be positive", ErrInvalidConfig)
	}
	ws := c.WebSocket
	if ws.PingInterval > 0 && ws.PongWait > 0 && ws.PingInterval >= ws.PongWait {
		return fmt.Errorf("%w: websocket.ping_interval must be shorter than pong_wait", ErrInvalidConfig)
	}
	if ws.ReadLimit < 0 {
		return fmt.Errorf("%w: websocket.read_limit is negative", ErrInvalidConfig)
	}
	if c.QUIC.Enabled {
		if c.QUIC.Addr == "" {
			return fmt.Errorf("%w: quic.addr is empty", ErrInvalidConfig)
		}
		if (c.QUIC.CertFile == "") != (c.QUIC.KeyFile == "") {
			return fmt.Errorf("%w: quic.cert_file and quic.key_file go together", ErrInvalidConfig)
		}
	}
	if c.StaticDir != "" {
		info, err := os.Stat(c.StaticDir)
		if err != nil {
			return fmt.Errorf("%w: static_dir: %w", ErrInvalidConfig, err)
		}
		if !info.IsDir() {
			return fmt.Errorf("%w: static_dir %s is not a directory", ErrInvalidConfig, c.StaticDir)
		}
	}
	return nil
}
