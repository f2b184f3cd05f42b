package websocket

import "time"

// Config controls the WebSocket endpoint.
type Config struct {
	// ReadLimit is the largest message accepted from a peer, in bytes.
	ReadLimit int64 `yaml:"read_limit"`
	// WriteTimeout bounds a single frame write.
	WriteTimeout time.Duration `yaml:"write_timeout"`
	// PongWait is how long a peer may stay silent before it is dropped.
	PongWait time.Duration `yaml:"pong_wait"`
	// PingInterval must be shorter than PongWait.
	PingInterval     time.Duration `yaml:"ping_interval"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	ReadBufferSize   int           `yaml:"read_buffer_size"`
	WriteBufferSize  int           `yaml:"write_buffer_size"`
	// AllowedOrigins lists accepted Origin headers. Empty accepts any origin.
	AllowedOrigins []string `yaml:"allowed_origins"`
}

func DefaultConfig() Config {
	return Config{
		ReadLimit:        64 * 1024,
		WriteTimeout:     10 * time.Second,
		PongWait:         60 * time.Second,
		PingInterval:     30 * time.Second,
		HandshakeTimeout: 10 * time.Second,
		ReadBufferSize:   4096,
		WriteBufferSize:  4096,
	}
}
