package quic

import "time"

// ALPN is the application protocol negotiated on every connection.
const ALPN = "coedit"

// Config controls the QUIC listener.
type Config struct {
	Addr string `yaml:"addr"`
	// CertFile and KeyFile select a PEM key pair. When both are empty an
	// in-memory self-signed certificate is generated at startup.
	CertFile       string        `yaml:"cert_file"`
	KeyFile        string        `yaml:"key_file"`
	MaxFrameSize   uint32        `yaml:"max_frame_size"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	IdleTimeout    time.Duration `yaml:"idle_timeout"`
	KeepAlive      time.Duration `yaml:"keep_alive"`
	HandshakeLimit time.Duration `yaml:"handshake_timeout"`
}

func DefaultConfig() Config {
	return Config{
		MaxFrameSize:   64 * 1024,
		WriteTimeout:   10 * time.Second,
		IdleTimeout:    60 * time.Second,
		KeepAlive:      20 * time.Second,
		HandshakeLimit: 10 * time.Second,
	}
}
