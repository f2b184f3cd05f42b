package quic

import (
	"context"
	"crypto/tls"

	"github.com/pkg/errors"
	"github.com/quic-go/quic-go"
)

// Conn is the client side of a relay connection.
type Conn struct {
	conn         *quic.Conn
	stream       *quic.Stream
	maxFrameSize uint32
}

// Dial connects to a relay and waits for the stream the relay opens.
func Dial(ctx context.Context, addr string, tlsConf *tls.Config, maxFrameSize uint32) (*Conn, error) {
	conn, err := quic.DialAddr(ctx, addr, tlsConf, &quic.Config{})
	if err != nil {
		return nil, errors.Wrap(err, "failed to dial QUIC relay")
	}
	stream, err := conn.AcceptStream(ctx)
	if err != nil {
		_ = conn.CloseWithError(codeProtocolFailed, "no stream")
		return nil, errors.Wrap(err, "failed to accept relay stream")
	}
	return &Conn{conn: conn, stream: stream, maxFrameSize: maxFrameSize}, nil
}

// ReadMessage blocks for the next message from the relay.
func (c *Conn) ReadMessage() ([]byte, error) {
	return readFrame(c.stream, c.maxFrameSize)
}

// WriteMessage sends one message. It is not safe for concurrent use.
func (c *Conn) WriteMessage(data []byte) error {
	return writeFrame(c.stream, data)
}

func (c *Conn) Close() error {
	_ = c.stream.Close()
	if err := c.conn.CloseWithError(codeNoError, ""); err != nil {
		return errors.Wrap(err, "failed to close QUIC connection")
	}
	return nil
}
