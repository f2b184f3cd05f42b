package websocket

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/zeusync/coedit/internal/relay"
)

var _ relay.Peer = (*connection)(nil)

type connection struct {
	ws        *websocket.Conn
	closeOnce sync.Once
	closeErr  error
}

func newConnection(ws *websocket.Conn) *connection {
	return &connection{ws: ws}
}

func (c *connection) Transport() string { return "websocket" }

func (c *connection) RemoteAddr() string { return c.ws.RemoteAddr().String() }

func (c *connection) send(data []byte, timeout time.Duration) error {
	if timeout > 0 {
		_ = c.ws.SetWriteDeadline(time.Now().Add(timeout))
	}
	if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		return errors.Wrap(err, "failed to write message")
	}
	return nil
}

func (c *connection) ping(timeout time.Duration) error {
	if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(timeout)); err != nil {
		return errors.Wrap(err, "failed to send ping")
	}
	return nil
}

func (c *connection) receive() ([]byte, error) {
	for {
		kind, data, err := c.ws.ReadMessage()
		if err != nil {
			return nil, errors.Wrap(err, "failed to read message")
		}
		if kind == websocket.TextMessage || kind == websocket.BinaryMessage {
			return data, nil
		}
	}
}

func (c *connection) closeWith(code int, reason string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = time.Second
	}
	msg := websocket.FormatCloseMessage(code, reason)
	_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(timeout))
	return c.Close()
}

func (c *connection) Close() error {
	c.closeOnce.Do(func() {
		if err := c.ws.Close(); err != nil {
			c.closeErr = errors.Wrap(err, "failed to close connection")
		}
	})
	return c.closeErr
}
