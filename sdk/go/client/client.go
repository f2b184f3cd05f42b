// Package client is a Go replica of the shared document. It keeps a local
// copy, sends local edits to the relay and integrates everyone else's.
package client

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/zeusync/coedit/internal/core/editor"
	"github.com/zeusync/coedit/internal/core/events/bus"
	"github.com/zeusync/coedit/internal/core/observability/log"
	"github.com/zeusync/coedit/internal/core/protocol"
)

// Config holds configuration for the client
type Config struct {
	ConnectTimeout time.Duration
	WriteTimeout   time.Duration
	// ReadLimit is the largest message accepted from the relay. Init
	// snapshots grow with the document, so keep it generous.
	ReadLimit int64
	Header    http.Header
}

// DefaultConfig returns default client configuration
func DefaultConfig() Config {
	return Config{
		ConnectTimeout: 10 * time.Second,
		WriteTimeout:   10 * time.Second,
		ReadLimit:      32 * 1024 * 1024,
	}
}

// Client is safe for concurrent use.
type Client struct {
	config  Config
	logger  log.Log
	replica *editor.Replica
	events  bus.EventBus

	// editMu keeps local apply and send in one order, so the relay never
	// sees an insert before the insert it is anchored on.
	editMu sync.Mutex
	connMu sync.Mutex
	conn   *websocket.Conn

	selfMu sync.RWMutex
	self   protocol.Self

	connected atomic.Bool
	closed    atomic.Bool
	done      chan struct{}
	errMu     sync.Mutex
	err       error
}

func New(config Config, logger log.Log) *Client {
	return &Client{
		config:  config,
		logger:  logger.With(log.String("component", "client")),
		replica: editor.NewReplica(""),
		events:  bus.New(),
		done:    make(chan struct{}),
	}
}

// Dial connects to the relay's WebSocket endpoint and adopts the init
// message before returning.
func (c *Client) Dial(ctx context.Context, url string) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	if !c.connected.CompareAndSwap(false, true) {
		return ErrAlreadyConnected
	}

	dialer := websocket.Dialer{HandshakeTimeout: c.config.ConnectTimeout}
	conn, _, err := dialer.DialContext(ctx, url, c.config.Header)
	if err != nil {
		c.connected.Store(false)
		return errors.Wrap(err, "failed to dial relay")
	}
	if c.config.ReadLimit > 0 {
		conn.SetReadLimit(c.config.ReadLimit)
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
	} else if c.config.ConnectTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(c.config.ConnectTimeout))
	}
	_, data, err := conn.ReadMessage()
	if err != nil {
		c.connected.Store(false)
		_ = conn.Close()
		return errors.Wrap(err, "failed to read init")
	}
	_ = conn.SetReadDeadline(time.Time{})

	msg, err := protocol.Decode(data)
	if err != nil {
		c.connected.Store(false)
		_ = conn.Close()
		return errors.Wrap(err, "failed to decode init")
	}
	im, ok := msg.(*protocol.Init)
	if !ok {
		c.connected.Store(false)
		_ = conn.Close()
		return errors.Wrapf(ErrUnexpectedFirst, "got %s", msg.Kind())
	}
	if err = c.adopt(im); err != nil {
		c.connected.Store(false)
		_ = conn.Close()
		return err
	}

	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()

	c.logger.Info("Connected", log.String("url", url), log.String("site", im.Self.UserID))
	go c.readLoop(conn)
	return nil
}

func (c *Client) adopt(im *protocol.Init) error {
	if err := c.replica.Adopt(im.Self.UserID, im.Snapshot, im.Title); err != nil {
		return errors.Wrap(err, "failed to adopt snapshot")
	}
	c.selfMu.Lock()
	c.self = im.Self
	c.selfMu.Unlock()
	return nil
}

func (c *Client) readLoop(conn *websocket.Conn) {
	defer func() {
		c.connected.Store(false)
		_ = c.Close()
	}()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !c.closed.Load() {
				c.errMu.Lock()
				c.err = errors.Wrap(err, "relay connection lost")
				c.errMu.Unlock()
				c.logger.Warn("Connection lost", log.Error(err))
			}
			return
		}
		c.handle(data)
	}
}

// handle integrates one message from the relay. Bad messages are logged and
// skipped.
func (c *Client) handle(data []byte) {
	msg, err := protocol.Decode(data)
	if err != nil {
		c.logger.Debug("Dropping message", log.Error(err))
		return
	}

	switch m := msg.(type) {
	case *protocol.Init:
		// the relay restarted; its state replaces ours
		if err = c.adopt(m); err != nil {
			c.logger.Error("Reset failed", log.Error(err))
			return
		}
		c.publish(EventSessionReset, SessionReset{Self: m.Self, Text: c.replica.Text(), Title: m.Title})
	case *protocol.OperationMessage:
		changed, err := c.replica.ApplyRemote(m.Op)
		if err != nil {
			c.logger.Warn("Remote operation rejected", log.Error(err))
			return
		}
		if changed {
			c.publish(EventDocumentChanged, DocumentChanged{Op: m.Op, Text: c.replica.Text()})
		}
	case *protocol.Title:
		c.replica.ApplyTitle(m.Title)
		c.publish(EventTitleChanged, TitleChanged{Title: m.Title})
	case *protocol.Cursor:
		c.publish(EventCursorMoved, *m)
	}
}

func (c *Client) publish(eventType string, data any) {
	if err := c.events.Publish(bus.NewEvent(eventType, c.Self().UserID, data)); err != nil {
		c.logger.Debug("Event handler failed", log.String("event", eventType), log.Error(err))
	}
}

func (c *Client) send(msg protocol.Message) error {
	data, err := protocol.Encode(msg)
	if err != nil {
		return err
	}

	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.conn == nil || !c.connected.Load() {
		return ErrNotConnected
	}
	if c.config.WriteTimeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	}
	if err = c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return errors.Wrap(err, "failed to write message")
	}
	return nil
}

// Insert types ch at visible index i.
func (c *Client) Insert(i int, ch rune) error {
	if !c.connected.Load() {
		return ErrNotConnected
	}
	c.editMu.Lock()
	defer c.editMu.Unlock()
	op, err := c.replica.InsertAt(i, ch)
	if err != nil {
		return err
	}
	return c.send(op)
}

// Delete removes the character at visible index i.
func (c *Client) Delete(i int) error {
	if !c.connected.Load() {
		return ErrNotConnected
	}
	c.editMu.Lock()
	defer c.editMu.Unlock()
	op, err := c.replica.DeleteAt(i)
	if err != nil {
		return err
	}
	return c.send(op)
}

// ApplyBuffer makes the document equal to text, sending one operation per
// changed character.
func (c *Client) ApplyBuffer(text string) error {
	if !c.connected.Load() {
		return ErrNotConnected
	}
	c.editMu.Lock()
	defer c.editMu.Unlock()
	ops, err := c.replica.ApplyBuffer(text)
	for _, op := range ops {
		if sendErr := c.send(op); sendErr != nil {
			return sendErr
		}
	}
	return err
}

func (c *Client) SetTitle(title string) error {
	return c.send(c.replica.SetTitle(title))
}

// MoveCursor announces the local caret position. The relay fills in who we are.
func (c *Client) MoveCursor(index int) error {
	return c.send(&protocol.Cursor{Index: index})
}

func (c *Client) Text() string  { return c.replica.Text() }
func (c *Client) Title() string { return c.replica.Title() }

// Self is the identity the relay assigned in the last init.
func (c *Client) Self() protocol.Self {
	c.selfMu.RLock()
	defer c.selfMu.RUnlock()
	return c.self
}

// Events is where remote changes are published.
func (c *Client) Events() bus.EventBus { return c.events }

// Done is closed once the client is closed or the connection is lost.
func (c *Client) Done() <-chan struct{} { return c.done }

// Err reports why the connection was lost. It is nil while connected and
// after a local Close.
func (c *Client) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.connected.Store(false)

	c.connMu.Lock()
	conn := c.conn
	c.connMu.Unlock()

	var err error
	if conn != nil {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		err = conn.Close()
	}
	_ = c.events.Close()
	close(c.done)
	return err
}
