package quic

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/coedit/internal/core/crdt"
	"github.com/zeusync/coedit/internal/core/observability/log"
	"github.com/zeusync/coedit/internal/core/observability/metrics"
	"github.com/zeusync/coedit/internal/core/protocol"
	"github.com/zeusync/coedit/internal/relay"
)

func TestFrame_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeFrame(&buf, []byte(`{"type":"title","title":"x"}`)))
	require.NoError(t, writeFrame(&buf, nil))
	assert.Equal(t, []byte{0, 0, 0, 28}, buf.Bytes()[:4])

	got, err := readFrame(&buf, 0)
	require.NoError(t, err)
	assert.Equal(t, `{"type":"title","title":"x"}`, string(got))
	got, err = readFrame(&buf, 0)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = readFrame(&buf, 0)
	assert.Error(t, err, "empty reader")
}

func TestFrame_TooLarge(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeFrame(&buf, make([]byte, 10)))
	_, err := readFrame(&buf, 4)
	assert.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestServerTLSConfig_SelfSigned(t *testing.T) {
	conf, err := ServerTLSConfig(DefaultConfig())
	require.NoError(t, err)
	require.Len(t, conf.Certificates, 1)
	assert.Equal(t, []string{ALPN}, conf.NextProtos)

	cfg := DefaultConfig()
	cfg.CertFile = "/does/not/exist.pem"
	_, err = ServerTLSConfig(cfg)
	assert.Error(t, err)
}

func decode(t *testing.T, c *Conn) protocol.Message {
	t.Helper()
	data, err := c.ReadMessage()
	require.NoError(t, err)
	msg, err := protocol.Decode(data)
	require.NoError(t, err)
	return msg
}

func TestServer_EndToEnd(t *testing.T) {
	r := relay.New(log.Nop(), metrics.New(), relay.DefaultOptions())
	defer r.Close()

	cfg := DefaultConfig()
	cfg.Addr = "127.0.0.1:0"
	srv := NewServer(r, cfg, log.Nop())
	require.NoError(t, srv.Listen())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()

	addr := srv.Addr().String()
	a, err := Dial(ctx, addr, ClientTLSConfig(true), cfg.MaxFrameSize)
	require.NoError(t, err)
	defer a.Close()
	initA, ok := decode(t, a).(*protocol.Init)
	require.True(t, ok)

	b, err := Dial(ctx, addr, ClientTLSConfig(true), cfg.MaxFrameSize)
	require.NoError(t, err)
	defer b.Close()
	_, ok = decode(t, b).(*protocol.Init)
	require.True(t, ok)

	e := crdt.Element{Value: 'q', ID: crdt.OperationID{Seq: 1, Site: initA.Self.UserID}}
	raw, err := protocol.Encode(protocol.NewInsert(e))
	require.NoError(t, err)
	require.NoError(t, a.WriteMessage(raw))

	got, ok := decode(t, b).(*protocol.OperationMessage)
	require.True(t, ok)
	assert.Equal(t, protocol.Insert{Element: e}, got.Op)
	assert.Equal(t, 2, r.Stats().Peers)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
