package relay

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/coedit/internal/core/crdt"
	"github.com/zeusync/coedit/internal/core/editor"
	"github.com/zeusync/coedit/internal/core/observability/log"
	"github.com/zeusync/coedit/internal/core/observability/metrics"
	"github.com/zeusync/coedit/internal/core/protocol"
)

type fakePeer struct{ addr string }

func (fakePeer) Transport() string    { return "test" }
func (p fakePeer) RemoteAddr() string { return p.addr }

func newRelay(t *testing.T, opts Options) *Relay {
	t.Helper()
	r := New(log.Nop(), metrics.New(), opts)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func join(t *testing.T, r *Relay) (*Session, *protocol.Init) {
	t.Helper()
	s, err := r.Join(fakePeer{addr: "127.0.0.1:1"})
	require.NoError(t, err)
	msg, err := protocol.Decode(recv(t, s))
	require.NoError(t, err)
	im, ok := msg.(*protocol.Init)
	require.True(t, ok, "first message must be init, got %T", msg)
	return s, im
}

func recv(t *testing.T, s *Session) []byte {
	t.Helper()
	select {
	case data, ok := <-s.Outbound():
		require.True(t, ok, "outbound queue closed")
		return data
	default:
		t.Fatal("no message queued")
		return nil
	}
}

func assertEmpty(t *testing.T, s *Session) {
	t.Helper()
	select {
	case data, ok := <-s.Outbound():
		if ok {
			t.Fatalf("unexpected message %s", data)
		}
	default:
	}
}

func encode(t *testing.T, msg protocol.Message) []byte {
	t.Helper()
	data, err := protocol.Encode(msg)
	require.NoError(t, err)
	return data
}

func insertMsg(t *testing.T, ch rune, seq uint64, site string, origin *crdt.OperationID) ([]byte, crdt.Element) {
	t.Helper()
	e := crdt.Element{Value: ch, ID: crdt.OperationID{Seq: seq, Site: site}, Origin: origin}
	return encode(t, protocol.NewInsert(e)), e
}

func TestJoin_SendsInitFirst(t *testing.T) {
	r := newRelay(t, DefaultOptions())

	a, im := join(t, r)
	assert.Equal(t, "1", a.Site())
	assert.Equal(t, protocol.Self{UserID: "1", Color: colorFor("1")}, im.Self)
	assert.Empty(t, im.Snapshot)
	assert.Equal(t, editor.DefaultTitle, im.Title)

	b, im := join(t, r)
	assert.Equal(t, "2", b.Site())
	assert.NotEqual(t, a.ID(), b.ID())
	assert.Equal(t, "2", im.Self.UserID)
	assert.Equal(t, 2, r.Stats().Peers)
}

func TestJoin_Rejected(t *testing.T) {
	r := newRelay(t, DefaultOptions())
	_, err := r.Join(nil)
	assert.ErrorIs(t, err, ErrNilPeer)

	require.NoError(t, r.Close())
	_, err = r.Join(fakePeer{})
	assert.ErrorIs(t, err, ErrRelayClosed)
}

func TestHandle_OperationBroadcastVerbatimWithoutEcho(t *testing.T) {
	r := newRelay(t, DefaultOptions())
	a, _ := join(t, r)
	b, _ := join(t, r)

	raw, e := insertMsg(t, 'h', 1, a.Site(), nil)
	require.NoError(t, r.Handle(a, raw))

	assert.Equal(t, raw, recv(t, b))
	assertEmpty(t, a)

	// a late joiner sees the op in its snapshot
	_, im := join(t, r)
	require.Len(t, im.Snapshot, 1)
	assert.Equal(t, e.ID, im.Snapshot[0].ID)
	assert.Equal(t, 'h', im.Snapshot[0].Value)

	// delete is applied and rebroadcast too
	del := encode(t, protocol.NewDelete(e.ID))
	require.NoError(t, r.Handle(b, del))
	assert.Equal(t, del, recv(t, a))
	assertEmpty(t, b)

	stats := r.Stats()
	assert.Equal(t, 1, stats.Elements)
	assert.Equal(t, 0, stats.VisibleLength)
	assert.Equal(t, 1.0, testutil.ToFloat64(r.Metrics().MessagesApplied.WithLabelValues("insert")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.Metrics().MessagesApplied.WithLabelValues("delete")))
}

func TestHandle_SnapshotKeepsTombstones(t *testing.T) {
	r := newRelay(t, DefaultOptions())
	a, _ := join(t, r)

	raw, e := insertMsg(t, 'x', 1, a.Site(), nil)
	require.NoError(t, r.Handle(a, raw))
	require.NoError(t, r.Handle(a, encode(t, protocol.NewDelete(e.ID))))

	_, im := join(t, r)
	require.Len(t, im.Snapshot, 1)
	assert.True(t, im.Snapshot[0].Tombstone)
}

func TestHandle_CursorIsStamped(t *testing.T) {
	r := newRelay(t, DefaultOptions())
	a, _ := join(t, r)
	b, _ := join(t, r)

	require.NoError(t, r.Handle(a, []byte(`{"type":"cursor","index":3,"userId":"spoofed"}`)))
	msg, err := protocol.Decode(recv(t, b))
	require.NoError(t, err)
	assert.Equal(t, &protocol.Cursor{
		Index:    3,
		UserID:   a.Site(),
		Color:    a.Color(),
		Username: "User " + a.Site(),
	}, msg)
	assertEmpty(t, a)

	require.NoError(t, r.Handle(a, []byte(`{"type":"cursor","index":0,"username":"ann"}`)))
	msg, err = protocol.Decode(recv(t, b))
	require.NoError(t, err)
	assert.Equal(t, "ann", msg.(*protocol.Cursor).Username)

	assert.Equal(t, 0, r.Stats().Elements, "cursors are never applied")
}

func TestHandle_TitleLastWriteWins(t *testing.T) {
	r := newRelay(t, DefaultOptions())
	a, _ := join(t, r)
	b, _ := join(t, r)

	first := encode(t, &protocol.Title{Title: "one.txt"})
	second := encode(t, &protocol.Title{Title: "two.txt"})
	require.NoError(t, r.Handle(a, first))
	require.NoError(t, r.Handle(b, second))

	assert.Equal(t, first, recv(t, b))
	assert.Equal(t, second, recv(t, a))
	assert.Equal(t, "two.txt", r.Stats().Title)

	_, im := join(t, r)
	assert.Equal(t, "two.txt", im.Title)
}

func TestHandle_DropsBadMessages(t *testing.T) {
	r := newRelay(t, DefaultOptions())
	a, _ := join(t, r)
	b, _ := join(t, r)

	cases := []struct {
		name   string
		raw    []byte
		reason string
	}{
		{"not json", []byte(`{{`), metrics.ReasonMalformed},
		{"unknown type", []byte(`{"type":"shout"}`), metrics.ReasonUnknownType},
		{"init from peer", []byte(`{"type":"init","self":{"userId":"9","color":"#fff"},"snapshot":[],"title":"x"}`), metrics.ReasonProtocol},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			before := testutil.ToFloat64(r.Metrics().MessagesDropped.WithLabelValues(tc.reason))
			assert.Error(t, r.Handle(a, tc.raw))
			assert.Equal(t, before+1, testutil.ToFloat64(r.Metrics().MessagesDropped.WithLabelValues(tc.reason)))
			assertEmpty(t, b)
		})
	}

	// the session is still usable afterwards
	raw, _ := insertMsg(t, 'k', 1, a.Site(), nil)
	require.NoError(t, r.Handle(a, raw))
	assert.Equal(t, raw, recv(t, b))
}

func TestHandle_UnknownOriginIsRejected(t *testing.T) {
	r := newRelay(t, DefaultOptions())
	a, _ := join(t, r)
	b, _ := join(t, r)

	raw, _ := insertMsg(t, 'z', 2, a.Site(), &crdt.OperationID{Seq: 1, Site: "ghost"})
	err := r.Handle(a, raw)
	assert.ErrorIs(t, err, crdt.ErrUnknownOrigin)
	assertEmpty(t, b)
	assert.Equal(t, 0, r.Stats().Elements)
}

func TestHandle_FullQueueEvictsPeer(t *testing.T) {
	r := newRelay(t, Options{QueueSize: 1})
	a, err := r.Join(fakePeer{})
	require.NoError(t, err)
	<-a.Outbound()
	slow, err := r.Join(fakePeer{})
	require.NoError(t, err)
	// slow never drains its init, so the queue stays full

	raw, _ := insertMsg(t, 'q', 1, a.Site(), nil)
	require.NoError(t, r.Handle(a, raw))

	assert.Equal(t, 1, r.Stats().Peers)
	assert.Equal(t, 1.0, testutil.ToFloat64(r.Metrics().PeersEvicted))

	_, ok := <-slow.Outbound()
	assert.True(t, ok, "init already queued is still delivered")
	_, ok = <-slow.Outbound()
	assert.False(t, ok, "queue is closed after eviction")

	assert.ErrorIs(t, r.Handle(slow, raw), ErrUnknownPeer)
	r.Leave(slow)
}

func TestLeave_Idempotent(t *testing.T) {
	r := newRelay(t, DefaultOptions())
	a, _ := join(t, r)
	b, _ := join(t, r)

	r.Leave(a)
	r.Leave(a)
	r.Leave(nil)
	_, ok := <-a.Outbound()
	assert.False(t, ok)
	assert.Equal(t, 1, r.Stats().Peers)

	raw, _ := insertMsg(t, 'w', 1, b.Site(), nil)
	require.NoError(t, r.Handle(b, raw))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.Metrics().PeersConnected))
}

func TestRelay_ConvergesWithReplicas(t *testing.T) {
	r := newRelay(t, DefaultOptions())
	sa, ia := join(t, r)
	sb, ib := join(t, r)

	a, b := editor.NewReplica("tmp"), editor.NewReplica("tmp")
	require.NoError(t, a.Adopt(ia.Self.UserID, ia.Snapshot, ia.Title))
	require.NoError(t, b.Adopt(ib.Self.UserID, ib.Snapshot, ib.Title))

	opsA, err := a.ApplyBuffer("hello")
	require.NoError(t, err)
	opsB, err := b.ApplyBuffer("world")
	require.NoError(t, err)

	send := func(s *Session, ops []*protocol.OperationMessage) {
		for _, op := range ops {
			require.NoError(t, r.Handle(s, encode(t, op)))
		}
	}
	deliver := func(s *Session, to *editor.Replica) {
		for {
			select {
			case data := <-s.Outbound():
				msg, err := protocol.Decode(data)
				require.NoError(t, err)
				_, err = to.ApplyRemote(msg.(*protocol.OperationMessage).Op)
				require.NoError(t, err)
			default:
				return
			}
		}
	}
	send(sa, opsA)
	send(sb, opsB)
	deliver(sa, a)
	deliver(sb, b)

	require.Equal(t, a.Text(), b.Text())
	assert.Len(t, a.Text(), 10)

	_, ic := join(t, r)
	c := editor.NewReplica("tmp")
	require.NoError(t, c.Adopt(ic.Self.UserID, ic.Snapshot, ic.Title))
	assert.Equal(t, a.Text(), c.Text())
}

func TestColorFor_Deterministic(t *testing.T) {
	assert.Equal(t, colorFor("7"), colorFor("7"))
	assert.Contains(t, palette, colorFor("42"))
}
