package relay

import (
	"sync"

	"github.com/zeusync/coedit/internal/core/crdt"
	"github.com/zeusync/coedit/internal/core/editor"
	"github.com/zeusync/coedit/internal/core/protocol"
)

// Store is the authoritative session state: the sequence, the title and the
// set of joined peers. Every mutation and the broadcast that announces it
// happen under mu, so each peer sees operations in apply order and a peer
// joining concurrently gets either the op in its snapshot or in its queue.
type Store struct {
	mu    sync.Mutex
	seq   *crdt.Sequence
	title string
	peers map[string]*Session
}

func NewStore() *Store {
	return &Store{
		seq:   crdt.NewSequence(),
		title: editor.DefaultTitle,
		peers: make(map[string]*Session),
	}
}

// applyLocked mutates the document. changed is false for duplicate inserts
// and deletes of unknown or already deleted ids.
func (st *Store) applyLocked(op protocol.Operation) (changed bool, err error) {
	switch o := op.(type) {
	case protocol.Insert:
		return st.seq.Integrate(o.Element)
	case protocol.Delete:
		return st.seq.Delete(o.ID), nil
	default:
		return false, protocol.ErrUnknownType
	}
}

func (st *Store) initLocked(s *Session) *protocol.Init {
	return &protocol.Init{
		Self:     protocol.Self{UserID: s.site, Color: s.color},
		Snapshot: st.seq.Elements(),
		Title:    st.title,
	}
}

// broadcastLocked enqueues data to every joined peer except skip. Peers whose
// queue is full are removed and returned so the caller can account for them.
func (st *Store) broadcastLocked(data []byte, skip *Session) (sent int, evicted []*Session) {
	for _, p := range st.peers {
		if p == skip {
			continue
		}
		select {
		case p.out <- data:
			sent++
		default:
			st.removeLocked(p)
			evicted = append(evicted, p)
		}
	}
	return sent, evicted
}

func (st *Store) removeLocked(s *Session) bool {
	if !s.joined {
		return false
	}
	s.joined = false
	delete(st.peers, s.site)
	close(s.out)
	return true
}

// Stats is a point-in-time summary of the session.
type Stats struct {
	Peers         int    `json:"peers"`
	Elements      int    `json:"elements"`
	VisibleLength int    `json:"visibleLength"`
	Title         string `json:"title"`
}

func (st *Store) statsLocked() Stats {
	return Stats{
		Peers:         len(st.peers),
		Elements:      st.seq.Len(),
		VisibleLength: st.seq.VisibleLength(),
		Title:         st.title,
	}
}
