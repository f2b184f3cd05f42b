package editor

import (
	"fmt"
	"sync"

	"github.com/zeusync/coedit/internal/core/crdt"
	"github.com/zeusync/coedit/internal/core/protocol"
)

// DefaultTitle is the title of a document nobody has named yet.
const DefaultTitle = "Untitled.txt"

// Replica is one site's copy of the document. It turns position-based edits
// into operations and applies operations received from elsewhere.
type Replica struct {
	mu    sync.RWMutex
	seq   *crdt.Sequence
	gen   *crdt.Generator
	title string
}

func NewReplica(site string) *Replica {
	return &Replica{
		seq:   crdt.NewSequence(),
		gen:   crdt.NewGenerator(site),
		title: DefaultTitle,
	}
}

// Site returns the site identifier used for new ids.
func (r *Replica) Site() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.gen.Site()
}

// InsertAt inserts ch so that it becomes visible index i.
func (r *Replica) InsertAt(i int, ch rune) (*protocol.OperationMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.insertLocked(i, ch)
}

// DeleteAt removes the character at visible index i.
func (r *Replica) DeleteAt(i int) (*protocol.OperationMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.deleteLocked(i)
}

// ApplyBuffer brings the replica to next, the full text as seen by the UI,
// and returns one operation per changed character.
func (r *Replica) ApplyBuffer(next string) ([]*protocol.OperationMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	edits := Diff(r.seq.Materialize(), next)
	ops := make([]*protocol.OperationMessage, 0, len(edits))
	for _, e := range edits {
		var (
			op  *protocol.OperationMessage
			err error
		)
		switch e.Kind {
		case EditInsert:
			op, err = r.insertLocked(e.Index, e.Char)
		case EditDelete:
			op, err = r.deleteLocked(e.Index)
		default:
			err = fmt.Errorf("unknown edit kind %d", e.Kind)
		}
		if err != nil {
			return ops, err
		}
		ops = append(ops, op)
	}
	return ops, nil
}

func (r *Replica) insertLocked(i int, ch rune) (*protocol.OperationMessage, error) {
	if i < 0 || i > r.seq.VisibleLength() {
		return nil, fmt.Errorf("%w: insert at %d, length %d", crdt.ErrIndexOutOfRange, i, r.seq.VisibleLength())
	}

	var origin *crdt.OperationID
	if i > 0 {
		prev, ok := r.seq.VisibleAt(i - 1)
		if !ok {
			return nil, fmt.Errorf("%w: no element before %d", crdt.ErrIndexOutOfRange, i)
		}
		origin = &prev.ID
	}

	e := crdt.Element{Value: ch, ID: r.gen.Next(), Origin: origin}
	if _, err := r.seq.Integrate(e); err != nil {
		return nil, fmt.Errorf("integrate local insert: %w", err)
	}
	return protocol.NewInsert(e), nil
}

func (r *Replica) deleteLocked(i int) (*protocol.OperationMessage, error) {
	e, ok := r.seq.VisibleAt(i)
	if !ok {
		return nil, fmt.Errorf("%w: delete at %d, length %d", crdt.ErrIndexOutOfRange, i, r.seq.VisibleLength())
	}
	r.seq.Delete(e.ID)
	return protocol.NewDelete(e.ID), nil
}

// ApplyRemote integrates an operation produced by another site. It reports
// whether the document changed.
func (r *Replica) ApplyRemote(op protocol.Operation) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch o := op.(type) {
	case protocol.Insert:
		changed, err := r.seq.Integrate(o.Element)
		if err != nil {
			return false, err
		}
		r.gen.Observe(o.Element.ID)
		return changed, nil
	case protocol.Delete:
		return r.seq.Delete(o.ID), nil
	default:
		return false, fmt.Errorf("%w: operation %T", protocol.ErrUnknownType, op)
	}
}

// Adopt replaces the whole state with a snapshot from the relay. site is the
// identifier the relay assigned to this replica.
func (r *Replica) Adopt(site string, snapshot []crdt.Element, title string) error {
	seq, err := crdt.NewSequenceFromSnapshot(snapshot)
	if err != nil {
		return fmt.Errorf("adopt snapshot: %w", err)
	}
	gen := crdt.NewGenerator(site)
	for _, e := range snapshot {
		gen.Observe(e.ID)
	}

	r.mu.Lock()
	r.seq = seq
	r.gen = gen
	r.title = title
	r.mu.Unlock()
	return nil
}

// SetTitle stores a local title change and returns the message announcing it.
func (r *Replica) SetTitle(title string) *protocol.Title {
	r.mu.Lock()
	r.title = title
	r.mu.Unlock()
	return &protocol.Title{Title: title}
}

// ApplyTitle stores a title received from elsewhere.
func (r *Replica) ApplyTitle(title string) {
	r.mu.Lock()
	r.title = title
	r.mu.Unlock()
}

func (r *Replica) Title() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.title
}

// Text materializes the visible document.
func (r *Replica) Text() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.seq.Materialize()
}

func (r *Replica) VisibleLength() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.seq.VisibleLength()
}

// Snapshot returns every element, tombstones included, in physical order.
func (r *Replica) Snapshot() []crdt.Element {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.seq.Elements()
}
