package crdt

import (
	"fmt"
	"strings"
)

// Sequence is the replicated ordered list of elements. Physical order is the
// storage order and includes tombstones; visible order skips them.
//
// A Sequence is not safe for concurrent use; owners serialize access.
type Sequence struct {
	elems   []Element
	ids     map[OperationID]struct{}
	visible int
}

func NewSequence() *Sequence {
	return &Sequence{ids: make(map[OperationID]struct{})}
}

// NewSequenceFromSnapshot adopts elems as-is, in the given physical order.
// The elements are not re-integrated.
func NewSequenceFromSnapshot(elems []Element) (*Sequence, error) {
	s := &Sequence{
		elems: make([]Element, 0, len(elems)),
		ids:   make(map[OperationID]struct{}, len(elems)),
	}
	for _, e := range elems {
		if err := e.Validate(); err != nil {
			return nil, err
		}
		if _, dup := s.ids[e.ID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateID, e.ID)
		}
		s.ids[e.ID] = struct{}{}
		s.elems = append(s.elems, cloneElement(e))
		if !e.Tombstone {
			s.visible++
		}
	}
	for _, e := range s.elems {
		if e.Origin != nil && !s.Contains(*e.Origin) {
			return nil, fmt.Errorf("%w: %s (element %s)", ErrUnknownOrigin, e.Origin, e.ID)
		}
	}
	return s, nil
}

// Len returns the physical length, tombstones included.
func (s *Sequence) Len() int {
	return len(s.elems)
}

// VisibleLength returns the number of live elements.
func (s *Sequence) VisibleLength() int {
	return s.visible
}

// At returns the element at physical index i.
func (s *Sequence) At(i int) Element {
	return cloneElement(s.elems[i])
}

// Contains reports whether an element with id has been integrated.
func (s *Sequence) Contains(id OperationID) bool {
	_, ok := s.ids[id]
	return ok
}

// IndexOf returns the physical index of id, or -1.
func (s *Sequence) IndexOf(id OperationID) int {
	if !s.Contains(id) {
		return -1
	}
	for i := range s.elems {
		if s.elems[i].ID == id {
			return i
		}
	}
	return -1
}

// PhysicalIndex maps visible index v to a physical index. It returns false
// when v is at or past the visible end, meaning "append".
// The mapping is computed from scratch on every call: remote inserts move
// physical positions between local edits.
func (s *Sequence) PhysicalIndex(v int) (int, bool) {
	if v < 0 {
		return 0, false
	}
	seen := 0
	for i := range s.elems {
		if s.elems[i].Tombstone {
			continue
		}
		if seen == v {
			return i, true
		}
		seen++
	}
	return len(s.elems), false
}

// VisibleAt returns the live element at visible index v.
func (s *Sequence) VisibleAt(v int) (Element, bool) {
	i, ok := s.PhysicalIndex(v)
	if !ok {
		return Element{}, false
	}
	return cloneElement(s.elems[i]), true
}

// Materialize concatenates the live values in physical order.
func (s *Sequence) Materialize() string {
	var b strings.Builder
	b.Grow(s.visible)
	for i := range s.elems {
		if !s.elems[i].Tombstone {
			b.WriteRune(s.elems[i].Value)
		}
	}
	return b.String()
}

// Elements returns a copy of every element in physical order.
func (s *Sequence) Elements() []Element {
	out := make([]Element, len(s.elems))
	for i := range s.elems {
		out[i] = cloneElement(s.elems[i])
	}
	return out
}

func cloneElement(e Element) Element {
	if e.Origin != nil {
		origin := *e.Origin
		e.Origin = &origin
	}
	return e
}
