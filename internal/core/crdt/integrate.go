package crdt

import "fmt"

// Integrate places e into the sequence. It returns false without error when
// an element with the same id is already present.
//
// The position depends only on (origin, id) pairs. Elements form a tree where
// each element is a child of its origin; siblings are ordered by
// OperationID.Compare and the physical order is the pre-order walk of that
// tree. Scanning right from the origin, a sibling that sorts before e is
// skipped together with its subtree, and the scan stops at the first sibling
// e sorts before or at the first element outside the origin's subtree. Any
// delivery order that respects origins therefore yields the same layout.
func (s *Sequence) Integrate(e Element) (bool, error) {
	if err := e.Validate(); err != nil {
		return false, err
	}
	if s.Contains(e.ID) {
		return false, nil
	}

	originPos := -1
	if e.Origin != nil {
		originPos = s.IndexOf(*e.Origin)
		if originPos < 0 {
			return false, fmt.Errorf("%w: %s (inserting %s)", ErrUnknownOrigin, e.Origin, e.ID)
		}
	}

	pos := originPos + 1
	// ids passed by the scan; an element anchored to one of them lies in the
	// subtree of a skipped sibling.
	passed := make(map[OperationID]struct{})
	for ; pos < len(s.elems); pos++ {
		next := &s.elems[pos]
		if next.SameOrigin(e.Origin) {
			if e.ID.Less(next.ID) {
				break
			}
		} else if next.Origin == nil {
			break
		} else if _, inSubtree := passed[*next.Origin]; !inSubtree {
			break
		}
		passed[next.ID] = struct{}{}
	}

	e = cloneElement(e)
	s.elems = append(s.elems, Element{})
	copy(s.elems[pos+1:], s.elems[pos:])
	s.elems[pos] = e
	s.ids[e.ID] = struct{}{}
	if !e.Tombstone {
		s.visible++
	}
	return true, nil
}

// Delete tombstones the element with id. It returns false when the element
// is unknown or already deleted; an unknown id is dropped, not buffered.
func (s *Sequence) Delete(id OperationID) bool {
	if !s.Contains(id) {
		return false
	}
	i := s.IndexOf(id)
	if s.elems[i].Tombstone {
		return false
	}
	s.elems[i].Tombstone = true
	s.visible--
	return true
}
