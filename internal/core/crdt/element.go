package crdt

import (
	"encoding/json"
	"fmt"
	"unicode/utf8"
)

// Element is one character of the replicated sequence. Elements are never
// removed; deletion only sets Tombstone.
type Element struct {
	Value     rune
	ID        OperationID
	Origin    *OperationID
	Tombstone bool
}

// SameOrigin reports whether e and other are anchored to the same element.
func (e Element) SameOrigin(other *OperationID) bool {
	if e.Origin == nil || other == nil {
		return e.Origin == nil && other == nil
	}
	return *e.Origin == *other
}

// Validate checks the fields an element needs before it can be integrated.
func (e Element) Validate() error {
	if e.ID.IsZero() {
		return fmt.Errorf("%w: missing id", ErrInvalidElement)
	}
	if e.Origin != nil && e.Origin.IsZero() {
		return fmt.Errorf("%w: zero origin", ErrInvalidElement)
	}
	if e.Origin != nil && *e.Origin == e.ID {
		return fmt.Errorf("%w: element %s anchored to itself", ErrInvalidElement, e.ID)
	}
	if !utf8.ValidRune(e.Value) {
		return fmt.Errorf("%w: invalid rune", ErrInvalidElement)
	}
	return nil
}

type wireElement struct {
	Char      string       `json:"char"`
	ID        OperationID  `json:"id"`
	Origin    *OperationID `json:"origin"`
	Tombstone bool         `json:"tombstone"`
}

// MarshalJSON renders {char, id, origin, tombstone}; origin is null for
// elements anchored at the start.
func (e Element) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireElement{
		Char:      string(e.Value),
		ID:        e.ID,
		Origin:    e.Origin,
		Tombstone: e.Tombstone,
	})
}

func (e *Element) UnmarshalJSON(data []byte) error {
	var w wireElement
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	r, size := utf8.DecodeRuneInString(w.Char)
	if size == 0 || size != len(w.Char) || r == utf8.RuneError {
		return fmt.Errorf("%w: char must be exactly one character, got %q", ErrInvalidElement, w.Char)
	}
	*e = Element{
		Value:     r,
		ID:        w.ID,
		Origin:    w.Origin,
		Tombstone: w.Tombstone,
	}
	return nil
}
