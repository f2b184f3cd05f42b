package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/zeusync/coedit/internal/core/crdt"
)

type envelope struct {
	Type Kind `json:"type"`
}

type wireOperation struct {
	Op      OpKind            `json:"op"`
	CharObj *crdt.Element     `json:"charObj,omitempty"`
	ID      *crdt.OperationID `json:"id,omitempty"`
}

type wireOperationMessage struct {
	Type Kind          `json:"type"`
	Data wireOperation `json:"data"`
}

// Encode renders msg as one JSON document tagged with its "type".
func Encode(msg Message) ([]byte, error) {
	var v any
	switch m := msg.(type) {
	case *Init:
		snapshot := m.Snapshot
		if snapshot == nil {
			snapshot = []crdt.Element{}
		}
		v = struct {
			Type     Kind           `json:"type"`
			Self     Self           `json:"self"`
			Snapshot []crdt.Element `json:"snapshot"`
			Title    string         `json:"title"`
		}{KindInit, m.Self, snapshot, m.Title}
	case *OperationMessage:
		w, err := toWireOperation(m.Op)
		if err != nil {
			return nil, err
		}
		v = wireOperationMessage{Type: KindOperation, Data: w}
	case *Title:
		v = struct {
			Type  Kind   `json:"type"`
			Title string `json:"title"`
		}{KindTitle, m.Title}
	case *Cursor:
		v = struct {
			Type Kind `json:"type"`
			Cursor
		}{KindCursor, *m}
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownType, msg)
	}

	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncode, err)
	}
	return data, nil
}

func toWireOperation(op Operation) (wireOperation, error) {
	switch o := op.(type) {
	case Insert:
		e := o.Element
		return wireOperation{Op: OpInsert, CharObj: &e}, nil
	case Delete:
		id := o.ID
		return wireOperation{Op: OpDelete, ID: &id}, nil
	default:
		return wireOperation{}, fmt.Errorf("%w: operation %T", ErrUnknownType, op)
	}
}

// Decode parses one message. Anything that is not a well-formed member of
// the message set yields an error wrapping ErrMalformed or ErrUnknownType.
func Decode(data []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	switch env.Type {
	case KindInit:
		var m Init
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("%w: init: %w", ErrMalformed, err)
		}
		return &m, nil
	case KindOperation:
		return decodeOperation(data)
	case KindTitle:
		var m struct {
			Title *string `json:"title"`
		}
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("%w: title: %w", ErrMalformed, err)
		}
		if m.Title == nil {
			return nil, fmt.Errorf("%w: title: missing title", ErrMalformed)
		}
		return &Title{Title: *m.Title}, nil
	case KindCursor:
		var m struct {
			Index *int `json:"index"`
			Cursor
		}
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("%w: cursor: %w", ErrMalformed, err)
		}
		if m.Index == nil || *m.Index < 0 {
			return nil, fmt.Errorf("%w: cursor: bad index", ErrMalformed)
		}
		c := m.Cursor
		c.Index = *m.Index
		return &c, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
}

func decodeOperation(data []byte) (Message, error) {
	var m wireOperationMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: operation: %w", ErrMalformed, err)
	}

	switch m.Data.Op {
	case OpInsert:
		if m.Data.CharObj == nil {
			return nil, fmt.Errorf("%w: insert without charObj", ErrMalformed)
		}
		if err := m.Data.CharObj.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
		}
		return NewInsert(*m.Data.CharObj), nil
	case OpDelete:
		if m.Data.ID == nil {
			return nil, fmt.Errorf("%w: delete without id", ErrMalformed)
		}
		return NewDelete(*m.Data.ID), nil
	default:
		return nil, fmt.Errorf("%w: op %q", ErrUnknownType, m.Data.Op)
	}
}
