package protocol

import (
	"github.com/zeusync/coedit/internal/core/crdt"
)

// Kind is the value of the "type" field that tags every message.
type Kind string

const (
	KindInit      Kind = "init"
	KindOperation Kind = "operation"
	KindTitle     Kind = "title"
	KindCursor    Kind = "cursor"
)

// Message is the closed set of messages exchanged between replicas and the
// relay: *Init, *OperationMessage, *Title and *Cursor.
type Message interface {
	Kind() Kind
	isMessage()
}

// Self describes the receiving replica inside an init message.
type Self struct {
	UserID string `json:"userId"`
	Color  string `json:"color"`
}

// Init is sent once by the relay to a freshly connected replica.
type Init struct {
	Self     Self           `json:"self"`
	Snapshot []crdt.Element `json:"snapshot"`
	Title    string         `json:"title"`
}

// OperationMessage carries one insert or delete.
type OperationMessage struct {
	Op Operation
}

// Title replaces the document title; last write wins.
type Title struct {
	Title string `json:"title"`
}

// Cursor is an ephemeral caret position. The relay fills in the sender's
// identity before relaying it.
type Cursor struct {
	Index    int    `json:"index"`
	UserID   string `json:"userId,omitempty"`
	Color    string `json:"color,omitempty"`
	Username string `json:"username,omitempty"`
}

func (*Init) Kind() Kind             { return KindInit }
func (*OperationMessage) Kind() Kind { return KindOperation }
func (*Title) Kind() Kind            { return KindTitle }
func (*Cursor) Kind() Kind           { return KindCursor }

func (*Init) isMessage()             {}
func (*OperationMessage) isMessage() {}
func (*Title) isMessage()            {}
func (*Cursor) isMessage()           {}

// OpKind is the value of the "op" field inside an operation.
type OpKind string

const (
	OpInsert OpKind = "insert"
	OpDelete OpKind = "delete"
)

// Operation is either Insert or Delete.
type Operation interface {
	OpKind() OpKind
	isOperation()
}

// Insert carries a fully formed element.
type Insert struct {
	Element crdt.Element
}

// Delete names the element to tombstone.
type Delete struct {
	ID crdt.OperationID
}

func (Insert) OpKind() OpKind { return OpInsert }
func (Delete) OpKind() OpKind { return OpDelete }

func (Insert) isOperation() {}
func (Delete) isOperation() {}

// NewInsert wraps an element in an operation message.
func NewInsert(e crdt.Element) *OperationMessage {
	return &OperationMessage{Op: Insert{Element: e}}
}

// NewDelete wraps an id in an operation message.
func NewDelete(id crdt.OperationID) *OperationMessage {
	return &OperationMessage{Op: Delete{ID: id}}
}

// AffectsDocument reports whether msg changes document state, as opposed to
// ephemeral or session messages.
func AffectsDocument(msg Message) bool {
	switch msg.(type) {
	case *OperationMessage, *Title:
		return true
	case *Init, *Cursor:
		return false
	default:
		return false
	}
}
