package client

import "github.com/zeusync/coedit/internal/core/protocol"

// Event types published on Client.Events().
const (
	EventDocumentChanged = "document.changed"
	EventTitleChanged    = "title.changed"
	EventCursorMoved     = "cursor.moved"
	EventSessionReset    = "session.reset"
)

// DocumentChanged is the data of EventDocumentChanged.
type DocumentChanged struct {
	Op   protocol.Operation
	Text string
}

// TitleChanged is the data of EventTitleChanged.
type TitleChanged struct {
	Title string
}

// SessionReset is the data of EventSessionReset: the relay sent a fresh
// init, usually after a restart, and local state was replaced by it.
type SessionReset struct {
	Self  protocol.Self
	Text  string
	Title string
}
