// Package broker carries change and cursor events between nodes. Every
// event is tagged with the id of the node that published it, so a
// subscriber can drop deliveries of its own publishes and re-broadcast
// only what other nodes produced.
package broker

import (
	"context"
	"fmt"
	"time"

	"collabdoc-server/core"
)

type ChangeEvent struct {
	Origin     string    `json:"origin"`
	DocumentID string    `json:"documentId"`
	UserID     string    `json:"userId"`
	Username   string    `json:"username"`
	Content    string    `json:"content"`
	Timestamp  time.Time `json:"timestamp"`
}

type CursorEvent struct {
	Origin     string          `json:"origin"`
	DocumentID string          `json:"documentId"`
	Cursor     core.CursorInfo `json:"cursor"`
}

// Handler receives events for a subscribed document, including ones this
// node published itself; origin filtering is the handler's job.
type Handler interface {
	HandleChange(ev ChangeEvent)
	HandleCursor(ev CursorEvent)
}

// Broker is the cross-node fan-out. A node subscribes to a document only
// while it has local members in that room and unsubscribes when the room
// empties.
type Broker interface {
	PublishChange(ctx context.Context, ev ChangeEvent) error
	PublishCursor(ctx context.Context, ev CursorEvent) error
	Subscribe(documentID string, h Handler) error
	Unsubscribe(documentID string)
	Close() error
}

func ChangesTopic(documentID string) string { return fmt.Sprintf("doc:%s:changes", documentID) }
func CursorsTopic(documentID string) string { return fmt.Sprintf("doc:%s:cursors", documentID) }
