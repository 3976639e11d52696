package websocket

import (
	"encoding/json"
	"fmt"
	"time"

	"collabdoc-server/broker"
	"collabdoc-server/core"
)

// Client -> server event types. The set is closed: anything else is
// rejected at the boundary before dispatch.
const (
	TypeIdentify = "identify"
	TypeJoin     = "join"
	TypeChange   = "change"
	TypeCursor   = "cursor"
	TypeChatSend = "chat.send"
)

// Server -> client event types.
const (
	TypeChanged          = "changed"
	TypeCursorUpdated    = "cursor.updated"
	TypePresenceSnapshot = "presence.snapshot"
	TypeUserJoined       = "user.joined"
	TypeUserLeft         = "user.left"
	TypeChatNew          = "chat.new"
	TypeError            = "error"
)

type ClientMessage struct {
	Type       string          `json:"type"`
	UserID     string          `json:"userId,omitempty"`
	Username   string          `json:"username,omitempty"`
	DocumentID string          `json:"documentId,omitempty"`
	Content    string          `json:"content,omitempty"`
	Position   int             `json:"position,omitempty"`
	Selection  *core.Selection `json:"selection,omitempty"`
	Message    string          `json:"message,omitempty"`
}

// ParseClientMessage decodes and validates an inbound frame. A message
// that fails here never reaches the session state machine.
func ParseClientMessage(data []byte) (*ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("malformed message: %v", err)
	}

	switch msg.Type {
	case TypeIdentify:
		if msg.UserID == "" || msg.Username == "" {
			return nil, fmt.Errorf("identify requires userId and username")
		}
	case TypeJoin:
		if msg.DocumentID == "" {
			return nil, fmt.Errorf("join requires documentId")
		}
	case TypeChange:
		if msg.DocumentID == "" {
			return nil, fmt.Errorf("change requires documentId")
		}
	case TypeCursor:
		if msg.DocumentID == "" {
			return nil, fmt.Errorf("cursor requires documentId")
		}
		if msg.Position < 0 {
			return nil, fmt.Errorf("cursor position must not be negative")
		}
	case TypeChatSend:
		if msg.DocumentID == "" || msg.Message == "" {
			return nil, fmt.Errorf("chat.send requires documentId and message")
		}
	case "":
		return nil, fmt.Errorf("missing message type")
	default:
		return nil, fmt.Errorf("unknown message type %q", msg.Type)
	}
	return &msg, nil
}

type ServerMessage struct {
	Type string `json:"type"`

	UserID    string          `json:"userId,omitempty"`
	Username  string          `json:"username,omitempty"`
	Content   string          `json:"content,omitempty"`
	Timestamp *time.Time      `json:"timestamp,omitempty"`
	Position  *int            `json:"position,omitempty"`
	Selection *core.Selection `json:"selection,omitempty"`

	Users   []core.PresenceEntry       `json:"users,omitempty"`
	Cursors map[string]core.CursorInfo `json:"cursors,omitempty"`
	Chat    *core.ChatMessage          `json:"chat,omitempty"`

	Message string `json:"message,omitempty"`
}

func changedMessage(ev broker.ChangeEvent) ServerMessage {
	ts := ev.Timestamp
	return ServerMessage{
		Type:      TypeChanged,
		Content:   ev.Content,
		UserID:    ev.UserID,
		Username:  ev.Username,
		Timestamp: &ts,
	}
}

func cursorUpdatedMessage(cursor core.CursorInfo) ServerMessage {
	pos := cursor.Position
	return ServerMessage{
		Type:      TypeCursorUpdated,
		UserID:    cursor.UserID,
		Username:  cursor.Username,
		Position:  &pos,
		Selection: cursor.Selection,
	}
}

func presenceSnapshotMessage(users []core.PresenceEntry, cursors map[string]core.CursorInfo) ServerMessage {
	if users == nil {
		users = []core.PresenceEntry{}
	}
	if cursors == nil {
		cursors = map[string]core.CursorInfo{}
	}
	return ServerMessage{
		Type:    TypePresenceSnapshot,
		Users:   users,
		Cursors: cursors,
	}
}

func userJoinedMessage(userID, username string) ServerMessage {
	return ServerMessage{Type: TypeUserJoined, UserID: userID, Username: username}
}

func userLeftMessage(userID, username string) ServerMessage {
	return ServerMessage{Type: TypeUserLeft, UserID: userID, Username: username}
}

func chatNewMessage(msg *core.ChatMessage) ServerMessage {
	return ServerMessage{Type: TypeChatNew, Chat: msg}
}

func errorMessage(text string) ServerMessage {
	return ServerMessage{Type: TypeError, Message: text}
}
