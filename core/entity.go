package core

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by stores when the requested record does not exist.
var ErrNotFound = errors.New("not found")

type (
	Document struct {
		ID        string    `json:"id"`
		Content   string    `json:"content"`
		UpdatedBy string    `json:"updatedBy,omitempty"`
		UpdatedAt time.Time `json:"updatedAt"`
	}

	// ChatMessage is the canonical persisted record. The id and timestamp
	// are assigned by the store; clients never see a message that was not
	// durably written first.
	ChatMessage struct {
		ID         string    `json:"id"`
		DocumentID string    `json:"documentId"`
		UserID     string    `json:"userId"`
		Username   string    `json:"username"`
		Text       string    `json:"text"`
		CreatedAt  time.Time `json:"createdAt"`
	}

	PresenceEntry struct {
		UserID   string    `json:"userId"`
		Username string    `json:"username"`
		LastSeen time.Time `json:"lastSeen"`
	}

	Selection struct {
		Start int `json:"start"`
		End   int `json:"end"`
	}

	CursorInfo struct {
		UserID    string     `json:"userId"`
		Username  string     `json:"username"`
		Position  int        `json:"position"`
		Selection *Selection `json:"selection,omitempty"`
		UpdatedAt time.Time  `json:"updatedAt"`
	}

	DocumentStore interface {
		GetDocument(ctx context.Context, id string) (*Document, error)
		UpdateDocumentContent(ctx context.Context, id, content, editorID string) error
	}

	ChatStore interface {
		InsertChatMessage(ctx context.Context, documentID, userID, username, text string) (*ChatMessage, error)
		ListChatMessages(ctx context.Context, documentID string, limit int) ([]ChatMessage, error)
	}

	UserStore interface {
		SetUserActive(ctx context.Context, userID string, active bool) error
	}
)
