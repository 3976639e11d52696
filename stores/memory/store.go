package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"

	"collabdoc-server/core"
)

type Store struct {
	mu        sync.RWMutex
	documents map[string]core.Document
	chat      map[string][]core.ChatMessage // documentID -> messages in insert order
	active    map[string]bool
}

func NewStore() *Store {
	return &Store{
		documents: make(map[string]core.Document),
		chat:      make(map[string][]core.ChatMessage),
		active:    make(map[string]bool),
	}
}

func (s *Store) GetDocument(ctx context.Context, id string) (*core.Document, error) {
	s.mu.RLock()
	doc, ok := s.documents[id]
	s.mu.RUnlock()

	if !ok {
		logrus.WithField("document_id", id).Warn("Document with specified ID not found")
		return nil, fmt.Errorf("document with id %s: %w", id, core.ErrNotFound)
	}
	return &doc, nil
}

// UpdateDocumentContent upserts: the coordination layer may persist
// content for a document the CRUD layer has not written yet.
func (s *Store) UpdateDocumentContent(ctx context.Context, id, content, editorID string) error {
	s.mu.Lock()
	s.documents[id] = core.Document{
		ID:        id,
		Content:   content,
		UpdatedBy: editorID,
		UpdatedAt: time.Now(),
	}
	s.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"document_id":    id,
		"editor_id":      editorID,
		"content_length": len(content),
	}).Debug("Document content updated")
	return nil
}

func (s *Store) InsertChatMessage(ctx context.Context, documentID, userID, username, text string) (*core.ChatMessage, error) {
	msg := core.ChatMessage{
		ID:         ulid.Make().String(),
		DocumentID: documentID,
		UserID:     userID,
		Username:   username,
		Text:       text,
		CreatedAt:  time.Now(),
	}

	s.mu.Lock()
	s.chat[documentID] = append(s.chat[documentID], msg)
	s.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"message_id":  msg.ID,
		"document_id": documentID,
		"user_id":     userID,
	}).Debug("Chat message inserted")
	return &msg, nil
}

func (s *Store) ListChatMessages(ctx context.Context, documentID string, limit int) ([]core.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	messages := s.chat[documentID]
	if limit > 0 && len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}
	out := make([]core.ChatMessage, len(messages))
	copy(out, messages)
	return out, nil
}

func (s *Store) SetUserActive(ctx context.Context, userID string, active bool) error {
	s.mu.Lock()
	s.active[userID] = active
	s.mu.Unlock()
	return nil
}

// UserActive is a test hook; the wire contract only writes the flag.
func (s *Store) UserActive(userID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active[userID]
}
