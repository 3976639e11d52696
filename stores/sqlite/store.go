package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	stdlog "log"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"collabdoc-server/core"
)

type Store struct {
	db *sql.DB
}

func NewStore(dataSourceName string) *Store {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		stdlog.Fatal(err)
	}

	tables := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			content TEXT NOT NULL,
			updated_by TEXT,
			updated_at INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS chat_messages (
			id TEXT PRIMARY KEY,
			document_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			username TEXT NOT NULL,
			text TEXT NOT NULL,
			created_at INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_chat_document ON chat_messages (document_id, created_at);`,
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			active INTEGER NOT NULL DEFAULT 0
		);`,
	}
	for _, sts := range tables {
		if _, err := db.Exec(sts); err != nil {
			stdlog.Fatal(err)
		}
	}

	return &Store{db}
}

func (s *Store) GetDocument(ctx context.Context, id string) (*core.Document, error) {
	log := logrus.WithField("document_id", id)
	log.Debug("Retrieving document by ID")

	var doc core.Document
	var updatedBy sql.NullString
	var updatedAt int64
	err := s.db.QueryRowContext(ctx,
		"SELECT id, content, updated_by, updated_at FROM documents WHERE id = ?",
		id).Scan(&doc.ID, &doc.Content, &updatedBy, &updatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			log.Warn("Document with specified ID not found")
			return nil, fmt.Errorf("document with id %s: %w", id, core.ErrNotFound)
		}
		log.WithField("error", err).Error("Failed to retrieve document")
		return nil, err
	}
	doc.UpdatedBy = updatedBy.String
	doc.UpdatedAt = time.UnixMilli(updatedAt)
	return &doc, nil
}

func (s *Store) UpdateDocumentContent(ctx context.Context, id, content, editorID string) error {
	log := logrus.WithFields(logrus.Fields{
		"document_id":    id,
		"editor_id":      editorID,
		"content_length": len(content),
	})

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (id, content, updated_by, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET content = excluded.content, updated_by = excluded.updated_by, updated_at = excluded.updated_at`,
		id, content, editorID, time.Now().UnixMilli())
	if err != nil {
		log.WithField("error", err).Error("Failed to update document content")
		return err
	}
	log.Debug("Document content updated")
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
	log := logrus.WithFields(logrus.Fields{
		"message_id":  msg.ID,
		"document_id": documentID,
		"user_id":     userID,
	})

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO chat_messages (id, document_id, user_id, username, text, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		msg.ID, documentID, userID, username, text, msg.CreatedAt.UnixMilli())
	if err != nil {
		log.WithField("error", err).Error("Failed to insert chat message")
		return nil, err
	}
	log.Debug("Chat message inserted")
	return &msg, nil
}

func (s *Store) ListChatMessages(ctx context.Context, documentID string, limit int) ([]core.ChatMessage, error) {
	log := logrus.WithField("document_id", documentID)

	query := "SELECT id, document_id, user_id, username, text, created_at FROM chat_messages WHERE document_id = ? ORDER BY created_at DESC, id DESC"
	args := []any{documentID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.WithField("error", err).Error("Failed to list chat messages")
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			log.WithError(cerr).Warn("Failed to close chat rows")
		}
	}()

	var messages []core.ChatMessage
	for rows.Next() {
		var msg core.ChatMessage
		var createdAt int64
		if err := rows.Scan(&msg.ID, &msg.DocumentID, &msg.UserID, &msg.Username, &msg.Text, &createdAt); err != nil {
			log.WithField("error", err).Error("Failed to scan chat message")
			continue
		}
		msg.CreatedAt = time.UnixMilli(createdAt)
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Rows come back newest first; flip to chronological order for display.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (s *Store) SetUserActive(ctx context.Context, userID string, active bool) error {
	val := 0
	if active {
		val = 1
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO users (id, active) VALUES (?, ?) ON CONFLICT(id) DO UPDATE SET active = excluded.active",
		userID, val)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"user_id": userID,
			"error":   err,
		}).Error("Failed to set user active flag")
		return err
	}
	return nil
}
