package collab

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"

	"collabdoc-server/core"
	"collabdoc-server/ephemeral"
)

// CursorStore tracks the last-known cursor per user per document. The
// whole document's cursors live under one hash key with a CursorTTL key
// expiry; ListCursors additionally filters entries by timestamp so a
// cursor refreshed by another user cannot keep a stale one alive.
type CursorStore struct {
	store ephemeral.Store
	now   func() time.Time
}

func NewCursorStore(store ephemeral.Store) *CursorStore {
	return &CursorStore{store: store, now: time.Now}
}

func NewCursorStoreWithClock(store ephemeral.Store, now func() time.Time) *CursorStore {
	return &CursorStore{store: store, now: now}
}

func (c *CursorStore) UpdateCursor(ctx context.Context, documentID string, cursor core.CursorInfo) {
	cursor.UpdatedAt = c.now()
	data, err := json.Marshal(cursor)
	if err != nil {
		logrus.WithError(err).WithField("user_id", cursor.UserID).Warn("failed to marshal cursor")
		return
	}
	if err := c.store.HashSet(ctx, cursorsKey(documentID), cursor.UserID, string(data), CursorTTL); err != nil {
		logrus.WithError(err).WithField("document_id", documentID).Warn("cursor store unavailable, skipping update")
	}
}

func (c *CursorStore) RemoveCursor(ctx context.Context, documentID, userID string) {
	if err := c.store.HashDelete(ctx, cursorsKey(documentID), userID); err != nil {
		logrus.WithError(err).WithField("document_id", documentID).Warn("cursor store unavailable, skipping remove")
	}
}

// ListCursors returns userID -> cursor for every entry younger than
// CursorTTL. The timestamp check is a correctness guard against store
// expiry drift, not an optimization: the key TTL resets on every write
// by any user, so old fields can physically outlive their window.
func (c *CursorStore) ListCursors(ctx context.Context, documentID string) map[string]core.CursorInfo {
	fields, err := c.store.HashGetAll(ctx, cursorsKey(documentID))
	if err != nil {
		logrus.WithError(err).WithField("document_id", documentID).Warn("cursor store unavailable, returning empty map")
		return nil
	}
	if len(fields) == 0 {
		return nil
	}

	cutoff := c.now().Add(-CursorTTL)
	cursors := make(map[string]core.CursorInfo, len(fields))
	for userID, data := range fields {
		var cursor core.CursorInfo
		if err := json.Unmarshal([]byte(data), &cursor); err != nil {
			logrus.WithError(err).WithField("user_id", userID).Warn("malformed cursor entry, skipping")
			continue
		}
		if cursor.UpdatedAt.Before(cutoff) {
			continue
		}
		cursors[userID] = cursor
	}
	return cursors
}
