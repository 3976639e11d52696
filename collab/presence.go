// Package collab holds the coordination state for document rooms:
// who is present, where their cursors are, the content cache and the
// per-node room membership. Presence, cursors and the cache live in the
// shared TTL store; a store outage degrades them to empty results
// instead of failing the editing path.
package collab

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"collabdoc-server/core"
	"collabdoc-server/ephemeral"
)

const (
	// PresenceTTL is how long a user stays listed in a document without a
	// refresh. Acts as the soft cleanup when a disconnect is never seen.
	PresenceTTL = 300 * time.Second

	// CursorTTL bounds both the stored cursor entries and the read-time
	// staleness filter.
	CursorTTL = 60 * time.Second

	// CacheTTL is the lifetime of a cached content snapshot.
	CacheTTL = 300 * time.Second
)

func presenceKey(documentID string) string { return fmt.Sprintf("doc:%s:presence", documentID) }
func userInfoKey(userID string) string     { return fmt.Sprintf("user:%s:info", userID) }
func cursorsKey(documentID string) string  { return fmt.Sprintf("doc:%s:cursors", documentID) }
func cacheKey(documentID string) string    { return fmt.Sprintf("doc:%s:cache", documentID) }

// PresenceStore tracks which users are active in which document. Entries
// expire PresenceTTL after the last AddPresence; reads never refresh.
type PresenceStore struct {
	store ephemeral.Store
	now   func() time.Time
}

func NewPresenceStore(store ephemeral.Store) *PresenceStore {
	return &PresenceStore{store: store, now: time.Now}
}

func NewPresenceStoreWithClock(store ephemeral.Store, now func() time.Time) *PresenceStore {
	return &PresenceStore{store: store, now: now}
}

// AddPresence upserts the user into the document's member set and
// refreshes both TTLs to the full window from now.
func (p *PresenceStore) AddPresence(ctx context.Context, documentID, userID, username string) {
	entry := core.PresenceEntry{
		UserID:   userID,
		Username: username,
		LastSeen: p.now(),
	}
	data, err := json.Marshal(entry)
	if err != nil {
		logrus.WithError(err).WithField("user_id", userID).Warn("failed to marshal presence entry")
		return
	}

	if err := p.store.SetAdd(ctx, presenceKey(documentID), userID, PresenceTTL); err != nil {
		logrus.WithError(err).WithField("document_id", documentID).Warn("presence store unavailable, skipping add")
		return
	}
	if err := p.store.Set(ctx, userInfoKey(userID), string(data), PresenceTTL); err != nil {
		logrus.WithError(err).WithField("user_id", userID).Warn("presence store unavailable, skipping user info")
	}
}

func (p *PresenceStore) RemovePresence(ctx context.Context, documentID, userID string) {
	if err := p.store.SetRemove(ctx, presenceKey(documentID), userID); err != nil {
		logrus.WithError(err).WithField("document_id", documentID).Warn("presence store unavailable, skipping remove")
		return
	}
	if err := p.store.Delete(ctx, userInfoKey(userID)); err != nil {
		logrus.WithError(err).WithField("user_id", userID).Warn("presence store unavailable, skipping user info delete")
	}
}

// ListPresence returns the unexpired members of the document. Members
// whose info record has already expired are skipped.
func (p *PresenceStore) ListPresence(ctx context.Context, documentID string) []core.PresenceEntry {
	userIDs, err := p.store.SetMembers(ctx, presenceKey(documentID))
	if err != nil {
		logrus.WithError(err).WithField("document_id", documentID).Warn("presence store unavailable, returning empty list")
		return nil
	}

	entries := make([]core.PresenceEntry, 0, len(userIDs))
	for _, userID := range userIDs {
		data, ok, err := p.store.Get(ctx, userInfoKey(userID))
		if err != nil || !ok {
			continue
		}
		var entry core.PresenceEntry
		if err := json.Unmarshal([]byte(data), &entry); err != nil {
			logrus.WithError(err).WithField("user_id", userID).Warn("malformed presence entry, skipping")
			continue
		}
		entries = append(entries, entry)
	}
	return entries
}

func (p *PresenceStore) ActiveCount(ctx context.Context, documentID string) int {
	userIDs, err := p.store.SetMembers(ctx, presenceKey(documentID))
	if err != nil {
		logrus.WithError(err).WithField("document_id", documentID).Warn("presence store unavailable, returning zero count")
		return 0
	}
	return len(userIDs)
}
