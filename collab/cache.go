package collab

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"

	"collabdoc-server/ephemeral"
)

type cachedDocument struct {
	Content  string    `json:"content"`
	CachedAt time.Time `json:"cachedAt"`
}

// DocumentCache is a read-through/write-invalidate cache of content
// snapshots. Writers never update it in place: any committed content
// write calls Invalidate before reporting success, and the next reader
// repopulates from the source of truth.
type DocumentCache struct {
	store ephemeral.Store
	now   func() time.Time
}

func NewDocumentCache(store ephemeral.Store) *DocumentCache {
	return &DocumentCache{store: store, now: time.Now}
}

func NewDocumentCacheWithClock(store ephemeral.Store, now func() time.Time) *DocumentCache {
	return &DocumentCache{store: store, now: now}
}

// Get returns the cached snapshot and true, or "" and false on a miss.
// An expired, unavailable or unparseable entry is a miss, never an error.
func (c *DocumentCache) Get(ctx context.Context, documentID string) (string, bool) {
	data, ok, err := c.store.Get(ctx, cacheKey(documentID))
	if err != nil {
		logrus.WithError(err).WithField("document_id", documentID).Warn("document cache unavailable, treating as miss")
		return "", false
	}
	if !ok {
		return "", false
	}

	var cached cachedDocument
	if err := json.Unmarshal([]byte(data), &cached); err != nil {
		logrus.WithError(err).WithField("document_id", documentID).Warn("malformed cache entry, treating as miss")
		return "", false
	}
	if c.now().Sub(cached.CachedAt) >= CacheTTL {
		return "", false
	}
	return cached.Content, true
}

func (c *DocumentCache) Put(ctx context.Context, documentID, content string) {
	data, err := json.Marshal(cachedDocument{Content: content, CachedAt: c.now()})
	if err != nil {
		logrus.WithError(err).WithField("document_id", documentID).Warn("failed to marshal cache entry")
		return
	}
	if err := c.store.Set(ctx, cacheKey(documentID), string(data), CacheTTL); err != nil {
		logrus.WithError(err).WithField("document_id", documentID).Warn("document cache unavailable, skipping put")
	}
}

func (c *DocumentCache) Invalidate(ctx context.Context, documentID string) {
	if err := c.store.Delete(ctx, cacheKey(documentID)); err != nil {
		logrus.WithError(err).WithField("document_id", documentID).Warn("document cache unavailable, skipping invalidate")
	}
}
