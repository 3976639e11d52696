package collab

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"collabdoc-server/core"
)

type pendingWrite struct {
	content  string
	editorID string
	timer    *time.Timer
}

// DebouncedWriter coalesces the content writes coming off the change
// stream. Each Submit re-arms a per-document timer; when it fires the
// latest content is persisted and the cache invalidated. Flush and
// Cancel give callers an explicit contract instead of a fire-and-forget
// timer: Flush on room teardown, Cancel when another path already
// committed the document.
type DebouncedWriter struct {
	store    core.DocumentStore
	cache    *DocumentCache
	interval time.Duration

	mu      sync.Mutex
	pending map[string]*pendingWrite
	closed  bool
}

func NewDebouncedWriter(store core.DocumentStore, cache *DocumentCache, interval time.Duration) *DebouncedWriter {
	return &DebouncedWriter{
		store:    store,
		cache:    cache,
		interval: interval,
		pending:  make(map[string]*pendingWrite),
	}
}

// Submit records the latest content for the document and (re)arms its
// flush timer.
func (w *DebouncedWriter) Submit(documentID, content, editorID string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}
	if p, ok := w.pending[documentID]; ok {
		p.content = content
		p.editorID = editorID
		p.timer.Reset(w.interval)
		return
	}
	p := &pendingWrite{content: content, editorID: editorID}
	p.timer = time.AfterFunc(w.interval, func() {
		w.Flush(documentID)
	})
	w.pending[documentID] = p
}

// Flush persists the pending write for the document now, if any.
func (w *DebouncedWriter) Flush(documentID string) {
	w.mu.Lock()
	p, ok := w.pending[documentID]
	if ok {
		p.timer.Stop()
		delete(w.pending, documentID)
	}
	w.mu.Unlock()

	if !ok {
		return
	}
	w.commit(documentID, p.content, p.editorID)
}

// Cancel discards the pending write for the document without persisting.
func (w *DebouncedWriter) Cancel(documentID string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if p, ok := w.pending[documentID]; ok {
		p.timer.Stop()
		delete(w.pending, documentID)
	}
}

// Close flushes everything still pending.
func (w *DebouncedWriter) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	pending := w.pending
	w.pending = make(map[string]*pendingWrite)
	w.mu.Unlock()

	for documentID, p := range pending {
		p.timer.Stop()
		w.commit(documentID, p.content, p.editorID)
	}
}

func (w *DebouncedWriter) commit(documentID, content, editorID string) {
	ctx := context.Background()
	if err := w.store.UpdateDocumentContent(ctx, documentID, content, editorID); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"document_id": documentID,
			"editor_id":   editorID,
		}).Error("failed to persist document content")
		return
	}
	// Invalidate after the committed write so no reader can cache content
	// older than what was just persisted.
	w.cache.Invalidate(ctx, documentID)
}
