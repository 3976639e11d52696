package collab

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"collabdoc-server/core"
	"collabdoc-server/ephemeral/memory"
)

type recordedWrite struct {
	documentID string
	content    string
	editorID   string
}

type recordingStore struct {
	mu     sync.Mutex
	writes []recordedWrite
}

func (r *recordingStore) GetDocument(ctx context.Context, id string) (*core.Document, error) {
	return nil, fmt.Errorf("document with id %s: %w", id, core.ErrNotFound)
}

func (r *recordingStore) UpdateDocumentContent(ctx context.Context, id, content, editorID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes = append(r.writes, recordedWrite{documentID: id, content: content, editorID: editorID})
	return nil
}

func (r *recordingStore) Writes() []recordedWrite {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]recordedWrite, len(r.writes))
	copy(out, r.writes)
	return out
}

func waitForWrites(t *testing.T, store *recordingStore, want int) []recordedWrite {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if writes := store.Writes(); len(writes) >= want {
			return writes
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d writes, got %d", want, len(store.Writes()))
	return nil
}

func TestDebounce_FiresAfterInterval(t *testing.T) {
	store := &recordingStore{}
	cache := NewDocumentCache(memory.NewStore())
	w := NewDebouncedWriter(store, cache, 20*time.Millisecond)
	defer w.Close()

	w.Submit("d1", "content", "u1")

	writes := waitForWrites(t, store, 1)
	if writes[0].content != "content" || writes[0].editorID != "u1" {
		t.Errorf("write = %+v, want content/u1", writes[0])
	}
}

func TestDebounce_CoalescesToLatest(t *testing.T) {
	store := &recordingStore{}
	cache := NewDocumentCache(memory.NewStore())
	w := NewDebouncedWriter(store, cache, 30*time.Millisecond)
	defer w.Close()

	w.Submit("d1", "v1", "u1")
	w.Submit("d1", "v2", "u1")
	w.Submit("d1", "v3", "u2")

	writes := waitForWrites(t, store, 1)
	time.Sleep(60 * time.Millisecond)

	writes = store.Writes()
	if len(writes) != 1 {
		t.Fatalf("got %d writes, want 1 coalesced write", len(writes))
	}
	if writes[0].content != "v3" || writes[0].editorID != "u2" {
		t.Errorf("write = %+v, want the latest submission v3/u2", writes[0])
	}
}

func TestDebounce_Flush(t *testing.T) {
	store := &recordingStore{}
	cache := NewDocumentCache(memory.NewStore())
	w := NewDebouncedWriter(store, cache, time.Hour)
	defer w.Close()

	w.Submit("d1", "content", "u1")
	w.Flush("d1")

	if writes := store.Writes(); len(writes) != 1 {
		t.Fatalf("got %d writes after Flush(), want 1", len(writes))
	}

	// A second flush has nothing pending.
	w.Flush("d1")
	if writes := store.Writes(); len(writes) != 1 {
		t.Errorf("got %d writes after second Flush(), want still 1", len(writes))
	}
}

func TestDebounce_Cancel(t *testing.T) {
	store := &recordingStore{}
	cache := NewDocumentCache(memory.NewStore())
	w := NewDebouncedWriter(store, cache, 20*time.Millisecond)
	defer w.Close()

	w.Submit("d1", "content", "u1")
	w.Cancel("d1")

	time.Sleep(80 * time.Millisecond)
	if writes := store.Writes(); len(writes) != 0 {
		t.Errorf("got %d writes after Cancel(), want 0", len(writes))
	}
}

func TestDebounce_CloseFlushesAll(t *testing.T) {
	store := &recordingStore{}
	cache := NewDocumentCache(memory.NewStore())
	w := NewDebouncedWriter(store, cache, time.Hour)

	w.Submit("d1", "one", "u1")
	w.Submit("d2", "two", "u2")
	w.Close()

	if writes := store.Writes(); len(writes) != 2 {
		t.Fatalf("got %d writes after Close(), want 2", len(writes))
	}

	// Submissions after Close are discarded.
	w.Submit("d3", "three", "u3")
	time.Sleep(20 * time.Millisecond)
	if writes := store.Writes(); len(writes) != 2 {
		t.Errorf("got %d writes after post-Close Submit(), want still 2", len(writes))
	}
}

func TestDebounce_InvalidatesCacheOnCommit(t *testing.T) {
	store := &recordingStore{}
	cache := NewDocumentCache(memory.NewStore())
	w := NewDebouncedWriter(store, cache, time.Hour)
	defer w.Close()

	ctx := context.Background()
	cache.Put(ctx, "d1", "stale")

	w.Submit("d1", "fresh", "u1")
	w.Flush("d1")

	if _, ok := cache.Get(ctx, "d1"); ok {
		t.Error("cache still serves a snapshot after the debounced commit")
	}
}
