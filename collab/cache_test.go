package collab

import (
	"context"
	"testing"
	"time"

	"collabdoc-server/ephemeral"
	"collabdoc-server/ephemeral/memory"
)

func newCache(t *testing.T) (*DocumentCache, ephemeral.Store, *fakeClock) {
	t.Helper()
	clock := newClock()
	store := memory.NewStoreWithClock(clock.Now)
	return NewDocumentCacheWithClock(store, clock.Now), store, clock
}

func TestCache_PutGet(t *testing.T) {
	c, _, _ := newCache(t)
	ctx := context.Background()

	c.Put(ctx, "d1", "hello world")

	content, ok := c.Get(ctx, "d1")
	if !ok {
		t.Fatal("Get() reported a miss right after Put()")
	}
	if content != "hello world" {
		t.Errorf("Get() = %q, want %q", content, "hello world")
	}
}

func TestCache_Miss(t *testing.T) {
	c, _, _ := newCache(t)

	if _, ok := c.Get(context.Background(), "never-put"); ok {
		t.Error("Get() reported a hit for a document never cached")
	}
}

func TestCache_ExpiresAfterTTL(t *testing.T) {
	c, _, clock := newCache(t)
	ctx := context.Background()

	c.Put(ctx, "d1", "content")
	clock.Advance(CacheTTL)

	if _, ok := c.Get(ctx, "d1"); ok {
		t.Error("Get() reported a hit at the TTL boundary, want a miss")
	}
}

func TestCache_FreshWithinTTL(t *testing.T) {
	c, _, clock := newCache(t)
	ctx := context.Background()

	c.Put(ctx, "d1", "content")
	clock.Advance(CacheTTL - time.Second)

	content, ok := c.Get(ctx, "d1")
	if !ok {
		t.Fatal("Get() reported a miss inside the TTL window")
	}
	if content != "content" {
		t.Errorf("Get() = %q, want %q", content, "content")
	}
}

func TestCache_Invalidate(t *testing.T) {
	c, _, _ := newCache(t)
	ctx := context.Background()

	c.Put(ctx, "d1", "content")
	c.Invalidate(ctx, "d1")

	if _, ok := c.Get(ctx, "d1"); ok {
		t.Error("Get() reported a hit after Invalidate()")
	}
}

func TestCache_PutOverwrites(t *testing.T) {
	c, _, _ := newCache(t)
	ctx := context.Background()

	c.Put(ctx, "d1", "old")
	c.Put(ctx, "d1", "new")

	content, _ := c.Get(ctx, "d1")
	if content != "new" {
		t.Errorf("Get() = %q, want the most recent Put %q", content, "new")
	}
}

func TestCache_MalformedEntryIsMiss(t *testing.T) {
	c, store, _ := newCache(t)
	ctx := context.Background()

	store.Set(ctx, "doc:d1:cache", "{definitely not json", CacheTTL)

	if _, ok := c.Get(ctx, "d1"); ok {
		t.Error("Get() reported a hit on a malformed entry, want a miss")
	}
}
