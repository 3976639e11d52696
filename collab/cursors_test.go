package collab

import (
	"context"
	"testing"
	"time"

	"collabdoc-server/core"
	"collabdoc-server/ephemeral"
	"collabdoc-server/ephemeral/memory"
)

func newCursors(t *testing.T) (*CursorStore, ephemeral.Store, *fakeClock) {
	t.Helper()
	clock := newClock()
	store := memory.NewStoreWithClock(clock.Now)
	return NewCursorStoreWithClock(store, clock.Now), store, clock
}

func TestUpdateCursor_Listed(t *testing.T) {
	c, _, _ := newCursors(t)
	ctx := context.Background()

	c.UpdateCursor(ctx, "d1", core.CursorInfo{
		UserID:    "u1",
		Username:  "alice",
		Position:  42,
		Selection: &core.Selection{Start: 40, End: 45},
	})

	cursors := c.ListCursors(ctx, "d1")
	if len(cursors) != 1 {
		t.Fatalf("ListCursors() returned %d cursors, want 1", len(cursors))
	}
	cursor, ok := cursors["u1"]
	if !ok {
		t.Fatal("ListCursors() missing entry for u1")
	}
	if cursor.Position != 42 {
		t.Errorf("cursor.Position = %d, want 42", cursor.Position)
	}
	if cursor.Selection == nil || cursor.Selection.Start != 40 || cursor.Selection.End != 45 {
		t.Errorf("cursor.Selection = %+v, want {40 45}", cursor.Selection)
	}
}

func TestListCursors_FiltersStaleEntries(t *testing.T) {
	c, store, clock := newCursors(t)
	ctx := context.Background()

	c.UpdateCursor(ctx, "d1", core.CursorInfo{UserID: "u1", Username: "alice", Position: 1})
	clock.Advance(30 * time.Second)
	// u2's write resets the hash key TTL, keeping u1's stale entry
	// physically alive past its window.
	c.UpdateCursor(ctx, "d1", core.CursorInfo{UserID: "u2", Username: "bob", Position: 2})
	clock.Advance(45 * time.Second)

	fields, _ := store.HashGetAll(ctx, "doc:d1:cursors")
	if _, ok := fields["u1"]; !ok {
		t.Fatal("test setup: u1's entry should still be physically present")
	}

	cursors := c.ListCursors(ctx, "d1")
	if _, ok := cursors["u1"]; ok {
		t.Error("ListCursors() returned u1's cursor, want it filtered as stale")
	}
	if _, ok := cursors["u2"]; !ok {
		t.Error("ListCursors() missing u2's fresh cursor")
	}
}

func TestUpdateCursor_RefreshesTimestamp(t *testing.T) {
	c, _, clock := newCursors(t)
	ctx := context.Background()

	c.UpdateCursor(ctx, "d1", core.CursorInfo{UserID: "u1", Position: 1})
	clock.Advance(CursorTTL - time.Second)
	c.UpdateCursor(ctx, "d1", core.CursorInfo{UserID: "u1", Position: 2})
	clock.Advance(CursorTTL - time.Second)

	cursors := c.ListCursors(ctx, "d1")
	cursor, ok := cursors["u1"]
	if !ok {
		t.Fatal("ListCursors() missing refreshed cursor")
	}
	if cursor.Position != 2 {
		t.Errorf("cursor.Position = %d, want 2", cursor.Position)
	}
}

func TestRemoveCursor(t *testing.T) {
	c, _, _ := newCursors(t)
	ctx := context.Background()

	c.UpdateCursor(ctx, "d1", core.CursorInfo{UserID: "u1", Position: 1})
	c.RemoveCursor(ctx, "d1", "u1")

	if cursors := c.ListCursors(ctx, "d1"); len(cursors) != 0 {
		t.Errorf("ListCursors() returned %d cursors after remove, want 0", len(cursors))
	}
}

func TestListCursors_MalformedEntrySkipped(t *testing.T) {
	c, store, _ := newCursors(t)
	ctx := context.Background()

	store.HashSet(ctx, "doc:d1:cursors", "u1", "{not json", CursorTTL)
	c.UpdateCursor(ctx, "d1", core.CursorInfo{UserID: "u2", Position: 2})

	cursors := c.ListCursors(ctx, "d1")
	if _, ok := cursors["u1"]; ok {
		t.Error("ListCursors() returned a cursor decoded from malformed data")
	}
	if _, ok := cursors["u2"]; !ok {
		t.Error("ListCursors() missing the valid cursor alongside a malformed one")
	}
}
