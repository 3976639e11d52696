package collab

import (
	"context"
	"testing"
	"time"

	"collabdoc-server/ephemeral/memory"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func newPresence(t *testing.T) (*PresenceStore, *fakeClock) {
	t.Helper()
	clock := newClock()
	store := memory.NewStoreWithClock(clock.Now)
	return NewPresenceStoreWithClock(store, clock.Now), clock
}

func TestAddPresence_Listed(t *testing.T) {
	p, _ := newPresence(t)
	ctx := context.Background()

	p.AddPresence(ctx, "d1", "u1", "alice")

	entries := p.ListPresence(ctx, "d1")
	if len(entries) != 1 {
		t.Fatalf("ListPresence() returned %d entries, want 1", len(entries))
	}
	if entries[0].UserID != "u1" || entries[0].Username != "alice" {
		t.Errorf("ListPresence()[0] = %+v, want u1/alice", entries[0])
	}
}

func TestListPresence_ExpiresAfterTTL(t *testing.T) {
	p, clock := newPresence(t)
	ctx := context.Background()

	p.AddPresence(ctx, "d1", "u1", "alice")
	clock.Advance(PresenceTTL + time.Second)

	if entries := p.ListPresence(ctx, "d1"); len(entries) != 0 {
		t.Errorf("ListPresence() returned %d entries after TTL, want 0", len(entries))
	}
}

func TestAddPresence_RefreshResetsTTL(t *testing.T) {
	p, clock := newPresence(t)
	ctx := context.Background()

	p.AddPresence(ctx, "d1", "u1", "alice")
	clock.Advance(PresenceTTL - time.Second)
	p.AddPresence(ctx, "d1", "u1", "alice")
	clock.Advance(PresenceTTL - time.Second)

	if entries := p.ListPresence(ctx, "d1"); len(entries) != 1 {
		t.Errorf("ListPresence() returned %d entries, want 1: refresh should reset the full window", len(entries))
	}
}

func TestListPresence_DoesNotRefresh(t *testing.T) {
	p, clock := newPresence(t)
	ctx := context.Background()

	p.AddPresence(ctx, "d1", "u1", "alice")
	clock.Advance(PresenceTTL - time.Second)
	p.ListPresence(ctx, "d1")
	clock.Advance(2 * time.Second)

	if entries := p.ListPresence(ctx, "d1"); len(entries) != 0 {
		t.Errorf("ListPresence() returned %d entries, want 0: reads must not refresh the TTL", len(entries))
	}
}

func TestRemovePresence(t *testing.T) {
	p, _ := newPresence(t)
	ctx := context.Background()

	p.AddPresence(ctx, "d1", "u1", "alice")
	p.RemovePresence(ctx, "d1", "u1")

	if entries := p.ListPresence(ctx, "d1"); len(entries) != 0 {
		t.Errorf("ListPresence() returned %d entries after remove, want 0", len(entries))
	}
}

func TestRemovePresence_Missing(t *testing.T) {
	p, _ := newPresence(t)

	// Removing never-added presence must be a quiet no-op.
	p.RemovePresence(context.Background(), "d1", "ghost")
}

func TestActiveCount(t *testing.T) {
	p, _ := newPresence(t)
	ctx := context.Background()

	p.AddPresence(ctx, "d1", "u1", "alice")
	p.AddPresence(ctx, "d1", "u2", "bob")

	if got := p.ActiveCount(ctx, "d1"); got != 2 {
		t.Errorf("ActiveCount() = %d, want 2", got)
	}
	if got := p.ActiveCount(ctx, "d2"); got != 0 {
		t.Errorf("ActiveCount(d2) = %d, want 0", got)
	}
}
