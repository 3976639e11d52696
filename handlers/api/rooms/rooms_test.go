package rooms

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"collabdoc-server/collab"
	ephmemory "collabdoc-server/ephemeral/memory"
)

func TestHandleList(t *testing.T) {
	registry := collab.NewRoomRegistry()
	presence := collab.NewPresenceStore(ephmemory.NewStore())
	ctx := context.Background()

	registry.Join("d1", "u1")
	presence.AddPresence(ctx, "d1", "u1", "alice")

	registry.Join("d2", "u2")
	registry.Join("d2", "u3")
	presence.AddPresence(ctx, "d2", "u2", "bob")
	presence.AddPresence(ctx, "d2", "u3", "carol")

	rec := httptest.NewRecorder()
	HandleList(registry, presence)(rec, httptest.NewRequest(http.MethodGet, "/api/rooms", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var rooms []RoomInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &rooms); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(rooms) != 2 {
		t.Fatalf("got %d rooms, want 2", len(rooms))
	}
	if rooms[0].ID != "d2" || rooms[0].ActiveUsers != 2 || rooms[0].LocalUsers != 2 {
		t.Errorf("rooms[0] = %+v, want d2 with 2 users listed first", rooms[0])
	}
	if rooms[1].ID != "d1" || rooms[1].ActiveUsers != 1 {
		t.Errorf("rooms[1] = %+v, want d1 with 1 user", rooms[1])
	}
}

func TestHandleList_Empty(t *testing.T) {
	registry := collab.NewRoomRegistry()
	presence := collab.NewPresenceStore(ephmemory.NewStore())

	rec := httptest.NewRecorder()
	HandleList(registry, presence)(rec, httptest.NewRequest(http.MethodGet, "/api/rooms", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if body := strings.TrimSpace(rec.Body.String()); body != "[]" {
		t.Errorf("body = %q, want an empty JSON array", body)
	}
}
