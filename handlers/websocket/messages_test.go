package websocket

import (
	"strings"
	"testing"
)

func TestParseClientMessage_Valid(t *testing.T) {
	cases := []struct {
		name string
		data string
		typ  string
	}{
		{"identify", `{"type":"identify","userId":"u1","username":"alice"}`, TypeIdentify},
		{"join", `{"type":"join","documentId":"d1"}`, TypeJoin},
		{"change", `{"type":"change","documentId":"d1","content":"hello"}`, TypeChange},
		{"change empty content", `{"type":"change","documentId":"d1","content":""}`, TypeChange},
		{"cursor", `{"type":"cursor","documentId":"d1","position":4}`, TypeCursor},
		{"cursor at zero", `{"type":"cursor","documentId":"d1","position":0}`, TypeCursor},
		{"cursor with selection", `{"type":"cursor","documentId":"d1","position":4,"selection":{"start":1,"end":4}}`, TypeCursor},
		{"chat", `{"type":"chat.send","documentId":"d1","message":"hi"}`, TypeChatSend},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			msg, err := ParseClientMessage([]byte(tc.data))
			if err != nil {
				t.Fatalf("ParseClientMessage() error = %v", err)
			}
			if msg.Type != tc.typ {
				t.Errorf("Type = %q, want %q", msg.Type, tc.typ)
			}
		})
	}
}

func TestParseClientMessage_Invalid(t *testing.T) {
	cases := []struct {
		name    string
		data    string
		wantErr string
	}{
		{"not json", `{{`, "malformed message"},
		{"missing type", `{"documentId":"d1"}`, "missing message type"},
		{"unknown type", `{"type":"resync"}`, "unknown message type"},
		{"identify without username", `{"type":"identify","userId":"u1"}`, "identify requires"},
		{"identify without userId", `{"type":"identify","username":"alice"}`, "identify requires"},
		{"join without document", `{"type":"join"}`, "join requires"},
		{"change without document", `{"type":"change","content":"x"}`, "change requires"},
		{"cursor without document", `{"type":"cursor","position":1}`, "cursor requires"},
		{"cursor negative position", `{"type":"cursor","documentId":"d1","position":-1}`, "must not be negative"},
		{"chat without message", `{"type":"chat.send","documentId":"d1"}`, "chat.send requires"},
		{"chat without document", `{"type":"chat.send","message":"hi"}`, "chat.send requires"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseClientMessage([]byte(tc.data))
			if err == nil {
				t.Fatal("ParseClientMessage() succeeded, want error")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("error = %q, want it to mention %q", err, tc.wantErr)
			}
		})
	}
}

func TestParseClientMessage_SelectionDecoded(t *testing.T) {
	msg, err := ParseClientMessage([]byte(`{"type":"cursor","documentId":"d1","position":7,"selection":{"start":2,"end":7}}`))
	if err != nil {
		t.Fatalf("ParseClientMessage() error = %v", err)
	}
	if msg.Selection == nil {
		t.Fatal("Selection is nil")
	}
	if msg.Selection.Start != 2 || msg.Selection.End != 7 {
		t.Errorf("Selection = %+v, want {2 7}", msg.Selection)
	}
}

func TestPresenceSnapshotMessage_NeverNil(t *testing.T) {
	msg := presenceSnapshotMessage(nil, nil)
	if msg.Users == nil {
		t.Error("Users is nil, want an empty slice so the frame encodes as []")
	}
	if msg.Cursors == nil {
		t.Error("Cursors is nil, want an empty map so the frame encodes as {}")
	}
}
