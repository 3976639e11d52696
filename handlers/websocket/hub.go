package websocket

import (
	"context"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"

	"collabdoc-server/broker"
	"collabdoc-server/collab"
	"collabdoc-server/core"
)

// Hub owns the node-local side of room coordination: which sessions are
// in which document on this node, local fan-out to them, and the broker
// subscription lifecycle (subscribe on first local member, unsubscribe
// when the room empties). It is constructed and injected, never a
// package-level singleton.
type Hub struct {
	nodeID string

	registry *collab.RoomRegistry
	presence *collab.PresenceStore
	cursors  *collab.CursorStore
	cache    *collab.DocumentCache
	writer   *collab.DebouncedWriter
	broker   broker.Broker

	chat  core.ChatStore
	users core.UserStore

	mu      sync.RWMutex
	members map[string]map[string]*Session // documentID -> connID -> session
}

func NewHub(
	registry *collab.RoomRegistry,
	presence *collab.PresenceStore,
	cursors *collab.CursorStore,
	cache *collab.DocumentCache,
	writer *collab.DebouncedWriter,
	brk broker.Broker,
	chat core.ChatStore,
	users core.UserStore,
) *Hub {
	return &Hub{
		nodeID:   ulid.Make().String(),
		registry: registry,
		presence: presence,
		cursors:  cursors,
		cache:    cache,
		writer:   writer,
		broker:   brk,
		chat:     chat,
		users:    users,
		members:  make(map[string]map[string]*Session),
	}
}

func (h *Hub) NodeID() string { return h.nodeID }

func (h *Hub) Registry() *collab.RoomRegistry { return h.registry }

// NewSession binds a freshly accepted connection to the hub.
func (h *Hub) NewSession(send sender) *Session {
	return &Session{
		hub:    h,
		send:   send,
		connID: ulid.Make().String(),
		state:  StateConnected,
	}
}

func (h *Hub) join(s *Session, documentID string) {
	h.mu.Lock()
	first := len(h.members[documentID]) == 0
	if h.members[documentID] == nil {
		h.members[documentID] = make(map[string]*Session)
	}
	h.members[documentID][s.connID] = s
	h.mu.Unlock()

	h.registry.Join(documentID, s.userID)

	if first {
		if err := h.broker.Subscribe(documentID, h); err != nil {
			logrus.WithError(err).WithField("document_id", documentID).Warn("broker subscribe failed, cross-node events disabled for room")
		}
	}
}

func (h *Hub) leave(s *Session, documentID string) {
	h.mu.Lock()
	empty := false
	if room, ok := h.members[documentID]; ok {
		delete(room, s.connID)
		if len(room) == 0 {
			delete(h.members, documentID)
			empty = true
		}
	}
	h.mu.Unlock()

	h.registry.Leave(documentID, s.userID)

	if empty {
		h.broker.Unsubscribe(documentID)
		// Nobody local is editing anymore; push the pending write out now.
		h.writer.Flush(documentID)
	}
}

// broadcastLocal delivers the message to every session in the document's
// room on this node, except the connection named by exclude.
func (h *Hub) broadcastLocal(documentID string, msg ServerMessage, exclude string) {
	h.mu.RLock()
	sessions := make([]*Session, 0, len(h.members[documentID]))
	for connID, sess := range h.members[documentID] {
		if connID == exclude {
			continue
		}
		sessions = append(sessions, sess)
	}
	h.mu.RUnlock()

	for _, sess := range sessions {
		sess.send.Send(msg)
	}
}

func (h *Hub) publishChange(ctx context.Context, ev broker.ChangeEvent) {
	if err := h.broker.PublishChange(ctx, ev); err != nil {
		logrus.WithError(err).WithField("document_id", ev.DocumentID).Warn("failed to publish change event")
	}
}

func (h *Hub) publishCursor(ctx context.Context, ev broker.CursorEvent) {
	if err := h.broker.PublishCursor(ctx, ev); err != nil {
		logrus.WithError(err).WithField("document_id", ev.DocumentID).Warn("failed to publish cursor event")
	}
}

// HandleChange re-broadcasts a change produced on another node to the
// local room. Deliveries of this node's own publishes are dropped, so
// local members see each event exactly once.
func (h *Hub) HandleChange(ev broker.ChangeEvent) {
	if ev.Origin == h.nodeID {
		return
	}
	h.broadcastLocal(ev.DocumentID, changedMessage(ev), "")
}

func (h *Hub) HandleCursor(ev broker.CursorEvent) {
	if ev.Origin == h.nodeID {
		return
	}
	h.broadcastLocal(ev.DocumentID, cursorUpdatedMessage(ev.Cursor), "")
}
