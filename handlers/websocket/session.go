package websocket

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"collabdoc-server/broker"
	"collabdoc-server/core"
)

type State int

const (
	StateConnected State = iota
	StateIdentified
	StateRoomJoined
	StateDisconnected
)

// sender is the outbound half of a connection. Send reports false when
// the message was dropped because the connection is going away.
type sender interface {
	Send(msg ServerMessage) bool
}

// Session is the per-connection state machine. All methods are invoked
// from the connection's read loop, one message at a time, so events from
// a single connection are processed in submission order and no internal
// locking is needed on the session fields themselves.
type Session struct {
	hub    *Hub
	send   sender
	connID string

	state      State
	userID     string
	username   string
	documentID string
}

func (s *Session) State() State { return s.state }

// Dispatch routes one validated client message to the matching
// operation.
func (s *Session) Dispatch(ctx context.Context, msg *ClientMessage) {
	switch msg.Type {
	case TypeIdentify:
		s.Identify(msg.UserID, msg.Username)
	case TypeJoin:
		s.JoinRoom(ctx, msg.DocumentID)
	case TypeChange:
		s.SubmitChange(ctx, msg.DocumentID, msg.Content)
	case TypeCursor:
		s.SubmitCursor(ctx, msg.DocumentID, msg.Position, msg.Selection)
	case TypeChatSend:
		s.SubmitChat(ctx, msg.DocumentID, msg.Message)
	}
}

func (s *Session) Identify(userID, username string) {
	if s.state != StateConnected {
		s.send.Send(errorMessage("already identified"))
		return
	}
	s.userID = userID
	s.username = username
	s.state = StateIdentified

	logrus.WithFields(logrus.Fields{
		"conn_id":  s.connID,
		"user_id":  userID,
		"username": username,
	}).Debug("connection identified")
}

// JoinRoom binds the connection to a document room. A connection is in
// at most one room: joining a different document runs the full leave
// sequence for the old one before the new join starts.
func (s *Session) JoinRoom(ctx context.Context, documentID string) {
	switch s.state {
	case StateConnected:
		s.send.Send(errorMessage("not identified"))
		return
	case StateDisconnected:
		return
	}

	if s.documentID == documentID {
		// Re-join of the current room refreshes presence and replays the
		// snapshot without leave/join churn for the other members.
		s.hub.presence.AddPresence(ctx, documentID, s.userID, s.username)
		s.sendSnapshot(ctx, documentID)
		return
	}
	if s.documentID != "" {
		s.leaveRoom(ctx)
	}

	s.hub.join(s, documentID)
	s.documentID = documentID
	s.state = StateRoomJoined

	s.hub.presence.AddPresence(ctx, documentID, s.userID, s.username)
	s.sendSnapshot(ctx, documentID)
	s.hub.broadcastLocal(documentID, userJoinedMessage(s.userID, s.username), s.connID)

	logrus.WithFields(logrus.Fields{
		"conn_id":     s.connID,
		"user_id":     s.userID,
		"document_id": documentID,
	}).Info("joined room")
}

func (s *Session) sendSnapshot(ctx context.Context, documentID string) {
	users := s.hub.presence.ListPresence(ctx, documentID)
	cursors := s.hub.cursors.ListCursors(ctx, documentID)
	s.send.Send(presenceSnapshotMessage(users, cursors))
}

// SubmitChange broadcasts an edit to the other local room members,
// publishes it for other nodes and invalidates the cached snapshot.
// Persistence goes through the debounced writer, decoupled from the
// broadcast path.
func (s *Session) SubmitChange(ctx context.Context, documentID, content string) {
	if !s.requireRoom(documentID) {
		return
	}

	ev := broker.ChangeEvent{
		Origin:     s.hub.nodeID,
		DocumentID: s.documentID,
		UserID:     s.userID,
		Username:   s.username,
		Content:    content,
		Timestamp:  time.Now(),
	}
	s.hub.broadcastLocal(s.documentID, changedMessage(ev), s.connID)
	s.hub.publishChange(ctx, ev)
	s.hub.cache.Invalidate(ctx, s.documentID)
	s.hub.writer.Submit(s.documentID, content, s.userID)
}

func (s *Session) SubmitCursor(ctx context.Context, documentID string, position int, selection *core.Selection) {
	if !s.requireRoom(documentID) {
		return
	}

	cursor := core.CursorInfo{
		UserID:    s.userID,
		Username:  s.username,
		Position:  position,
		Selection: selection,
	}
	s.hub.cursors.UpdateCursor(ctx, s.documentID, cursor)
	s.hub.broadcastLocal(s.documentID, cursorUpdatedMessage(cursor), s.connID)
	s.hub.publishCursor(ctx, broker.CursorEvent{
		Origin:     s.hub.nodeID,
		DocumentID: s.documentID,
		Cursor:     cursor,
	})
}

// SubmitChat persists the message first; only a durably written record
// is broadcast, to every room member including the sender, so all
// clients display the identical canonical copy. On persistence failure
// the sender alone sees an error and nothing else happens.
func (s *Session) SubmitChat(ctx context.Context, documentID, text string) {
	if !s.requireRoom(documentID) {
		return
	}

	msg, err := s.hub.chat.InsertChatMessage(ctx, s.documentID, s.userID, s.username, text)
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"document_id": s.documentID,
			"user_id":     s.userID,
		}).Error("failed to persist chat message")
		s.send.Send(errorMessage("failed to send chat message"))
		return
	}
	s.hub.broadcastLocal(s.documentID, chatNewMessage(msg), "")
}

// requireRoom rejects operations submitted out of order or for a
// document the connection is not bound to.
func (s *Session) requireRoom(documentID string) bool {
	if s.state != StateRoomJoined {
		s.send.Send(errorMessage("not in a room"))
		return false
	}
	if documentID != "" && documentID != s.documentID {
		s.send.Send(errorMessage("not in that room"))
		return false
	}
	return true
}

// Disconnect runs the full leave sequence and marks the user inactive.
// Idempotent: a second call, or a call with no room joined, does
// nothing. Store failures are logged and never block releasing local
// resources.
func (s *Session) Disconnect(ctx context.Context) {
	if s.state == StateDisconnected {
		return
	}

	if s.documentID != "" {
		s.leaveRoom(ctx)
	}
	if s.userID != "" {
		if err := s.hub.users.SetUserActive(ctx, s.userID, false); err != nil {
			logrus.WithError(err).WithField("user_id", s.userID).Warn("failed to mark user inactive")
		}
	}
	s.state = StateDisconnected

	logrus.WithFields(logrus.Fields{
		"conn_id": s.connID,
		"user_id": s.userID,
	}).Debug("connection closed")
}

func (s *Session) leaveRoom(ctx context.Context) {
	documentID := s.documentID

	s.hub.leave(s, documentID)
	s.hub.presence.RemovePresence(ctx, documentID, s.userID)
	s.hub.cursors.RemoveCursor(ctx, documentID, s.userID)
	s.hub.broadcastLocal(documentID, userLeftMessage(s.userID, s.username), s.connID)

	s.documentID = ""
	if s.state == StateRoomJoined {
		s.state = StateIdentified
	}
}
