package collab

import "sync"

// RoomRegistry maps documents to the users connected on this node. It
// keeps a reverse index so a disconnecting user's room is found without
// scanning. A room with no members is removed immediately.
type RoomRegistry struct {
	mu    sync.RWMutex
	rooms map[string]map[string]struct{} // documentID -> userIDs
	users map[string]map[string]struct{} // userID -> documentIDs
}

func NewRoomRegistry() *RoomRegistry {
	return &RoomRegistry{
		rooms: make(map[string]map[string]struct{}),
		users: make(map[string]map[string]struct{}),
	}
}

func (r *RoomRegistry) Join(documentID, userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.rooms[documentID] == nil {
		r.rooms[documentID] = make(map[string]struct{})
	}
	r.rooms[documentID][userID] = struct{}{}

	if r.users[userID] == nil {
		r.users[userID] = make(map[string]struct{})
	}
	r.users[userID][documentID] = struct{}{}
}

// Leave removes the user and reports whether the room became empty (and
// was therefore dropped).
func (r *RoomRegistry) Leave(documentID, userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	empty := false
	if members, ok := r.rooms[documentID]; ok {
		delete(members, userID)
		if len(members) == 0 {
			delete(r.rooms, documentID)
			empty = true
		}
	}
	if docs, ok := r.users[userID]; ok {
		delete(docs, documentID)
		if len(docs) == 0 {
			delete(r.users, userID)
		}
	}
	return empty
}

func (r *RoomRegistry) MembersOf(documentID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := r.rooms[documentID]
	if len(members) == 0 {
		return nil
	}
	out := make([]string, 0, len(members))
	for userID := range members {
		out = append(out, userID)
	}
	return out
}

func (r *RoomRegistry) MemberCount(documentID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[documentID])
}

func (r *RoomRegistry) ActiveRooms() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.rooms))
	for documentID := range r.rooms {
		out = append(out, documentID)
	}
	return out
}
