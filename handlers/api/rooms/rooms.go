package rooms

import (
	"net/http"
	"sort"

	"github.com/go-chi/render"

	"collabdoc-server/collab"
)

type RoomInfo struct {
	ID          string `json:"id"`
	LocalUsers  int    `json:"localUsers"`
	ActiveUsers int    `json:"activeUsers"`
}

// HandleList reports the rooms with members on this node, joined with
// the cross-node presence count, busiest first.
func HandleList(registry *collab.RoomRegistry, presence *collab.PresenceStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ids := registry.ActiveRooms()

		rooms := make([]RoomInfo, 0, len(ids))
		for _, id := range ids {
			rooms = append(rooms, RoomInfo{
				ID:          id,
				LocalUsers:  registry.MemberCount(id),
				ActiveUsers: presence.ActiveCount(r.Context(), id),
			})
		}

		sort.Slice(rooms, func(i, j int) bool {
			if rooms[i].ActiveUsers == rooms[j].ActiveUsers {
				return rooms[i].ID < rooms[j].ID
			}
			return rooms[i].ActiveUsers > rooms[j].ActiveUsers
		})

		render.JSON(w, r, rooms)
	}
}
