package documents

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"

	"collabdoc-server/collab"
	"collabdoc-server/core"
)

type (
	DocumentResponse struct {
		ID      string `json:"id"`
		Content string `json:"content"`
		Cached  bool   `json:"cached"`
	}

	UpdateRequest struct {
		Content  string `json:"content"`
		EditorID string `json:"editorId"`
	}
)

// HandleGet serves document content through the read-through cache: a
// hit skips the store, a miss repopulates the cache on the way out.
func HandleGet(store core.DocumentStore, cache *collab.DocumentCache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Document id is required"})
			return
		}

		if content, ok := cache.Get(r.Context(), id); ok {
			render.JSON(w, r, DocumentResponse{ID: id, Content: content, Cached: true})
			return
		}

		doc, err := store.GetDocument(r.Context(), id)
		if err != nil {
			if errors.Is(err, core.ErrNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, map[string]string{"error": "Document not found"})
				return
			}
			logrus.WithError(err).WithField("document_id", id).Error("Failed to retrieve document")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to retrieve document"})
			return
		}

		cache.Put(r.Context(), id, doc.Content)
		render.JSON(w, r, DocumentResponse{ID: id, Content: doc.Content})
	}
}

// HandleUpdate commits a content write and invalidates the cache before
// success is reported, so no subsequent reader can see the old snapshot.
func HandleUpdate(store core.DocumentStore, cache *collab.DocumentCache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Document id is required"})
			return
		}

		var req UpdateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Invalid request body"})
			return
		}

		if err := store.UpdateDocumentContent(r.Context(), id, req.Content, req.EditorID); err != nil {
			logrus.WithError(err).WithField("document_id", id).Error("Failed to update document")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to update document"})
			return
		}
		cache.Invalidate(r.Context(), id)

		render.JSON(w, r, map[string]string{"status": "ok"})
	}
}

// HandleListChat returns the persisted chat log for a document, oldest
// first. The optional limit query parameter caps the result.
func HandleListChat(store core.ChatStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Document id is required"})
			return
		}

		limit := 50
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, map[string]string{"error": "Invalid limit"})
				return
			}
			limit = n
		}

		messages, err := store.ListChatMessages(r.Context(), id, limit)
		if err != nil {
			logrus.WithError(err).WithField("document_id", id).Error("Failed to list chat messages")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to list chat messages"})
			return
		}
		if messages == nil {
			messages = []core.ChatMessage{}
		}
		render.JSON(w, r, messages)
	}
}
