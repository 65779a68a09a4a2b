// Package handlers provides REST API handlers for conflict notices.
package handlers

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/Barneycle/ganapp-core/internal/errors"
	"github.com/Barneycle/ganapp-core/internal/models"
	"github.com/Barneycle/ganapp-core/internal/sync"
)

// NoticeHandler surfaces conflict notices to the shell.
type NoticeHandler struct {
	core *sync.Syncer
}

// NewNoticeHandler creates a new NoticeHandler.
func NewNoticeHandler(core *sync.Syncer) *NoticeHandler {
	return &NoticeHandler{core: core}
}

// ListNotices handles GET /api/notices
// Returns undismissed conflict notices, oldest first.
func (h *NoticeHandler) ListNotices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	notices, err := h.core.Notices()
	if err != nil {
		http.Error(w, "Failed to list notices", http.StatusInternalServerError)
		return
	}
	if notices == nil {
		notices = []*models.SyncNotice{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(notices)
}

// Dismiss handles POST /api/notices/dismiss
// Marks one notice seen; it never resurfaces.
func (h *NoticeHandler) Dismiss(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var request struct {
		ID models.UUID `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil || request.ID == "" {
		http.Error(w, "id is required", http.StatusBadRequest)
		return
	}

	if err := h.core.DismissNotice(request.ID); err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			http.Error(w, "notice not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to dismiss notice", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "dismissed"})
}
