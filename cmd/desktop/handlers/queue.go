// Package handlers provides REST API handlers for queue inspection.
package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/Barneycle/ganapp-core/internal/models"
	"github.com/Barneycle/ganapp-core/internal/sync/queue"
)

// QueueHandler exposes the sync queue read-only.
type QueueHandler struct {
	queue *queue.Queue
}

// NewQueueHandler creates a new QueueHandler.
func NewQueueHandler(q *queue.Queue) *QueueHandler {
	return &QueueHandler{queue: q}
}

// GetQueue handles GET /api/queue
// Returns the queue snapshot in drain order. The optional status query
// parameter filters entries (comma separated, e.g. status=failed);
// count always reports every unapplied entry regardless of the filter.
func (h *QueueHandler) GetQueue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	statuses, err := parseStatuses(r.URL.Query().Get("status"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	snap, err := h.queue.Stats()
	if err != nil {
		http.Error(w, "Failed to read queue", http.StatusInternalServerError)
		return
	}

	if len(statuses) > 0 {
		entries, err := h.queue.List(statuses...)
		if err != nil {
			http.Error(w, "Failed to read queue", http.StatusInternalServerError)
			return
		}
		snap.Entries = entries
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(snap)
}

// GetCount handles GET /api/queue/count
// Returns the pending badge count.
func (h *QueueHandler) GetCount(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	count, err := h.queue.Count()
	if err != nil {
		http.Error(w, "Failed to count queue", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int{"count": count})
}

// parseStatuses turns a comma separated status filter into queue
// statuses, rejecting unknown values.
func parseStatuses(raw string) ([]models.QueueStatus, error) {
	if raw == "" {
		return nil, nil
	}

	var statuses []models.QueueStatus
	for _, part := range strings.Split(raw, ",") {
		switch s := models.QueueStatus(strings.TrimSpace(part)); s {
		case models.QueueStatusPending, models.QueueStatusInFlight, models.QueueStatusFailed:
			statuses = append(statuses, s)
		default:
			return nil, &badStatusError{value: string(s)}
		}
	}
	return statuses, nil
}

type badStatusError struct {
	value string
}

func (e *badStatusError) Error() string {
	return "unknown queue status " + e.value
}
