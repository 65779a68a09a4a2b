// Package handlers provides REST API handlers for sync status and operations.
package handlers

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/Barneycle/ganapp-core/internal/errors"
	"github.com/Barneycle/ganapp-core/internal/models"
	"github.com/Barneycle/ganapp-core/internal/sync"
)

// SyncHandler handles sync status and drain operations.
type SyncHandler struct {
	core *sync.Syncer
}

// NewSyncHandler creates a new SyncHandler.
func NewSyncHandler(core *sync.Syncer) *SyncHandler {
	return &SyncHandler{core: core}
}

// GetStatus handles GET /api/sync/status
// Returns connectivity, the pending badge count and whether a drain is
// running.
func (h *SyncHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	status, err := h.core.Status()
	if err != nil {
		http.Error(w, "Failed to read sync status", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}

// Submit handles POST /api/submit
// The bridge write path: applies the mutation remotely when online,
// otherwise writes it locally and queues it for the next drain. The
// response reports which of the two happened; queued submissions get
// 202. Terminal remote rejections come back as HTTP errors, a conflict
// carries the server's authoritative state.
func (h *SyncHandler) Submit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var request struct {
		DataType  models.DataType  `json:"data_type"`
		Operation models.Operation `json:"operation"`
		Payload   json.RawMessage  `json:"payload"`
		Priority  models.Priority  `json:"priority"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if request.Priority != "" && !request.Priority.Valid() {
		http.Error(w, "unknown priority "+string(request.Priority), http.StatusBadRequest)
		return
	}

	result, err := h.core.Submit(r.Context(), &models.QueuedOperation{
		DataType:  request.DataType,
		Operation: request.Operation,
		Payload:   request.Payload,
		Priority:  request.Priority,
	})
	if err != nil {
		switch {
		case apperrors.Is(err, apperrors.ErrValidation), apperrors.Is(err, apperrors.ErrInvalid):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case apperrors.IsConflict(err):
			body := map[string]any{"error": err.Error()}
			if remote := apperrors.RemoteState(err); len(remote) > 0 {
				body["remote"] = json.RawMessage(remote)
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusConflict)
			json.NewEncoder(w).Encode(body)
		case apperrors.IsRemoteGone(err):
			http.Error(w, err.Error(), http.StatusGone)
		default:
			http.Error(w, "Submit failed: "+err.Error(), http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if result.Outcome == sync.OutcomeQueued {
		w.WriteHeader(http.StatusAccepted)
	}
	json.NewEncoder(w).Encode(result)
}

// TriggerDrain handles POST /api/sync/drain
// Runs a drain pass right now and reports what it processed. Refused
// while offline; a drain already in progress picks up the request.
func (h *SyncHandler) TriggerDrain(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if !h.core.Monitor().IsOnline() {
		http.Error(w, "device is offline", http.StatusConflict)
		return
	}

	result, err := h.core.Queue().Drain(r.Context())
	if err != nil {
		if apperrors.Is(err, apperrors.ErrDrainInProgress) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusAccepted)
			json.NewEncoder(w).Encode(map[string]any{
				"status": "already_draining",
			})
			return
		}
		http.Error(w, "Drain failed: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status": "completed",
		"result": result,
	})
}

// Retry handles POST /api/sync/retry
// Releases failed entries back to pending. An entry_id in the body
// retries that entry; an empty body retries every failed entry. Either
// way a drain is requested so the released work gets its attempt.
func (h *SyncHandler) Retry(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var request struct {
		EntryID models.UUID `json:"entry_id"`
	}
	if r.Body != nil {
		// An empty body means "retry everything".
		_ = json.NewDecoder(r.Body).Decode(&request)
	}

	if request.EntryID == "" {
		released, err := h.core.Queue().RetryAll()
		if err != nil {
			http.Error(w, "Retry failed", http.StatusInternalServerError)
			return
		}
		h.core.RequestDrain()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"status":   "retrying",
			"released": released,
		})
		return
	}

	if err := h.core.Queue().Retry(request.EntryID); err != nil {
		if apperrors.Is(err, apperrors.ErrQueueEntryNotFound) {
			http.Error(w, "queue entry not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Retry failed", http.StatusInternalServerError)
		return
	}
	h.core.RequestDrain()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":   "retrying",
		"entry_id": request.EntryID,
	})
}
