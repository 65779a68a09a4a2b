// Package handlers provides REST API handlers for cached record reads.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	apperrors "github.com/Barneycle/ganapp-core/internal/errors"
	"github.com/Barneycle/ganapp-core/internal/models"
	"github.com/Barneycle/ganapp-core/internal/store"
)

// RecordHandler serves reads from the local cache so the shell renders
// lists and detail views without touching the network.
type RecordHandler struct {
	store *store.Store
}

// NewRecordHandler creates a new RecordHandler.
func NewRecordHandler(st *store.Store) *RecordHandler {
	return &RecordHandler{store: st}
}

// ListRecords handles GET /api/records/{type}
// Lists cached records of one data type. Supports limit and offset plus
// the whitelisted filter parameters status, event_id, user_id and
// survey_id; unknown filter values are skipped rather than rejected.
func (h *RecordHandler) ListRecords(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	dataType := models.DataType(r.PathValue("type"))
	if !dataType.Valid() {
		http.Error(w, "unknown record type "+string(dataType), http.StatusBadRequest)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 || limit > 200 {
		limit = 50
	}
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if offset < 0 {
		offset = 0
	}

	items, count, err := h.list(dataType, filtersFromQuery(r), limit, offset)
	if err != nil {
		http.Error(w, "Failed to list records", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"items":  items,
		"count":  count,
		"limit":  limit,
		"offset": offset,
	})
}

// GetRecord handles GET /api/records/{type}/{id}
// Returns a single cached record.
func (h *RecordHandler) GetRecord(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	dataType := models.DataType(r.PathValue("type"))
	if !dataType.Valid() {
		http.Error(w, "unknown record type "+string(dataType), http.StatusBadRequest)
		return
	}

	record, err := h.get(dataType, models.UUID(r.PathValue("id")))
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			http.Error(w, "Record not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to read record", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(record)
}

func (h *RecordHandler) list(dataType models.DataType, fb *store.FilterBuilder, limit, offset int) (any, int, error) {
	switch dataType {
	case models.DataTypeEvent:
		items, err := h.store.ListEvents(fb, limit, offset)
		if err != nil {
			return nil, 0, err
		}
		if items == nil {
			items = []*models.Event{}
		}
		return items, len(items), nil

	case models.DataTypeRegistration:
		items, err := h.store.ListRegistrations(fb, limit, offset)
		if err != nil {
			return nil, 0, err
		}
		if items == nil {
			items = []*models.Registration{}
		}
		return items, len(items), nil

	case models.DataTypeSurveyResponse:
		items, err := h.store.ListSurveyResponses(fb, limit, offset)
		if err != nil {
			return nil, 0, err
		}
		if items == nil {
			items = []*models.SurveyResponse{}
		}
		return items, len(items), nil

	case models.DataTypeAttendanceLog:
		items, err := h.store.ListAttendanceLogs(fb, limit, offset)
		if err != nil {
			return nil, 0, err
		}
		if items == nil {
			items = []*models.AttendanceLog{}
		}
		return items, len(items), nil

	case models.DataTypeCertificate:
		items, err := h.store.ListCertificates(fb, limit, offset)
		if err != nil {
			return nil, 0, err
		}
		if items == nil {
			items = []*models.Certificate{}
		}
		return items, len(items), nil
	}

	return nil, 0, apperrors.New(apperrors.ErrInvalid, "unknown data type: "+string(dataType))
}

func (h *RecordHandler) get(dataType models.DataType, id models.UUID) (any, error) {
	switch dataType {
	case models.DataTypeEvent:
		return h.store.GetEvent(id)
	case models.DataTypeRegistration:
		return h.store.GetRegistration(id)
	case models.DataTypeSurveyResponse:
		return h.store.GetSurveyResponse(id)
	case models.DataTypeAttendanceLog:
		return h.store.GetAttendanceLog(id)
	case models.DataTypeCertificate:
		return h.store.GetCertificate(id)
	}
	return nil, apperrors.New(apperrors.ErrInvalid, "unknown data type: "+string(dataType))
}

// filtersFromQuery picks the filterable query parameters off the
// request. Empty values never reach the builder.
func filtersFromQuery(r *http.Request) *store.FilterBuilder {
	q := r.URL.Query()
	fb := store.NewFilterBuilder()
	if v := q.Get("status"); v != "" {
		fb.Status(v)
	}
	if v := q.Get("event_id"); v != "" {
		fb.Event(models.UUID(v))
	}
	if v := q.Get("user_id"); v != "" {
		fb.User(models.UUID(v))
	}
	if v := q.Get("survey_id"); v != "" {
		fb.Survey(models.UUID(v))
	}
	return fb
}
