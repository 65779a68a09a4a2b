package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Barneycle/ganapp-core/internal/models"
	"github.com/Barneycle/ganapp-core/internal/sync/queue"
)

func TestQueueHandler_GetQueue(t *testing.T) {
	core, _, _ := newTestCore(t, false)
	handler := NewQueueHandler(core.Queue())

	submitRegistration(t, core, "reg-1")
	submitRegistration(t, core, "reg-2")

	req := httptest.NewRequest(http.MethodGet, "/api/queue", nil)
	w := httptest.NewRecorder()
	handler.GetQueue(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var snap queue.Snapshot
	require.NoError(t, json.NewDecoder(w.Body).Decode(&snap))
	assert.Equal(t, 2, snap.Count)
	require.Len(t, snap.Entries, 2)
	assert.False(t, snap.Draining)
	assert.Equal(t, models.QueueStatusPending, snap.Entries[0].Status)
}

func TestQueueHandler_GetQueue_statusFilter(t *testing.T) {
	core, _, _ := newTestCore(t, false)
	handler := NewQueueHandler(core.Queue())

	submitRegistration(t, core, "reg-1")

	req := httptest.NewRequest(http.MethodGet, "/api/queue?status=failed", nil)
	w := httptest.NewRecorder()
	handler.GetQueue(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var snap queue.Snapshot
	require.NoError(t, json.NewDecoder(w.Body).Decode(&snap))
	assert.Empty(t, snap.Entries)
	// The badge count ignores the filter.
	assert.Equal(t, 1, snap.Count)
}

func TestQueueHandler_GetQueue_badFilter(t *testing.T) {
	core, _, _ := newTestCore(t, false)
	handler := NewQueueHandler(core.Queue())

	req := httptest.NewRequest(http.MethodGet, "/api/queue?status=bogus", nil)
	w := httptest.NewRecorder()
	handler.GetQueue(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "bogus")
}

func TestQueueHandler_GetCount(t *testing.T) {
	core, _, _ := newTestCore(t, false)
	handler := NewQueueHandler(core.Queue())

	submitRegistration(t, core, "reg-1")

	req := httptest.NewRequest(http.MethodGet, "/api/queue/count", nil)
	w := httptest.NewRecorder()
	handler.GetCount(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var response map[string]int
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, 1, response["count"])
}

func TestQueueHandler_methodNotAllowed(t *testing.T) {
	core, _, _ := newTestCore(t, false)
	handler := NewQueueHandler(core.Queue())

	for _, path := range []string{"/api/queue", "/api/queue/count"} {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		w := httptest.NewRecorder()
		if path == "/api/queue" {
			handler.GetQueue(w, req)
		} else {
			handler.GetCount(w, req)
		}
		assert.Equal(t, http.StatusMethodNotAllowed, w.Code, path)
	}
}
