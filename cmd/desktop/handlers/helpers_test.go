// Package handlers tests run against a real sync core backed by a
// temp database, with connectivity and the backend stubbed out.
package handlers

import (
	"context"
	"encoding/json"
	"path/filepath"
	stdsync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Barneycle/ganapp-core/internal/models"
	"github.com/Barneycle/ganapp-core/internal/netmon"
	"github.com/Barneycle/ganapp-core/internal/store"
	"github.com/Barneycle/ganapp-core/internal/sync"
	"github.com/Barneycle/ganapp-core/internal/sync/conflict"
	"github.com/Barneycle/ganapp-core/internal/sync/queue"
)

// stubProber lets a test flip connectivity on demand.
type stubProber struct {
	mu stdsync.Mutex
	st netmon.State
}

func (p *stubProber) set(online bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.st = netmon.State{Connected: online, Reachable: online}
}

func (p *stubProber) Probe(context.Context) netmon.State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.st
}

// stubApplier counts applies and returns the configured error.
type stubApplier struct {
	mu      stdsync.Mutex
	applied int
	err     error
}

func (a *stubApplier) Apply(context.Context, *models.QueuedOperation) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.applied++
	return a.err
}

func (a *stubApplier) setErr(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.err = err
}

func (a *stubApplier) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.applied
}

// newTestCore builds and starts a full sync core. Periodic drains are
// off so only transitions and explicit requests move the queue.
func newTestCore(t *testing.T, online bool) (*sync.Syncer, *stubProber, *stubApplier) {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "bridge.db"), 5*time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	q := queue.NewQueue(st, queue.NewRegistry(), conflict.NewResolver(),
		&queue.Config{MaxAttempts: 3, BackoffBase: time.Minute, BackoffCap: 4 * time.Minute})

	prober := &stubProber{}
	prober.set(online)
	monitor := netmon.NewMonitor(prober, &netmon.MonitorConfig{
		PollInterval: 10 * time.Millisecond,
		Debounce:     20 * time.Millisecond,
	})

	core := sync.NewSyncer(st, q, monitor, time.Hour)

	applier := &stubApplier{}
	for _, dt := range []models.DataType{
		models.DataTypeEvent, models.DataTypeRegistration,
		models.DataTypeSurveyResponse, models.DataTypeAttendanceLog,
		models.DataTypeCertificate,
	} {
		core.Register(dt, applier)
	}

	require.NoError(t, core.Start(context.Background()))
	t.Cleanup(core.Stop)

	if online {
		require.Eventually(t, core.Monitor().IsOnline, 3*time.Second, 5*time.Millisecond)
	}
	return core, prober, applier
}

// submitRegistration pushes one registration through Submit.
func submitRegistration(t *testing.T, core *sync.Syncer, id string) *models.QueuedOperation {
	t.Helper()

	payload, err := json.Marshal(map[string]any{
		"id":            id,
		"event_id":      "ev-1",
		"user_id":       "user-1",
		"status":        "registered",
		"registered_at": time.Now().Unix(),
		"updated_at":    time.Now().Unix(),
	})
	require.NoError(t, err)

	res, err := core.Submit(context.Background(), &models.QueuedOperation{
		DataType:  models.DataTypeRegistration,
		Operation: models.OperationCreate,
		Payload:   payload,
	})
	require.NoError(t, err)
	return res.Entry
}

func queueCount(t *testing.T, core *sync.Syncer) int {
	t.Helper()
	n, err := core.Queue().Count()
	require.NoError(t, err)
	return n
}
