package queue

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Barneycle/ganapp-core/internal/errors"
	"github.com/Barneycle/ganapp-core/internal/models"
	"github.com/Barneycle/ganapp-core/internal/store"
	"github.com/Barneycle/ganapp-core/internal/sync/conflict"
)

func newTestQueue(t *testing.T) (*Queue, *store.Store) {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "queue.db"), 5*time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	cfg := &Config{MaxAttempts: 3, BackoffBase: time.Minute, BackoffCap: 4 * time.Minute}
	q := NewQueue(st, NewRegistry(), conflict.NewResolver(), cfg)
	return q, st
}

func regPayload(t *testing.T, id, eventID, userID, status string) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(&models.Registration{
		ID:           models.UUID(id),
		EventID:      models.UUID(eventID),
		UserID:       models.UUID(userID),
		Status:       status,
		RegisteredAt: time.Now().Unix(),
		UpdatedAt:    time.Now().Unix(),
	})
	require.NoError(t, err)
	return raw
}

func surveyPayload(t *testing.T, id string, updatedAt int64) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(&models.SurveyResponse{
		ID:           models.UUID(id),
		SurveyID:     "survey-1",
		EventID:      "ev-1",
		RespondentID: "user-1",
		Answers:      json.RawMessage(`{"q1":"yes"}`),
		SubmittedAt:  updatedAt,
		UpdatedAt:    updatedAt,
	})
	require.NoError(t, err)
	return raw
}

func enqueue(t *testing.T, q *Queue, dt models.DataType, op models.Operation, payload json.RawMessage) *models.QueuedOperation {
	t.Helper()
	entry, err := q.Enqueue(&models.QueuedOperation{
		DataType:  dt,
		Operation: op,
		Payload:   payload,
	})
	require.NoError(t, err)
	return entry
}

// makeDue rewinds queue timestamps so backoff windows have expired.
func makeDue(t *testing.T, st *store.Store) {
	t.Helper()
	_, err := st.DB().Exec(`UPDATE sync_queue SET next_retry_at = 0`)
	require.NoError(t, err)
}

// recordingApplier records the order entries were applied in and
// returns the configured error, keyed by payload id when errs is set.
type recordingApplier struct {
	mu      sync.Mutex
	applied []models.UUID
	forced  []models.UUID
	err     error
	errs    map[models.UUID]error
	block   chan struct{}
}

func (a *recordingApplier) Apply(_ context.Context, op *models.QueuedOperation) error {
	if a.block != nil {
		<-a.block
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.applied = append(a.applied, op.PayloadID())
	if a.errs != nil {
		return a.errs[op.PayloadID()]
	}
	return a.err
}

func (a *recordingApplier) order() []models.UUID {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]models.UUID(nil), a.applied...)
}

// forcingApplier rejects plain applies and accepts forced ones.
type forcingApplier struct {
	recordingApplier
	forceErr error
}

func (a *forcingApplier) ForceApply(_ context.Context, op *models.QueuedOperation) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.forced = append(a.forced, op.PayloadID())
	return a.forceErr
}

func registerForAll(q *Queue, a Applier) {
	for _, dt := range []models.DataType{
		models.DataTypeEvent, models.DataTypeRegistration,
		models.DataTypeSurveyResponse, models.DataTypeAttendanceLog,
		models.DataTypeCertificate,
	} {
		q.appliers.Register(dt, a)
	}
}

func TestEnqueue_validation(t *testing.T) {
	q, _ := newTestQueue(t)

	_, err := q.Enqueue(nil)
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))

	_, err = q.Enqueue(&models.QueuedOperation{DataType: "bogus", Operation: models.OperationCreate, Payload: []byte(`{}`)})
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))

	_, err = q.Enqueue(&models.QueuedOperation{DataType: models.DataTypeEvent, Operation: "noop", Payload: []byte(`{}`)})
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))

	_, err = q.Enqueue(&models.QueuedOperation{DataType: models.DataTypeEvent, Operation: models.OperationCreate})
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))
}

func TestEnqueue_fillsDefaults(t *testing.T) {
	q, _ := newTestQueue(t)

	entry := enqueue(t, q, models.DataTypeRegistration, models.OperationCreate,
		regPayload(t, "reg-1", "ev-1", "user-1", models.RegistrationStatusRegistered))

	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, "event_registrations", entry.Table)
	assert.Equal(t, models.PriorityHigh, entry.Priority)
	assert.Equal(t, 3, entry.MaxAttempts)
	assert.Equal(t, models.QueueStatusPending, entry.Status)

	count, err := q.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestDrain_appliesInPriorityOrder(t *testing.T) {
	q, st := newTestQueue(t)
	applier := &recordingApplier{}
	registerForAll(q, applier)

	// Enqueued low first, but the high priority registration must
	// drain before the survey, and the survey before the certificate.
	enqueue(t, q, models.DataTypeCertificate, models.OperationCreate,
		json.RawMessage(`{"id":"cert-1","event_id":"ev-1","user_id":"user-1","serial_number":"GA-001","status":"issued","issued_at":1,"updated_at":1}`))
	enqueue(t, q, models.DataTypeSurveyResponse, models.OperationCreate, surveyPayload(t, "sr-1", 100))
	enqueue(t, q, models.DataTypeRegistration, models.OperationCreate,
		regPayload(t, "reg-1", "ev-1", "user-1", models.RegistrationStatusRegistered))

	res, err := q.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Applied)
	assert.Equal(t, []models.UUID{"reg-1", "sr-1", "cert-1"}, applier.order())

	// Applied entries leave the queue and land in the local cache.
	count, err := q.Count()
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	reg, err := st.GetRegistration("reg-1")
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationStatusRegistered, reg.Status)
}

func TestDrain_transientFailureSchedulesRetry(t *testing.T) {
	q, st := newTestQueue(t)
	applier := &recordingApplier{err: errors.New("connection reset")}
	registerForAll(q, applier)

	entry := enqueue(t, q, models.DataTypeRegistration, models.OperationCreate,
		regPayload(t, "reg-1", "ev-1", "user-1", models.RegistrationStatusRegistered))

	res, err := q.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 0, res.Applied)

	got, err := q.Get(entry.ID)
	require.NoError(t, err)
	assert.Equal(t, models.QueueStatusFailed, got.Status)
	assert.Equal(t, 1, got.Attempts)
	assert.Contains(t, got.LastError, "connection reset")
	assert.Greater(t, got.NextRetryAt, time.Now().Unix())

	// Still backing off, so the next drain touches nothing.
	res, err = q.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Failed+res.Applied+res.Released)

	// Once the backoff expires the entry is released and applied.
	applier.err = nil
	makeDue(t, st)
	res, err = q.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Released)
	assert.Equal(t, 1, res.Applied)
}

func TestDrain_failuresAreIndependent(t *testing.T) {
	q, _ := newTestQueue(t)
	applier := &recordingApplier{errs: map[models.UUID]error{
		"reg-bad": errors.New("boom"),
	}}
	registerForAll(q, applier)

	enqueue(t, q, models.DataTypeRegistration, models.OperationCreate,
		regPayload(t, "reg-bad", "ev-1", "user-1", models.RegistrationStatusRegistered))
	good := enqueue(t, q, models.DataTypeRegistration, models.OperationCreate,
		regPayload(t, "reg-good", "ev-1", "user-2", models.RegistrationStatusRegistered))

	res, err := q.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Applied)
	assert.Equal(t, 1, res.Failed)

	_, err = q.Get(good.ID)
	assert.True(t, apperrors.Is(err, apperrors.ErrQueueEntryNotFound),
		"applied entry should be gone")

	failed, err := q.List(models.QueueStatusFailed)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, models.UUID("reg-bad"), failed[0].PayloadID())
}

func TestDrain_exhaustionNeedsManualRetry(t *testing.T) {
	q, st := newTestQueue(t)
	q.cfg.MaxAttempts = 2
	applier := &recordingApplier{err: errors.New("boom")}
	registerForAll(q, applier)

	entry := enqueue(t, q, models.DataTypeRegistration, models.OperationCreate,
		regPayload(t, "reg-1", "ev-1", "user-1", models.RegistrationStatusRegistered))

	for i := 0; i < 2; i++ {
		makeDue(t, st)
		_, err := q.Drain(context.Background())
		require.NoError(t, err)
	}

	got, err := q.Get(entry.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Attempts)
	assert.True(t, got.Exhausted())

	// Exhausted entries are not auto-released even when due.
	makeDue(t, st)
	res, err := q.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Released)
	assert.Equal(t, 0, res.Failed)

	// A manual retry resets the budget and drains clean.
	applier.err = nil
	require.NoError(t, q.Retry(entry.ID))
	res, err = q.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Applied)
}

func TestDrain_conflictServerWins(t *testing.T) {
	q, st := newTestQueue(t)

	remote := regPayload(t, "reg-1", "ev-1", "user-1", models.RegistrationStatusWaitlisted)
	applier := &recordingApplier{err: apperrors.Conflict("event is at capacity", remote)}
	registerForAll(q, applier)

	// The optimistic local row says registered.
	local := regPayload(t, "reg-1", "ev-1", "user-1", models.RegistrationStatusRegistered)
	require.NoError(t, st.MirrorRemote(models.DataTypeRegistration, local))
	enqueue(t, q, models.DataTypeRegistration, models.OperationCreate, local)

	res, err := q.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.ServerWins)
	assert.Equal(t, 0, res.Applied)

	// The server's waitlisted copy replaced the optimistic row.
	reg, err := st.GetRegistration("reg-1")
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationStatusWaitlisted, reg.Status)

	count, err := q.Count()
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	notices, err := st.ListUnseenNotices()
	require.NoError(t, err)
	require.Len(t, notices, 1)
	assert.Equal(t, models.NoticeResolutionServerWins, notices[0].Resolution)
	assert.Equal(t, "event is at capacity", notices[0].Reason)
}

func TestDrain_remoteGoneDiscards(t *testing.T) {
	q, st := newTestQueue(t)
	applier := &recordingApplier{err: apperrors.New(apperrors.ErrRemoteGone, "event was deleted")}
	registerForAll(q, applier)

	event := &models.Event{
		ID: "ev-1", Title: "Orientation", OrganizerID: "org-1",
		Status: models.EventStatusScheduled, StartsAt: 100, EndsAt: 200,
		CreatedAt: 1, UpdatedAt: 1,
	}
	require.NoError(t, st.SaveEvent(event))

	payload, err := json.Marshal(event)
	require.NoError(t, err)
	enqueue(t, q, models.DataTypeEvent, models.OperationUpdate, payload)

	res, err := q.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Discarded)

	// The orphaned local copy is gone and the user gets a notice.
	_, err = st.GetEvent("ev-1")
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))

	notices, err := st.ListUnseenNotices()
	require.NoError(t, err)
	require.Len(t, notices, 1)
	assert.Equal(t, models.NoticeResolutionDiscarded, notices[0].Resolution)
	assert.Equal(t, "event was deleted", notices[0].Reason)
}

func TestDrain_lastWriteWinsForceApplies(t *testing.T) {
	q, st := newTestQueue(t)

	remote := surveyPayload(t, "sr-1", 100)
	applier := &forcingApplier{
		recordingApplier: recordingApplier{err: apperrors.Conflict("response already submitted", remote)},
	}
	registerForAll(q, applier)

	// Local submission is newer than the remote copy, so it wins and
	// is pushed through without a notice.
	enqueue(t, q, models.DataTypeSurveyResponse, models.OperationCreate, surveyPayload(t, "sr-1", 200))

	res, err := q.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Applied)
	assert.Equal(t, []models.UUID{"sr-1"}, applier.forced)

	sr, err := st.GetSurveyResponse("sr-1")
	require.NoError(t, err)
	assert.Equal(t, int64(200), sr.UpdatedAt)

	notices, err := st.ListUnseenNotices()
	require.NoError(t, err)
	assert.Empty(t, notices)
}

func TestDrain_lastWriteWinsRemoteNewer(t *testing.T) {
	q, st := newTestQueue(t)

	remote := surveyPayload(t, "sr-1", 900)
	applier := &recordingApplier{err: apperrors.Conflict("response already submitted", remote)}
	registerForAll(q, applier)

	enqueue(t, q, models.DataTypeSurveyResponse, models.OperationCreate, surveyPayload(t, "sr-1", 100))

	res, err := q.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.ServerWins)

	// Local cache carries the remote's newer answers.
	sr, err := st.GetSurveyResponse("sr-1")
	require.NoError(t, err)
	assert.Equal(t, int64(900), sr.UpdatedAt)

	notices, err := st.ListUnseenNotices()
	require.NoError(t, err)
	require.Len(t, notices, 1)
}

func TestDrain_secondRejectionEndsForceLoop(t *testing.T) {
	q, _ := newTestQueue(t)

	// Local is newer so the resolver rules apply-local, but the
	// applier has no ForceApply and the server rejects the plain retry
	// too. The drain must settle for the server instead of looping.
	remote := surveyPayload(t, "sr-1", 100)
	applier := &recordingApplier{err: apperrors.Conflict("response already submitted", remote)}
	registerForAll(q, applier)

	enqueue(t, q, models.DataTypeSurveyResponse, models.OperationCreate, surveyPayload(t, "sr-1", 9999))

	res, err := q.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.ServerWins)
	assert.Len(t, applier.order(), 2)

	count, err := q.Count()
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestDrain_noApplierFailsEntry(t *testing.T) {
	q, _ := newTestQueue(t)

	entry := enqueue(t, q, models.DataTypeCertificate, models.OperationCreate,
		json.RawMessage(`{"id":"cert-1"}`))

	res, err := q.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)

	got, err := q.Get(entry.ID)
	require.NoError(t, err)
	assert.Contains(t, got.LastError, "no applier registered")
}

func TestDrain_singleFlight(t *testing.T) {
	q, _ := newTestQueue(t)
	applier := &recordingApplier{block: make(chan struct{})}
	registerForAll(q, applier)

	enqueue(t, q, models.DataTypeRegistration, models.OperationCreate,
		regPayload(t, "reg-1", "ev-1", "user-1", models.RegistrationStatusRegistered))

	done := make(chan *DrainResult, 1)
	go func() {
		res, err := q.Drain(context.Background())
		if err != nil {
			done <- &DrainResult{}
			return
		}
		done <- res
	}()

	require.Eventually(t, q.Draining, 2*time.Second, time.Millisecond)

	// A concurrent drain is refused but queues a rerun.
	_, err := q.Drain(context.Background())
	assert.True(t, apperrors.Is(err, apperrors.ErrDrainInProgress))

	enqueue(t, q, models.DataTypeRegistration, models.OperationCreate,
		regPayload(t, "reg-2", "ev-1", "user-2", models.RegistrationStatusRegistered))
	close(applier.block)

	select {
	case res := <-done:
		assert.Equal(t, 2, res.Applied, "the running drain picks up work queued behind it")
	case <-time.After(5 * time.Second):
		t.Fatal("drain did not finish")
	}
	assert.False(t, q.Draining())
}

func TestDrain_contextCancel(t *testing.T) {
	q, _ := newTestQueue(t)
	applier := &recordingApplier{}
	registerForAll(q, applier)

	enqueue(t, q, models.DataTypeRegistration, models.OperationCreate,
		regPayload(t, "reg-1", "ev-1", "user-1", models.RegistrationStatusRegistered))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := q.Drain(ctx)
	require.Error(t, err)
	assert.False(t, q.Draining())

	// Entry is untouched and drains fine later.
	res, err := q.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Applied)
}

func TestRecover_requeuesInFlight(t *testing.T) {
	q, st := newTestQueue(t)

	entry := enqueue(t, q, models.DataTypeRegistration, models.OperationCreate,
		regPayload(t, "reg-1", "ev-1", "user-1", models.RegistrationStatusRegistered))
	require.NoError(t, st.MarkInFlight(entry.ID))

	n, err := q.Recover()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := q.Get(entry.ID)
	require.NoError(t, err)
	assert.Equal(t, models.QueueStatusPending, got.Status)

	// The replay carries the original entry id, so a remote deduping on
	// it is safe under at-least-once delivery.
	var replayed []models.UUID
	q.Appliers().RegisterFunc(models.DataTypeRegistration,
		func(_ context.Context, op *models.QueuedOperation) error {
			replayed = append(replayed, op.ID)
			return nil
		})

	res, err := q.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Applied)
	assert.Equal(t, []models.UUID{entry.ID}, replayed)
}

func TestRetryAll(t *testing.T) {
	q, _ := newTestQueue(t)
	applier := &recordingApplier{err: errors.New("boom")}
	registerForAll(q, applier)

	a := enqueue(t, q, models.DataTypeRegistration, models.OperationCreate,
		regPayload(t, "reg-1", "ev-1", "user-1", models.RegistrationStatusRegistered))
	b := enqueue(t, q, models.DataTypeRegistration, models.OperationCreate,
		regPayload(t, "reg-2", "ev-1", "user-2", models.RegistrationStatusRegistered))

	_, err := q.Drain(context.Background())
	require.NoError(t, err)

	n, err := q.RetryAll()
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	for _, id := range []models.UUID{a.ID, b.ID} {
		got, err := q.Get(id)
		require.NoError(t, err)
		assert.Equal(t, models.QueueStatusPending, got.Status)
		assert.Equal(t, 0, got.Attempts)
	}
}

func TestSubscribe_seesSnapshots(t *testing.T) {
	q, _ := newTestQueue(t)
	applier := &recordingApplier{}
	registerForAll(q, applier)

	ch, cancel := q.Subscribe()
	defer cancel()

	enqueue(t, q, models.DataTypeRegistration, models.OperationCreate,
		regPayload(t, "reg-1", "ev-1", "user-1", models.RegistrationStatusRegistered))

	snap := <-ch
	require.Len(t, snap.Entries, 1)
	assert.Equal(t, 1, snap.Count)
	assert.Equal(t, models.QueueStatusPending, snap.Entries[0].Status)

	_, err := q.Drain(context.Background())
	require.NoError(t, err)

	// Latest-wins delivery: keep reading until the drained state shows.
	deadline := time.After(2 * time.Second)
	for {
		select {
		case snap := <-ch:
			if snap.Count == 0 && !snap.Draining {
				assert.Empty(t, snap.Entries)
				return
			}
		case <-deadline:
			t.Fatal("never observed an empty queue snapshot")
		}
	}
}

func TestSubscribe_cancelClosesChannel(t *testing.T) {
	q, _ := newTestQueue(t)

	ch, cancel := q.Subscribe()
	cancel()
	_, open := <-ch
	assert.False(t, open)
	cancel()
}

func TestBackoffDelay(t *testing.T) {
	q, _ := newTestQueue(t)

	assert.Equal(t, time.Minute, q.backoffDelay(0))
	assert.Equal(t, time.Minute, q.backoffDelay(1))
	assert.Equal(t, 2*time.Minute, q.backoffDelay(2))
	assert.Equal(t, 4*time.Minute, q.backoffDelay(3))
	assert.Equal(t, 4*time.Minute, q.backoffDelay(4))
	assert.Equal(t, 4*time.Minute, q.backoffDelay(10))
}
