// Package sync orchestrates offline-first synchronization: the
// write-through path for domain mutations, drain triggers on start and
// on reconnect, and the lifecycle of the pieces underneath.
package sync

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/Barneycle/ganapp-core/internal/errors"
	"github.com/Barneycle/ganapp-core/internal/logging"
	"github.com/Barneycle/ganapp-core/internal/models"
	"github.com/Barneycle/ganapp-core/internal/netmon"
	"github.com/Barneycle/ganapp-core/internal/store"
	"github.com/Barneycle/ganapp-core/internal/sync/queue"
)

// SubmitOutcome tells the caller what happened to a submitted write.
type SubmitOutcome string

const (
	// OutcomeApplied means the remote store accepted the write and the
	// local cache mirrors it.
	OutcomeApplied SubmitOutcome = "applied"

	// OutcomeQueued means the write landed optimistically in the local
	// cache and waits in the queue for a drain.
	OutcomeQueued SubmitOutcome = "queued"
)

// SubmitResult reports how a Submit settled.
type SubmitResult struct {
	Outcome SubmitOutcome           `json:"outcome"`
	Entry   *models.QueuedOperation `json:"entry,omitempty"`
}

// Status is a point-in-time view of the sync core for status surfaces.
type Status struct {
	Online     bool         `json:"online"`
	Network    netmon.State `json:"network"`
	QueueCount int          `json:"queue_count"`
	Draining   bool         `json:"draining"`
}

// Syncer owns the write-through path and the drain triggers. Mutations
// go through Submit; everything else is plumbing that keeps the queue
// moving: recovery and a drain on start, a drain request per
// offline-to-online transition, and a periodic tick so failed entries
// get their next attempt.
type Syncer struct {
	store   *store.Store
	queue   *queue.Queue
	monitor *netmon.Monitor

	drainInterval time.Duration

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	drainCh chan struct{}
	wg      sync.WaitGroup
}

// NewSyncer wires a Syncer over its parts. drainInterval <= 0 falls
// back to one minute.
func NewSyncer(st *store.Store, q *queue.Queue, m *netmon.Monitor, drainInterval time.Duration) *Syncer {
	if drainInterval <= 0 {
		drainInterval = time.Minute
	}
	return &Syncer{
		store:         st,
		queue:         q,
		monitor:       m,
		drainInterval: drainInterval,
		drainCh:       make(chan struct{}, 1),
	}
}

// Register installs the applier that pushes a data type to the remote
// store.
func (s *Syncer) Register(dt models.DataType, a queue.Applier) {
	s.queue.Appliers().Register(dt, a)
}

// Queue exposes the underlying sync queue.
func (s *Syncer) Queue() *queue.Queue {
	return s.queue
}

// Monitor exposes the connectivity monitor.
func (s *Syncer) Monitor() *netmon.Monitor {
	return s.monitor
}

// Store exposes the local cache.
func (s *Syncer) Store() *store.Store {
	return s.store
}

// Submit is the domain write path. Online, the mutation goes straight
// to the remote store and the local cache mirrors it. Offline, or when
// the remote apply fails transiently, the mutation lands optimistically
// in the local cache and is queued for a later drain. Terminal
// rejections of an online submit surface to the caller immediately so
// the UI can react in the moment.
func (s *Syncer) Submit(ctx context.Context, op *models.QueuedOperation) (*SubmitResult, error) {
	if op == nil {
		return nil, apperrors.New(apperrors.ErrValidation, "nil operation")
	}
	if !op.DataType.Valid() {
		return nil, apperrors.New(apperrors.ErrValidation, "unknown data type "+string(op.DataType))
	}
	if !op.Operation.Valid() {
		return nil, apperrors.New(apperrors.ErrValidation, "unknown operation "+string(op.Operation))
	}
	if len(op.Payload) == 0 {
		return nil, apperrors.New(apperrors.ErrValidation, "empty payload")
	}
	// The id doubles as the idempotency key on the wire. Assign it
	// before the first attempt so a queued replay dedupes against a
	// direct apply whose response was lost.
	if op.ID == "" {
		op.ID = models.NewUUID()
	}
	if op.Table == "" {
		op.Table = op.DataType.TableFor()
	}

	if s.monitor.IsOnline() {
		applied, err := s.applyDirect(ctx, op)
		if err != nil {
			return nil, err
		}
		if applied {
			return &SubmitResult{Outcome: OutcomeApplied}, nil
		}
		// Transient remote trouble, treat the submit as offline.
	}

	if err := s.applyLocal(op); err != nil {
		return nil, err
	}
	entry, err := s.queue.Enqueue(op)
	if err != nil {
		return nil, err
	}
	return &SubmitResult{Outcome: OutcomeQueued, Entry: entry}, nil
}

// applyDirect tries the remote write while online. Returns true when
// the remote accepted it, false when the caller should fall back to
// the queue, and an error for terminal rejections.
func (s *Syncer) applyDirect(ctx context.Context, op *models.QueuedOperation) (bool, error) {
	applier, err := s.queue.Appliers().For(op.DataType)
	if err != nil {
		// No applier wired yet, the queue will pick it up later.
		return false, nil
	}

	err = applier.Apply(ctx, op)
	if err == nil {
		if err := s.applyLocal(op); err != nil {
			logging.Error("failed to mirror applied write", err,
				zap.String("data_type", string(op.DataType)))
		}
		return true, nil
	}
	if apperrors.IsTransient(err) {
		logging.Warn("direct apply failed, queueing instead",
			zap.String("data_type", string(op.DataType)),
			zap.String("error", err.Error()),
		)
		return false, nil
	}
	return false, err
}

// applyLocal writes the mutation into the local cache.
func (s *Syncer) applyLocal(op *models.QueuedOperation) error {
	if op.Operation == models.OperationDelete {
		return s.store.RemoveLocal(op.DataType, op.PayloadID())
	}
	return s.store.MirrorRemote(op.DataType, op.Payload)
}

// Start recovers interrupted queue entries, starts the connectivity
// monitor and launches the drain worker. Safe to call once per Stop.
func (s *Syncer) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.stopCh = make(chan struct{})
	stopCh := s.stopCh
	s.mu.Unlock()

	if _, err := s.queue.Recover(); err != nil {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		return err
	}

	s.monitor.Start(ctx)

	s.wg.Add(1)
	go s.run(ctx, stopCh)

	s.RequestDrain()
	logging.Info("sync core started")
	return nil
}

// Stop halts the drain worker and the monitor. Queued entries stay on
// disk for the next start.
func (s *Syncer) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	stopCh := s.stopCh
	s.mu.Unlock()

	close(stopCh)
	s.wg.Wait()
	s.monitor.Stop()
	logging.Info("sync core stopped")
}

// RequestDrain asks the worker for a drain pass without blocking.
// Requests collapse: many calls before the worker wakes cost one pass.
func (s *Syncer) RequestDrain() {
	select {
	case s.drainCh <- struct{}{}:
	default:
	}
}

// run is the drain worker. Remote calls never run inline on a monitor
// notification; the subscription only wakes this goroutine.
func (s *Syncer) run(ctx context.Context, stopCh chan struct{}) {
	defer s.wg.Done()

	states, unsubscribe := s.monitor.Subscribe()
	defer unsubscribe()

	ticker := time.NewTicker(s.drainInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case st := <-states:
			if st.Online() {
				logging.Info("back online, draining queue")
				s.drain(ctx)
			}
		case <-ticker.C:
			s.drain(ctx)
		case <-s.drainCh:
			s.drain(ctx)
		}
	}
}

// drain runs one queue drain if the device is online. A drain already
// in progress is fine: the queue coalesces the request into a rerun.
func (s *Syncer) drain(ctx context.Context) {
	if !s.monitor.IsOnline() {
		return
	}
	if _, err := s.queue.Drain(ctx); err != nil {
		if apperrors.Is(err, apperrors.ErrDrainInProgress) {
			return
		}
		logging.Error("queue drain failed", err)
	}
}

// Status reports the current sync state for status surfaces.
func (s *Syncer) Status() (*Status, error) {
	count, err := s.queue.Count()
	if err != nil {
		return nil, err
	}
	state := s.monitor.State()
	return &Status{
		Online:     state.Online(),
		Network:    state,
		QueueCount: count,
		Draining:   s.queue.Draining(),
	}, nil
}

// Notices returns conflict notices the user has not dismissed yet.
func (s *Syncer) Notices() ([]*models.SyncNotice, error) {
	return s.store.ListUnseenNotices()
}

// DismissNotice marks a notice seen so it never shows again.
func (s *Syncer) DismissNotice(id models.UUID) error {
	return s.store.MarkNoticeSeen(id)
}
