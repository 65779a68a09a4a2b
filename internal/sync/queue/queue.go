// Package queue implements the durable retry queue that holds local
// mutations until the remote store accepts them. Entries drain in
// priority order, fail independently, and survive process restarts.
package queue

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/Barneycle/ganapp-core/internal/errors"
	"github.com/Barneycle/ganapp-core/internal/logging"
	"github.com/Barneycle/ganapp-core/internal/models"
	"github.com/Barneycle/ganapp-core/internal/store"
	"github.com/Barneycle/ganapp-core/internal/sync/conflict"
)

// Config tunes retry behavior for queued entries.
type Config struct {
	// MaxAttempts is the retry ceiling stamped on new entries. Entries
	// that exhaust it stay failed until the user retries them.
	MaxAttempts int

	// BackoffBase is the delay after the first failed attempt. Each
	// further failure doubles it up to BackoffCap.
	BackoffBase time.Duration
	BackoffCap  time.Duration
}

// DefaultConfig returns the retry settings used when none are given.
func DefaultConfig() *Config {
	return &Config{
		MaxAttempts: 5,
		BackoffBase: 30 * time.Second,
		BackoffCap:  5 * time.Minute,
	}
}

// Snapshot is the full queue state pushed to subscribers on every
// mutation.
type Snapshot struct {
	Entries  []*models.QueuedOperation `json:"entries"`
	Count    int                       `json:"count"`
	Draining bool                      `json:"draining"`
	TakenAt  int64                     `json:"taken_at"`
}

// DrainResult summarizes one drain pass over the queue.
type DrainResult struct {
	Applied    int `json:"applied"`
	ServerWins int `json:"server_wins"`
	Discarded  int `json:"discarded"`
	Failed     int `json:"failed"`
	Released   int `json:"released"`
}

// Processed returns how many entries left the queue during the pass.
func (r *DrainResult) Processed() int {
	return r.Applied + r.ServerWins + r.Discarded
}

func (r *DrainResult) merge(other *DrainResult) {
	r.Applied += other.Applied
	r.ServerWins += other.ServerWins
	r.Discarded += other.Discarded
	r.Failed += other.Failed
	r.Released += other.Released
}

// Queue is the durable sync queue. All entry state lives in the store;
// the Queue adds the drain state machine, retry backoff and depth
// subscriptions on top.
type Queue struct {
	store    store.SyncStore
	appliers *Registry
	resolver *conflict.Resolver
	cfg      *Config

	// draining enforces the single-drain invariant, rerun coalesces
	// drain requests that arrive while one is running.
	draining atomic.Bool
	rerun    atomic.Bool

	mu      sync.Mutex
	subs    map[int]chan *Snapshot
	nextSub int
}

// NewQueue creates a queue over the given store. A nil config uses
// DefaultConfig.
func NewQueue(st store.SyncStore, appliers *Registry, resolver *conflict.Resolver, cfg *Config) *Queue {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Queue{
		store:    st,
		appliers: appliers,
		resolver: resolver,
		cfg:      cfg,
		subs:     make(map[int]chan *Snapshot),
	}
}

// Enqueue persists a mutation for a later drain. Identity, priority and
// retry ceiling are filled in when the caller leaves them zero.
func (q *Queue) Enqueue(op *models.QueuedOperation) (*models.QueuedOperation, error) {
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
	if op.MaxAttempts <= 0 {
		op.MaxAttempts = q.cfg.MaxAttempts
	}

	if err := q.store.EnqueueOperation(op); err != nil {
		return nil, err
	}

	logging.Info("operation queued",
		zap.String("entry_id", string(op.ID)),
		zap.String("data_type", string(op.DataType)),
		zap.String("operation", string(op.Operation)),
		zap.String("priority", string(op.Priority)),
	)
	q.notify()
	return op, nil
}

// Get returns a queue entry by id.
func (q *Queue) Get(id models.UUID) (*models.QueuedOperation, error) {
	return q.store.GetQueueEntry(id)
}

// List returns queue entries in drain order, optionally filtered by
// status.
func (q *Queue) List(statuses ...models.QueueStatus) ([]*models.QueuedOperation, error) {
	return q.store.ListQueue(statuses...)
}

// Count returns how many entries have not yet reached the server. This
// feeds the pending-changes badge.
func (q *Queue) Count() (int, error) {
	return q.store.CountUnapplied()
}

// Appliers returns the registry the drain resolves appliers from.
func (q *Queue) Appliers() *Registry {
	return q.appliers
}

// Stats captures the current queue state on demand. Status surfaces use
// this; live observers should Subscribe instead.
func (q *Queue) Stats() (*Snapshot, error) {
	return q.snapshot()
}

// Subscribe returns a channel that receives a full queue snapshot after
// every mutation, latest snapshot wins. The returned cancel func
// releases the subscription and closes the channel.
func (q *Queue) Subscribe() (<-chan *Snapshot, func()) {
	q.mu.Lock()
	defer q.mu.Unlock()

	id := q.nextSub
	q.nextSub++
	ch := make(chan *Snapshot, 1)
	q.subs[id] = ch

	cancel := func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		if c, ok := q.subs[id]; ok {
			delete(q.subs, id)
			close(c)
		}
	}
	return ch, cancel
}

// snapshot captures the current queue state.
func (q *Queue) snapshot() (*Snapshot, error) {
	entries, err := q.store.ListQueue()
	if err != nil {
		return nil, err
	}
	count, err := q.store.CountUnapplied()
	if err != nil {
		return nil, err
	}
	return &Snapshot{
		Entries:  entries,
		Count:    count,
		Draining: q.draining.Load(),
		TakenAt:  time.Now().Unix(),
	}, nil
}

// notify pushes the current snapshot to all subscribers without
// blocking. A slow subscriber sees only the latest snapshot.
func (q *Queue) notify() {
	q.mu.Lock()
	noSubs := len(q.subs) == 0
	q.mu.Unlock()
	if noSubs {
		return
	}

	snap, err := q.snapshot()
	if err != nil {
		logging.Error("failed to snapshot queue", err)
		return
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	for _, ch := range q.subs {
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}

// Recover resets entries a crashed drain left in_flight back to
// pending. Call once before the first drain after start.
func (q *Queue) Recover() (int64, error) {
	n, err := q.store.RecoverInFlight()
	if err != nil {
		return 0, err
	}
	if n > 0 {
		logging.Warn("recovered interrupted queue entries", zap.Int64("count", n))
		q.notify()
	}
	return n, nil
}

// Retry re-arms one failed entry with a fresh attempt budget.
func (q *Queue) Retry(id models.UUID) error {
	if err := q.store.ResetForRetry(id); err != nil {
		return err
	}
	q.notify()
	return nil
}

// RetryAll re-arms every failed entry and returns the count.
func (q *Queue) RetryAll() (int64, error) {
	n, err := q.store.ResetAllFailed()
	if err != nil {
		return 0, err
	}
	if n > 0 {
		q.notify()
	}
	return n, nil
}

// Draining reports whether a drain pass is currently running.
func (q *Queue) Draining() bool {
	return q.draining.Load()
}

// Drain applies every due entry to the remote store. Only one drain
// runs at a time; a concurrent call returns ErrDrainInProgress and the
// running drain makes another pass before finishing, so no request is
// lost. Entries fail independently: one rejected registration never
// blocks the survey response behind it.
func (q *Queue) Drain(ctx context.Context) (*DrainResult, error) {
	if !q.draining.CompareAndSwap(false, true) {
		q.rerun.Store(true)
		return nil, apperrors.New(apperrors.ErrDrainInProgress, "drain already running")
	}
	q.notify()
	defer func() {
		q.draining.Store(false)
		q.notify()
	}()

	total := &DrainResult{}
	for {
		res, err := q.drainPass(ctx)
		total.merge(res)
		if err != nil {
			return total, err
		}
		if !q.rerun.CompareAndSwap(true, false) {
			break
		}
	}

	logging.Info("drain finished",
		zap.Int("applied", total.Applied),
		zap.Int("server_wins", total.ServerWins),
		zap.Int("discarded", total.Discarded),
		zap.Int("failed", total.Failed),
	)
	return total, nil
}

// drainPass walks pending entries in priority order until none are due.
func (q *Queue) drainPass(ctx context.Context) (*DrainResult, error) {
	res := &DrainResult{}

	released, err := q.store.ReleaseDueFailed(time.Now().Unix())
	if err != nil {
		return res, err
	}
	res.Released = int(released)

	for {
		if err := ctx.Err(); err != nil {
			return res, apperrors.Wrap(apperrors.ErrInternal, "drain canceled", err)
		}

		entry, err := q.store.NextPending(time.Now().Unix())
		if err != nil {
			return res, err
		}
		if entry == nil {
			return res, nil
		}

		if err := q.store.MarkInFlight(entry.ID); err != nil {
			if apperrors.Is(err, apperrors.ErrQueueEntryNotFound) {
				continue
			}
			return res, err
		}

		q.process(ctx, entry, res)
		q.notify()
	}
}

// process applies one entry and settles its outcome: delete on success,
// failed with backoff on transient errors, resolver decision on
// terminal rejections.
func (q *Queue) process(ctx context.Context, entry *models.QueuedOperation, res *DrainResult) {
	applier, err := q.appliers.For(entry.DataType)
	if err != nil {
		q.fail(entry, err, res)
		return
	}

	err = applier.Apply(ctx, entry)
	switch {
	case err == nil:
		q.complete(entry, entry.Payload, res)

	case apperrors.IsTransient(err):
		q.fail(entry, err, res)

	default:
		q.settle(ctx, applier, entry, err, res)
	}
}

// complete mirrors the applied payload into the local cache and drops
// the entry. A mirror failure is logged but does not resurrect the
// entry: the remote write already landed and replaying it buys nothing.
func (q *Queue) complete(entry *models.QueuedOperation, payload []byte, res *DrainResult) {
	if entry.Operation == models.OperationDelete {
		if err := q.store.RemoveLocal(entry.DataType, entry.PayloadID()); err != nil {
			logging.Error("failed to remove applied record locally", err,
				zap.String("entry_id", string(entry.ID)))
		}
	} else if err := q.store.MirrorRemote(entry.DataType, payload); err != nil {
		logging.Error("failed to mirror applied record", err,
			zap.String("entry_id", string(entry.ID)))
	}

	if err := q.store.DeleteQueueEntry(entry.ID); err != nil {
		logging.Error("failed to delete applied entry", err,
			zap.String("entry_id", string(entry.ID)))
		return
	}
	res.Applied++
	logging.Info("operation applied",
		zap.String("entry_id", string(entry.ID)),
		zap.String("data_type", string(entry.DataType)),
		zap.String("operation", string(entry.Operation)),
	)
}

// fail records a retryable failure and schedules the next attempt.
func (q *Queue) fail(entry *models.QueuedOperation, cause error, res *DrainResult) {
	attempts := entry.Attempts + 1
	nextRetry := time.Now().Add(q.backoffDelay(attempts)).Unix()

	if err := q.store.MarkFailed(entry.ID, attempts, cause.Error(), nextRetry); err != nil {
		logging.Error("failed to record attempt", err, zap.String("entry_id", string(entry.ID)))
		return
	}
	res.Failed++

	if attempts >= entry.MaxAttempts {
		logging.Warn("operation exhausted its retries",
			zap.String("entry_id", string(entry.ID)),
			zap.String("data_type", string(entry.DataType)),
			zap.Int("attempts", attempts),
			zap.String("last_error", cause.Error()),
		)
		return
	}
	logging.Warn("operation failed, will retry",
		zap.String("entry_id", string(entry.ID)),
		zap.Int("attempt", attempts),
		zap.Int("max_attempts", entry.MaxAttempts),
		zap.Int64("next_retry_at", nextRetry),
		zap.String("error", cause.Error()),
	)
}

// settle runs the conflict resolver over a terminal rejection and
// carries out its decision.
func (q *Queue) settle(ctx context.Context, applier Applier, entry *models.QueuedOperation, cause error, res *DrainResult) {
	dec, err := q.resolver.Resolve(entry, cause)
	if err != nil {
		q.fail(entry, err, res)
		return
	}

	switch dec.Resolution {
	case conflict.ResolutionApplyLocal:
		q.forceApply(ctx, applier, entry, res)

	case conflict.ResolutionServerWins:
		if len(dec.Remote) > 0 {
			if err := q.store.MirrorRemote(entry.DataType, dec.Remote); err != nil {
				logging.Error("failed to mirror server state", err,
					zap.String("entry_id", string(entry.ID)))
			}
		} else if err := q.store.RemoveLocal(entry.DataType, entry.PayloadID()); err != nil {
			logging.Error("failed to remove rejected record", err,
				zap.String("entry_id", string(entry.ID)))
		}
		q.discardEntry(entry, dec, res)
		res.ServerWins++

	case conflict.ResolutionDiscard:
		if err := q.store.RemoveLocal(entry.DataType, entry.PayloadID()); err != nil {
			logging.Error("failed to remove orphaned record", err,
				zap.String("entry_id", string(entry.ID)))
		}
		q.discardEntry(entry, dec, res)
		res.Discarded++
	}
}

// forceApply pushes a mutation the resolver ruled in favor of. A second
// rejection means the server will not yield, so the server's copy
// stands after all.
func (q *Queue) forceApply(ctx context.Context, applier Applier, entry *models.QueuedOperation, res *DrainResult) {
	var err error
	if fa, ok := applier.(ForceApplier); ok {
		err = fa.ForceApply(ctx, entry)
	} else {
		err = applier.Apply(ctx, entry)
	}

	switch {
	case err == nil:
		q.complete(entry, entry.Payload, res)

	case apperrors.IsTransient(err):
		q.fail(entry, err, res)

	default:
		dec := &conflict.Decision{
			Resolution: conflict.ResolutionServerWins,
			Remote:     apperrors.RemoteState(err),
			Reason:     "the server kept its own version of this change",
			Notify:     true,
		}
		if len(dec.Remote) > 0 {
			if merr := q.store.MirrorRemote(entry.DataType, dec.Remote); merr != nil {
				logging.Error("failed to mirror server state", merr,
					zap.String("entry_id", string(entry.ID)))
			}
		} else if rerr := q.store.RemoveLocal(entry.DataType, entry.PayloadID()); rerr != nil {
			logging.Error("failed to remove rejected record", rerr,
				zap.String("entry_id", string(entry.ID)))
		}
		q.discardEntry(entry, dec, res)
		res.ServerWins++
	}
}

// discardEntry removes a resolved entry and records the notice the
// decision asked for.
func (q *Queue) discardEntry(entry *models.QueuedOperation, dec *conflict.Decision, res *DrainResult) {
	if err := q.store.DeleteQueueEntry(entry.ID); err != nil {
		logging.Error("failed to delete resolved entry", err,
			zap.String("entry_id", string(entry.ID)))
	}
	if !dec.Notify {
		return
	}
	notice := &models.SyncNotice{
		ID:         models.NewUUID(),
		EntryID:    entry.ID,
		DataType:   entry.DataType,
		Resolution: string(dec.Resolution),
		Reason:     dec.Reason,
		CreatedAt:  time.Now().Unix(),
	}
	if err := q.store.CreateNotice(notice); err != nil {
		logging.Error("failed to record sync notice", err,
			zap.String("entry_id", string(entry.ID)))
	}
}

// backoffDelay returns how long an entry waits after its nth failed
// attempt: base doubled per attempt, capped.
func (q *Queue) backoffDelay(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	delay := q.cfg.BackoffBase
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay >= q.cfg.BackoffCap {
			return q.cfg.BackoffCap
		}
	}
	if delay > q.cfg.BackoffCap {
		return q.cfg.BackoffCap
	}
	return delay
}
