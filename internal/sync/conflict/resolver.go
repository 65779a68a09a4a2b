// Package conflict decides what happens to a queued local mutation the
// remote store rejected. Decisions are pure: the resolver never touches
// storage, it only tells the drain loop which side wins.
package conflict

import (
	"encoding/json"
	stderrors "errors"
	"fmt"

	apperrors "github.com/Barneycle/ganapp-core/internal/errors"
	"github.com/Barneycle/ganapp-core/internal/logging"
	"github.com/Barneycle/ganapp-core/internal/models"
	"go.uber.org/zap"
)

// Strategy selects how conflicts for a data type are resolved.
type Strategy string

const (
	// StrategyServerWins takes the server's state as authoritative and
	// drops the local mutation. Registrations work this way: capacity
	// and cutoff rules live on the server.
	StrategyServerWins Strategy = "server_wins"

	// StrategyLastWriteWins compares timestamps and keeps the newer
	// write. Survey responses work this way.
	StrategyLastWriteWins Strategy = "last_write_wins"

	// StrategyClientWins pushes the local mutation through. Event edits
	// work this way as long as the event still exists remotely.
	StrategyClientWins Strategy = "client_wins"
)

// Resolution is the verdict a decision carries.
type Resolution string

const (
	// ResolutionApplyLocal re-applies the local mutation as the winner.
	ResolutionApplyLocal Resolution = "apply_local"

	// ResolutionServerWins replaces the local copy with the server's
	// state and drops the queued mutation.
	ResolutionServerWins Resolution = models.NoticeResolutionServerWins

	// ResolutionDiscard drops the queued mutation and removes the
	// orphaned local copy. Used when the remote target is gone.
	ResolutionDiscard Resolution = models.NoticeResolutionDiscarded
)

// Decision is the outcome of resolving one rejected mutation.
type Decision struct {
	Resolution Resolution

	// Remote holds the authoritative server payload to mirror locally
	// when the server wins. Nil when the server did not return one.
	Remote json.RawMessage

	// Reason is the human-readable explanation recorded on the sync
	// notice when Notify is set.
	Reason string

	// Notify marks decisions the user should see a one-time notice for.
	// Silent outcomes, like a survey response losing a timestamp race
	// it could not have won, still set this so the user learns their
	// submission was superseded.
	Notify bool
}

// Resolver maps each data type to a conflict strategy and turns
// rejected queue entries into decisions.
type Resolver struct {
	strategies map[models.DataType]Strategy
}

// NewResolver creates a Resolver with the default per-type strategies:
// server-authoritative for registrations, attendance and certificates,
// last-write-wins for survey responses, client-wins for event edits.
func NewResolver() *Resolver {
	return &Resolver{
		strategies: map[models.DataType]Strategy{
			models.DataTypeEvent:          StrategyClientWins,
			models.DataTypeRegistration:   StrategyServerWins,
			models.DataTypeSurveyResponse: StrategyLastWriteWins,
			models.DataTypeAttendanceLog:  StrategyServerWins,
			models.DataTypeCertificate:    StrategyServerWins,
		},
	}
}

// SetStrategy overrides the strategy for one data type.
func (r *Resolver) SetStrategy(dt models.DataType, s Strategy) {
	r.strategies[dt] = s
}

// StrategyFor returns the strategy applied to a data type. Unknown
// types fall back to server-wins, the conservative default.
func (r *Resolver) StrategyFor(dt models.DataType) Strategy {
	if s, ok := r.strategies[dt]; ok {
		return s
	}
	return StrategyServerWins
}

// Resolve decides the fate of a queued mutation the remote rejected
// with a terminal failure. cause must be a business conflict or a
// remote-not-found; transient failures belong to the retry path, not
// here.
func (r *Resolver) Resolve(op *models.QueuedOperation, cause error) (*Decision, error) {
	if op == nil {
		return nil, apperrors.New(apperrors.ErrInvalid, "nil queue entry")
	}
	if cause == nil {
		return nil, apperrors.New(apperrors.ErrInvalid, "nil rejection cause")
	}

	var dec *Decision
	switch {
	case apperrors.IsRemoteGone(cause):
		dec = r.resolveRemoteGone(op, cause)
	case apperrors.IsConflict(cause):
		dec = r.resolveConflict(op, cause)
	default:
		return nil, apperrors.Wrap(apperrors.ErrInternal,
			fmt.Sprintf("resolver called with retryable failure %s", apperrors.CodeOf(cause)), cause)
	}

	logging.Info("conflict resolved",
		zap.String("entry_id", string(op.ID)),
		zap.String("data_type", string(op.DataType)),
		zap.String("strategy", string(r.StrategyFor(op.DataType))),
		zap.String("resolution", string(dec.Resolution)),
		zap.Bool("notify", dec.Notify),
	)
	return dec, nil
}

// resolveRemoteGone handles mutations whose remote target vanished.
// There is nothing left to apply against, so the local change is
// discarded irrespective of strategy and the user is told.
func (r *Resolver) resolveRemoteGone(op *models.QueuedOperation, cause error) *Decision {
	return &Decision{
		Resolution: ResolutionDiscard,
		Reason:     reasonOf(cause, fmt.Sprintf("%s no longer exists on the server", label(op.DataType))),
		Notify:     true,
	}
}

// resolveConflict dispatches a business conflict to the strategy
// registered for the entry's data type.
func (r *Resolver) resolveConflict(op *models.QueuedOperation, cause error) *Decision {
	remote := apperrors.RemoteState(cause)

	switch r.StrategyFor(op.DataType) {
	case StrategyClientWins:
		return &Decision{Resolution: ResolutionApplyLocal}

	case StrategyLastWriteWins:
		return r.resolveLastWriteWins(op, remote, cause)

	default:
		return &Decision{
			Resolution: ResolutionServerWins,
			Remote:     remote,
			Reason:     reasonOf(cause, fmt.Sprintf("the server rejected this %s", label(op.DataType))),
			Notify:     true,
		}
	}
}

// resolveLastWriteWins keeps whichever side wrote last. The local side
// wins ties: a client retrying its own write should not lose to the
// copy the server already accepted from it.
func (r *Resolver) resolveLastWriteWins(op *models.QueuedOperation, remote json.RawMessage, cause error) *Decision {
	localTS := payloadTimestamp(op.Payload)
	remoteTS := payloadTimestamp(remote)

	// Without a remote timestamp there is nothing to race against, so
	// the accepted server copy stands.
	if remoteTS > 0 && localTS >= remoteTS {
		return &Decision{Resolution: ResolutionApplyLocal}
	}
	return &Decision{
		Resolution: ResolutionServerWins,
		Remote:     remote,
		Reason:     reasonOf(cause, fmt.Sprintf("a newer %s was already on the server", label(op.DataType))),
		Notify:     true,
	}
}

// payloadTimestamp extracts the write timestamp from a record payload,
// preferring updated_at over submitted_at. Returns 0 when the payload
// carries neither.
func payloadTimestamp(raw json.RawMessage) int64 {
	if len(raw) == 0 {
		return 0
	}
	var probe struct {
		UpdatedAt   int64 `json:"updated_at"`
		SubmittedAt int64 `json:"submitted_at"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return 0
	}
	if probe.UpdatedAt > 0 {
		return probe.UpdatedAt
	}
	return probe.SubmittedAt
}

// reasonOf prefers the message the remote attached to the rejection
// over the generic fallback.
func reasonOf(cause error, fallback string) string {
	var appErr *apperrors.AppError
	if stderrors.As(cause, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return fallback
}

// label returns the user-facing name of a data type for notice text.
func label(dt models.DataType) string {
	switch dt {
	case models.DataTypeEvent:
		return "event"
	case models.DataTypeRegistration:
		return "registration"
	case models.DataTypeSurveyResponse:
		return "survey response"
	case models.DataTypeAttendanceLog:
		return "attendance record"
	case models.DataTypeCertificate:
		return "certificate"
	}
	return "record"
}
