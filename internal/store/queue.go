package store

import (
	"database/sql"
	"errors"

	apperrors "github.com/Barneycle/ganapp-core/internal/errors"
	"github.com/Barneycle/ganapp-core/internal/models"
)

const queueColumns = `id, data_type, operation, table_name, payload, priority, status,
	attempts, max_attempts, last_error, next_retry_at, created_at, updated_at`

// Entries drain high before medium before low, then oldest first.
// rowid breaks created_at ties so same-second enqueues keep insertion
// order. Register-then-cancel on one event must never flip.
const queueOrder = ` ORDER BY CASE priority WHEN 'high' THEN 0 WHEN 'medium' THEN 1 ELSE 2 END, created_at ASC, rowid ASC`

// EnqueueOperation persists a new queue entry in pending state.
// Missing identity and bookkeeping fields are filled in.
func (s *Store) EnqueueOperation(op *models.QueuedOperation) error {
	now := nowUnix()
	if op.ID == "" {
		op.ID = models.NewUUID()
	}
	if op.Table == "" {
		op.Table = op.DataType.TableFor()
	}
	if op.Priority == "" {
		op.Priority = op.DataType.DefaultPriority()
	}
	op.Status = models.QueueStatusPending
	op.CreatedAt = now
	op.UpdatedAt = now

	query := `
	INSERT INTO sync_queue (` + queueColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.Exec(query, op.ID, op.DataType, op.Operation, op.Table,
		string(op.Payload), op.Priority, op.Status, op.Attempts, op.MaxAttempts,
		op.LastError, op.NextRetryAt, op.CreatedAt, op.UpdatedAt)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrStorage, "failed to enqueue operation", err)
	}
	return nil
}

// GetQueueEntry retrieves a queue entry by id.
func (s *Store) GetQueueEntry(id models.UUID) (*models.QueuedOperation, error) {
	stmt, err := s.prepare(`SELECT ` + queueColumns + ` FROM sync_queue WHERE id = ?`)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorage, "failed to prepare queue query", err)
	}

	op, err := scanQueueRow(stmt.QueryRow(id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.New(apperrors.ErrQueueEntryNotFound, "queue entry not found")
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorage, "failed to get queue entry", err)
	}
	return op, nil
}

// NextPending returns the next pending entry due at or before now,
// highest priority first and oldest within a priority. Returns
// (nil, nil) when nothing is due.
func (s *Store) NextPending(now int64) (*models.QueuedOperation, error) {
	stmt, err := s.prepare(`SELECT ` + queueColumns + ` FROM sync_queue
		WHERE status = 'pending' AND next_retry_at <= ?` + queueOrder + ` LIMIT 1`)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorage, "failed to prepare next pending query", err)
	}

	op, err := scanQueueRow(stmt.QueryRow(now))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorage, "failed to get next pending entry", err)
	}
	return op, nil
}

// MarkInFlight transitions a pending entry to in_flight so a crashed
// drain can be detected on the next start.
func (s *Store) MarkInFlight(id models.UUID) error {
	result, err := s.db.Exec(
		`UPDATE sync_queue SET status = 'in_flight', updated_at = ? WHERE id = ? AND status = 'pending'`,
		nowUnix(), id)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrStorage, "failed to mark entry in flight", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return apperrors.New(apperrors.ErrQueueEntryNotFound, "no pending entry to mark in flight")
	}
	return nil
}

// MarkFailed records a failed attempt. The entry keeps its payload
// and waits out nextRetryAt before becoming eligible again.
func (s *Store) MarkFailed(id models.UUID, attempts int, lastError string, nextRetryAt int64) error {
	result, err := s.db.Exec(
		`UPDATE sync_queue SET status = 'failed', attempts = ?, last_error = ?, next_retry_at = ?, updated_at = ?
		 WHERE id = ?`,
		attempts, lastError, nextRetryAt, nowUnix(), id)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrStorage, "failed to mark entry failed", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return apperrors.New(apperrors.ErrQueueEntryNotFound, "queue entry not found")
	}
	return nil
}

// DeleteQueueEntry removes an entry once it is applied or discarded.
func (s *Store) DeleteQueueEntry(id models.UUID) error {
	result, err := s.db.Exec(`DELETE FROM sync_queue WHERE id = ?`, id)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrStorage, "failed to delete queue entry", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return apperrors.New(apperrors.ErrQueueEntryNotFound, "queue entry not found")
	}
	return nil
}

// ListQueue returns entries in drain order. With no statuses given,
// every entry is returned.
func (s *Store) ListQueue(statuses ...models.QueueStatus) ([]*models.QueuedOperation, error) {
	query := `SELECT ` + queueColumns + ` FROM sync_queue`
	var args []interface{}
	if len(statuses) > 0 {
		query += " WHERE status IN (?" + repeatPlaceholder(len(statuses)-1) + ")"
		for _, status := range statuses {
			args = append(args, string(status))
		}
	}
	query += queueOrder

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorage, "failed to list queue", err)
	}
	defer rows.Close()

	var ops []*models.QueuedOperation
	for rows.Next() {
		op, err := scanQueueRows(rows)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrStorage, "failed to scan queue entry", err)
		}
		ops = append(ops, op)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorage, "failed to iterate queue", err)
	}
	return ops, nil
}

// CountUnapplied returns how many entries have not yet reached the
// server. This feeds the pending-changes badge.
func (s *Store) CountUnapplied() (int, error) {
	stmt, err := s.prepare(`SELECT COUNT(*) FROM sync_queue WHERE status IN ('pending', 'in_flight', 'failed')`)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrStorage, "failed to prepare count query", err)
	}

	var count int
	if err := stmt.QueryRow().Scan(&count); err != nil {
		return 0, apperrors.Wrap(apperrors.ErrStorage, "failed to count queue", err)
	}
	return count, nil
}

// RecoverInFlight resets entries stuck in_flight back to pending.
// Called once on start: an in_flight entry means the previous process
// died mid-apply, and appliers are idempotent so replay is safe.
func (s *Store) RecoverInFlight() (int64, error) {
	result, err := s.db.Exec(
		`UPDATE sync_queue SET status = 'pending', updated_at = ? WHERE status = 'in_flight'`,
		nowUnix())
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrStorage, "failed to recover in-flight entries", err)
	}
	rows, _ := result.RowsAffected()
	return rows, nil
}

// ReleaseDueFailed moves failed entries whose backoff expired back to
// pending. Entries at their retry ceiling stay failed until a manual
// retry resets them.
func (s *Store) ReleaseDueFailed(now int64) (int64, error) {
	result, err := s.db.Exec(
		`UPDATE sync_queue SET status = 'pending', updated_at = ?
		 WHERE status = 'failed' AND next_retry_at <= ? AND attempts < max_attempts`,
		nowUnix(), now)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrStorage, "failed to release due entries", err)
	}
	rows, _ := result.RowsAffected()
	return rows, nil
}

// ResetForRetry re-arms a failed entry after user intervention. The
// attempt counter starts over.
func (s *Store) ResetForRetry(id models.UUID) error {
	result, err := s.db.Exec(
		`UPDATE sync_queue SET status = 'pending', attempts = 0, last_error = '', next_retry_at = 0, updated_at = ?
		 WHERE id = ? AND status = 'failed'`,
		nowUnix(), id)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrStorage, "failed to reset entry", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return apperrors.New(apperrors.ErrQueueEntryNotFound, "no failed entry to retry")
	}
	return nil
}

// ResetAllFailed re-arms every failed entry and returns the count.
func (s *Store) ResetAllFailed() (int64, error) {
	result, err := s.db.Exec(
		`UPDATE sync_queue SET status = 'pending', attempts = 0, last_error = '', next_retry_at = 0, updated_at = ?
		 WHERE status = 'failed'`,
		nowUnix())
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrStorage, "failed to reset failed entries", err)
	}
	rows, _ := result.RowsAffected()
	return rows, nil
}

func scanQueueRow(row *sql.Row) (*models.QueuedOperation, error) {
	var op models.QueuedOperation
	var payload string
	var lastError sql.NullString
	err := row.Scan(&op.ID, &op.DataType, &op.Operation, &op.Table, &payload,
		&op.Priority, &op.Status, &op.Attempts, &op.MaxAttempts, &lastError,
		&op.NextRetryAt, &op.CreatedAt, &op.UpdatedAt)
	if err != nil {
		return nil, err
	}
	op.Payload = []byte(payload)
	if lastError.Valid {
		op.LastError = lastError.String
	}
	return &op, nil
}

func scanQueueRows(rows *sql.Rows) (*models.QueuedOperation, error) {
	var op models.QueuedOperation
	var payload string
	var lastError sql.NullString
	err := rows.Scan(&op.ID, &op.DataType, &op.Operation, &op.Table, &payload,
		&op.Priority, &op.Status, &op.Attempts, &op.MaxAttempts, &lastError,
		&op.NextRetryAt, &op.CreatedAt, &op.UpdatedAt)
	if err != nil {
		return nil, err
	}
	op.Payload = []byte(payload)
	if lastError.Valid {
		op.LastError = lastError.String
	}
	return &op, nil
}

func repeatPlaceholder(n int) string {
	out := ""
	for i := 0; i < n; i++ {
		out += ", ?"
	}
	return out
}
