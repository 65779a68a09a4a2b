package store

import (
	"database/sql"
	"errors"

	apperrors "github.com/Barneycle/ganapp-core/internal/errors"
	"github.com/Barneycle/ganapp-core/internal/models"
)

const attendanceColumns = "id, event_id, user_id, method, checked_in_at, updated_at"

// SaveAttendanceLog upserts a check-in keyed on (event_id, user_id).
// Scanning the same badge twice keeps the first check-in time but
// records the latest method.
func (s *Store) SaveAttendanceLog(log *models.AttendanceLog) error {
	now := nowUnix()
	if log.ID == "" {
		log.ID = models.NewUUID()
	}
	if log.CheckedInAt == 0 {
		log.CheckedInAt = now
	}
	log.UpdatedAt = now

	query := `
	INSERT INTO attendance_logs (id, event_id, user_id, method, checked_in_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		method = excluded.method,
		updated_at = excluded.updated_at
	ON CONFLICT(event_id, user_id) DO UPDATE SET
		method = excluded.method,
		updated_at = excluded.updated_at
	`
	_, err := s.db.Exec(query, log.ID, log.EventID, log.UserID, log.Method,
		log.CheckedInAt, log.UpdatedAt)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrStorage, "failed to save attendance log", err)
	}
	return nil
}

// GetAttendanceLog retrieves a check-in by id.
func (s *Store) GetAttendanceLog(id models.UUID) (*models.AttendanceLog, error) {
	stmt, err := s.prepare(`SELECT ` + attendanceColumns + ` FROM attendance_logs WHERE id = ?`)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorage, "failed to prepare attendance query", err)
	}
	return scanAttendanceLog(stmt.QueryRow(id))
}

// GetAttendanceForUser retrieves the check-in a user holds for an event.
func (s *Store) GetAttendanceForUser(eventID, userID models.UUID) (*models.AttendanceLog, error) {
	stmt, err := s.prepare(`SELECT ` + attendanceColumns + ` FROM attendance_logs WHERE event_id = ? AND user_id = ?`)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorage, "failed to prepare attendance query", err)
	}
	return scanAttendanceLog(stmt.QueryRow(eventID, userID))
}

func scanAttendanceLog(row *sql.Row) (*models.AttendanceLog, error) {
	var log models.AttendanceLog
	err := row.Scan(&log.ID, &log.EventID, &log.UserID, &log.Method,
		&log.CheckedInAt, &log.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.New(apperrors.ErrNotFound, "attendance log not found")
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorage, "failed to get attendance log", err)
	}
	return &log, nil
}

// ListAttendanceLogs returns check-ins matching the filters in
// check-in order.
func (s *Store) ListAttendanceLogs(fb *FilterBuilder, limit, offset int) ([]*models.AttendanceLog, error) {
	query := `SELECT ` + attendanceColumns + ` FROM attendance_logs`
	var args []interface{}
	if fb != nil {
		if where, whereArgs := fb.Build(); where != "" {
			query += " WHERE " + where
			args = whereArgs
		}
	}
	query += " ORDER BY checked_in_at ASC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorage, "failed to list attendance logs", err)
	}
	defer rows.Close()

	var logs []*models.AttendanceLog
	for rows.Next() {
		var log models.AttendanceLog
		err := rows.Scan(&log.ID, &log.EventID, &log.UserID, &log.Method,
			&log.CheckedInAt, &log.UpdatedAt)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrStorage, "failed to scan attendance log", err)
		}
		logs = append(logs, &log)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorage, "failed to iterate attendance logs", err)
	}
	return logs, nil
}
