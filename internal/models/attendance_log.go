// Package models provides data model definitions for the GanApp sync core.
package models

import "time"

// Attendance check-in methods.
const (
	AttendanceMethodQR     = "qr"
	AttendanceMethodManual = "manual"
)

// AttendanceLog is the cached copy of a check-in record. The remote
// store enforces one check-in per (event_id, user_id).
type AttendanceLog struct {
	ID          UUID   `db:"id" json:"id"`
	EventID     UUID   `db:"event_id" json:"event_id"`
	UserID      UUID   `db:"user_id" json:"user_id"`
	Method      string `db:"method" json:"method"`
	CheckedInAt int64  `db:"checked_in_at" json:"checked_in_at"`
	UpdatedAt   int64  `db:"updated_at" json:"updated_at"`
}

// TableName returns the table name for AttendanceLog.
func (AttendanceLog) TableName() string {
	return "attendance_logs"
}

// CheckedInAtTime returns CheckedInAt as time.Time.
func (a *AttendanceLog) CheckedInAtTime() time.Time {
	return time.Unix(a.CheckedInAt, 0)
}
