// Package models provides data model definitions for the GanApp sync core.
package models

import "time"

// Registration status values mirrored from the remote schema.
const (
	RegistrationStatusRegistered = "registered"
	RegistrationStatusWaitlisted = "waitlisted"
	RegistrationStatusCancelled  = "cancelled"
	RegistrationStatusDeclined   = "declined"
)

// Registration is the cached copy of a remote event registration.
// One registration exists per (event_id, user_id) pair; the remote
// store owns capacity and uniqueness decisions.
type Registration struct {
	ID           UUID   `db:"id" json:"id"`
	EventID      UUID   `db:"event_id" json:"event_id"`
	UserID       UUID   `db:"user_id" json:"user_id"`
	Status       string `db:"status" json:"status"`
	RegisteredAt int64  `db:"registered_at" json:"registered_at"`
	UpdatedAt    int64  `db:"updated_at" json:"updated_at"`
}

// TableName returns the table name for Registration.
func (Registration) TableName() string {
	return "event_registrations"
}

// Active reports whether the registration still holds a seat.
func (r *Registration) Active() bool {
	return r.Status == RegistrationStatusRegistered || r.Status == RegistrationStatusWaitlisted
}

// Touch updates the UpdatedAt timestamp.
func (r *Registration) Touch() {
	r.UpdatedAt = time.Now().Unix()
}
