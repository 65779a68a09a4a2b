// Package models provides data model definitions for the GanApp sync core.
package models

import "time"

// Event status values mirrored from the remote schema.
const (
	EventStatusScheduled = "scheduled"
	EventStatusOngoing   = "ongoing"
	EventStatusCompleted = "completed"
	EventStatusCancelled = "cancelled"
)

// Event is the cached copy of a remote event record.
type Event struct {
	ID          UUID   `db:"id" json:"id"`
	Title       string `db:"title" json:"title"`
	Description string `db:"description" json:"description,omitempty"`
	Venue       string `db:"venue" json:"venue,omitempty"`
	OrganizerID UUID   `db:"organizer_id" json:"organizer_id"`
	Status      string `db:"status" json:"status"`
	Capacity    int    `db:"capacity" json:"capacity"`
	StartsAt    int64  `db:"starts_at" json:"starts_at"`
	EndsAt      int64  `db:"ends_at" json:"ends_at"`
	CreatedAt   int64  `db:"created_at" json:"created_at"`
	UpdatedAt   int64  `db:"updated_at" json:"updated_at"`
}

// TableName returns the table name for Event.
func (Event) TableName() string {
	return "events"
}

// StartsAtTime returns StartsAt as time.Time.
func (e *Event) StartsAtTime() time.Time {
	return time.Unix(e.StartsAt, 0)
}

// Touch updates the UpdatedAt timestamp.
func (e *Event) Touch() {
	e.UpdatedAt = time.Now().Unix()
}
