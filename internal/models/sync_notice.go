// Package models provides data model definitions for the GanApp sync core.
package models

import "time"

// Notice resolutions recorded when a queued entry is resolved away.
const (
	NoticeResolutionServerWins = "server_wins"
	NoticeResolutionDiscarded  = "discarded"
)

// SyncNotice records a conflict resolution that dropped a local change,
// so the UI can show a one-time dismissible notice. A notice is an
// already-resolved state, not an actionable failure.
type SyncNotice struct {
	ID         UUID     `db:"id" json:"id"`
	EntryID    UUID     `db:"entry_id" json:"entry_id"`
	DataType   DataType `db:"data_type" json:"data_type"`
	Resolution string   `db:"resolution" json:"resolution"`
	Reason     string   `db:"reason" json:"reason"`
	Seen       bool     `db:"seen" json:"seen"`
	CreatedAt  int64    `db:"created_at" json:"created_at"`
}

// TableName returns the table name for SyncNotice.
func (SyncNotice) TableName() string {
	return "sync_notices"
}

// CreatedAtTime returns CreatedAt as time.Time.
func (n *SyncNotice) CreatedAtTime() time.Time {
	return time.Unix(n.CreatedAt, 0)
}
