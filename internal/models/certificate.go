// Package models provides data model definitions for the GanApp sync core.
package models

import "time"

// Certificate status values mirrored from the remote schema.
const (
	CertificateStatusIssued  = "issued"
	CertificateStatusClaimed = "claimed"
	CertificateStatusRevoked = "revoked"
)

// Certificate is the cached copy of a remote participation certificate.
// Certificates are issued by the server; the client only claims them.
type Certificate struct {
	ID           UUID   `db:"id" json:"id"`
	EventID      UUID   `db:"event_id" json:"event_id"`
	UserID       UUID   `db:"user_id" json:"user_id"`
	SerialNumber string `db:"serial_number" json:"serial_number"`
	Status       string `db:"status" json:"status"`
	IssuedAt     int64  `db:"issued_at" json:"issued_at"`
	UpdatedAt    int64  `db:"updated_at" json:"updated_at"`
}

// TableName returns the table name for Certificate.
func (Certificate) TableName() string {
	return "certificates"
}

// IssuedAtTime returns IssuedAt as time.Time.
func (c *Certificate) IssuedAtTime() time.Time {
	return time.Unix(c.IssuedAt, 0)
}
