// Package models provides data model definitions for the GanApp sync core.
package models

import (
	"encoding/json"
	"time"
)

// DataType is the closed set of record categories the sync core moves.
// The data type selects which conflict policy applies during a drain.
type DataType string

const (
	DataTypeEvent          DataType = "event"
	DataTypeRegistration   DataType = "event_registration"
	DataTypeSurveyResponse DataType = "survey_response"
	DataTypeAttendanceLog  DataType = "attendance_log"
	DataTypeCertificate    DataType = "certificate"
)

// Valid reports whether the data type is a known category.
func (d DataType) Valid() bool {
	switch d {
	case DataTypeEvent, DataTypeRegistration, DataTypeSurveyResponse,
		DataTypeAttendanceLog, DataTypeCertificate:
		return true
	}
	return false
}

// TableFor returns the cache table holding records of this data type.
func (d DataType) TableFor() string {
	switch d {
	case DataTypeEvent:
		return Event{}.TableName()
	case DataTypeRegistration:
		return Registration{}.TableName()
	case DataTypeSurveyResponse:
		return SurveyResponse{}.TableName()
	case DataTypeAttendanceLog:
		return AttendanceLog{}.TableName()
	case DataTypeCertificate:
		return Certificate{}.TableName()
	}
	return ""
}

// DefaultPriority returns the drain priority assigned to new entries
// of this data type. Registrations and check-ins are time critical,
// certificates can wait.
func (d DataType) DefaultPriority() Priority {
	switch d {
	case DataTypeRegistration, DataTypeAttendanceLog:
		return PriorityHigh
	case DataTypeCertificate:
		return PriorityLow
	default:
		return PriorityMedium
	}
}

// Operation is the mutation kind carried by a queued entry.
type Operation string

const (
	OperationCreate Operation = "create"
	OperationUpdate Operation = "update"
	OperationDelete Operation = "delete"
)

// Valid reports whether the operation is a known mutation kind.
func (o Operation) Valid() bool {
	switch o {
	case OperationCreate, OperationUpdate, OperationDelete:
		return true
	}
	return false
}

// Priority orders queued entries. All high entries drain before any
// medium entry, all medium before any low; createdAt breaks ties.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Rank returns the drain order of the priority, lower first.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	default:
		return 2
	}
}

// Valid reports whether the priority is a known level.
func (p Priority) Valid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// QueueStatus is the lifecycle state of a queued entry. done entries
// are deleted rather than archived, so the value never hits storage.
type QueueStatus string

const (
	QueueStatusPending  QueueStatus = "pending"
	QueueStatusInFlight QueueStatus = "in_flight"
	QueueStatusFailed   QueueStatus = "failed"
	QueueStatusDone     QueueStatus = "done"
)

// QueuedOperation is a durable unit of deferred work: a mutation that
// could not be applied to the remote store when it happened.
type QueuedOperation struct {
	ID          UUID            `db:"id" json:"id"`
	DataType    DataType        `db:"data_type" json:"data_type"`
	Operation   Operation       `db:"operation" json:"operation"`
	Table       string          `db:"table_name" json:"table"`
	Payload     json.RawMessage `db:"payload" json:"payload"`
	Priority    Priority        `db:"priority" json:"priority"`
	Status      QueueStatus     `db:"status" json:"status"`
	Attempts    int             `db:"attempts" json:"attempts"`
	MaxAttempts int             `db:"max_attempts" json:"max_attempts"`
	LastError   string          `db:"last_error" json:"last_error,omitempty"`
	NextRetryAt int64           `db:"next_retry_at" json:"next_retry_at"`
	CreatedAt   int64           `db:"created_at" json:"created_at"`
	UpdatedAt   int64           `db:"updated_at" json:"updated_at"`
}

// TableName returns the table name for QueuedOperation.
func (QueuedOperation) TableName() string {
	return "sync_queue"
}

// Unapplied reports whether the entry still counts toward the pending
// badge: anything not yet successfully applied remotely.
func (q *QueuedOperation) Unapplied() bool {
	return q.Status == QueueStatusPending || q.Status == QueueStatusInFlight ||
		q.Status == QueueStatusFailed
}

// Exhausted reports whether the entry hit its retry ceiling.
func (q *QueuedOperation) Exhausted() bool {
	return q.Attempts >= q.MaxAttempts
}

// CreatedAtTime returns CreatedAt as time.Time.
func (q *QueuedOperation) CreatedAtTime() time.Time {
	return time.Unix(q.CreatedAt, 0)
}

// PayloadID extracts the primary id carried inside the payload, if any.
// Payloads always carry enough identity fields to deduplicate on replay.
func (q *QueuedOperation) PayloadID() UUID {
	var probe struct {
		ID UUID `json:"id"`
	}
	if err := json.Unmarshal(q.Payload, &probe); err != nil {
		return ""
	}
	return probe.ID
}
