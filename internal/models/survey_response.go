// Package models provides data model definitions for the GanApp sync core.
package models

import (
	"encoding/json"
	"time"
)

// SurveyResponse is the cached copy of a respondent's answers to an
// event survey. The (survey_id, respondent_id) pair is the logical key:
// a later submission replaces any earlier one outright.
type SurveyResponse struct {
	ID           UUID            `db:"id" json:"id"`
	SurveyID     UUID            `db:"survey_id" json:"survey_id"`
	EventID      UUID            `db:"event_id" json:"event_id"`
	RespondentID UUID            `db:"respondent_id" json:"respondent_id"`
	Answers      json.RawMessage `db:"answers" json:"answers"`
	SubmittedAt  int64           `db:"submitted_at" json:"submitted_at"`
	UpdatedAt    int64           `db:"updated_at" json:"updated_at"`
}

// TableName returns the table name for SurveyResponse.
func (SurveyResponse) TableName() string {
	return "survey_responses"
}

// SubmittedAtTime returns SubmittedAt as time.Time.
func (s *SurveyResponse) SubmittedAtTime() time.Time {
	return time.Unix(s.SubmittedAt, 0)
}
