package store

import (
	"database/sql"
	"errors"

	apperrors "github.com/Barneycle/ganapp-core/internal/errors"
	"github.com/Barneycle/ganapp-core/internal/models"
)

const surveyResponseColumns = "id, survey_id, event_id, respondent_id, answers, submitted_at, updated_at"

// SaveSurveyResponse upserts a response keyed on (survey_id,
// respondent_id). Resubmitting the same survey replaces the earlier
// answers, which is exactly the last-write-wins the server applies.
func (s *Store) SaveSurveyResponse(resp *models.SurveyResponse) error {
	now := nowUnix()
	if resp.ID == "" {
		resp.ID = models.NewUUID()
	}
	if resp.SubmittedAt == 0 {
		resp.SubmittedAt = now
	}
	resp.UpdatedAt = now
	if len(resp.Answers) == 0 {
		resp.Answers = []byte("{}")
	}

	query := `
	INSERT INTO survey_responses (id, survey_id, event_id, respondent_id, answers, submitted_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		answers = excluded.answers,
		submitted_at = excluded.submitted_at,
		updated_at = excluded.updated_at
	ON CONFLICT(survey_id, respondent_id) DO UPDATE SET
		answers = excluded.answers,
		submitted_at = excluded.submitted_at,
		updated_at = excluded.updated_at
	`
	_, err := s.db.Exec(query, resp.ID, resp.SurveyID, resp.EventID, resp.RespondentID,
		string(resp.Answers), resp.SubmittedAt, resp.UpdatedAt)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrStorage, "failed to save survey response", err)
	}
	return nil
}

// GetSurveyResponse retrieves a response by id.
func (s *Store) GetSurveyResponse(id models.UUID) (*models.SurveyResponse, error) {
	stmt, err := s.prepare(`SELECT ` + surveyResponseColumns + ` FROM survey_responses WHERE id = ?`)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorage, "failed to prepare survey response query", err)
	}
	return scanSurveyResponse(stmt.QueryRow(id))
}

// GetSurveyResponseForRespondent retrieves the response a respondent
// submitted for a survey.
func (s *Store) GetSurveyResponseForRespondent(surveyID, respondentID models.UUID) (*models.SurveyResponse, error) {
	stmt, err := s.prepare(`SELECT ` + surveyResponseColumns + ` FROM survey_responses WHERE survey_id = ? AND respondent_id = ?`)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorage, "failed to prepare survey response query", err)
	}
	return scanSurveyResponse(stmt.QueryRow(surveyID, respondentID))
}

func scanSurveyResponse(row *sql.Row) (*models.SurveyResponse, error) {
	var resp models.SurveyResponse
	var answers string
	err := row.Scan(&resp.ID, &resp.SurveyID, &resp.EventID, &resp.RespondentID,
		&answers, &resp.SubmittedAt, &resp.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.New(apperrors.ErrNotFound, "survey response not found")
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorage, "failed to get survey response", err)
	}
	resp.Answers = []byte(answers)
	return &resp, nil
}

// ListSurveyResponses returns responses matching the filters, oldest
// submission first.
func (s *Store) ListSurveyResponses(fb *FilterBuilder, limit, offset int) ([]*models.SurveyResponse, error) {
	query := `SELECT ` + surveyResponseColumns + ` FROM survey_responses`
	var args []interface{}
	if fb != nil {
		if where, whereArgs := fb.Build(); where != "" {
			query += " WHERE " + where
			args = whereArgs
		}
	}
	query += " ORDER BY submitted_at ASC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorage, "failed to list survey responses", err)
	}
	defer rows.Close()

	var resps []*models.SurveyResponse
	for rows.Next() {
		var resp models.SurveyResponse
		var answers string
		err := rows.Scan(&resp.ID, &resp.SurveyID, &resp.EventID, &resp.RespondentID,
			&answers, &resp.SubmittedAt, &resp.UpdatedAt)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrStorage, "failed to scan survey response", err)
		}
		resp.Answers = []byte(answers)
		resps = append(resps, &resp)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorage, "failed to iterate survey responses", err)
	}
	return resps, nil
}
