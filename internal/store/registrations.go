package store

import (
	"database/sql"
	"errors"

	apperrors "github.com/Barneycle/ganapp-core/internal/errors"
	"github.com/Barneycle/ganapp-core/internal/models"
)

const registrationColumns = "id, event_id, user_id, status, registered_at, updated_at"

// SaveRegistration upserts a registration keyed on (event_id, user_id).
// A replayed offline registration therefore lands on the same row
// instead of duplicating it.
func (s *Store) SaveRegistration(reg *models.Registration) error {
	now := nowUnix()
	if reg.ID == "" {
		reg.ID = models.NewUUID()
	}
	if reg.RegisteredAt == 0 {
		reg.RegisteredAt = now
	}
	reg.UpdatedAt = now

	query := `
	INSERT INTO event_registrations (id, event_id, user_id, status, registered_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		status = excluded.status,
		updated_at = excluded.updated_at
	ON CONFLICT(event_id, user_id) DO UPDATE SET
		status = excluded.status,
		updated_at = excluded.updated_at
	`
	_, err := s.db.Exec(query, reg.ID, reg.EventID, reg.UserID, reg.Status,
		reg.RegisteredAt, reg.UpdatedAt)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrStorage, "failed to save registration", err)
	}
	return nil
}

// GetRegistration retrieves a registration by id.
func (s *Store) GetRegistration(id models.UUID) (*models.Registration, error) {
	stmt, err := s.prepare(`SELECT ` + registrationColumns + ` FROM event_registrations WHERE id = ?`)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorage, "failed to prepare registration query", err)
	}
	return scanRegistration(stmt.QueryRow(id))
}

// GetRegistrationForUser retrieves the registration a user holds for
// an event, keyed on the natural unique pair.
func (s *Store) GetRegistrationForUser(eventID, userID models.UUID) (*models.Registration, error) {
	stmt, err := s.prepare(`SELECT ` + registrationColumns + ` FROM event_registrations WHERE event_id = ? AND user_id = ?`)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorage, "failed to prepare registration query", err)
	}
	return scanRegistration(stmt.QueryRow(eventID, userID))
}

func scanRegistration(row *sql.Row) (*models.Registration, error) {
	var reg models.Registration
	err := row.Scan(&reg.ID, &reg.EventID, &reg.UserID, &reg.Status,
		&reg.RegisteredAt, &reg.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.New(apperrors.ErrNotFound, "registration not found")
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorage, "failed to get registration", err)
	}
	return &reg, nil
}

// ListRegistrations returns registrations matching the filters in
// registration order.
func (s *Store) ListRegistrations(fb *FilterBuilder, limit, offset int) ([]*models.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM event_registrations`
	var args []interface{}
	if fb != nil {
		if where, whereArgs := fb.Build(); where != "" {
			query += " WHERE " + where
			args = whereArgs
		}
	}
	query += " ORDER BY registered_at ASC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorage, "failed to list registrations", err)
	}
	defer rows.Close()

	var regs []*models.Registration
	for rows.Next() {
		var reg models.Registration
		err := rows.Scan(&reg.ID, &reg.EventID, &reg.UserID, &reg.Status,
			&reg.RegisteredAt, &reg.UpdatedAt)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrStorage, "failed to scan registration", err)
		}
		regs = append(regs, &reg)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorage, "failed to iterate registrations", err)
	}
	return regs, nil
}

// DeleteRegistration removes a registration by id.
func (s *Store) DeleteRegistration(id models.UUID) error {
	result, err := s.db.Exec(`DELETE FROM event_registrations WHERE id = ?`, id)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrStorage, "failed to delete registration", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return apperrors.New(apperrors.ErrNotFound, "registration not found")
	}
	return nil
}
