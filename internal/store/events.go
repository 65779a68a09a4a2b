package store

import (
	"database/sql"
	"errors"

	apperrors "github.com/Barneycle/ganapp-core/internal/errors"
	"github.com/Barneycle/ganapp-core/internal/models"
)

// SaveEvent upserts a cached event by id. New events get an id and
// timestamps, existing rows are overwritten with the newer copy.
func (s *Store) SaveEvent(event *models.Event) error {
	now := nowUnix()
	if event.ID == "" {
		event.ID = models.NewUUID()
		event.CreatedAt = now
	}
	if event.CreatedAt == 0 {
		event.CreatedAt = now
	}
	event.UpdatedAt = now

	query := `
	INSERT INTO events (id, title, description, venue, organizer_id, status, capacity,
		starts_at, ends_at, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		title = excluded.title,
		description = excluded.description,
		venue = excluded.venue,
		organizer_id = excluded.organizer_id,
		status = excluded.status,
		capacity = excluded.capacity,
		starts_at = excluded.starts_at,
		ends_at = excluded.ends_at,
		updated_at = excluded.updated_at
	`
	_, err := s.db.Exec(query, event.ID, event.Title, event.Description, event.Venue,
		event.OrganizerID, event.Status, event.Capacity, event.StartsAt, event.EndsAt,
		event.CreatedAt, event.UpdatedAt)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrStorage, "failed to save event", err)
	}
	return nil
}

// GetEvent retrieves a cached event by id.
func (s *Store) GetEvent(id models.UUID) (*models.Event, error) {
	query := `
	SELECT id, title, description, venue, organizer_id, status, capacity,
		   starts_at, ends_at, created_at, updated_at
	FROM events WHERE id = ?
	`
	stmt, err := s.prepare(query)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorage, "failed to prepare event query", err)
	}

	var event models.Event
	err = stmt.QueryRow(id).Scan(
		&event.ID, &event.Title, &event.Description, &event.Venue, &event.OrganizerID,
		&event.Status, &event.Capacity, &event.StartsAt, &event.EndsAt,
		&event.CreatedAt, &event.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.New(apperrors.ErrNotFound, "event not found")
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorage, "failed to get event", err)
	}
	return &event, nil
}

// ListEvents returns cached events matching the filters, newest start
// first.
func (s *Store) ListEvents(fb *FilterBuilder, limit, offset int) ([]*models.Event, error) {
	query := `
	SELECT id, title, description, venue, organizer_id, status, capacity,
		   starts_at, ends_at, created_at, updated_at
	FROM events
	`
	var args []interface{}
	if fb != nil {
		if where, whereArgs := fb.Build(); where != "" {
			query += " WHERE " + where
			args = whereArgs
		}
	}
	query += " ORDER BY starts_at DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorage, "failed to list events", err)
	}
	defer rows.Close()

	var events []*models.Event
	for rows.Next() {
		var event models.Event
		err := rows.Scan(
			&event.ID, &event.Title, &event.Description, &event.Venue, &event.OrganizerID,
			&event.Status, &event.Capacity, &event.StartsAt, &event.EndsAt,
			&event.CreatedAt, &event.UpdatedAt,
		)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrStorage, "failed to scan event", err)
		}
		events = append(events, &event)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorage, "failed to iterate events", err)
	}
	return events, nil
}

// DeleteEvent removes a cached event together with its registrations
// and attendance logs, so a cancellation leaves no orphan participation
// rows. Certificates stay: an issued document outlives the event record.
func (s *Store) DeleteEvent(id models.UUID) error {
	if err := s.removeEventChildren(id); err != nil {
		return err
	}
	result, err := s.db.Exec(`DELETE FROM events WHERE id = ?`, id)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrStorage, "failed to delete event", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return apperrors.New(apperrors.ErrNotFound, "event not found")
	}
	return nil
}

func (s *Store) removeEventChildren(id models.UUID) error {
	if _, err := s.db.Exec(`DELETE FROM event_registrations WHERE event_id = ?`, id); err != nil {
		return apperrors.Wrap(apperrors.ErrStorage, "failed to delete event registrations", err)
	}
	if _, err := s.db.Exec(`DELETE FROM attendance_logs WHERE event_id = ?`, id); err != nil {
		return apperrors.Wrap(apperrors.ErrStorage, "failed to delete event attendance", err)
	}
	return nil
}
