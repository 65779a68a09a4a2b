package store

import (
	apperrors "github.com/Barneycle/ganapp-core/internal/errors"
	"github.com/Barneycle/ganapp-core/internal/models"
)

// CreateNotice records a conflict resolution that dropped or replaced
// a local change.
func (s *Store) CreateNotice(notice *models.SyncNotice) error {
	if notice.ID == "" {
		notice.ID = models.NewUUID()
	}
	notice.CreatedAt = nowUnix()

	query := `
	INSERT INTO sync_notices (id, entry_id, data_type, resolution, reason, seen, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.Exec(query, notice.ID, notice.EntryID, notice.DataType,
		notice.Resolution, notice.Reason, notice.Seen, notice.CreatedAt)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrStorage, "failed to create notice", err)
	}
	return nil
}

// ListUnseenNotices returns notices the user has not dismissed yet,
// oldest first.
func (s *Store) ListUnseenNotices() ([]*models.SyncNotice, error) {
	query := `
	SELECT id, entry_id, data_type, resolution, reason, seen, created_at
	FROM sync_notices WHERE seen = 0 ORDER BY created_at ASC
	`
	rows, err := s.db.Query(query)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorage, "failed to list notices", err)
	}
	defer rows.Close()

	var notices []*models.SyncNotice
	for rows.Next() {
		var notice models.SyncNotice
		err := rows.Scan(&notice.ID, &notice.EntryID, &notice.DataType,
			&notice.Resolution, &notice.Reason, &notice.Seen, &notice.CreatedAt)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrStorage, "failed to scan notice", err)
		}
		notices = append(notices, &notice)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorage, "failed to iterate notices", err)
	}
	return notices, nil
}

// MarkNoticeSeen dismisses a notice. Dismissal is permanent, the
// notice never resurfaces.
func (s *Store) MarkNoticeSeen(id models.UUID) error {
	result, err := s.db.Exec(`UPDATE sync_notices SET seen = 1 WHERE id = ?`, id)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrStorage, "failed to mark notice seen", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return apperrors.New(apperrors.ErrNotFound, "notice not found")
	}
	return nil
}
