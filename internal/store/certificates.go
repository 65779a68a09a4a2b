package store

import (
	"database/sql"
	"errors"

	apperrors "github.com/Barneycle/ganapp-core/internal/errors"
	"github.com/Barneycle/ganapp-core/internal/models"
)

const certificateColumns = "id, event_id, user_id, serial_number, status, issued_at, updated_at"

// SaveCertificate upserts a certificate keyed on (event_id, user_id).
func (s *Store) SaveCertificate(cert *models.Certificate) error {
	now := nowUnix()
	if cert.ID == "" {
		cert.ID = models.NewUUID()
	}
	if cert.IssuedAt == 0 {
		cert.IssuedAt = now
	}
	cert.UpdatedAt = now

	query := `
	INSERT INTO certificates (id, event_id, user_id, serial_number, status, issued_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		serial_number = excluded.serial_number,
		status = excluded.status,
		updated_at = excluded.updated_at
	ON CONFLICT(event_id, user_id) DO UPDATE SET
		serial_number = excluded.serial_number,
		status = excluded.status,
		updated_at = excluded.updated_at
	`
	_, err := s.db.Exec(query, cert.ID, cert.EventID, cert.UserID, cert.SerialNumber,
		cert.Status, cert.IssuedAt, cert.UpdatedAt)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrStorage, "failed to save certificate", err)
	}
	return nil
}

// GetCertificate retrieves a certificate by id.
func (s *Store) GetCertificate(id models.UUID) (*models.Certificate, error) {
	stmt, err := s.prepare(`SELECT ` + certificateColumns + ` FROM certificates WHERE id = ?`)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorage, "failed to prepare certificate query", err)
	}

	var cert models.Certificate
	err = stmt.QueryRow(id).Scan(&cert.ID, &cert.EventID, &cert.UserID,
		&cert.SerialNumber, &cert.Status, &cert.IssuedAt, &cert.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.New(apperrors.ErrNotFound, "certificate not found")
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorage, "failed to get certificate", err)
	}
	return &cert, nil
}

// ListCertificates returns certificates matching the filters, newest
// first.
func (s *Store) ListCertificates(fb *FilterBuilder, limit, offset int) ([]*models.Certificate, error) {
	query := `SELECT ` + certificateColumns + ` FROM certificates`
	var args []interface{}
	if fb != nil {
		if where, whereArgs := fb.Build(); where != "" {
			query += " WHERE " + where
			args = whereArgs
		}
	}
	query += " ORDER BY issued_at DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorage, "failed to list certificates", err)
	}
	defer rows.Close()

	var certs []*models.Certificate
	for rows.Next() {
		var cert models.Certificate
		err := rows.Scan(&cert.ID, &cert.EventID, &cert.UserID, &cert.SerialNumber,
			&cert.Status, &cert.IssuedAt, &cert.UpdatedAt)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrStorage, "failed to scan certificate", err)
		}
		certs = append(certs, &cert)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorage, "failed to iterate certificates", err)
	}
	return certs, nil
}
