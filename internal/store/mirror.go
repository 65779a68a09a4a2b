package store

import (
	"encoding/json"

	apperrors "github.com/Barneycle/ganapp-core/internal/errors"
	"github.com/Barneycle/ganapp-core/internal/models"
)

// MirrorRemote writes the server's authoritative copy of a record into
// the local cache. The queue calls this after a successful apply and
// after a server-wins resolution, so reads keep working offline with
// the freshest known state.
func (s *Store) MirrorRemote(dataType models.DataType, payload []byte) error {
	switch dataType {
	case models.DataTypeEvent:
		var event models.Event
		if err := json.Unmarshal(payload, &event); err != nil {
			return apperrors.Wrap(apperrors.ErrInvalid, "failed to decode event payload", err)
		}
		return s.SaveEvent(&event)

	case models.DataTypeRegistration:
		var reg models.Registration
		if err := json.Unmarshal(payload, &reg); err != nil {
			return apperrors.Wrap(apperrors.ErrInvalid, "failed to decode registration payload", err)
		}
		return s.SaveRegistration(&reg)

	case models.DataTypeSurveyResponse:
		var resp models.SurveyResponse
		if err := json.Unmarshal(payload, &resp); err != nil {
			return apperrors.Wrap(apperrors.ErrInvalid, "failed to decode survey response payload", err)
		}
		return s.SaveSurveyResponse(&resp)

	case models.DataTypeAttendanceLog:
		var log models.AttendanceLog
		if err := json.Unmarshal(payload, &log); err != nil {
			return apperrors.Wrap(apperrors.ErrInvalid, "failed to decode attendance payload", err)
		}
		return s.SaveAttendanceLog(&log)

	case models.DataTypeCertificate:
		var cert models.Certificate
		if err := json.Unmarshal(payload, &cert); err != nil {
			return apperrors.Wrap(apperrors.ErrInvalid, "failed to decode certificate payload", err)
		}
		return s.SaveCertificate(&cert)
	}

	return apperrors.New(apperrors.ErrInvalid, "unknown data type: "+string(dataType))
}

// RemoveLocal deletes the cached copy of a record that no longer
// exists remotely. Removal is idempotent, an absent row is fine.
// An event removal also clears its registrations and attendance, the
// same cascade DeleteEvent runs for an explicit cancellation.
func (s *Store) RemoveLocal(dataType models.DataType, id models.UUID) error {
	table := dataType.TableFor()
	if table == "" {
		return apperrors.New(apperrors.ErrInvalid, "unknown data type: "+string(dataType))
	}

	if dataType == models.DataTypeEvent {
		if err := s.removeEventChildren(id); err != nil {
			return err
		}
	}

	// Table names come from the closed DataType mapping, never from
	// caller input.
	if _, err := s.db.Exec(`DELETE FROM `+table+` WHERE id = ?`, id); err != nil {
		return apperrors.Wrap(apperrors.ErrStorage, "failed to remove local copy", err)
	}
	return nil
}
