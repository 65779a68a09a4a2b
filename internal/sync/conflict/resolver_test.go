package conflict

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Barneycle/ganapp-core/internal/errors"
	"github.com/Barneycle/ganapp-core/internal/models"
)

func mkOp(dt models.DataType, op models.Operation, payload string) *models.QueuedOperation {
	return &models.QueuedOperation{
		ID:        models.NewUUID(),
		DataType:  dt,
		Operation: op,
		Payload:   json.RawMessage(payload),
	}
}

func TestNewResolver_defaults(t *testing.T) {
	r := NewResolver()

	assert.Equal(t, StrategyClientWins, r.StrategyFor(models.DataTypeEvent))
	assert.Equal(t, StrategyServerWins, r.StrategyFor(models.DataTypeRegistration))
	assert.Equal(t, StrategyLastWriteWins, r.StrategyFor(models.DataTypeSurveyResponse))
	assert.Equal(t, StrategyServerWins, r.StrategyFor(models.DataTypeAttendanceLog))
	assert.Equal(t, StrategyServerWins, r.StrategyFor(models.DataTypeCertificate))

	// Unknown types get the conservative default.
	assert.Equal(t, StrategyServerWins, r.StrategyFor(models.DataType("bogus")))
}

func TestResolve_registrationServerWins(t *testing.T) {
	r := NewResolver()
	op := mkOp(models.DataTypeRegistration, models.OperationCreate,
		`{"id":"reg-1","event_id":"ev-1","user_id":"u-1","status":"confirmed"}`)

	remote := []byte(`{"id":"reg-1","event_id":"ev-1","user_id":"u-1","status":"waitlisted"}`)
	cause := apperrors.Conflict("event is at capacity", remote)

	dec, err := r.Resolve(op, cause)
	require.NoError(t, err)

	assert.Equal(t, ResolutionServerWins, dec.Resolution)
	assert.JSONEq(t, string(remote), string(dec.Remote))
	assert.True(t, dec.Notify)
	assert.Equal(t, "event is at capacity", dec.Reason)
}

func TestResolve_serverWinsWithoutRemoteState(t *testing.T) {
	r := NewResolver()
	op := mkOp(models.DataTypeRegistration, models.OperationCreate, `{"id":"reg-1"}`)

	dec, err := r.Resolve(op, apperrors.Conflict("registration closed", nil))
	require.NoError(t, err)

	assert.Equal(t, ResolutionServerWins, dec.Resolution)
	assert.Nil(t, dec.Remote)
	assert.True(t, dec.Notify)
}

func TestResolve_surveyLastWriteWins(t *testing.T) {
	tests := []struct {
		name     string
		localTS  int64
		remoteTS int64
		want     Resolution
	}{
		{"local newer wins", 2000, 1000, ResolutionApplyLocal},
		{"remote newer wins", 1000, 2000, ResolutionServerWins},
		{"tie goes to local", 1500, 1500, ResolutionApplyLocal},
	}

	r := NewResolver()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op := mkOp(models.DataTypeSurveyResponse, models.OperationCreate,
				fmt.Sprintf(`{"id":"sr-1","survey_id":"s-1","submitted_at":%d,"updated_at":%d}`, tt.localTS, tt.localTS))
			remote := []byte(fmt.Sprintf(`{"id":"sr-1","survey_id":"s-1","updated_at":%d}`, tt.remoteTS))

			dec, err := r.Resolve(op, apperrors.Conflict("response already submitted", remote))
			require.NoError(t, err)
			assert.Equal(t, tt.want, dec.Resolution)

			if tt.want == ResolutionServerWins {
				assert.True(t, dec.Notify)
				assert.JSONEq(t, string(remote), string(dec.Remote))
			} else {
				assert.False(t, dec.Notify)
			}
		})
	}
}

func TestResolve_surveyMissingRemoteTimestamp(t *testing.T) {
	r := NewResolver()
	op := mkOp(models.DataTypeSurveyResponse, models.OperationCreate,
		`{"id":"sr-1","updated_at":9999}`)

	// No remote copy to compare against, so the accepted server copy
	// stands.
	dec, err := r.Resolve(op, apperrors.Conflict("response already submitted", nil))
	require.NoError(t, err)
	assert.Equal(t, ResolutionServerWins, dec.Resolution)
	assert.True(t, dec.Notify)
}

func TestResolve_eventEditClientWins(t *testing.T) {
	r := NewResolver()
	op := mkOp(models.DataTypeEvent, models.OperationUpdate,
		`{"id":"ev-1","title":"Renamed"}`)

	dec, err := r.Resolve(op, apperrors.Conflict("version mismatch", nil))
	require.NoError(t, err)

	assert.Equal(t, ResolutionApplyLocal, dec.Resolution)
	assert.False(t, dec.Notify)
}

func TestResolve_remoteGoneDiscards(t *testing.T) {
	r := NewResolver()

	t.Run("uses the remote message", func(t *testing.T) {
		op := mkOp(models.DataTypeEvent, models.OperationUpdate, `{"id":"ev-1"}`)
		dec, err := r.Resolve(op, apperrors.New(apperrors.ErrRemoteGone, "event was deleted by its organizer"))
		require.NoError(t, err)

		assert.Equal(t, ResolutionDiscard, dec.Resolution)
		assert.True(t, dec.Notify)
		assert.Equal(t, "event was deleted by its organizer", dec.Reason)
	})

	t.Run("falls back to a generic reason", func(t *testing.T) {
		op := mkOp(models.DataTypeRegistration, models.OperationCreate, `{"id":"reg-1"}`)
		dec, err := r.Resolve(op, apperrors.New(apperrors.ErrRemoteGone, ""))
		require.NoError(t, err)

		assert.Equal(t, ResolutionDiscard, dec.Resolution)
		assert.Equal(t, "registration no longer exists on the server", dec.Reason)
	})

	t.Run("discards regardless of strategy", func(t *testing.T) {
		op := mkOp(models.DataTypeSurveyResponse, models.OperationUpdate, `{"id":"sr-1","updated_at":9999}`)
		dec, err := r.Resolve(op, apperrors.New(apperrors.ErrRemoteGone, "survey removed"))
		require.NoError(t, err)
		assert.Equal(t, ResolutionDiscard, dec.Resolution)
	})
}

func TestResolve_rejectsBadInput(t *testing.T) {
	r := NewResolver()
	op := mkOp(models.DataTypeEvent, models.OperationUpdate, `{"id":"ev-1"}`)

	_, err := r.Resolve(nil, apperrors.Conflict("x", nil))
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalid))

	_, err = r.Resolve(op, nil)
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalid))

	// Retryable failures never reach the resolver.
	_, err = r.Resolve(op, apperrors.New(apperrors.ErrTransient, "network flake"))
	assert.True(t, apperrors.Is(err, apperrors.ErrInternal))
}

func TestSetStrategy_overridesDefault(t *testing.T) {
	r := NewResolver()
	r.SetStrategy(models.DataTypeSurveyResponse, StrategyClientWins)

	op := mkOp(models.DataTypeSurveyResponse, models.OperationCreate, `{"id":"sr-1","updated_at":1}`)
	dec, err := r.Resolve(op, apperrors.Conflict("response already submitted", nil))
	require.NoError(t, err)
	assert.Equal(t, ResolutionApplyLocal, dec.Resolution)
}

func TestPayloadTimestamp(t *testing.T) {
	assert.Equal(t, int64(0), payloadTimestamp(nil))
	assert.Equal(t, int64(0), payloadTimestamp(json.RawMessage(`not json`)))
	assert.Equal(t, int64(42), payloadTimestamp(json.RawMessage(`{"updated_at":42,"submitted_at":7}`)))
	assert.Equal(t, int64(7), payloadTimestamp(json.RawMessage(`{"submitted_at":7}`)))
}
