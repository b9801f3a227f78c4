package errors

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPStatusCode(t *testing.T) {
	tests := []struct {
		err      error
		expected int
	}{
		{NewInvalidRequestError("bad", nil), StatusBadRequest},
		{NewNotFoundError("missing", nil), StatusNotFound},
		{NewConflictError("dup", nil), StatusConflict},
		{NewServiceUnavailableError("down", nil), StatusServiceUnavailable},
		{NewDatabaseError("db", nil), StatusInternalServerError},
		{fmt.Errorf("wrapped: %w", NewConflictError("dup", nil)), StatusConflict},
		{errors.New("plain"), StatusInternalServerError},
		{nil, StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, HTTPStatusCode(tt.err), "%v", tt.err)
	}
}

func TestGetHumanReadableMessage_DoesNotLeakCauses(t *testing.T) {
	err := NewDatabaseError("Registration failed, please try again", errors.New("pq: password authentication failed for user app"))

	assert.Equal(t, "Registration failed, please try again", GetHumanReadableMessage(err))
	assert.Equal(t, genericMessage, GetHumanReadableMessage(errors.New("dial tcp 10.0.0.5:5432: connection refused")))
	assert.Equal(t, genericMessage, GetHumanReadableMessage(nil))
}

func TestAppError_Unwrap(t *testing.T) {
	sentinel := errors.New("sentinel")
	err := NewConflictError("dup", sentinel)

	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, "CONFLICT: dup: sentinel", err.Error())
	assert.Equal(t, ErrorTypeUnknown, GetErrorType(sentinel))
	assert.Empty(t, GetErrorType(nil))
}

func TestIsDuplicateKeyError(t *testing.T) {
	assert.True(t, IsDuplicateKeyError(errors.New(`ERROR: duplicate key value violates unique constraint "idx_registrations_email" (SQLSTATE 23505)`)))
	assert.True(t, IsDuplicateKeyError(errors.New("UNIQUE constraint failed: registrations.email")))
	assert.True(t, IsDuplicateKeyError(NewConflictError("dup", nil)))
	assert.False(t, IsDuplicateKeyError(errors.New("CHECK constraint failed: participants")))
	assert.False(t, IsDuplicateKeyError(nil))
}

func TestIsConnectionError(t *testing.T) {
	assert.True(t, IsConnectionError(context.DeadlineExceeded))
	assert.True(t, IsConnectionError(fmt.Errorf("query: %w", sql.ErrConnDone)))
	assert.True(t, IsConnectionError(errors.New("sql: database is closed")))
	assert.True(t, IsConnectionError(errors.New("dial tcp 127.0.0.1:5432: connect: connection refused")))
	assert.False(t, IsConnectionError(errors.New("syntax error at or near SELECT")))
	assert.False(t, IsConnectionError(nil))
}

type form struct {
	Email        string `json:"email" validate:"required,email"`
	Participants int    `json:"participants" validate:"gte=1,lte=8"`
	City         string `json:"city,omitempty" validate:"required,max=5"`
	Note         string `validate:"oneof=a b"`
}

func TestFormatValidationErrors(t *testing.T) {
	err := validator.New().Struct(&form{Email: "nope", Participants: 9, City: "Civitavecchia", Note: "c"})
	require.Error(t, err)

	got := FormatValidationErrors(err, &form{})

	assert.Equal(t, []ValidationErrorResponse{
		{Field: "email", Message: "Indirizzo email non valido"},
		{Field: "participants", Message: "Il valore massimo è 8"},
		{Field: "city", Message: "Massimo 5 caratteri"},
		{Field: "Note", Message: "Valore non ammesso: scegli tra a, b"},
	}, got)
}

func TestFormatValidationErrors_JSONTypeMismatch(t *testing.T) {
	var f form
	err := json.Unmarshal([]byte(`{"participants":"two"}`), &f)
	require.Error(t, err)

	got := FormatValidationErrors(err, &f)

	require.Len(t, got, 1)
	assert.Equal(t, "participants", got[0].Field)
	assert.Equal(t, "Tipo non valido: atteso int", got[0].Message)
}

func TestFormatValidationErrors_Unrecognised(t *testing.T) {
	assert.Empty(t, FormatValidationErrors(errors.New("unexpected EOF"), nil))
	assert.Nil(t, FormatValidationErrors(nil, nil))
}
