package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"factoryops/domain/intent"
	"factoryops/domain/shared"

	"github.com/stretchr/testify/assert"
)

func TestCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{"unknown type", intent.NewUnknownEntityTypeError("WAREHOUSE"), CodeUnknownEntityType},
		{"entity not found", intent.NewNotFoundError(intent.EntityMaterialBatch, "MB-1"), CodeEntityNotFound},
		{"repository not found", shared.NewNotFoundError("material_batch", "MB-1"), CodeEntityNotFound},
		{"validation", &intent.ValidationError{}, CodeValidationRejected},
		{"token expired", intent.NewTokenExpiredError(), CodeTokenExpired},
		{"token used", intent.NewTokenAlreadyUsedError(), CodeTokenAlreadyUsed},
		{"missing", intent.NewMissingFieldsError("quantity"), CodeMissingRequiredField},
		{"internal wrapping not found", intent.NewInternalError("save", shared.NewNotFoundError("x", "y")), CodeInternal},
		{"unavailable", shared.NewUnavailableError("mysql", errors.New("i/o timeout")), CodeUnavailable},
		{"app error", BadRequest("bad"), CodeBadRequest},
		{"wrapped app error", fmt.Errorf("handler: %w", NotFound("gone")), CodeNotFound},
		{"plain", errors.New("boom"), CodeInternal},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Code(tc.err))
		})
	}
}

func TestMapDomainErrorHidesInternals(t *testing.T) {
	e := MapDomainError(errors.New("dial tcp 10.0.0.3:3306: connection refused"))
	assert.Equal(t, CodeInternal, e.Code)
	assert.Equal(t, "internal server error", e.Message)
	assert.Error(t, e.Unwrap())

	e = MapDomainError(intent.NewInternalError("audit append", errors.New("disk full")))
	assert.Equal(t, "audit append failed, the operation was not applied", e.Message)

	e = MapDomainError(shared.NewUnavailableError("mysql", errors.New("i/o timeout")))
	assert.NotContains(t, e.Message, "i/o timeout")

	e = MapDomainError(intent.NewTokenExpiredError())
	assert.Equal(t, CodeTokenExpired, e.Code)
	assert.Contains(t, e.Message, "expired")

	assert.Nil(t, MapDomainError(nil))
}

func TestHTTPStatusCode(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, New(CodeMissingRequiredField, "").HTTPStatusCode())
	assert.Equal(t, http.StatusNotFound, New(CodeTokenNotFound, "").HTTPStatusCode())
	assert.Equal(t, http.StatusConflict, New(CodeTokenAlreadyUsed, "").HTTPStatusCode())
	assert.Equal(t, http.StatusGone, New(CodeTokenExpired, "").HTTPStatusCode())
	assert.Equal(t, http.StatusUnprocessableEntity, New(CodeValidationRejected, "").HTTPStatusCode())
	assert.Equal(t, http.StatusServiceUnavailable, Unavailable("").HTTPStatusCode())
	assert.Equal(t, http.StatusInternalServerError, Internal("").HTTPStatusCode())
}

func TestIs(t *testing.T) {
	err := fmt.Errorf("wrap: %w", TooManyRequests("slow down"))
	assert.True(t, Is(err, CodeTooManyRequest))
	assert.False(t, Is(err, CodeConflict))
	assert.False(t, Is(errors.New("plain"), CodeInternal))
}
