package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsThroughWrapping(t *testing.T) {
	base := NotFoundError("prompt 'foo'")
	wrapped := fmt.Errorf("failed to read prompt: %w", base)

	assert.True(t, Is(wrapped, ErrCodeNotFound))
	assert.False(t, Is(wrapped, ErrCodeConflict))
	assert.False(t, Is(stderrors.New("plain"), ErrCodeNotFound))
	assert.False(t, Is(nil, ErrCodeNotFound))
}

func TestIsFindsInnerCode(t *testing.T) {
	inner := NotFoundError("bank 'x'")
	outer := StorageError("delete bank", inner)

	assert.True(t, Is(outer, ErrCodeStorageFailure))
	assert.True(t, Is(outer, ErrCodeNotFound))
}

func TestCategorization(t *testing.T) {
	tests := []struct {
		code      ErrorCode
		category  ErrorCategory
		retryable bool
	}{
		{ErrCodeInvalidKey, CategoryValidation, false},
		{ErrCodeNotFound, CategoryResolution, false},
		{ErrCodeConflict, CategorySync, false},
		{ErrCodeStorageFailure, CategoryStorage, true},
		{ErrCodeRemoteFailure, CategoryRemote, true},
		{ErrCodeInternalError, CategorySystem, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			err := NewAppError(tt.code, "x")
			assert.Equal(t, tt.category, err.Category)
			assert.Equal(t, tt.retryable, err.IsRetryable())
		})
	}
}

func TestGetAppErrorConvertsPlainErrors(t *testing.T) {
	appErr := GetAppError(stderrors.New("boom"))
	require.NotNil(t, appErr)
	assert.Equal(t, ErrCodeInternalError, appErr.Code)
	assert.EqualError(t, appErr.Unwrap(), "boom")
}

func TestCLIFormatListsCandidates(t *testing.T) {
	h := NewCLIErrorHandler(false, zerolog.Nop())
	err := AmbiguousError("ap", []string{"api (a)", "apps (ap)"})

	out := h.FormatError(err)
	assert.Contains(t, out, "WARNING: 'ap' matches more than one prompt")
	assert.Contains(t, out, "  api (a)")
	assert.Contains(t, out, "  apps (ap)")
}

func TestWriteHTTPError(t *testing.T) {
	h := NewHTTPErrorHandler(true, zerolog.Nop())
	rec := httptest.NewRecorder()

	h.WriteHTTPError(rec, NotFoundError("prompt 'foo'").WithDetails("no such key"))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), `"code":"NOT_FOUND"`)
	assert.Contains(t, rec.Body.String(), `"details":"no such key"`)
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusUnauthorized, HTTPStatus(NewAppError(ErrCodeUnauthorized, "x")))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(InvalidInputError("x")))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(stderrors.New("x")))
}
