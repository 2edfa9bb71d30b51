package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAsFindsWrappedError(t *testing.T) {
	base := New(CodeNotFound, "Product not found")
	wrapped := fmt.Errorf("lookup: %w", base)

	typed := As(wrapped)
	require.NotNil(t, typed)
	assert.Equal(t, CodeNotFound, typed.Code())
	assert.Equal(t, "Product not found", typed.Message())
	assert.True(t, Is(wrapped, CodeNotFound))
	assert.False(t, Is(wrapped, CodeValidation))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Wrap(CodeStore, cause, "cart update failed")

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "STORE_ERROR: cart update failed: connection reset", err.Error())
}

func TestCodeOfUntyped(t *testing.T) {
	assert.Equal(t, CodeInternal, CodeOf(errors.New("plain")))
	assert.Equal(t, CodeInsufficientStock, CodeOf(New(CodeInsufficientStock, "Not enough stock")))
}

func TestMetadataFallsBackToInternal(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(Code("UNKNOWN")))
	assert.Equal(t, http.StatusNotFound, HTTPStatus(CodeNotFound))
	assert.Equal(t, http.StatusUnprocessableEntity, HTTPStatus(CodeInsufficientStock))
}

func TestNilErrorIsSafe(t *testing.T) {
	var e *Error
	assert.Equal(t, CodeInternal, e.Code())
	assert.Equal(t, "", e.Message())
	assert.Nil(t, e.Unwrap())
}
