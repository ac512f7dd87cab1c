package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DerivesCategory(t *testing.T) {
	tests := []struct {
		code     string
		category Category
		retry    bool
	}{
		{ErrCodeConfigInvalid, CategoryConfig, false},
		{ErrCodeFileNotFound, CategoryIO, false},
		{ErrCodeEmbedTimeout, CategoryNetwork, true},
		{ErrCodeInvalidInput, CategoryValidation, false},
		{ErrCodeInternal, CategoryInternal, false},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "boom", nil)
			assert.Equal(t, tt.category, err.Category)
			assert.Equal(t, tt.retry, err.Retryable)
		})
	}
}

func TestError_Format(t *testing.T) {
	err := New(ErrCodeFileNotFound, "a.txt not found", nil)
	assert.Equal(t, "[ERR_201_FILE_NOT_FOUND] a.txt not found", err.Error())
}

func TestWrap_PreservesChain(t *testing.T) {
	cause := fmt.Errorf("disk on fire")
	err := Wrap(ErrCodeStoreFailure, cause)
	require.NotNil(t, err)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, cause, stderrors.Unwrap(err))
}

func TestWrap_Nil(t *testing.T) {
	assert.Nil(t, Wrap(ErrCodeStoreFailure, nil))
}

func TestIs_MatchesByCode(t *testing.T) {
	a := New(ErrCodeChunkNotFound, "chunk 3 missing", nil)
	b := New(ErrCodeChunkNotFound, "different message", nil)
	assert.ErrorIs(t, a, b)
	assert.NotErrorIs(t, a, New(ErrCodeFileNotFound, "x", nil))
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(NotFound("a.txt")))
	assert.True(t, IsNotFound(New(ErrCodeChunkNotFound, "x", nil)))
	assert.True(t, IsNotFound(fmt.Errorf("wrapped: %w", NotFound("b"))))
	assert.False(t, IsNotFound(New(ErrCodeInternal, "x", nil)))
	assert.False(t, IsNotFound(fmt.Errorf("plain")))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(New(ErrCodeEmbedUnavailable, "down", nil)))
	assert.False(t, IsRetryable(New(ErrCodeFileNotFound, "gone", nil)))
	assert.False(t, IsRetryable(fmt.Errorf("plain")))
}
