package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapFormat(t *testing.T) {
	base := stderrors.New("boom")
	err := Wrap(base, "Dispatcher", "processCreateRequest", "persist")
	require.Error(t, err)
	assert.Equal(t, "Dispatcher.processCreateRequest: persist failed: boom", err.Error())
	assert.True(t, stderrors.Is(err, base))
}

func TestWrapNil(t *testing.T) {
	assert.NoError(t, Wrap(nil, "c", "m", "a"))
}

func TestClassifiedWrappers(t *testing.T) {
	tests := []struct {
		name  string
		wrap  func(error, string, string, string) error
		class ErrorClass
	}{
		{"transient", WrapTransient, ErrorTransient},
		{"invalid", WrapInvalid, ErrorInvalid},
		{"fatal", WrapFatal, ErrorFatal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.wrap(stderrors.New("boom"), "Store", "Get", "kv get")
			require.Error(t, err)

			var ce *ClassifiedError
			require.True(t, stderrors.As(err, &ce))
			assert.Equal(t, tt.class, ce.Class)
			assert.Equal(t, "Store", ce.Component)
			assert.Equal(t, tt.class, Classify(err))
		})
	}
}

func TestClassifiedWithoutCause(t *testing.T) {
	// Message-only errors carry the action text as the cause.
	err := WrapInvalid(nil, "Dispatcher", "resolve", "empty resource identifier")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty resource identifier")
	assert.True(t, IsInvalid(err))
}

func TestIsTransientSentinels(t *testing.T) {
	assert.True(t, IsTransient(ErrRevisionConflict))
	assert.True(t, IsTransient(fmt.Errorf("wrapped: %w", ErrStorageUnavailable)))
	assert.True(t, IsTransient(stderrors.New("request timeout while reading")))
	assert.False(t, IsTransient(ErrInvalidResource))
	assert.False(t, IsTransient(nil))
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(fmt.Errorf("lookup: %w", ErrResourceNotFound)))
	assert.True(t, IsNotFound(ErrParentNotFound))
	assert.False(t, IsNotFound(ErrResourceExists))
}

func TestClassifyDefaultsToTransient(t *testing.T) {
	assert.Equal(t, ErrorTransient, Classify(stderrors.New("something odd")))
	assert.Equal(t, ErrorFatal, Classify(ErrMissingConfig))
}
