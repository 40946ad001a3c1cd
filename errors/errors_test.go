package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorClass_String(t *testing.T) {
	assert.Equal(t, "transient", ErrorTransient.String())
	assert.Equal(t, "invalid", ErrorInvalid.String())
	assert.Equal(t, "fatal", ErrorFatal.String())
	assert.Equal(t, "unknown", ErrorClass(42).String())
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"connection timeout", ErrConnectionTimeout, true},
		{"no connection", ErrNoConnection, true},
		{"queue full", ErrQueueFull, true},
		{"context canceled", context.Canceled, true},
		{"deadline exceeded", context.DeadlineExceeded, true},
		{"message pattern", fmt.Errorf("dial tcp: i/o timeout"), true},
		{"invalid data", ErrInvalidData, false},
		{"classified fatal", WrapFatal(ErrConnectionTimeout, "c", "m", "a"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsTransient(tt.err))
		})
	}
}

func TestIsFatal(t *testing.T) {
	assert.False(t, IsFatal(nil))
	assert.True(t, IsFatal(ErrInvalidConfig))
	assert.True(t, IsFatal(fmt.Errorf("load: %w", ErrMissingConfig)))
	assert.True(t, IsFatal(WrapFatal(errors.New("boom"), "cmd", "run", "assemble")))
	assert.False(t, IsFatal(ErrParsingFailed))
}

func TestIsInvalid(t *testing.T) {
	assert.False(t, IsInvalid(nil))
	assert.True(t, IsInvalid(ErrParsingFailed))
	assert.True(t, IsInvalid(WrapInvalid(errors.New("bad"), "config", "Validate", "settings")))
	assert.False(t, IsInvalid(ErrConnectionLost))
}

func TestClassify(t *testing.T) {
	assert.Equal(t, ErrorTransient, Classify(nil))
	assert.Equal(t, ErrorTransient, Classify(ErrConnectionLost))
	assert.Equal(t, ErrorFatal, Classify(ErrInvalidConfig))
	assert.Equal(t, ErrorInvalid, Classify(ErrInvalidData))
	assert.Equal(t, ErrorTransient, Classify(errors.New("something odd")))
}

func TestWrap(t *testing.T) {
	assert.NoError(t, Wrap(nil, "c", "m", "a"))

	err := Wrap(ErrSendFailed, "bridge", "OnBatch", "send")
	assert.Equal(t, "bridge.OnBatch: send failed: send failed", err.Error())
	assert.ErrorIs(t, err, ErrSendFailed)
}

func TestWrapClassified(t *testing.T) {
	base := errors.New("root cause")

	for _, tc := range []struct {
		wrap  func(error, string, string, string) error
		class ErrorClass
	}{
		{WrapTransient, ErrorTransient},
		{WrapInvalid, ErrorInvalid},
		{WrapFatal, ErrorFatal},
	} {
		err := tc.wrap(base, "engine", "OpenAll", "start initiator")
		var ce *ClassifiedError
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, tc.class, ce.Class)
		assert.Equal(t, "engine", ce.Component)
		assert.Equal(t, "OpenAll", ce.Operation)
		assert.Equal(t, "engine.OpenAll: start initiator failed: root cause", err.Error())
		assert.ErrorIs(t, err, base)
		assert.NoError(t, tc.wrap(nil, "a", "b", "c"))
	}
}

func TestChain(t *testing.T) {
	assert.Empty(t, Chain(nil))

	root := errors.New("unknown tag 9999")
	err := fmt.Errorf("send: %w", fmt.Errorf("parse: %w", root))
	assert.Equal(t, []string{
		"send: parse: unknown tag 9999",
		"parse: unknown tag 9999",
		"unknown tag 9999",
	}, Chain(err))

	joined := errors.Join(errors.New("first"), errors.New("second"))
	assert.Equal(t, []string{"first", "second"}, Chain(joined))
}
