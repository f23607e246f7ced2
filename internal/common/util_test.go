package common

import (
	"encoding/hex"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMakeRandHexString_LengthAndHex(t *testing.T) {
	s, err := MakeRandHexString(16)
	require.NoError(t, err)
	assert.Len(t, s, 32)
	_, err = hex.DecodeString(s)
	assert.NoError(t, err)
}

func TestMakeRandHexString_ZeroSize(t *testing.T) {
	s, err := MakeRandHexString(0)
	require.NoError(t, err)
	assert.Empty(t, s)
}

func TestWipeByteArray(t *testing.T) {
	buf := []byte("s3cr3t")
	WipeByteArray(buf)
	assert.Equal(t, make([]byte, 6), buf)

	WipeByteArray(nil)
}

func TestStructuredErrorsMatchSentinels(t *testing.T) {
	assert.True(t, errors.Is(NewValidationError("qty", "must be positive"), ErrValidation))
	assert.True(t, errors.Is(&IllegalTransitionError{OrderID: "o1", From: "synced", Event: "cancel"}, ErrIllegalTransition))
	assert.True(t, errors.Is(&ConfigurationError{Reason: "no secret"}, ErrConfiguration))

	assert.Contains(t, NewValidationError("qty", "must be positive").Error(), "qty: must be positive")
	assert.Contains(t, (&IllegalTransitionError{OrderID: "o1", From: "synced", Event: "cancel"}).Error(), `"cancel" not allowed from "synced"`)
}

func TestSyncErrorKinds(t *testing.T) {
	cause := errors.New("HTTP 503")

	retry := &SyncError{Kind: SyncErrorRetryable, Cause: cause}
	assert.ErrorIs(t, retry, ErrRetryableSync)
	assert.ErrorIs(t, retry, cause)
	assert.NotErrorIs(t, retry, ErrTerminalSync)
	assert.Equal(t, "retryable sync error: HTTP 503", retry.Error())

	term := &SyncError{Kind: SyncErrorTerminal}
	assert.ErrorIs(t, term, ErrTerminalSync)
	assert.Equal(t, "terminal sync error", term.Error())
}
