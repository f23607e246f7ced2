// Package common defines shared constants and sentinel errors used across
// register components. Callers should use errors.Is to match these values.
package common

import (
	"errors"
	"fmt"
)

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Local order store errors.
	ErrValidation        = errors.New("validation error")
	ErrIllegalTransition = errors.New("illegal transition")

	// Sync errors.
	ErrRetryableSync        = errors.New("retryable sync error")
	ErrTerminalSync         = errors.New("terminal sync error")
	ErrRetryBudgetExhausted = errors.New("sync retry budget exhausted")

	// Coordination errors.
	ErrAuthentication    = errors.New("authentication failed")
	ErrConnectionTimeout = errors.New("connection timeout")
	ErrUnavailable       = errors.New("server unavailable")
	ErrDegraded          = errors.New("degraded mode")
	ErrConfiguration     = errors.New("configuration error")

	// Shift ledger errors.
	ErrShiftAlreadyOpen = errors.New("shift already open")
	ErrNoOpenShift      = errors.New("no open shift")

	ErrPaymentDeclined = errors.New("payment declined")
)

// ValidationError describes rejected input. It matches ErrValidation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", ErrValidation, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", ErrValidation, e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError returns a *ValidationError for field.
func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// IllegalTransitionError is returned when an event does not apply to the
// current order status. It matches ErrIllegalTransition.
type IllegalTransitionError struct {
	OrderID string
	From    string
	Event   string
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("%s: order %s: %q not allowed from %q", ErrIllegalTransition, e.OrderID, e.Event, e.From)
}

func (e *IllegalTransitionError) Unwrap() error { return ErrIllegalTransition }

// ConfigurationError explains why a coordination mode cannot be applied.
// It matches ErrConfiguration.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrConfiguration, e.Reason)
}

func (e *ConfigurationError) Unwrap() error { return ErrConfiguration }

// Sync error kinds recorded on orders.
const (
	SyncErrorRetryable = "retryable"
	SyncErrorTerminal  = "terminal"
)

// SyncError is a classified commerce platform failure. It matches
// ErrRetryableSync or ErrTerminalSync depending on Kind, and its Cause.
type SyncError struct {
	Kind  string
	Cause error
}

func (e *SyncError) Error() string {
	if e.Cause == nil {
		return e.sentinel().Error()
	}
	return fmt.Sprintf("%s: %v", e.sentinel(), e.Cause)
}

func (e *SyncError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.sentinel()}
	}
	return []error{e.sentinel(), e.Cause}
}

func (e *SyncError) sentinel() error {
	if e.Kind == SyncErrorTerminal {
		return ErrTerminalSync
	}
	return ErrRetryableSync
}
