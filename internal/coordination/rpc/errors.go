package rpc

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/lanpos/internal/common"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const errorDomain = "lanpos"

// wireErrors is ordered: the first sentinel an error matches wins.
var wireErrors = []struct {
	err    error
	code   codes.Code
	reason string
}{
	{common.ErrAuthentication, codes.Unauthenticated, "AUTHENTICATION"},
	{common.ErrValidation, codes.InvalidArgument, "VALIDATION"},
	{common.ErrNotFound, codes.NotFound, "NOT_FOUND"},
	{common.ErrIllegalTransition, codes.FailedPrecondition, "ILLEGAL_TRANSITION"},
	{common.ErrRetryBudgetExhausted, codes.FailedPrecondition, "RETRY_BUDGET_EXHAUSTED"},
	{common.ErrShiftAlreadyOpen, codes.AlreadyExists, "SHIFT_ALREADY_OPEN"},
	{common.ErrNoOpenShift, codes.FailedPrecondition, "NO_OPEN_SHIFT"},
	{common.ErrPaymentDeclined, codes.FailedPrecondition, "PAYMENT_DECLINED"},
	{common.ErrConfiguration, codes.FailedPrecondition, "CONFIGURATION"},
	{common.ErrTerminalSync, codes.Aborted, "TERMINAL_SYNC"},
	{common.ErrRetryableSync, codes.Aborted, "RETRYABLE_SYNC"},
	{common.ErrUnavailable, codes.Unavailable, "UNAVAILABLE"},
}

func reasonOf(err error) (codes.Code, string, bool) {
	for _, w := range wireErrors {
		if errors.Is(err, w.err) {
			return w.code, w.reason, true
		}
	}
	return codes.Unknown, "", false
}

func sentinelOf(reason string) error {
	for _, w := range wireErrors {
		if w.reason == reason {
			return w.err
		}
	}
	return nil
}

// toStatus converts a domain error into a gRPC status. Unknown errors are
// reported as Internal without their text.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	code, reason, ok := reasonOf(err)
	if !ok {
		return status.Error(codes.Internal, "internal error")
	}
	st := status.New(code, err.Error())
	if withInfo, derr := st.WithDetails(&errdetails.ErrorInfo{Reason: reason, Domain: errorDomain}); derr == nil {
		st = withInfo
	}
	return st.Err()
}

// mapError turns a call error back into the register's sentinels.
// Transport failures become ErrUnavailable or ErrConnectionTimeout.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	st, ok := status.FromError(err)
	if !ok {
		return fmt.Errorf("rpc error: %w", err)
	}
	for _, d := range st.Details() {
		if info, ok := d.(*errdetails.ErrorInfo); ok && info.Domain == errorDomain {
			if s := sentinelOf(info.Reason); s != nil {
				return &remoteError{sentinel: s, msg: st.Message()}
			}
		}
	}
	switch st.Code() {
	case codes.Unauthenticated, codes.PermissionDenied:
		return fmt.Errorf("%w: %s", common.ErrAuthentication, st.Message())
	case codes.DeadlineExceeded:
		return fmt.Errorf("%w: %s", common.ErrConnectionTimeout, st.Message())
	case codes.Unavailable:
		return fmt.Errorf("%w: %s", common.ErrUnavailable, st.Message())
	case codes.Canceled:
		return context.Canceled
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
}

// remoteError keeps the server's message verbatim; it already names the
// sentinel.
type remoteError struct {
	sentinel error
	msg      string
}

func (e *remoteError) Error() string { return e.msg }

func (e *remoteError) Unwrap() error { return e.sentinel }

// transportFailure reports whether err means the server could not be
// reached, as opposed to the server answering with an error.
func transportFailure(err error) bool {
	if errors.Is(err, common.ErrConnectionTimeout) {
		return true
	}
	var re *remoteError
	if errors.As(err, &re) {
		return false
	}
	return errors.Is(err, common.ErrUnavailable)
}

// flatten and rebuild carry a SyncOne Result error over the wire.
func flatten(err error) (reason, kind, msg string) {
	if err == nil {
		return "", "", ""
	}
	_, reason, _ = reasonOf(err)
	var se *common.SyncError
	if errors.As(err, &se) {
		if se.Cause != nil {
			msg = se.Cause.Error()
		}
		return reason, se.Kind, msg
	}
	return reason, "", err.Error()
}

func rebuild(reason, kind, msg string) error {
	if kind != "" {
		se := &common.SyncError{Kind: kind}
		if msg != "" {
			se.Cause = errors.New(msg)
		}
		return se
	}
	if msg == "" {
		return nil
	}
	if s := sentinelOf(reason); s != nil {
		return &remoteError{sentinel: s, msg: msg}
	}
	return errors.New(msg)
}
