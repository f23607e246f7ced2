// Package platform talks to the commerce platform that receives finalized
// orders. Adapters must tolerate the same order being submitted more than
// once: every request carries an idempotency key derived from the local
// order id.
package platform

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/lanpos/internal/common"
	"github.com/dmitrijs2005/lanpos/internal/models"
	"github.com/google/uuid"
)

// Adapter is implemented per commerce platform.
type Adapter interface {
	// SubmitOrder returns the platform's id for the order. Errors should be
	// *common.SyncError; anything else is classified by Classify.
	SubmitOrder(ctx context.Context, o *models.Order) (string, error)
	TestConnection(ctx context.Context) error
}

var keyNamespace = uuid.MustParse("6f1c7f52-3b0e-4c1e-9a55-2d8f4c1b7a10")

// IdempotencyKey is stable for an order id across retries and restarts.
func IdempotencyKey(orderID string) string {
	return uuid.NewSHA1(keyNamespace, []byte(orderID)).String()
}

// Classify turns an adapter error into a *common.SyncError. Anything the
// adapter did not classify itself (timeouts, dropped connections) is
// retryable.
func Classify(err error) *common.SyncError {
	if err == nil {
		return nil
	}
	var se *common.SyncError
	if errors.As(err, &se) {
		return se
	}
	return &common.SyncError{Kind: common.SyncErrorRetryable, Cause: err}
}

func retryable(err error) error {
	return &common.SyncError{Kind: common.SyncErrorRetryable, Cause: err}
}

func terminal(err error) error {
	return &common.SyncError{Kind: common.SyncErrorTerminal, Cause: err}
}
