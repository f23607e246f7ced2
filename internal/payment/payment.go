// Package payment defines the processor contract used at checkout and the
// built-in cash processor. Card terminals and other methods are external
// and registered at startup.
package payment

import (
	"context"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/lanpos/internal/common"
	"github.com/shopspring/decimal"
)

const (
	MethodCash = "cash"
	MethodCard = "card"
)

// Decline codes reported in Result.ErrorCode.
const (
	CodeInsufficientTender = "insufficient_tender"
	CodeProcessorError     = "processor_error"
)

// Request asks a processor to take Amount. IdempotencyKey is the order id:
// a processor seeing the same key twice must not charge twice.
type Request struct {
	OrderID        string
	IdempotencyKey string
	Method         string
	Amount         decimal.Decimal
	// Tendered is the cash handed over; ignored by non-cash processors.
	Tendered decimal.Decimal
}

type Result struct {
	Success   bool
	ErrorCode string
	Reference string
	Change    decimal.Decimal
}

// Processor takes payments. A declined payment is a Result with Success
// false; an error means the processor could not be reached.
type Processor interface {
	ProcessPayment(ctx context.Context, req Request) (Result, error)
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc func(ctx context.Context, req Request) (Result, error)

func (f ProcessorFunc) ProcessPayment(ctx context.Context, req Request) (Result, error) {
	return f(ctx, req)
}

// CashProcessor accepts cash when enough is tendered and computes change.
type CashProcessor struct{}

func (CashProcessor) ProcessPayment(_ context.Context, req Request) (Result, error) {
	if req.Tendered.LessThan(req.Amount) {
		return Result{ErrorCode: CodeInsufficientTender}, nil
	}
	return Result{
		Success:   true,
		Reference: "cash-" + req.IdempotencyKey,
		Change:    req.Tendered.Sub(req.Amount),
	}, nil
}

// Registry maps payment methods to processors. Cash is always present.
type Registry struct {
	mu         sync.RWMutex
	processors map[string]Processor
}

func NewRegistry() *Registry {
	return &Registry{processors: map[string]Processor{MethodCash: CashProcessor{}}}
}

func (r *Registry) Register(method string, p Processor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.processors[method] = p
}

// Get returns a *common.ValidationError for unknown methods.
func (r *Registry) Get(method string) (Processor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.processors[method]
	if !ok {
		return nil, common.NewValidationError("method", fmt.Sprintf("unsupported payment method %q", method))
	}
	return p, nil
}
