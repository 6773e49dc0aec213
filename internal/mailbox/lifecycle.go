package mailbox

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
)

// GenericFailure is shown when a failed request carries no reason of its own.
const GenericFailure = "Something went wrong, try again later."

// Operation is a unit of network work. It runs off the Loop.
type Operation[T any] func(ctx context.Context) (T, error)

// Callbacks receive the outcome of a request on the Loop. Any of them may be nil.
type Callbacks[T any] struct {
	OnSuccess func(T)
	OnError   func(error)
	OnSettled func()
}

// Run executes op on its own goroutine and posts exactly one continuation to
// loop. That continuation calls OnSuccess or OnError, then OnSettled.
// OnSettled runs even when the other callbacks are nil or panic.
func Run[T any](ctx context.Context, loop Loop, op Operation[T], cb Callbacks[T]) {
	go func() {
		result, err := invoke(ctx, op)
		loop.Post(func() {
			settle(result, err, cb)
		})
	}()
}

func invoke[T any](ctx context.Context, op Operation[T]) (result T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = eris.Errorf("request panic: %v", r)
		}
	}()
	return op(ctx)
}

func settle[T any](result T, err error, cb Callbacks[T]) {
	if cb.OnSettled != nil {
		defer cb.OnSettled()
	}
	if err != nil {
		if cb.OnError != nil {
			cb.OnError(err)
		}
		return
	}
	if cb.OnSuccess != nil {
		cb.OnSuccess(result)
	}
}

// reasoner is implemented by errors that carry a server-provided explanation.
type reasoner interface {
	Reason() string
}

// FailureReason returns the human-readable reason carried by err, or fallback
// when err has none.
func FailureReason(err error, fallback string) string {
	var r reasoner
	if errors.As(err, &r) {
		if reason := r.Reason(); reason != "" {
			return reason
		}
	}
	return fallback
}
