package future

import (
	"context"
	"errors"
	"sync"
)

// ErrContinuationFailed is the fallback error a Receiver reports when the
// Sender was failed with a nil error.
var ErrContinuationFailed = errors.New("future: continuation failed")

type (
	// Sender is the producing half of a one-shot continuation.
	// It is safe for concurrent use.
	Sender[T any] struct {
		state *continuationState[T]
	}

	// Receiver is the consuming half of a one-shot continuation. It is a
	// Future, and may also be waited on from an arbitrary goroutine.
	// It is safe for concurrent use, though only one executor should poll it.
	Receiver[T any] struct {
		state *continuationState[T]
	}

	continuationState[T any] struct {
		value T
		err   error
		waker Waker
		done  chan struct{}
		mu    sync.Mutex
		sent  bool
	}
)

var _ Future[int] = (*Receiver[int])(nil)

// NewContinuation creates a linked Sender and Receiver. The value given to
// the first successful Send (or the error given to Fail) is delivered to the
// Receiver. Abandoning the Receiver has no effect on the Sender.
func NewContinuation[T any]() (*Sender[T], *Receiver[T]) {
	state := &continuationState[T]{done: make(chan struct{})}
	return &Sender[T]{state: state}, &Receiver[T]{state: state}
}

// Send completes the continuation with value. It returns false if the
// continuation was already completed, in which case it has no effect.
func (x *Sender[T]) Send(value T) bool {
	return x.state.complete(value, nil)
}

// Fail completes the continuation with an error. It returns false if the
// continuation was already completed.
func (x *Sender[T]) Fail(err error) bool {
	if err == nil {
		err = ErrContinuationFailed
	}
	var zero T
	return x.state.complete(zero, err)
}

func (x *continuationState[T]) complete(value T, err error) bool {
	x.mu.Lock()
	if x.sent {
		x.mu.Unlock()
		return false
	}
	x.sent = true
	x.value = value
	x.err = err
	w := x.waker
	x.waker = nil
	close(x.done)
	x.mu.Unlock()
	if w != nil {
		w.Wake()
	}
	return true
}

// Poll implements Future. A failed continuation completes with the zero
// value, see also Err.
func (x *Receiver[T]) Poll(w Waker) (T, bool) {
	x.state.mu.Lock()
	defer x.state.mu.Unlock()
	if x.state.sent {
		return x.state.value, true
	}
	x.state.waker = w
	var zero T
	return zero, false
}

// Done returns a channel that is closed once the continuation completes.
func (x *Receiver[T]) Done() <-chan struct{} {
	return x.state.done
}

// Err returns the error the continuation failed with, or nil if it has not
// completed, or completed with a value.
func (x *Receiver[T]) Err() error {
	x.state.mu.Lock()
	defer x.state.mu.Unlock()
	return x.state.err
}

// TryRecv returns the outcome without blocking. The boolean is false if the
// continuation has not yet completed.
func (x *Receiver[T]) TryRecv() (T, bool, error) {
	x.state.mu.Lock()
	defer x.state.mu.Unlock()
	if !x.state.sent {
		var zero T
		return zero, false, nil
	}
	return x.state.value, true, x.state.err
}

// Wait blocks the calling goroutine until the continuation completes, or
// ctx is done.
func (x *Receiver[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-x.state.done:
	case <-ctx.Done():
		// prefer the value, if both are ready
		select {
		case <-x.state.done:
		default:
			var zero T
			return zero, ctx.Err()
		}
	}
	x.state.mu.Lock()
	defer x.state.mu.Unlock()
	return x.state.value, x.state.err
}
