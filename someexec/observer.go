package someexec

import (
	"context"
	"errors"
	"fmt"

	"github.com/joeycumines/go-mainthread/future"
)

// Observation describes the state of a spawned task, from the perspective
// of its observer.
type Observation int

const (
	// Pending indicates the task has not finished.
	Pending Observation = iota
	// Ready indicates the task finished, and its value is available.
	Ready
	// Cancelled indicates the task finished without producing a value.
	Cancelled
)

// ErrCancelled is returned by Observer.Wait for tasks that finished without
// producing a value. The actual error will wrap it.
var ErrCancelled = errors.New("someexec: task cancelled")

type (
	// Observer tracks the result of a spawned task. Observers may be held,
	// polled, waited on and abandoned from any goroutine; abandoning an
	// observer does not stop the task.
	Observer[T any] interface {
		future.Future[T]

		// Observe returns the current state, and the value, if Ready.
		Observe() (T, Observation)

		// Wait blocks until the task finishes, or ctx is done. Tasks that
		// finished without a value return an error wrapping ErrCancelled.
		Wait(ctx context.Context) (T, error)

		// Done is closed once the task finishes.
		Done() <-chan struct{}
	}

	// PanicError is the cause reported for tasks that panicked.
	PanicError struct {
		Value any
		Label string
	}

	observer[T any] struct {
		receiver *future.Receiver[T]
		label    string
	}

	typedObserver[T any] struct {
		inner Observer[any]
	}
)

var (
	_ Observer[int] = (*observer[int])(nil)
	_ Observer[int] = typedObserver[int]{}
)

// String implements fmt.Stringer.
func (x Observation) String() string {
	switch x {
	case Pending:
		return "pending"
	case Ready:
		return "ready"
	case Cancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("Observation(%d)", int(x))
	}
}

func (e PanicError) Error() string {
	if e.Label == `` {
		return fmt.Sprintf("someexec: task panicked: %v", e.Value)
	}
	return fmt.Sprintf("someexec: task %q panicked: %v", e.Label, e.Value)
}

// Unwrap returns the panic value, if it is an error.
func (e PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

func (x *observer[T]) Poll(w future.Waker) (T, bool) {
	return x.receiver.Poll(w)
}

func (x *observer[T]) Observe() (T, Observation) {
	v, ok, err := x.receiver.TryRecv()
	switch {
	case !ok:
		return v, Pending
	case err != nil:
		return v, Cancelled
	default:
		return v, Ready
	}
}

func (x *observer[T]) Wait(ctx context.Context) (T, error) {
	v, err := x.receiver.Wait(ctx)
	if err != nil && err != ctx.Err() {
		err = fmt.Errorf("%w: %w", ErrCancelled, err)
	}
	return v, err
}

func (x *observer[T]) Done() <-chan struct{} { return x.receiver.Done() }

func (x *observer[T]) String() string {
	_, state := x.Observe()
	return fmt.Sprintf("Observer(%q, %s)", x.label, state)
}

func (x typedObserver[T]) Poll(w future.Waker) (T, bool) {
	v, ok := x.inner.Poll(w)
	return cast[T](v), ok
}

func (x typedObserver[T]) Observe() (T, Observation) {
	v, state := x.inner.Observe()
	return cast[T](v), state
}

func (x typedObserver[T]) Wait(ctx context.Context) (T, error) {
	v, err := x.inner.Wait(ctx)
	return cast[T](v), err
}

func (x typedObserver[T]) Done() <-chan struct{} { return x.inner.Done() }

// cast converts v to T, mapping nil (or a mismatched type) to the zero value.
func cast[T any](v any) T {
	t, _ := v.(T)
	return t
}
