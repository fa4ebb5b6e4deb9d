package someexec

import (
	"fmt"

	"github.com/joeycumines/go-mainthread/future"
)

type (
	// Task is a unit of work to spawn. Only Future is required.
	Task[T any] struct {
		// Future produces the result.
		Future future.Future[T]

		// Notifier, if non-nil, is called with the result, on the executor's
		// thread, after the observer has been completed.
		Notifier Notifier[T]

		// Label is a human readable name, used for diagnostics.
		Label string
	}

	// Notifier receives the result of a task, as soon as it is available.
	Notifier[T any] interface {
		Notify(value T)
	}

	// NotifierFunc adapts a function to the Notifier interface.
	NotifierFunc[T any] func(value T)

	// Canceler is implemented by futures that report to an observer, such
	// as those returned by Prepare. Cancel completes the observer as
	// Cancelled, with err as the cause, if it has not already finished.
	Canceler interface {
		Cancel(err error)
	}
)

// NewTask initializes a Task.
func NewTask[T any](label string, f future.Future[T]) Task[T] {
	return Task[T]{Label: label, Future: f}
}

// Notify calls the receiver.
func (x NotifierFunc[T]) Notify(value T) { x(value) }

// Prepare splits task into the future an executor must run to completion,
// and the observer of its result. The returned future recovers any panic
// raised by the task, cancelling the observer with a [PanicError], before
// re-panicking, so the executor's own panic handling still applies.
//
// The returned future implements [Canceler]. Executors that drop it before
// it completes should call Cancel, so the observer does not wait forever.
func Prepare[T any](task Task[T]) (future.Future[struct{}], Observer[T]) {
	if task.Future == nil {
		panic(fmt.Errorf(`someexec: task %q has a nil future`, task.Label))
	}
	sender, receiver := future.NewContinuation[T]()
	run := &preparedTask[T]{
		inner:    task.Future,
		notifier: task.Notifier,
		sender:   sender,
		label:    task.Label,
	}
	return run, &observer[T]{receiver: receiver, label: task.Label}
}

// preparedTask is the future returned by Prepare.
type preparedTask[T any] struct {
	inner    future.Future[T]
	notifier Notifier[T]
	sender   *future.Sender[T]
	label    string
}

var _ Canceler = (*preparedTask[int])(nil)

func (x *preparedTask[T]) Poll(w future.Waker) (struct{}, bool) {
	defer func() {
		if r := recover(); r != nil {
			x.sender.Fail(PanicError{Value: r, Label: x.label})
			panic(r)
		}
	}()
	v, ok := x.inner.Poll(w)
	if !ok {
		return struct{}{}, false
	}
	x.sender.Send(v)
	if x.notifier != nil {
		x.notifier.Notify(v)
	}
	return struct{}{}, true
}

// Cancel cancels the observer with err, unless the task already finished.
func (x *preparedTask[T]) Cancel(err error) { x.sender.Fail(err) }

func (x Task[T]) erase() Task[any] {
	if x.Future == nil {
		panic(fmt.Errorf(`someexec: task %q has a nil future`, x.Label))
	}
	t := Task[any]{
		Label:  x.Label,
		Future: future.Map(x.Future, func(v T) any { return v }),
	}
	if x.Notifier != nil {
		n := x.Notifier
		t.Notifier = NotifierFunc[any](func(v any) { n.Notify(cast[T](v)) })
	}
	return t
}

// Failed returns an observer of a task that could not be spawned, e.g.
// because its executor has stopped. It is Cancelled, with err as the cause.
func Failed[T any](label string, err error) Observer[T] {
	sender, receiver := future.NewContinuation[T]()
	sender.Fail(err)
	return &observer[T]{receiver: receiver, label: label}
}
