package mainthread

import (
	"context"
	"time"

	"github.com/joeycumines/go-mainthread/future"
)

// check panics unless the receiver was obtained from Run.
func (e *Executor) check(op string) {
	if e == nil || e.queue == nil {
		misuse(ErrNotStarted, op)
	}
}

// Submit queues fn to run on the main thread, from any goroutine, including
// the main thread itself (in which case fn still runs later, not inline).
// Closures run in submission order, relative to each other. A panic within
// fn is recovered and logged.
//
// Submit returns ErrStopped once the main loop has stopped, in which case fn
// will never run.
func (e *Executor) Submit(fn func()) error {
	e.check(`Submit`)
	if fn == nil {
		panic(`mainthread: nil function`)
	}
	return e.submit(fn)
}

func (e *Executor) submit(fn func()) error {
	e.lifecycle.RLock()
	defer e.lifecycle.RUnlock()
	if e.stopped {
		return ErrStopped
	}
	e.ingress.push(submission{fn: fn, queued: e.metrics.now()})
	e.metrics.add(counterSubmitted)
	e.wake()
	return nil
}

// Spawn submits f to the task queue, from any goroutine. The future is only
// ever polled on the main thread, and is dropped once it completes. Use
// Async to obtain its result.
//
// Spawn returns ErrStopped once the main loop has stopped.
func (e *Executor) Spawn(f future.Future[struct{}]) error {
	e.check(`Spawn`)
	if f == nil {
		panic(`mainthread: nil future`)
	}
	return e.spawn(``, f)
}

func (e *Executor) spawn(label string, f future.Future[struct{}]) error {
	return e.submit(func() { e.queue.submit(label, f) })
}

// SpawnLocal adds f to the task queue, and polls it at least once before
// returning. It may only be called on the main thread, including from within
// the poll of another task.
func (e *Executor) SpawnLocal(f future.Future[struct{}]) {
	e.check(`SpawnLocal`)
	assertMainThread(`SpawnLocal`)
	if f == nil {
		panic(`mainthread: nil future`)
	}
	e.queue.submit(``, f)
}

// Stop requests that the main loop stop, causing Run to return once work
// already submitted has run. Tasks still pending are abandoned, failing any
// receiver or observer attached via Async or TaskExecutor with ErrStopped.
// Stop may be called from any goroutine, any number of times.
func (e *Executor) Stop() {
	e.check(`Stop`)
	e.stopOnce.Do(func() { close(e.stopping) })
	e.signal()
}

// Done returns a channel that is closed once the main loop has stopped.
func (e *Executor) Done() <-chan struct{} {
	e.check(`Done`)
	return e.done
}

// Metrics returns a snapshot of the main loop's runtime statistics. It
// returns the zero value unless WithMetrics was enabled.
func (e *Executor) Metrics() Metrics {
	e.check(`Metrics`)
	return e.metrics.snapshot()
}

// TaskExecutor returns the someexec adapter for this executor.
func (e *Executor) TaskExecutor() *TaskExecutor {
	e.check(`TaskExecutor`)
	return e.taskExec
}

// requestPump arranges for the task queue to be pumped on the main thread.
// Requests made while one is already queued are coalesced.
func (e *Executor) requestPump() {
	if e.pumpPending.CompareAndSwap(false, true) {
		if e.submit(e.pumpFn) != nil {
			e.pumpPending.Store(false)
		}
	}
}

func (e *Executor) pump() {
	// cleared first, so wakes during this pump request another
	e.pumpPending.Store(false)
	e.queue.pump()
}

func (e *Executor) checkSlowPump(d time.Duration, tasks int) {
	if e.slowPump > 0 && d > e.slowPump {
		e.log.warning(categorySlowPump).
			Dur(`duration`, d).
			Dur(`threshold`, e.slowPump).
			Int(`tasks`, tasks).
			Log(`slow task queue pump`)
	}
}

// Async runs f on the main thread, returning a receiver for its result,
// which may be polled or waited on from any goroutine. Dropping the
// receiver does not stop f.
//
// If f panics, the receiver fails with a PanicError. If the main loop stops
// before f completes, including when Async is called after the main loop
// has stopped, the receiver fails with ErrStopped. See future.Receiver.Err.
func Async[T any](e *Executor, f future.Future[T]) *future.Receiver[T] {
	e.check(`Async`)
	if f == nil {
		panic(`mainthread: nil future`)
	}
	sender, receiver := future.NewContinuation[T]()
	run := &asyncTask[T]{future: f, sender: sender}
	if err := e.spawn(``, run); err != nil {
		sender.Fail(err)
	}
	return receiver
}

// asyncTask drives a future for Async, completing its continuation.
type asyncTask[T any] struct {
	future future.Future[T]
	sender *future.Sender[T]
}

func (x *asyncTask[T]) Poll(w future.Waker) (struct{}, bool) {
	defer func() {
		if r := recover(); r != nil {
			x.sender.Fail(PanicError{Value: r})
			panic(r)
		}
	}()
	v, ok := x.future.Poll(w)
	if ok {
		x.sender.Send(v)
	}
	return struct{}{}, ok
}

// Cancel fails the continuation, if it has not completed.
func (x *asyncTask[T]) Cancel(err error) { x.sender.Fail(err) }

// Await runs f on the main thread, blocking the calling goroutine until it
// completes, or ctx is done. It returns ErrWouldBlock if called on the main
// thread, which must instead compose futures, e.g. using future.Then.
func Await[T any](ctx context.Context, e *Executor, f future.Future[T]) (T, error) {
	e.check(`Await`)
	if IsMainThread() {
		var zero T
		return zero, ErrWouldBlock
	}
	return Async(e, f).Wait(ctx)
}

// Call runs fn on the main thread, returning its result. If called on the
// main thread, fn runs inline. Otherwise the calling goroutine blocks until
// fn returns, or ctx is done, though fn will still run.
//
// A panic within fn is returned as a PanicError, unless fn ran inline.
func Call[T any](ctx context.Context, e *Executor, fn func() T) (T, error) {
	e.check(`Call`)
	if fn == nil {
		panic(`mainthread: nil function`)
	}
	if IsMainThread() {
		return fn(), nil
	}
	sender, receiver := future.NewContinuation[T]()
	err := e.submit(func() {
		defer func() {
			if r := recover(); r != nil {
				sender.Fail(PanicError{Value: r})
				panic(r)
			}
		}()
		sender.Send(fn())
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return receiver.Wait(ctx)
}
