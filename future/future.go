// Package future implements a minimal poll-based future model, used to
// express work that must be driven by a single-threaded executor (such as the
// main thread executor in the parent package) without blocking it.
//
// A [Future] is polled with a [Waker]. A future that cannot make progress
// returns false, having arranged for the waker to be called once polling it
// again may produce a value. Futures are not safe for concurrent polling;
// the executor that owns a future is the only caller of Poll.
//
// Wakers are plain values. They may be copied, retained, and called from any
// goroutine, any number of times.
package future

import (
	"sync"
)

type (
	// Waker signals that a pending future should be polled again.
	// Implementations must be safe to call from any goroutine, and must
	// tolerate redundant calls.
	Waker interface {
		Wake()
	}

	// WakerFunc adapts a function to the Waker interface.
	WakerFunc func()

	// Future is a value that may not have finished computing yet.
	//
	// Poll returns the value and true once the future is complete. If the
	// future is not complete, Poll returns false, and it MUST arrange for
	// the most recently provided waker to be called, once progress is
	// possible. Futures must not be polled after they complete.
	Future[T any] interface {
		Poll(w Waker) (T, bool)
	}

	// Func adapts a function to the Future interface.
	Func[T any] func(w Waker) (T, bool)

	readyFuture[T any] struct {
		value T
	}

	lazyFuture[T any] struct {
		fn func() T
	}

	mapFuture[A, B any] struct {
		f  Future[A]
		fn func(A) B
	}

	thenFuture[A, B any] struct {
		first  Future[A]
		next   func(A) Future[B]
		second Future[B]
	}

	yieldFuture struct {
		yielded bool
	}

	recvFuture[T any] struct {
		ch      <-chan T
		waker   Waker
		value   T
		mu      sync.Mutex
		started bool
		ready   bool
	}
)

var (
	_ Waker            = WakerFunc(nil)
	_ Future[struct{}] = Func[struct{}](nil)
	_ Future[int]      = (*readyFuture[int])(nil)
	_ Future[int]      = (*lazyFuture[int])(nil)
	_ Future[int]      = (*mapFuture[string, int])(nil)
	_ Future[int]      = (*thenFuture[string, int])(nil)
	_ Future[struct{}] = (*yieldFuture)(nil)
	_ Future[int]      = (*recvFuture[int])(nil)
)

// Wake calls the receiver.
func (x WakerFunc) Wake() { x() }

// Poll calls the receiver.
func (x Func[T]) Poll(w Waker) (T, bool) { return x(w) }

// Ready returns a future that completes on the first poll, with value.
func Ready[T any](value T) Future[T] {
	return &readyFuture[T]{value: value}
}

func (x *readyFuture[T]) Poll(Waker) (T, bool) { return x.value, true }

// Lazy returns a future that calls fn on the first poll, completing with
// its result.
func Lazy[T any](fn func() T) Future[T] {
	if fn == nil {
		panic(`future: nil function`)
	}
	return &lazyFuture[T]{fn: fn}
}

func (x *lazyFuture[T]) Poll(Waker) (T, bool) { return x.fn(), true }

// Map transforms the output of f, once it completes.
func Map[A, B any](f Future[A], fn func(A) B) Future[B] {
	if f == nil || fn == nil {
		panic(`future: nil argument to Map`)
	}
	return &mapFuture[A, B]{f: f, fn: fn}
}

func (x *mapFuture[A, B]) Poll(w Waker) (B, bool) {
	if v, ok := x.f.Poll(w); ok {
		return x.fn(v), true
	}
	var zero B
	return zero, false
}

// Then sequences two futures: once first completes, next is called with its
// value, and the returned future is polled to completion. This is the
// closest analogue to an async block with a single await point. Chains of
// Then model multiple await points.
func Then[A, B any](first Future[A], next func(A) Future[B]) Future[B] {
	if first == nil || next == nil {
		panic(`future: nil argument to Then`)
	}
	return &thenFuture[A, B]{first: first, next: next}
}

func (x *thenFuture[A, B]) Poll(w Waker) (B, bool) {
	if x.second == nil {
		v, ok := x.first.Poll(w)
		if !ok {
			var zero B
			return zero, false
		}
		x.first = nil
		x.second = x.next(v)
		x.next = nil
		if x.second == nil {
			panic(`future: Then continuation returned nil`)
		}
	}
	return x.second.Poll(w)
}

// Discard drops the output of f. The result is suitable for executors that
// only accept futures without output.
func Discard[T any](f Future[T]) Future[struct{}] {
	return Func[struct{}](func(w Waker) (struct{}, bool) {
		_, ok := f.Poll(w)
		return struct{}{}, ok
	})
}

// Yield returns a future that is pending on its first poll, waking itself
// immediately, then completes on the next poll. It gives other tasks
// sharing a cooperative executor a chance to run.
func Yield() Future[struct{}] { return new(yieldFuture) }

func (x *yieldFuture) Poll(w Waker) (struct{}, bool) {
	if x.yielded {
		return struct{}{}, true
	}
	x.yielded = true
	w.Wake()
	return struct{}{}, false
}

// Recv returns a future that completes with the next value received from ch,
// or the zero value if ch is closed. The receive happens on a separate
// goroutine, started by the first pending poll, which wakes the most
// recently provided waker once it has a value.
func Recv[T any](ch <-chan T) Future[T] {
	if ch == nil {
		panic(`future: nil channel`)
	}
	return &recvFuture[T]{ch: ch}
}

func (x *recvFuture[T]) Poll(w Waker) (T, bool) {
	x.mu.Lock()
	if x.ready {
		v := x.value
		x.mu.Unlock()
		return v, true
	}
	if !x.started {
		// avoid the goroutine if a value is already available
		select {
		case v := <-x.ch:
			x.ready = true
			x.value = v
			x.mu.Unlock()
			return v, true
		default:
		}
		x.started = true
		go x.receive()
	}
	x.waker = w
	x.mu.Unlock()
	var zero T
	return zero, false
}

func (x *recvFuture[T]) receive() {
	v := <-x.ch
	x.mu.Lock()
	x.value = v
	x.ready = true
	w := x.waker
	x.waker = nil
	x.mu.Unlock()
	if w != nil {
		w.Wake()
	}
}
