package mainthread

import (
	"context"
	"fmt"
	"io"
	"reflect"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/joeycumines/go-mainthread/future"
)

// Cell holds a value that may only be accessed on the main thread, while
// the *Cell itself may be passed between, and held by, any goroutines.
// Accessing the value from any other goroutine panics, with an error
// wrapping ErrNotMainThread.
//
// The value is released on the main thread, either by Close, or once the
// Cell becomes unreachable. Values implementing io.Closer are closed, unless
// NewCellFunc was used to provide a release function.
type Cell[T any] struct {
	shared  *cellShared[T]
	cleanup runtime.Cleanup
}

type cellShared[T any] struct {
	exec    *Executor
	release func(T) error
	value   T
	// mu orders accesses, and guards against overlapping access from
	// nested code on the main thread
	mu     sync.Mutex
	closed atomic.Bool
	// releasePending is set when release was deferred to Unlock, main
	// thread only
	releasePending bool
}

// NewCell wraps value, which will not be touched again until accessed on
// the main thread. It may be called from any goroutine.
func NewCell[T any](e *Executor, value T) *Cell[T] {
	return NewCellFunc(e, value, closeValue[T])
}

// NewCellFunc is NewCell, with a custom release function, which will be
// called exactly once, on the main thread. Errors are logged.
func NewCellFunc[T any](e *Executor, value T, release func(T) error) *Cell[T] {
	e.check(`NewCell`)
	if release == nil {
		release = func(T) error { return nil }
	}
	c := &Cell[T]{shared: &cellShared[T]{
		exec:    e,
		release: release,
		value:   value,
	}}
	c.cleanup = runtime.AddCleanup(c, (*cellShared[T]).unreachable, c.shared)
	return c
}

// NewCellOnMainThread calls fn on the main thread, then drives the future it
// returns to completion, wrapping the result in a Cell. It may be called
// from any goroutine.
func NewCellOnMainThread[T any](e *Executor, fn func() future.Future[T]) *future.Receiver[*Cell[T]] {
	e.check(`NewCellOnMainThread`)
	if fn == nil {
		panic(`mainthread: nil function`)
	}
	return Async(e, future.Then(future.Ready(struct{}{}), func(struct{}) future.Future[*Cell[T]] {
		return future.Map(fn(), func(v T) *Cell[T] { return NewCell(e, v) })
	}))
}

func closeValue[T any](value T) error {
	if c, ok := any(value).(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Lock asserts the caller is on the main thread, then locks the cell,
// returning a pointer to the value, valid until Unlock. It panics if the
// cell is closed, or already locked.
func (c *Cell[T]) Lock() *T {
	assertMainThread(`Cell.Lock`)
	if c.shared.closed.Load() {
		misuse(ErrCellClosed, `Cell.Lock`)
	}
	if !c.shared.mu.TryLock() {
		// only the main thread locks, so this is re-entrant access
		misuse(ErrCellLocked, `Cell.Lock`)
	}
	return &c.shared.value
}

// Unlock unlocks the cell. It must be called on the main thread, after Lock.
// If the cell was closed while locked, the value is released before Unlock
// returns.
func (c *Cell[T]) Unlock() {
	assertMainThread(`Cell.Unlock`)
	c.shared.mu.Unlock()
	if c.shared.releasePending {
		c.shared.releasePending = false
		c.shared.dispose()
	}
}

// Assume calls fn with the value of c, holding its lock. It must be called
// on the main thread.
func Assume[T, R any](c *Cell[T], fn func(v *T) R) R {
	v := c.Lock()
	defer c.Unlock()
	return fn(v)
}

// With calls fn with the value of c, on the main thread, from any
// goroutine. See Call for the blocking behavior and error semantics.
func With[T, R any](ctx context.Context, c *Cell[T], fn func(v *T) R) (R, error) {
	return Call(ctx, c.shared.exec, func() R { return Assume(c, fn) })
}

// WithAsync calls fn with the value of c, on the main thread, then drives
// the returned future to completion, on the main thread. The lock is only
// held while calling fn. It may be called from any goroutine.
func WithAsync[T, R any](c *Cell[T], fn func(v *T) future.Future[R]) *future.Receiver[R] {
	return Async(c.shared.exec, future.Then(future.Ready(struct{}{}), func(struct{}) future.Future[R] {
		return Assume(c, fn)
	}))
}

// Close releases the value. If called on the main thread, the value is
// released before Close returns, otherwise it is released later, on the main
// thread. Calling Close more than once has no effect.
func (c *Cell[T]) Close() {
	if !c.shared.closed.CompareAndSwap(false, true) {
		return
	}
	c.cleanup.Stop()
	if IsMainThread() {
		c.shared.dispose()
	} else {
		c.shared.disposeLater()
	}
	runtime.KeepAlive(c)
}

// String implements fmt.Stringer. It never accesses the value.
func (c *Cell[T]) String() string {
	state := `open`
	if c.shared.closed.Load() {
		state = `closed`
	}
	return fmt.Sprintf("mainthread.Cell[%s](%s)", reflect.TypeFor[T](), state)
}

// unreachable is the cleanup for cells that were never closed.
func (s *cellShared[T]) unreachable() {
	if s.closed.CompareAndSwap(false, true) {
		s.disposeLater()
	}
}

func (s *cellShared[T]) disposeLater() {
	if err := s.exec.submit(s.dispose); err != nil {
		// the value can no longer be touched on the main thread
		s.exec.log.warning(categoryCellRelease).
			Str(`type`, reflect.TypeFor[T]().String()).
			Err(err).
			Log(`cell value abandoned`)
	}
}

func (s *cellShared[T]) dispose() {
	if !s.mu.TryLock() {
		// locked by the main thread, possibly across task polls, so Unlock
		// releases it
		s.releasePending = true
		return
	}
	value := s.value
	var zero T
	s.value = zero
	s.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			s.exec.log.err(categoryCellRelease).
				Err(PanicError{Value: r, Label: `cell release`}).
				Log(`cell release panicked`)
		}
	}()
	if err := s.release(value); err != nil {
		s.exec.log.err(categoryCellRelease).
			Str(`type`, reflect.TypeFor[T]().String()).
			Err(err).
			Log(`cell release failed`)
	}
}
