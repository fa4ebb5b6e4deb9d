package mainthread

import (
	"errors"
	"fmt"
)

// CallRun is the message carried by [ErrNotStarted].
const CallRun = "mainthread: start the main loop first, by calling mainthread.Run from the program's first goroutine"

// Standard errors.
var (
	// ErrNotStarted indicates an operation requiring the main loop was
	// attempted before it was started, e.g. via a nil or zero Executor.
	ErrNotStarted = errors.New(CallRun)

	// ErrAlreadyStarted indicates Run was called more than once. The main
	// loop may only be started once per process.
	ErrAlreadyStarted = errors.New("mainthread: main loop already started")

	// ErrNotMainThread indicates a main thread only operation was attempted
	// from another goroutine, or that Run was called from a goroutine other
	// than the program's first.
	ErrNotMainThread = errors.New("mainthread: not on the main thread")

	// ErrStopped is returned by operations attempted after the main loop
	// has stopped.
	ErrStopped = errors.New("mainthread: main loop stopped")

	// ErrCellClosed indicates a Cell was accessed after Close.
	ErrCellClosed = errors.New("mainthread: cell closed")

	// ErrCellLocked indicates a Cell was locked while already locked, e.g.
	// by nested code on the main thread.
	ErrCellLocked = errors.New("mainthread: cell already locked")

	// ErrWouldBlock indicates a blocking wait was attempted on the main
	// thread, for work that can only complete on the main thread.
	ErrWouldBlock = errors.New("mainthread: blocking wait on the main thread would deadlock")
)

// PanicError wraps a value recovered from a panic within a submitted
// closure, or a task poll.
type PanicError struct {
	Value any
	Label string
}

// Error implements the error interface.
func (e PanicError) Error() string {
	if e.Label != `` {
		return fmt.Sprintf("mainthread: %s: panic: %v", e.Label, e.Value)
	}
	return fmt.Sprintf("mainthread: panic: %v", e.Value)
}

// Unwrap returns the panic value if it is an error, for use with
// [errors.Is] and [errors.As].
func (e PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// misuse panics with err, annotated with the operation name. The panic value
// is an error wrapping err.
func misuse(err error, op string) {
	panic(fmt.Errorf("%w (%s)", err, op))
}
