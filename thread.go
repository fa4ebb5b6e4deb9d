package mainthread

import (
	"runtime"
	"sync/atomic"

	"github.com/petermattis/goid"
)

// mainGuard is the process-wide record of the main loop having started.
// It is set exactly once, by Run, and never reset.
var mainGuard struct {
	// goroutine is the id of the goroutine servicing the main thread,
	// stored before started is set.
	goroutine atomic.Int64
	started   atomic.Bool
}

func init() {
	// Package initialization runs on the program's first thread. Keeping the
	// main goroutine locked to it means the goroutine that later calls Run
	// (from main, or TestMain) is still on that thread.
	runtime.LockOSThread()
}

// claimMainThread records the calling goroutine as the main thread. It
// returns false if the main loop was already started.
func claimMainThread() bool {
	if mainGuard.started.Load() {
		return false
	}
	id := goid.Get()
	if !mainGuard.goroutine.CompareAndSwap(0, id) {
		return false
	}
	mainGuard.started.Store(true)
	return true
}

// Started reports whether Run has been called. It never reverts to false.
func Started() bool {
	return mainGuard.started.Load()
}

// IsMainThread reports whether the calling goroutine is the one servicing
// the main thread. It is false for every goroutine until Run is called.
func IsMainThread() bool {
	id := mainGuard.goroutine.Load()
	return id != 0 && goid.Get() == id
}

// assertMainThread panics unless called on the main thread.
func assertMainThread(op string) {
	if !IsMainThread() {
		if !Started() {
			misuse(ErrNotStarted, op)
		}
		misuse(ErrNotMainThread, op)
	}
}
