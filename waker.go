package mainthread

import (
	"sync/atomic"

	"github.com/joeycumines/go-mainthread/future"
)

// wakeState is shared between a task and every waker derived from it. It is
// retained for as long as the task, or any waker, is reachable.
type wakeState struct {
	exec *Executor
	// needsPoll is set by wakers, from any goroutine, and cleared by the main
	// thread immediately before each poll. The flag is advisory: a stale read
	// costs at most one extra poll, as the poll side always swaps it.
	needsPoll atomic.Bool
}

// wakerBridge is the future.Waker handed to each task poll.
type wakerBridge struct {
	state *wakeState
}

var _ future.Waker = wakerBridge{}

func newWakeState(exec *Executor) *wakeState {
	s := &wakeState{exec: exec}
	s.needsPoll.Store(true)
	return s
}

// Wake flags the task for polling, and requests a pump of the task queue.
// It never blocks, and any number of calls are equivalent to one.
func (x wakerBridge) Wake() {
	x.state.needsPoll.Store(true)
	x.state.exec.requestPump()
}
