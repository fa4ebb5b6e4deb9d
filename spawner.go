package mainthread

import (
	"github.com/joeycumines/go-mainthread/future"
	"github.com/joeycumines/go-mainthread/someexec"
)

// TaskExecutor adapts an Executor to the someexec interfaces, allowing
// libraries written against someexec to spawn tasks on the main thread.
// All spawned futures are polled on the main thread.
type TaskExecutor struct {
	exec *Executor
}

var (
	_ someexec.Executor      = (*TaskExecutor)(nil)
	_ someexec.LocalExecutor = (*TaskExecutor)(nil)
)

// SpawnAny submits the task to the main thread, from any goroutine. If the
// main loop has stopped, the observer is Cancelled, with ErrStopped.
func (x *TaskExecutor) SpawnAny(task someexec.Task[any]) someexec.Observer[any] {
	x.exec.check(`SpawnAny`)
	run, o := someexec.Prepare(task)
	if err := x.exec.spawn(task.Label, run); err != nil {
		return someexec.Failed[any](task.Label, err)
	}
	return o
}

// SpawnAnyAsync spawns the task once the returned future is first polled.
func (x *TaskExecutor) SpawnAnyAsync(task someexec.Task[any]) future.Future[someexec.Observer[any]] {
	return future.Lazy(func() someexec.Observer[any] { return x.SpawnAny(task) })
}

// SpawnLocalAny is SpawnAny, except that on the main thread the task is
// added to the task queue directly, and polled before returning.
func (x *TaskExecutor) SpawnLocalAny(task someexec.Task[any]) someexec.Observer[any] {
	x.exec.check(`SpawnLocalAny`)
	if !IsMainThread() {
		return x.SpawnAny(task)
	}
	run, o := someexec.Prepare(task)
	x.exec.queue.submit(task.Label, run)
	return o
}

// SpawnLocalAnyAsync spawns the task once the returned future is first
// polled.
func (x *TaskExecutor) SpawnLocalAnyAsync(task someexec.Task[any]) future.Future[someexec.Observer[any]] {
	return future.Lazy(func() someexec.Observer[any] { return x.SpawnLocalAny(task) })
}

// Clone returns a new handle to the same executor.
func (x *TaskExecutor) Clone() someexec.Executor {
	return &TaskExecutor{exec: x.exec}
}
