package mainthread

import (
	"slices"
	"time"

	"github.com/joeycumines/go-mainthread/future"
)

// task is a future owned by the task queue.
type task struct {
	future future.Future[struct{}]
	wake   *wakeState
	label  string
	id     uint64
	// pass is the outermost pump pass that last polled the task
	pass uint64
	// polling is set for the duration of a poll, so nested pumps skip it
	polling bool
	// done is set once the task completes, or panics, after which it is
	// removed by the outermost pump
	done bool
}

// canceler is implemented by futures that complete an observer, which must
// be failed if the future is abandoned, e.g. someexec.Prepare.
type canceler interface {
	Cancel(err error)
}

// taskQueue is the cooperative executor for the main thread. It is only
// ever accessed from the main thread, so it is not locked.
//
// Tasks are visited by index, over a slice that submissions append to, and
// are only removed once the outermost pump returns. A task submitted while
// another task is being polled is therefore visible to every pump, nested or
// not, and is polled before submit returns.
type taskQueue struct {
	exec  *Executor
	tasks []*task
	depth int
	// pass identifies the current outermost pump, shared by nested pumps
	pass uint64
}

// submit appends a task, then pumps, so the task is polled at least once
// before submit returns.
func (q *taskQueue) submit(label string, f future.Future[struct{}]) {
	t := &task{
		future: f,
		wake:   newWakeState(q.exec),
		label:  label,
		id:     q.exec.nextTaskID.Add(1),
	}
	q.tasks = append(q.tasks, t)
	q.exec.metrics.add(counterTasksSpawned)
	q.exec.metrics.addLive(1)
	q.exec.log.debug().
		Uint64(`task`, t.id).
		Str(`label`, t.label).
		Log(`task spawned`)
	q.pump()
}

// pump polls every task flagged as needing a poll, at most once each per
// outermost pass, including polls made by nested pumps. Tasks appended
// during the pass are visited by the same pass.
func (q *taskQueue) pump() {
	var start time.Time
	if q.depth == 0 {
		start = time.Now()
		q.pass++
	}
	q.depth++
	defer func() {
		q.depth--
		if q.depth != 0 {
			return
		}
		q.tasks = slices.DeleteFunc(q.tasks, func(t *task) bool { return t.done })
		q.exec.metrics.add(counterPumps)
		q.exec.checkSlowPump(time.Since(start), len(q.tasks))
	}()
	for i := 0; i < len(q.tasks); i++ {
		t := q.tasks[i]
		if t.done || t.polling || t.pass == q.pass {
			// a wake flag left set is serviced by the next pass
			continue
		}
		if !t.wake.needsPoll.Swap(false) {
			continue
		}
		q.poll(t)
	}
}

func (q *taskQueue) poll(t *task) {
	t.polling = true
	t.pass = q.pass
	defer func() {
		t.polling = false
		if r := recover(); r != nil {
			q.finish(t)
			q.exec.metrics.add(counterTasksPanicked)
			q.exec.log.err(categoryTaskPanic).
				Uint64(`task`, t.id).
				Str(`label`, t.label).
				Err(PanicError{Value: r, Label: t.label}).
				Log(`task panicked`)
		}
	}()
	q.exec.metrics.add(counterPolls)
	if _, ok := t.future.Poll(wakerBridge{t.wake}); ok {
		q.finish(t)
		q.exec.metrics.add(counterTasksCompleted)
		q.exec.log.debug().
			Uint64(`task`, t.id).
			Str(`label`, t.label).
			Log(`task completed`)
	}
}

func (q *taskQueue) finish(t *task) {
	t.done = true
	t.future = nil
	q.exec.metrics.addLive(-1)
}

// abandon drops every task that has not finished, cancelling those that
// support it with err. It returns the number of tasks dropped. It must only
// be called once the main loop has stopped pumping.
func (q *taskQueue) abandon(err error) (n int) {
	tasks := q.tasks
	q.tasks = nil
	for _, t := range tasks {
		if t.done {
			continue
		}
		n++
		c, _ := t.future.(canceler)
		q.finish(t)
		q.exec.log.debug().
			Uint64(`task`, t.id).
			Str(`label`, t.label).
			Log(`task abandoned`)
		if c != nil {
			q.cancel(t, c, err)
		}
	}
	return n
}

func (q *taskQueue) cancel(t *task, c canceler, err error) {
	defer func() {
		if r := recover(); r != nil {
			q.exec.log.err(categoryTaskPanic).
				Uint64(`task`, t.id).
				Str(`label`, t.label).
				Err(PanicError{Value: r, Label: t.label}).
				Log(`task cancel panicked`)
		}
	}()
	c.Cancel(err)
}

// len returns the number of tasks that have not finished.
func (q *taskQueue) len() (n int) {
	for _, t := range q.tasks {
		if !t.done {
			n++
		}
	}
	return n
}
