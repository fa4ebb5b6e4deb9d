package mainthread

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// RunLoop parks the main thread between batches of work. It is the
// integration point for native event loops: an implementation that owns
// the platform's event dispatch may process native events within Wait.
//
// Wait and Close are only called from the main thread. Wake may be called
// from any goroutine, concurrently with Wait, until Close is called.
type RunLoop interface {
	// Wait blocks until Wake has been called at least once since the
	// previous Wait returned. It may return early, spuriously.
	Wait() error

	// Wake causes the current or next Wait to return. It must not block.
	Wake() error

	// Close releases the run loop's resources, once Run has finished.
	Close() error
}

// Executor is the handle to the main loop, passed to the function given to
// Run. It is safe to use from any goroutine, though some methods are
// restricted to the main thread, as documented.
//
// Executors are only usable if obtained from Run. Methods called on a nil
// or zero Executor panic, with an error wrapping ErrNotStarted.
type Executor struct {
	runLoop  RunLoop
	log      eventLogger
	metrics  *metrics
	queue    *taskQueue
	done     chan struct{}
	stopping chan struct{}
	taskExec *TaskExecutor
	pumpFn   func()
	// batch is the drain buffer, only accessed by the main thread
	batch    *[chunkSize]submission
	ingress  ingress
	slowPump time.Duration

	// lifecycle guards stopped, and orders wakes before Close
	lifecycle sync.RWMutex
	stopped   bool

	stopOnce    sync.Once
	nextTaskID  atomic.Uint64
	wakePending atomic.Bool
	pumpPending atomic.Bool
}

// Run starts the main loop on the calling goroutine, which must be the
// program's first goroutine, running on the process's first OS thread. In
// practice, this means calling Run from main, or TestMain.
//
// Run calls fn once, on a new goroutine, with the executor. It then services
// submitted work until Executor.Stop is called, or ctx is done, returning
// nil or ctx.Err() respectively. Work submitted before the loop stops is
// still run. Run may only be called once per process: even after it returns,
// the main loop is considered started.
//
// Calling Run a second time panics with an error wrapping
// ErrAlreadyStarted. Calling it from the wrong thread panics with an error
// wrapping ErrNotMainThread. Invalid options are returned as an error,
// without starting the loop.
func Run(ctx context.Context, fn func(e *Executor), opts ...Option) error {
	if Started() {
		misuse(ErrAlreadyStarted, `Run`)
	}
	if !onFirstOSThread() {
		misuse(ErrNotMainThread, `Run`)
	}

	cfg, err := resolveOptions(opts)
	if err != nil {
		return err
	}
	runLoop := cfg.runLoop
	if runLoop == nil {
		if runLoop, err = NewRunLoop(); err != nil {
			return err
		}
	}

	if !claimMainThread() {
		_ = runLoop.Close()
		misuse(ErrAlreadyStarted, `Run`)
	}

	e := newExecutor(cfg, runLoop)
	return e.run(ctx, fn)
}

func newExecutor(cfg *runOptions, runLoop RunLoop) *Executor {
	e := &Executor{
		runLoop:  runLoop,
		log:      newEventLogger(cfg.logger, cfg.logRates),
		done:     make(chan struct{}),
		stopping: make(chan struct{}),
		batch:    new([chunkSize]submission),
		slowPump: cfg.slowPumpThreshold,
	}
	if cfg.metricsEnabled {
		e.metrics = newMetrics()
	}
	e.queue = &taskQueue{exec: e}
	e.taskExec = &TaskExecutor{exec: e}
	e.pumpFn = e.pump
	return e
}

func (e *Executor) run(ctx context.Context, fn func(e *Executor)) (err error) {
	e.log.info().Log(`main loop started`)

	go e.watch(ctx)
	if fn != nil {
		go fn(e)
	}

	for {
		e.wakePending.Store(false)
		e.drain()
		if e.isStopping() || ctx.Err() != nil {
			break
		}
		if err = e.runLoop.Wait(); err != nil {
			break
		}
	}

	e.lifecycle.Lock()
	e.stopped = true
	e.lifecycle.Unlock()
	e.stopOnce.Do(func() { close(e.stopping) })

	// work accepted before stopped was set still runs
	e.drain()
	abandoned := e.queue.abandon(ErrStopped)

	err = errors.Join(err, e.runLoop.Close())
	if err == nil {
		err = ctx.Err()
	}
	close(e.done)

	e.log.info().
		Int(`abandoned`, abandoned).
		Err(err).
		Log(`main loop stopped`)
	return err
}

// watch wakes the loop once ctx is done.
func (e *Executor) watch(ctx context.Context) {
	select {
	case <-ctx.Done():
		e.signal()
	case <-e.stopping:
	}
}

func (e *Executor) isStopping() bool {
	select {
	case <-e.stopping:
		return true
	default:
		return false
	}
}

// drain runs the closures that were queued when it was called. Closures
// queued by those closures are left for the next iteration, which their
// submission will have woken.
func (e *Executor) drain() {
	remaining := e.ingress.len()
	e.metrics.recordIngress(remaining)
	for remaining > 0 {
		n := e.ingress.popBatch(e.batch[:min(remaining, len(e.batch))])
		if n == 0 {
			return
		}
		remaining -= n
		for i := range n {
			s := e.batch[i]
			e.batch[i] = submission{}
			if !s.queued.IsZero() {
				e.metrics.recordLatency(time.Since(s.queued))
			}
			e.runClosure(s.fn)
		}
	}
}

func (e *Executor) runClosure(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			e.metrics.add(counterClosurePanics)
			e.log.err(categoryClosurePanic).
				Err(PanicError{Value: r}).
				Log(`submitted function panicked`)
		}
	}()
	e.metrics.add(counterExecuted)
	fn()
}

// signal is wake, for callers not holding the lifecycle lock.
func (e *Executor) signal() {
	e.lifecycle.RLock()
	defer e.lifecycle.RUnlock()
	if !e.stopped {
		e.wake()
	}
}

// wake unparks the main thread, at most once per iteration of the loop. The
// caller must hold the lifecycle read lock, and have checked stopped.
func (e *Executor) wake() {
	if e.wakePending.CompareAndSwap(false, true) {
		if err := e.runLoop.Wake(); err != nil {
			e.wakePending.Store(false)
			e.log.err(categoryWake).Err(err).Log(`failed to wake main loop`)
		}
	}
}
