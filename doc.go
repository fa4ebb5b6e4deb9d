// Package mainthread runs work on the process's main thread, from any
// goroutine, for integrating with platforms and libraries that require all
// calls to be made from the first OS thread (e.g. AppKit, many GUI toolkits).
//
// # Architecture
//
// [Run] parks the main goroutine, which this package locks to the main OS
// thread during initialization, in a [RunLoop]. Closures submitted via
// [Executor.Submit] are queued and the run loop woken, from any goroutine.
// Each time it wakes, the main thread drains the closures queued at that
// point, in submission order.
//
// On top of that, a single threaded, cooperative task queue polls futures
// (see the future package). A future that cannot make progress arranges for
// its waker to be called. Waking a task flags it, then requests a pump of
// the task queue, which is itself a closure submitted to the main thread.
// Only flagged tasks are polled, each at most once per pump.
//
// Tasks may spawn other tasks while being polled. Spawned tasks are polled at
// least once before [Executor.SpawnLocal] returns, and are never lost, even
// when spawned from within a pump.
//
// # Thread Safety
//
//   - [Executor.Submit], [Executor.Spawn], [Async], [Await] and [Call] are
//     safe to call from any goroutine
//   - [Executor.SpawnLocal], [Cell.Lock] and [Assume] may only be called on
//     the main thread, and panic otherwise
//   - [Cell] handles may be held by any goroutine, while their values are only
//     accessed (and released) on the main thread
//
// Futures are never polled concurrently, and never on any goroutine other
// than the main one.
//
// # Cancellation
//
// There is none. Abandoning a future.Receiver does not stop the task that
// would have completed it. Likewise, a task whose waker is never called will
// never be polled again, and is not reported. Once the main loop stops,
// pending tasks are dropped, and receivers and observers of those started
// via [Async] or [TaskExecutor] fail with [ErrStopped].
//
// # Usage
//
//	func main() {
//		err := mainthread.Run(context.Background(), func(e *mainthread.Executor) {
//			defer e.Stop()
//			v, err := mainthread.Call(context.Background(), e, func() int {
//				// on the main thread
//				return 2 + 2
//			})
//			// ...
//		})
//		if err != nil {
//			log.Fatal(err)
//		}
//	}
//
// Tests should use the mainthreadtest package, from TestMain.
package mainthread
