// Package someexec defines an executor-agnostic task spawning abstraction,
// allowing libraries to spawn futures, and observe their results, without
// depending on any concrete executor.
//
// Executors implement the object-safe interfaces, [Executor] and
// [LocalExecutor], which operate on `any` typed tasks. The generic variants,
// [Spawn], [SpawnAsync], [SpawnLocal] and [SpawnLocalAsync], are implemented
// once, in this package, on top of the object-safe methods.
//
// Executors will typically use [Prepare] to split a task into the future
// they run, and the observer they return.
package someexec

import (
	"github.com/joeycumines/go-mainthread/future"
)

type (
	// Executor spawns tasks that may be submitted from any goroutine.
	Executor interface {
		// SpawnAny schedules the task, returning an observer of its result.
		SpawnAny(task Task[any]) Observer[any]

		// SpawnAnyAsync is like SpawnAny, but defers spawning until the
		// returned future is first polled. The future completes with the
		// observer.
		SpawnAnyAsync(task Task[any]) future.Future[Observer[any]]

		// Clone returns a new handle to the same underlying executor.
		Clone() Executor
	}

	// LocalExecutor spawns tasks whose futures are only ever polled by the
	// executor's own thread. The Local methods have identical semantics to
	// their Executor counterparts.
	LocalExecutor interface {
		SpawnLocalAny(task Task[any]) Observer[any]
		SpawnLocalAnyAsync(task Task[any]) future.Future[Observer[any]]
	}
)

// Spawn schedules task on ex, returning a typed observer.
func Spawn[T any](ex Executor, task Task[T]) Observer[T] {
	return typedObserver[T]{ex.SpawnAny(task.erase())}
}

// SpawnAsync is the generic variant of Executor.SpawnAnyAsync.
func SpawnAsync[T any](ex Executor, task Task[T]) future.Future[Observer[T]] {
	return future.Map(ex.SpawnAnyAsync(task.erase()), newTypedObserver[T])
}

// SpawnLocal schedules task on ex, returning a typed observer.
func SpawnLocal[T any](ex LocalExecutor, task Task[T]) Observer[T] {
	return typedObserver[T]{ex.SpawnLocalAny(task.erase())}
}

// SpawnLocalAsync is the generic variant of LocalExecutor.SpawnLocalAnyAsync.
func SpawnLocalAsync[T any](ex LocalExecutor, task Task[T]) future.Future[Observer[T]] {
	return future.Map(ex.SpawnLocalAnyAsync(task.erase()), newTypedObserver[T])
}

func newTypedObserver[T any](o Observer[any]) Observer[T] {
	return typedObserver[T]{o}
}
