package future

import (
	"context"
)

// Block drives f to completion on the calling goroutine, parking between
// polls until f's waker is called, or ctx is done.
//
// Block is the simplest possible executor. It must not be used on a
// goroutine that is itself responsible for waking f, e.g. the goroutine
// that services the main thread.
func Block[T any](ctx context.Context, f Future[T]) (T, error) {
	signal := make(chan struct{}, 1)
	w := WakerFunc(func() {
		select {
		case signal <- struct{}{}:
		default:
		}
	})
	for {
		if v, ok := f.Poll(w); ok {
			return v, nil
		}
		select {
		case <-signal:
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		}
	}
}
