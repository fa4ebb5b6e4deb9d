// Package mainthreadtest runs tests within the main loop, for packages that
// depend on mainthread.
//
// Usage:
//
//	func TestMain(m *testing.M) {
//		mainthreadtest.Main(m)
//	}
//
//	func TestSomething(t *testing.T) {
//		e := mainthreadtest.Executor(t)
//		// ...
//	}
package mainthreadtest

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"
	"testing"

	"github.com/joeycumines/go-mainthread"
)

var current atomic.Pointer[mainthread.Executor]

// Main starts the main loop, runs the tests on another goroutine, then stops
// the main loop, and exits. It must be called from TestMain.
func Main(m *testing.M, opts ...mainthread.Option) {
	os.Exit(run(m, opts...))
}

func run(m *testing.M, opts ...mainthread.Option) (code int) {
	err := mainthread.Run(context.Background(), func(e *mainthread.Executor) {
		defer e.Stop()
		current.Store(e)
		code = m.Run()
	}, opts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mainthreadtest: %v\n", err)
		if code == 0 {
			code = 1
		}
	}
	return code
}

// Executor returns the executor started by Main, failing the test if Main
// was not used.
func Executor(tb testing.TB) *mainthread.Executor {
	tb.Helper()
	e := current.Load()
	if e == nil {
		tb.Fatal(`mainthreadtest: main loop not running, call mainthreadtest.Main from TestMain`)
	}
	return e
}
