//go:build linux

package mainthread

import (
	"golang.org/x/sys/unix"
)

// onFirstOSThread reports whether the calling goroutine is running on the
// process's initial thread, whose thread id equals the process id.
// The caller must have locked the goroutine to its thread.
func onFirstOSThread() bool {
	return unix.Gettid() == unix.Getpid()
}
