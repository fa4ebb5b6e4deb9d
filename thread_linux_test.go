//go:build linux

package mainthread

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/sys/unix"
)

func TestSubmit_runsOnFirstOSThread(t *testing.T) {
	tid, err := Call(testContext(t), testExec, unix.Gettid)
	assert.NoError(t, err)
	assert.Equal(t, unix.Getpid(), tid)
	assert.False(t, onFirstOSThread())
}
