//go:build darwin

package mainthread

import (
	"errors"

	"golang.org/x/sys/unix"
)

// pipeRunLoop parks the main thread in a blocking read of a self-pipe.
type pipeRunLoop struct {
	readFd  int
	writeFd int
}

// NewRunLoop returns the default run loop for the platform. On Darwin it is
// backed by a self-pipe, with a non-blocking write end.
func NewRunLoop() (RunLoop, error) {
	var fds [2]int
	if err := unix.Pipe(fds[:]); err != nil {
		return nil, err
	}
	unix.CloseOnExec(fds[0])
	unix.CloseOnExec(fds[1])
	if err := unix.SetNonblock(fds[1], true); err != nil {
		_ = unix.Close(fds[0])
		_ = unix.Close(fds[1])
		return nil, err
	}
	return &pipeRunLoop{readFd: fds[0], writeFd: fds[1]}, nil
}

func (x *pipeRunLoop) Wait() error {
	var buf [64]byte
	for {
		_, err := unix.Read(x.readFd, buf[:])
		if errors.Is(err, unix.EINTR) {
			continue
		}
		return err
	}
}

func (x *pipeRunLoop) Wake() error {
	_, err := unix.Write(x.writeFd, []byte{1})
	if errors.Is(err, unix.EAGAIN) {
		// pipe full, so a read is already guaranteed to succeed
		return nil
	}
	return err
}

func (x *pipeRunLoop) Close() error {
	return errors.Join(unix.Close(x.readFd), unix.Close(x.writeFd))
}
