//go:build linux

package mainthread

import (
	"encoding/binary"
	"errors"

	"golang.org/x/sys/unix"
)

// eventfdRunLoop parks the main thread in a blocking read of an eventfd.
type eventfdRunLoop struct {
	fd int
}

// NewRunLoop returns the default run loop for the platform. On Linux it is
// backed by an eventfd.
func NewRunLoop() (RunLoop, error) {
	fd, err := unix.Eventfd(0, unix.EFD_CLOEXEC)
	if err != nil {
		return nil, err
	}
	return &eventfdRunLoop{fd: fd}, nil
}

func (x *eventfdRunLoop) Wait() error {
	var buf [8]byte
	for {
		_, err := unix.Read(x.fd, buf[:])
		if errors.Is(err, unix.EINTR) {
			continue
		}
		return err
	}
}

func (x *eventfdRunLoop) Wake() error {
	var buf [8]byte
	binary.NativeEndian.PutUint64(buf[:], 1)
	_, err := unix.Write(x.fd, buf[:])
	if errors.Is(err, unix.EAGAIN) {
		// counter saturated, so a read is already guaranteed to succeed
		return nil
	}
	return err
}

func (x *eventfdRunLoop) Close() error {
	return unix.Close(x.fd)
}
