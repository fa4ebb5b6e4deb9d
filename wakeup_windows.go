//go:build windows

package mainthread

import (
	"fmt"

	"golang.org/x/sys/windows"
)

// eventRunLoop parks the main thread on an auto-reset event object.
type eventRunLoop struct {
	event windows.Handle
}

// NewRunLoop returns the default run loop for the platform. On Windows it is
// backed by an auto-reset event.
func NewRunLoop() (RunLoop, error) {
	h, err := windows.CreateEvent(nil, 0, 0, nil)
	if err != nil {
		return nil, err
	}
	return &eventRunLoop{event: h}, nil
}

func (x *eventRunLoop) Wait() error {
	s, err := windows.WaitForSingleObject(x.event, windows.INFINITE)
	if err != nil {
		return err
	}
	if s != windows.WAIT_OBJECT_0 {
		return fmt.Errorf(`mainthread: unexpected wait status %#x`, s)
	}
	return nil
}

func (x *eventRunLoop) Wake() error {
	return windows.SetEvent(x.event)
}

func (x *eventRunLoop) Close() error {
	return windows.CloseHandle(x.event)
}
