//go:build !linux && !darwin && !windows

package mainthread

// chanRunLoop parks the main thread on a channel receive.
type chanRunLoop struct {
	wake chan struct{}
}

// NewRunLoop returns the default run loop for the platform. On platforms
// without a native wake primitive it is backed by a channel.
func NewRunLoop() (RunLoop, error) {
	return &chanRunLoop{wake: make(chan struct{}, 1)}, nil
}

func (x *chanRunLoop) Wait() error {
	<-x.wake
	return nil
}

func (x *chanRunLoop) Wake() error {
	select {
	case x.wake <- struct{}{}:
	default:
	}
	return nil
}

func (x *chanRunLoop) Close() error { return nil }
