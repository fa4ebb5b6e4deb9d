//go:build !linux

package mainthread

// onFirstOSThread cannot be determined portably, without cgo. The package
// init locks the main goroutine to the initial thread, so Run relies on
// goroutine identity alone.
func onFirstOSThread() bool {
	return true
}
