// Package debounce provides a trailing-edge debounced invocation wrapper.
package debounce

import (
	"sync"
	"time"
)

// New returns a function that invokes fn once after delay has elapsed since the
// most recent call. Earlier pending invocations are discarded (trailing edge).
func New(delay time.Duration, fn func()) func() {
	var (
		mu    sync.Mutex
		timer *time.Timer
	)

	return func() {
		mu.Lock()
		defer mu.Unlock()

		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(delay, fn)
	}
}
