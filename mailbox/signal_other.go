//go:build !linux

package mailbox

import (
	"sync/atomic"
	"time"
)

// signal emulates futex wait/wake with a single token channel. A stale token
// only causes an extra re-check of the word.
type signal struct {
	ch chan struct{}
}

func newSignal() *signal { return &signal{ch: make(chan struct{}, 1)} }

func (x *signal) wait(word *int32, val int32, timeout time.Duration) {
	if atomic.LoadInt32(word) != val {
		return
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-x.ch:
	case <-timer.C:
	}
}

func (x *signal) wake(_ *int32, n int) {
	if n <= 0 {
		return
	}
	select {
	case x.ch <- struct{}{}:
	default:
	}
}
