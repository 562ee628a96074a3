package bridge

import (
	"sync"
)

// serial runs functions one at a time, in the order they were added, on a
// goroutine that exists only while there is work.
type serial struct {
	queue   []func()
	pending sync.WaitGroup
	mu      sync.Mutex
	running bool
}

func (x *serial) Go(fn func()) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.pending.Add(1)
	x.queue = append(x.queue, fn)
	if !x.running {
		x.running = true
		go x.run()
	}
}

// wait blocks until every function added so far has returned. It must not
// race a call to Go made while nothing is pending.
func (x *serial) wait() { x.pending.Wait() }

func (x *serial) run() {
	for {
		x.mu.Lock()
		if len(x.queue) == 0 {
			x.running = false
			x.queue = nil
			x.mu.Unlock()
			return
		}
		fn := x.queue[0]
		x.queue[0] = nil
		x.queue = x.queue[1:]
		x.mu.Unlock()

		func() {
			defer x.pending.Done()
			fn()
		}()
	}
}
