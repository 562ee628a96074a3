package render

import (
	"errors"
	"sync"
	"time"
)

type (
	// BatcherConfig models optional configuration, for NewBatcher.
	BatcherConfig struct {
		// Scheduler arranges for fn to be called at the next frame boundary.
		// It is called at most once per batch, on the first Append after the
		// buffer became empty.
		// **Defaults to time.AfterFunc(FrameInterval, fn).**
		Scheduler func(fn func())

		// OnFlush, if set, is called after each non-empty flush, with the
		// number of operations applied, e.g. to present the frame.
		OnFlush func(n int)

		// FrameInterval is used by the default Scheduler.
		// **Defaults to 16ms, if 0, or BatcherConfig is nil.**
		FrameInterval time.Duration
	}

	// Batcher accumulates drawing operations between frames.
	// Instances must be initialized using the NewBatcher factory.
	Batcher struct {
		surface  Surface
		schedule func(fn func())
		onFlush  func(n int)
		// flushMu serializes application of batches to the surface
		flushMu   sync.Mutex
		mu        sync.Mutex
		ops       []Op
		scheduled bool
		closed    bool
	}
)

// ErrBatcherClosed is returned by Batcher.Append after Batcher.Close.
var ErrBatcherClosed = errors.New(`render: batcher closed`)

// NewBatcher initializes a new Batcher, drawing to surface. The provided
// config may be nil. A panic will occur if surface is nil.
func NewBatcher(surface Surface, config *BatcherConfig) *Batcher {
	if surface == nil {
		panic(`render: nil surface`)
	}

	batcher := Batcher{surface: surface}

	frameInterval := time.Millisecond * 16
	if config != nil {
		if config.FrameInterval > 0 {
			frameInterval = config.FrameInterval
		}
		batcher.schedule = config.Scheduler
		batcher.onFlush = config.OnFlush
	}
	if batcher.schedule == nil {
		batcher.schedule = func(fn func()) { time.AfterFunc(frameInterval, fn) }
	}

	return &batcher
}

// Append buffers ops, scheduling a flush if the buffer was empty.
func (x *Batcher) Append(ops ...Op) error {
	if len(ops) == 0 {
		return nil
	}

	x.mu.Lock()
	if x.closed {
		x.mu.Unlock()
		return ErrBatcherClosed
	}
	x.ops = append(x.ops, ops...)
	schedule := !x.scheduled
	x.scheduled = true
	x.mu.Unlock()

	// first op -> schedule the flush for the frame boundary
	if schedule {
		x.schedule(func() { x.Flush() })
	}

	return nil
}

// Flush applies every buffered op, in the order appended, then clears the
// buffer. It returns the number of ops applied.
func (x *Batcher) Flush() int {
	x.flushMu.Lock()
	defer x.flushMu.Unlock()

	x.mu.Lock()
	ops := x.ops
	x.ops = nil
	x.scheduled = false
	x.mu.Unlock()

	for _, op := range ops {
		op.Apply(x.surface)
	}

	if len(ops) != 0 && x.onFlush != nil {
		x.onFlush(len(ops))
	}

	return len(ops)
}

// Pending returns the number of buffered ops.
func (x *Batcher) Pending() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return len(x.ops)
}

// Close discards any buffered ops, and prevents further appends. A flush that
// was already scheduled becomes a no-op.
func (x *Batcher) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.closed = true
	x.ops = nil
	return nil
}
