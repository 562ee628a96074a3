package protocol

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrChannelClosed is returned when posting to a closed Channel.
var ErrChannelClosed = errors.New(`protocol: channel closed`)

// Envelope is a message posted by the compute side, stamped with the time
// it was posted.
type Envelope struct {
	Message Message
	Posted  time.Time
}

// Channel is the asynchronous message transport between the two sides, one
// FIFO queue per direction. It carries values, never shared references,
// except for the byte slices of SharedBufResponse, which transfer ownership.
//
// Instances must be initialized using NewChannel.
type Channel struct {
	toControl chan Envelope
	toWorker  chan Message
	done      chan struct{}
	closeOnce sync.Once
}

// NewChannel initializes a Channel, buffering up to capacity messages in each
// direction. A capacity <= 0 defaults to 64.
func NewChannel(capacity int) *Channel {
	if capacity <= 0 {
		capacity = 64
	}
	return &Channel{
		toControl: make(chan Envelope, capacity),
		toWorker:  make(chan Message, capacity),
		done:      make(chan struct{}),
	}
}

// PostToControl sends msg from the compute side, blocking if the buffer is
// full, until ctx is canceled or the channel is closed.
func (x *Channel) PostToControl(ctx context.Context, msg Message) error {
	if msg == nil {
		panic(`protocol: nil message`)
	}
	return post(ctx, x.done, x.toControl, Envelope{Message: msg, Posted: time.Now()})
}

// PostToWorker sends msg from the control side.
func (x *Channel) PostToWorker(ctx context.Context, msg Message) error {
	if msg == nil {
		panic(`protocol: nil message`)
	}
	return post(ctx, x.done, x.toWorker, msg)
}

func post[T any](ctx context.Context, done <-chan struct{}, ch chan<- T, value T) error {
	// guard closed - avoids racing a send against a closed channel
	select {
	case <-done:
		return ErrChannelClosed
	default:
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return ErrChannelClosed
	case ch <- value:
		return nil
	}
}

// ControlInbox receives messages posted by the compute side.
func (x *Channel) ControlInbox() <-chan Envelope { return x.toControl }

// WorkerInbox receives messages posted by the control side.
func (x *Channel) WorkerInbox() <-chan Message { return x.toWorker }

// Done is closed once Close is called.
func (x *Channel) Done() <-chan struct{} { return x.done }

// Close prevents further posts. Buffered messages remain receivable, but
// receivers should select on Done.
func (x *Channel) Close() {
	x.closeOnce.Do(func() { close(x.done) })
}
