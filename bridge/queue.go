package bridge

import (
	"fmt"

	"github.com/joeycumines/go-workerbridge/mailbox"
	"github.com/joeycumines/go-workerbridge/protocol"
)

type (
	// queuedEvent is an event waiting to be, or currently, in the mailbox.
	queuedEvent struct {
		// onAck is called once, with nil when the compute side acknowledges
		// the event, or the reason it never will.
		onAck  func(err error)
		values []any
		status protocol.Status
	}

	// eventQueue is the FIFO of unacknowledged events. The head, if any, is
	// the event currently in the mailbox. Not safe for concurrent use.
	eventQueue struct {
		mailbox *mailbox.Mailbox
		events  []*queuedEvent
		// debug enables checking the mailbox is empty before each write
		debug bool
	}
)

func (x *eventQueue) len() int { return len(x.events) }

// enqueue appends an event, writing it immediately if nothing is in flight.
// Any error is a protocol violation, and the event is not queued.
func (x *eventQueue) enqueue(ev *queuedEvent) error {
	if !ev.status.Valid() {
		return &ProtocolError{Op: `enqueue`, Reason: fmt.Sprintf(`invalid event %s`, ev.status)}
	}

	// must fail before it is queued, otherwise the queue would stall
	size, err := mailbox.Size(ev.values...)
	if err != nil {
		return &ProtocolError{Op: `enqueue`, Reason: `invalid ` + ev.status.String() + ` payload`, Err: err}
	}
	if size > mailbox.PayloadSlots {
		return &ProtocolError{Op: `enqueue`, Reason: `mailbox overflow`, Err: &mailbox.CapacityError{Kind: int32(ev.status), Words: size}}
	}

	x.events = append(x.events, ev)
	if len(x.events) == 1 {
		return x.write(ev)
	}
	return nil
}

// acknowledge completes the in-flight event, then writes the next, if any.
func (x *eventQueue) acknowledge(status protocol.Status) error {
	if len(x.events) == 0 {
		return &ProtocolError{Op: `acknowledge`, Reason: fmt.Sprintf(`unexpected %s: no event in flight`, status)}
	}

	head := x.events[0]
	if head.status != status {
		return &ProtocolError{Op: `acknowledge`, Reason: fmt.Sprintf(`unexpected %s: expected %s`, status, head.status)}
	}

	x.events[0] = nil
	x.events = x.events[1:]

	// the next event is written before onAck runs, as anything onAck
	// enqueues must follow it
	var err error
	if len(x.events) != 0 {
		err = x.write(x.events[0])
	} else {
		x.events = nil
	}

	if head.onAck != nil {
		head.onAck(nil)
	}

	return err
}

func (x *eventQueue) write(ev *queuedEvent) error {
	if x.debug {
		if status := protocol.Status(x.mailbox.Status()); status != protocol.StatusNotSet {
			return &ProtocolError{Op: `write`, Reason: fmt.Sprintf(`mailbox busy with %s, writing %s`, status, ev.status)}
		}
	}
	if _, err := x.mailbox.Encode(int32(ev.status), ev.values...); err != nil {
		return &ProtocolError{Op: `write`, Reason: `encode ` + ev.status.String(), Err: err}
	}
	return nil
}

// drain fails every queued event, including the one in flight.
func (x *eventQueue) drain(err error) {
	events := x.events
	x.events = nil
	for _, ev := range events {
		if ev.onAck != nil {
			ev.onAck(err)
		}
	}
}
