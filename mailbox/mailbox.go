// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package mailbox

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// Slots is the total number of int32 words in a mailbox.
	Slots = 128

	// PayloadSlots is the number of words available after the status word.
	PayloadSlots = Slots - 1

	// StatusNotSet is the value of the status word when no event is pending.
	StatusNotSet int32 = 0
)

// waitQuantum bounds each blocking wait, so that context cancellation and
// Close are observed without a dedicated wake.
const waitQuantum = 50 * time.Millisecond

// Mailbox is a fixed block of [Slots] words shared between exactly one
// writer (the control side) and one blocking reader (the compute side).
//
// Instances must be initialized using [New], and released using
// [Mailbox.Close].
type Mailbox struct {
	// mu guards words against Close, not against concurrent use: payload
	// ordering is provided by the atomic status word.
	mu     sync.RWMutex
	words  []int32
	signal *signal
	unmap  func() error
	closed atomic.Bool
}

// New allocates a mailbox. On unix systems the words are backed by an
// anonymous shared memory mapping.
func New() (*Mailbox, error) {
	words, unmap, err := allocWords(Slots)
	if err != nil {
		return nil, err
	}
	return &Mailbox{
		words:  words,
		signal: newSignal(),
		unmap:  unmap,
	}, nil
}

// Encode writes an event into the mailbox, and wakes one goroutine blocked in
// Wait. The returned count includes the status word, e.g. a single string of
// length L results in L+2.
//
// The payload is validated before anything is written. Kind must be non-zero.
//
// WARNING: Encode does not check that the previous event was claimed, callers
// must only write while no event is in flight.
func (x *Mailbox) Encode(kind int32, values ...any) (int, error) {
	if kind == StatusNotSet {
		return 0, ErrInvalidKind
	}

	size, err := Size(values...)
	if err != nil {
		return 0, err
	}
	if size > PayloadSlots {
		return 0, &CapacityError{Kind: kind, Words: size}
	}

	x.mu.RLock()
	defer x.mu.RUnlock()
	if x.closed.Load() {
		return 0, ErrClosed
	}

	i := 1
	for _, v := range values {
		i = put(x.words, i, v)
	}

	// publishes the payload
	atomic.StoreInt32(&x.words[0], kind)
	x.signal.wake(&x.words[0], 1)

	return i, nil
}

// Status loads the current status word.
func (x *Mailbox) Status() int32 {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if x.closed.Load() {
		return StatusNotSet
	}
	return atomic.LoadInt32(&x.words[0])
}

// Wait blocks until the status word is non-zero, returning it. It returns an
// error if ctx is canceled, or the mailbox is closed.
func (x *Mailbox) Wait(ctx context.Context) (int32, error) {
	for {
		status, err := x.waitOnce(ctx)
		if err != nil || status != StatusNotSet {
			return status, err
		}
	}
}

func (x *Mailbox) waitOnce(ctx context.Context) (int32, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if x.closed.Load() {
		return 0, ErrClosed
	}
	if status := atomic.LoadInt32(&x.words[0]); status != StatusNotSet {
		return status, nil
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	x.signal.wait(&x.words[0], StatusNotSet, waitQuantum)
	return atomic.LoadInt32(&x.words[0]), nil
}

// Claim takes a copy of the pending event, and resets the status word,
// allowing the writer to proceed once it has been told the event is done.
// The returned payload is always [PayloadSlots] long.
func (x *Mailbox) Claim() (int32, []int32) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if x.closed.Load() {
		return StatusNotSet, nil
	}
	status := atomic.LoadInt32(&x.words[0])
	payload := make([]int32, PayloadSlots)
	copy(payload, x.words[1:])
	atomic.StoreInt32(&x.words[0], StatusNotSet)
	return status, payload
}

// Close wakes all waiters, and releases the underlying memory. It is safe to
// call more than once.
func (x *Mailbox) Close() error {
	if !x.closed.CompareAndSwap(false, true) {
		return nil
	}
	x.signal.wake(&x.words[0], math.MaxInt32)
	x.mu.Lock()
	defer x.mu.Unlock()
	var err error
	if x.unmap != nil {
		err = x.unmap()
	}
	x.words = nil
	return err
}
