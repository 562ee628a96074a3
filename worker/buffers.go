package worker

import (
	"errors"
	"fmt"
	"sync"
)

// ErrUnknownBuffer is returned by Buffers.Take for an id that was never
// allocated, or has already been taken.
var ErrUnknownBuffer = errors.New(`worker: unknown shared buffer`)

// BufferSizeError is returned by Buffers.Allocate for a negative size, or one
// larger than the configured limit.
type BufferSizeError struct {
	Size  int
	Limit int
}

func (e *BufferSizeError) Error() string {
	return fmt.Sprintf(`worker: shared buffer size %d out of range [0, %d]`, e.Size, e.Limit)
}

// Buffers tracks shared buffers handed to the control side, for transferring
// payloads that do not fit in the mailbox. Each buffer is owned by the
// control side from Allocate until the compute side consumes it via Take,
// after which the id is invalid.
type Buffers struct {
	bufs  map[int32][]byte
	mu    sync.Mutex
	limit int
	next  int32
}

// NewBuffers returns an empty table. Allocations larger than limit bytes are
// rejected, if limit is positive.
func NewBuffers(limit int) *Buffers {
	return &Buffers{bufs: make(map[int32][]byte), limit: limit}
}

// Allocate returns a fresh buffer of exactly size bytes. Ids start at 1, 0
// is never allocated.
func (x *Buffers) Allocate(size int) (int32, []byte, error) {
	if size < 0 || (x.limit > 0 && size > x.limit) {
		return 0, nil, &BufferSizeError{Size: size, Limit: x.limit}
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	x.next++
	id := x.next
	buf := make([]byte, size)
	x.bufs[id] = buf
	return id, buf, nil
}

// Take removes and returns a buffer.
func (x *Buffers) Take(id int32) ([]byte, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	buf, ok := x.bufs[id]
	if !ok {
		return nil, fmt.Errorf(`%w: %d`, ErrUnknownBuffer, id)
	}
	delete(x.bufs, id)
	return buf, nil
}

// Len returns the number of buffers allocated but not yet taken.
func (x *Buffers) Len() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return len(x.bufs)
}
