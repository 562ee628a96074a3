package mailbox

import (
	"errors"
	"fmt"
)

var (
	// ErrDecodeOverrun is returned by [Decoder] methods when the payload has
	// fewer words remaining than the value being read requires.
	ErrDecodeOverrun = errors.New(`mailbox: decode overrun`)

	// ErrInvalidKind is returned by [Mailbox.Encode] for the reserved kind
	// [StatusNotSet].
	ErrInvalidKind = errors.New(`mailbox: event kind must be non-zero`)

	// ErrClosed is returned after [Mailbox.Close].
	ErrClosed = errors.New(`mailbox: closed`)
)

// CapacityError indicates an event payload that does not fit in the mailbox.
// Nothing is written when this error is returned.
type CapacityError struct {
	Kind  int32
	Words int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf(`mailbox: event %d needs %d payload words, capacity is %d`, e.Kind, e.Words, PayloadSlots)
}

// RangeError indicates a numeric value that cannot be represented exactly as
// a single int32 word.
type RangeError struct {
	Value any
	Index int
}

func (e *RangeError) Error() string {
	return fmt.Sprintf(`mailbox: value %d (%v) is not an int32`, e.Index, e.Value)
}

// TypeError indicates a value of a type the codec does not support.
type TypeError struct {
	Value any
	Index int
}

func (e *TypeError) Error() string {
	return fmt.Sprintf(`mailbox: value %d has unsupported type %T`, e.Index, e.Value)
}
