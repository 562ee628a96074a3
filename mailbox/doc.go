// Package mailbox implements the fixed-size shared mailbox used to hand one
// event at a time from a control goroutine to a blocking compute goroutine.
//
// # Layout
//
// A [Mailbox] is exactly [Slots] signed 32-bit words. Word 0 is the status
// word: zero means no event is pending, any other value names the kind of
// the pending event. Words 1 through [Slots]-1 hold the encoded payload:
//
//   - a string is its length in UTF-16 code units, followed by one word per
//     code unit
//   - an integer is a single word, and must fit in an int32
//   - a float must be integral, and is then treated as an integer
//   - a bool is 0 or 1
//
// [Mailbox.Encode] measures the payload before writing anything, so an event
// that would not fit is rejected with a [*CapacityError] and leaves the shared
// words untouched.
//
// # Signaling
//
// After writing the payload and the status word, Encode wakes exactly one
// goroutine blocked in [Mailbox.Wait]. On linux this is a futex on the status
// word of an anonymous shared mapping; elsewhere a channel based fallback
// provides the same semantics.
//
// The mailbox itself does not enforce that only one event is in flight. That
// is the responsibility of the writer (see the bridge package), and is what
// makes a single fixed buffer sufficient.
package mailbox
