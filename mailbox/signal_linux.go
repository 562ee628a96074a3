//go:build linux

package mailbox

import (
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// futex operations, not exported by x/sys
const (
	futexWait = 0
	futexWake = 1
)

// signal blocks and wakes using a futex on the status word. The mapping is
// MAP_SHARED, so the non-private operations are used.
type signal struct{}

func newSignal() *signal { return &signal{} }

// wait sleeps while *word == val, for at most timeout. Spurious returns
// (EAGAIN, EINTR, ETIMEDOUT) are expected, callers must re-check the word.
func (*signal) wait(word *int32, val int32, timeout time.Duration) {
	ts := unix.NsecToTimespec(int64(timeout))
	_, _, _ = unix.Syscall6(
		unix.SYS_FUTEX,
		uintptr(unsafe.Pointer(word)),
		futexWait,
		uintptr(uint32(val)),
		uintptr(unsafe.Pointer(&ts)),
		0,
		0,
	)
}

// wake wakes at most n goroutines sleeping on word.
func (*signal) wake(word *int32, n int) {
	_, _, _ = unix.Syscall6(
		unix.SYS_FUTEX,
		uintptr(unsafe.Pointer(word)),
		futexWake,
		uintptr(n),
		0,
		0,
		0,
	)
}
