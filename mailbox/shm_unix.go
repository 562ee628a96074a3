//go:build unix

package mailbox

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// allocWords maps an anonymous shared region large enough for n words.
func allocWords(n int) ([]int32, func() error, error) {
	b, err := unix.Mmap(-1, 0, n*4, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_SHARED)
	if err != nil {
		return nil, nil, err
	}
	words := unsafe.Slice((*int32)(unsafe.Pointer(&b[0])), n)
	return words, func() error { return unix.Munmap(b) }, nil
}
