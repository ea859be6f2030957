//go:build windows

package arena

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

// MMapper reserves and commits read/write memory with VirtualAlloc
type MMapper struct{}

var _ Mapper = MMapper{}

// DefaultMapper returns the platform's anonymous memory mapper
func DefaultMapper() Mapper {
	return MMapper{}
}

// Map commits size bytes of zero-filled memory
func (MMapper) Map(size int) ([]byte, error) {
	addr, err := windows.VirtualAlloc(0, uintptr(size), windows.MEM_RESERVE|windows.MEM_COMMIT, windows.PAGE_READWRITE)
	if err != nil {
		return nil, err
	}

	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), size), nil
}
