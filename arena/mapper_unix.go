//go:build unix

package arena

import (
	"golang.org/x/sys/unix"
)

// MMapper maps anonymous, private, read/write memory with mmap(2)
type MMapper struct{}

var _ Mapper = MMapper{}

// DefaultMapper returns the platform's anonymous memory mapper
func DefaultMapper() Mapper {
	return MMapper{}
}

// Map maps size bytes of zero-filled anonymous memory
func (MMapper) Map(size int) ([]byte, error) {
	return unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
}
