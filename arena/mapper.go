package arena

import (
	"unsafe"

	"github.com/cockroachdb/errors"
)

//go:generate mockgen -package mock_arena -destination mocks/mapper.go github.com/vkngwrapper/mmheap/arena Mapper

// ErrLimitExceeded is returned by LimitMapper when a mapping would take it past its limit
var ErrLimitExceeded = errors.New("arena: mapping limit exceeded")

// Mapper obtains zero-initialized, readable and writable memory of the requested length. Memory
// returned from a Mapper is never returned to it.
type Mapper interface {
	Map(size int) ([]byte, error)
}

// GoMapper is a Mapper that hands out zeroed, word-aligned memory from the Go heap. It holds a
// reference to every region it maps, so the memory lives as long as the GoMapper does.
type GoMapper struct {
	regions [][]byte
}

var _ Mapper = &GoMapper{}

// Map allocates size zeroed bytes from the Go heap
func (m *GoMapper) Map(size int) ([]byte, error) {
	if size <= 0 {
		return nil, errors.Newf("cannot map %d bytes", size)
	}

	words := make([]uint64, (size+7)/8)
	region := unsafe.Slice((*byte)(unsafe.Pointer(&words[0])), size)
	m.regions = append(m.regions, region)

	return region, nil
}

// Mapped returns the number of bytes this mapper has handed out
func (m *GoMapper) Mapped() int {
	var total int
	for _, region := range m.regions {
		total += len(region)
	}
	return total
}

// LimitMapper wraps another Mapper and fails any mapping that would take the total number of
// bytes mapped through it past Limit
type LimitMapper struct {
	Mapper Mapper
	Limit  int

	mapped int
}

var _ Mapper = &LimitMapper{}

// Map maps size bytes through the wrapped Mapper if the limit allows it
func (m *LimitMapper) Map(size int) ([]byte, error) {
	if m.mapped+size > m.Limit {
		return nil, errors.Wrapf(ErrLimitExceeded, "mapping %d bytes would exceed the limit of %d (%d already mapped)", size, m.Limit, m.mapped)
	}

	region, err := m.Mapper.Map(size)
	if err != nil {
		return nil, err
	}

	m.mapped += size
	return region, nil
}

// Mapped returns the number of bytes that have been mapped through this LimitMapper
func (m *LimitMapper) Mapped() int {
	return m.mapped
}
