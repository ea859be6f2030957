package ledger

import (
	"sort"

	"github.com/pkg/errors"
)

// Span describes the part of an arena that holds blocks: First is the arena's first header and End
// is the address immediately past the arena.
type Span struct {
	First Block
	End   uintptr
}

// Start returns the address of the span's first header
func (s Span) Start() uintptr {
	return s.First.Address()
}

func (s Span) contains(addr uintptr) bool {
	return addr >= s.Start() && addr < s.End
}

// Validate performs internal consistency checks on the list against the arenas described by
// spans. These checks walk every block and are expensive. When the ledger is functioning correctly,
// it should not be possible for this method to return an error.
func (l *Ledger) Validate(spans []Span) error {
	if l.anchor == NoBlock {
		if l.blockCount != 0 {
			return errors.Errorf("the ledger has no anchor but reports %d blocks", l.blockCount)
		}
		if len(spans) != 0 {
			return errors.Errorf("the ledger has no anchor but %d arenas were provided", len(spans))
		}
		return nil
	}

	sorted := make([]Span, len(spans))
	copy(sorted, spans)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Start() < sorted[j].Start()
	})

	for i := 1; i < len(sorted); i++ {
		if sorted[i].Start() < sorted[i-1].End {
			return errors.Errorf("arena spans starting at %#x and %#x overlap", sorted[i-1].Start(), sorted[i].Start())
		}
	}

	findSpan := func(addr uintptr) int {
		index := sort.Search(len(sorted), func(i int) bool {
			return sorted[i].End > addr
		})
		if index < len(sorted) && sorted[index].contains(addr) {
			return index
		}
		return -1
	}

	// List walk
	var listCount, allocCount, allocBytes int
	block := l.anchor
	for {
		if listCount > l.blockCount {
			return errors.Errorf("walked %d blocks without returning to the anchor, but the ledger reports %d blocks", listCount, l.blockCount)
		}

		if findSpan(block.Address()) < 0 {
			return errors.Errorf("block at %#x is not inside any arena", block.Address())
		}

		if block.Size() <= 0 {
			return errors.Errorf("block at %#x has an invalid size of %d", block.Address(), block.Size())
		}

		if block.Size()%Alignment != 0 {
			return errors.Errorf("block at %#x has size %d, which is not a multiple of %d", block.Address(), block.Size(), Alignment)
		}

		if block.RequestedSize() > block.Size() {
			return errors.Errorf("block at %#x holds an allocation of %d bytes but only spans %d", block.Address(), block.RequestedSize(), block.Size())
		}

		if !block.IsFree() {
			allocCount++
			allocBytes += block.RequestedSize()
		}

		listCount++
		block = block.Next()
		if block == l.anchor {
			break
		}
	}

	if listCount != l.blockCount {
		return errors.Errorf("the ledger reports %d blocks, but the list contains %d", l.blockCount, listCount)
	}

	if allocCount != l.allocationCount {
		return errors.Errorf("the ledger reports %d allocations, but the list contains %d blocks in use", l.allocationCount, allocCount)
	}

	if allocBytes != l.allocationBytes {
		return errors.Errorf("the ledger reports %d allocated bytes, but blocks in use add up to %d", l.allocationBytes, allocBytes)
	}

	// Physical walk
	var physicalCount int
	for _, span := range sorted {
		current := span.First
		for {
			physicalCount++
			if physicalCount > l.blockCount {
				return errors.Errorf("arena starting at %#x holds more blocks than the list", span.Start())
			}

			end := current.End()
			if end > span.End {
				return errors.Errorf("block at %#x runs %d bytes past the end of its arena", current.Address(), end-span.End)
			}

			if end == span.End {
				break
			}

			if end+uintptr(HeaderSize) > span.End {
				return errors.Errorf("block at %#x leaves %d bytes at the end of its arena, too few for a header", current.Address(), span.End-end)
			}

			if current.Next().Address() != end {
				return errors.Errorf("block at %#x is physically followed by %#x, but its list successor is %#x", current.Address(), end, current.Next().Address())
			}

			current = current.physicalNext()
		}
	}

	if physicalCount != l.blockCount {
		return errors.Errorf("the arenas physically hold %d blocks, but the list contains %d", physicalCount, l.blockCount)
	}

	return nil
}

// VisitAllRegions calls handleBlock once for each block in list order, starting at the anchor.
// Iteration stops at the first error, which is returned.
func (l *Ledger) VisitAllRegions(handleBlock func(block Block, size int, requested int, free bool) error) error {
	if l.anchor == NoBlock {
		return nil
	}

	block := l.anchor
	for {
		next := block.Next()
		err := handleBlock(block, block.Size(), block.RequestedSize(), block.IsFree())
		if err != nil {
			return err
		}

		block = next
		if block == l.anchor {
			return nil
		}
	}
}

// VisitSpan calls handleBlock once for each block inside span, in physical order. offset is the
// distance in bytes from the span's first header to the block's header. The walk trusts the size
// stored in each header, so it should only be used on a ledger that passes Validate.
func (l *Ledger) VisitSpan(span Span, handleBlock func(block Block, offset int, size int, requested int, free bool) error) error {
	current := span.First
	for {
		err := handleBlock(current, int(current.Address()-span.Start()), current.Size(), current.RequestedSize(), current.IsFree())
		if err != nil {
			return err
		}

		if current.End() >= span.End {
			return nil
		}
		current = current.physicalNext()
	}
}
