package memutils

import "math"

// Statistics summarizes how much of a heap's mapped memory is handed out to callers
type Statistics struct {
	// ArenaCount is the number of arenas mapped from the OS
	ArenaCount int
	// BlockCount is the number of block headers, free or in use
	BlockCount int
	// AllocationCount is the number of blocks currently handed out to callers
	AllocationCount int
	// ArenaBytes is the total size in bytes of all mapped arenas
	ArenaBytes int
	// AllocationBytes is the sum of the sizes callers requested for live allocations
	AllocationBytes int
}

func (s *Statistics) Clear() {
	s.ArenaCount = 0
	s.BlockCount = 0
	s.AllocationCount = 0
	s.ArenaBytes = 0
	s.AllocationBytes = 0
}

type DetailedStatistics struct {
	Statistics
	UnusedRangeCount   int
	UnusedBytes        int
	AllocationSizeMin  int
	AllocationSizeMax  int
	UnusedRangeSizeMin int
	UnusedRangeSizeMax int
}

func (s *DetailedStatistics) Clear() {
	s.Statistics.Clear()
	s.UnusedRangeCount = 0
	s.UnusedBytes = 0
	s.AllocationSizeMin = math.MaxInt
	s.AllocationSizeMax = 0
	s.UnusedRangeSizeMin = math.MaxInt
	s.UnusedRangeSizeMax = 0
}

func (s *DetailedStatistics) AddUnusedRange(size int) {
	s.UnusedRangeCount++
	s.UnusedBytes += size

	if size < s.UnusedRangeSizeMin {
		s.UnusedRangeSizeMin = size
	}

	if size > s.UnusedRangeSizeMax {
		s.UnusedRangeSizeMax = size
	}
}

func (s *DetailedStatistics) AddAllocation(size int) {
	s.AllocationCount++
	s.AllocationBytes += size

	if size < s.AllocationSizeMin {
		s.AllocationSizeMin = size
	}

	if size > s.AllocationSizeMax {
		s.AllocationSizeMax = size
	}
}
