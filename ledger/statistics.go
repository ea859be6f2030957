package ledger

import (
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/vkngwrapper/mmheap/memutils"
)

// SumFreeSize returns the number of payload bytes held by free blocks
func (l *Ledger) SumFreeSize() int {
	var sum int
	_ = l.VisitAllRegions(func(block Block, size int, requested int, free bool) error {
		if free {
			sum += size
		}
		return nil
	})
	return sum
}

// FreeRegionsCount returns the number of free blocks
func (l *Ledger) FreeRegionsCount() int {
	return l.blockCount - l.allocationCount
}

// AddStatistics sums this ledger's block and allocation counts into stats
func (l *Ledger) AddStatistics(stats *memutils.Statistics) {
	stats.BlockCount += l.blockCount
	stats.AllocationCount += l.allocationCount
	stats.AllocationBytes += l.allocationBytes
}

// AddDetailedStatistics walks every block and sums its allocation and unused range information
// into stats
func (l *Ledger) AddDetailedStatistics(stats *memutils.DetailedStatistics) {
	stats.BlockCount += l.blockCount

	_ = l.VisitAllRegions(func(block Block, size int, requested int, free bool) error {
		if free {
			stats.AddUnusedRange(size)
		} else {
			stats.AddAllocation(requested)
		}
		return nil
	})
}

// BlockJsonData populates a json object with summary information about the list
func (l *Ledger) BlockJsonData(json jwriter.ObjectState) {
	json.Name("Blocks").Int(l.blockCount)
	json.Name("Allocations").Int(l.allocationCount)
	json.Name("AllocatedBytes").Int(l.allocationBytes)
	json.Name("UnusedRanges").Int(l.FreeRegionsCount())
	json.Name("UnusedBytes").Int(l.SumFreeSize())
}
