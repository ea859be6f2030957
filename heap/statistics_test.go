package heap_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/mmheap/arena"
	"github.com/vkngwrapper/mmheap/heap"
	"github.com/vkngwrapper/mmheap/memutils"
)

func TestCalculateStatistics(t *testing.T) {
	h := newHeap(t, heap.CreateOptions{PageSize: smallPageSize, Mapper: &arena.GoMapper{}})

	var stats memutils.DetailedStatistics
	h.CalculateStatistics(&stats)
	require.Equal(t, 0, stats.ArenaCount)
	require.Equal(t, 0, stats.BlockCount)

	mustAllocate(t, h, 100)
	mustAllocate(t, h, 300)

	h.CalculateStatistics(&stats)
	require.Equal(t, 1, stats.ArenaCount)
	require.Equal(t, smallPageSize, stats.ArenaBytes)
	require.Equal(t, 3, stats.BlockCount)
	require.Equal(t, 2, stats.AllocationCount)
	require.Equal(t, 400, stats.AllocationBytes)
	require.Equal(t, 100, stats.AllocationSizeMin)
	require.Equal(t, 300, stats.AllocationSizeMax)
	require.Equal(t, 1, stats.UnusedRangeCount)
	require.Equal(t, 4056-128-328, stats.UnusedBytes)
}

func TestBuildStatsString(t *testing.T) {
	h := newHeap(t, heap.CreateOptions{PageSize: smallPageSize, Mapper: &arena.GoMapper{}})
	mustAllocate(t, h, 100)

	require.JSONEq(t, `{
		"Total": {
			"ArenaCount": 1, "ArenaBytes": 4096, "BlockCount": 2,
			"AllocationCount": 1, "AllocationBytes": 100,
			"UnusedRangeCount": 1, "UnusedBytes": 3928,
			"AllocationSizeMin": 100, "AllocationSizeMax": 100,
			"UnusedRangeSizeMin": 3928, "UnusedRangeSizeMax": 3928
		},
		"Config": {"PageSize": 4096, "Flags": "HeapCreateValidateEveryCall"},
		"Blocks": {"Blocks": 2, "Allocations": 1, "AllocatedBytes": 100, "UnusedRanges": 1, "UnusedBytes": 3928}
	}`, h.BuildStatsString(false))

	require.JSONEq(t, `{
		"Total": {
			"ArenaCount": 1, "ArenaBytes": 4096, "BlockCount": 2,
			"AllocationCount": 1, "AllocationBytes": 100,
			"UnusedRangeCount": 1, "UnusedBytes": 3928,
			"AllocationSizeMin": 100, "AllocationSizeMax": 100,
			"UnusedRangeSizeMin": 3928, "UnusedRangeSizeMax": 3928
		},
		"Config": {"PageSize": 4096, "Flags": "HeapCreateValidateEveryCall"},
		"Blocks": {"Blocks": 2, "Allocations": 1, "AllocatedBytes": 100, "UnusedRanges": 1, "UnusedBytes": 3928},
		"Arenas": [{
			"Size": 4096, "UsableSize": 4056,
			"Regions": [
				{"Offset": 0, "Size": 104, "Type": "Used", "Requested": 100},
				{"Offset": 128, "Size": 3928, "Type": "Free"}
			]
		}]
	}`, h.BuildStatsString(true))
}

func TestBuildStatsStringEmptyHeap(t *testing.T) {
	h := newHeap(t, heap.CreateOptions{PageSize: smallPageSize, Mapper: &arena.GoMapper{}})

	require.JSONEq(t, `{
		"Total": {
			"ArenaCount": 0, "ArenaBytes": 0, "BlockCount": 0,
			"AllocationCount": 0, "AllocationBytes": 0,
			"UnusedRangeCount": 0, "UnusedBytes": 0
		},
		"Config": {"PageSize": 4096, "Flags": "HeapCreateValidateEveryCall"},
		"Blocks": {"Blocks": 0, "Allocations": 0, "AllocatedBytes": 0, "UnusedRanges": 0, "UnusedBytes": 0},
		"Arenas": []
	}`, h.BuildStatsString(true))
}
