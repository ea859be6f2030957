package memutils_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/mmheap/memutils"
)

func TestCheckPow2(t *testing.T) {
	require.NoError(t, memutils.CheckPow2(1, "one"))
	require.NoError(t, memutils.CheckPow2(128*1024, "page"))

	err := memutils.CheckPow2(96, "page")
	require.Error(t, err)
	require.ErrorIs(t, err, memutils.PowerOfTwoError)
	require.Contains(t, err.Error(), "page is 96")

	require.ErrorIs(t, memutils.CheckPow2(0, "zero"), memutils.PowerOfTwoError)
	require.ErrorIs(t, memutils.CheckPow2(-4, "negative"), memutils.PowerOfTwoError)
}

func TestAlign(t *testing.T) {
	require.Equal(t, 0, memutils.AlignUp(0, 8))
	require.Equal(t, 8, memutils.AlignUp(1, 8))
	require.Equal(t, 8, memutils.AlignUp(8, 8))
	require.Equal(t, 104, memutils.AlignUp(100, 8))
	require.Equal(t, uintptr(4096), memutils.AlignUp(uintptr(4095), 4096))

	require.Equal(t, 96, memutils.AlignDown(100, 8))
	require.Equal(t, 0, memutils.AlignDown(7, 8))
}

func TestDetailedStatistics(t *testing.T) {
	var stats memutils.DetailedStatistics
	stats.Clear()

	require.Equal(t, math.MaxInt, stats.AllocationSizeMin)
	require.Equal(t, math.MaxInt, stats.UnusedRangeSizeMin)

	stats.AddAllocation(100)
	stats.AddAllocation(40)
	stats.AddUnusedRange(500)

	stats.AddAllocation(1000)
	stats.AddUnusedRange(8)

	require.Equal(t, memutils.DetailedStatistics{
		Statistics: memutils.Statistics{
			AllocationCount: 3,
			AllocationBytes: 1140,
		},
		UnusedRangeCount:   2,
		UnusedBytes:        508,
		AllocationSizeMin:  40,
		AllocationSizeMax:  1000,
		UnusedRangeSizeMin: 8,
		UnusedRangeSizeMax: 500,
	}, stats)

	stats.Clear()
	require.Equal(t, 0, stats.AllocationCount)
	require.Equal(t, 0, stats.UnusedBytes)
	require.Equal(t, math.MaxInt, stats.AllocationSizeMin)
}
