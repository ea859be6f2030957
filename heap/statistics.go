package heap

import (
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/vkngwrapper/mmheap/arena"
	"github.com/vkngwrapper/mmheap/ledger"
	"github.com/vkngwrapper/mmheap/memutils"
)

// Statistics returns the arena, block and allocation totals for the heap. Unlike
// CalculateStatistics, this does not walk the block list.
func (h *Heap) Statistics(stats *memutils.Statistics) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	stats.Clear()
	h.arenas.AddStatistics(stats)
	h.blocks.AddStatistics(stats)
}

// CalculateStatistics walks every block in the heap and populates stats with detailed totals,
// including free range sizes. This is a slow operation.
func (h *Heap) CalculateStatistics(stats *memutils.DetailedStatistics) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	stats.Clear()
	h.arenas.AddStatistics(&stats.Statistics)
	h.blocks.AddDetailedStatistics(stats)
}

// BuildStatsString produces a JSON document describing the heap. When detailed is true, every
// arena is listed along with each of its regions in physical order.
func (h *Heap) BuildStatsString(detailed bool) string {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	var stats memutils.DetailedStatistics
	stats.Clear()
	h.arenas.AddStatistics(&stats.Statistics)
	h.blocks.AddDetailedStatistics(&stats)

	writer := jwriter.NewWriter()
	obj := writer.Object()

	total := obj.Name("Total").Object()
	printStatistics(&total, &stats)
	total.End()

	config := obj.Name("Config").Object()
	config.Name("PageSize").Int(h.arenas.PageSize())
	config.Name("Flags").String(h.createFlags.String())
	config.End()

	blocks := obj.Name("Blocks").Object()
	h.blocks.BlockJsonData(blocks)
	blocks.End()

	if detailed {
		arenas := obj.Name("Arenas").Array()
		_ = h.arenas.VisitArenas(func(a *arena.Arena) error {
			arenaObj := arenas.Object()
			arenaObj.Name("Size").Int(a.Size())
			arenaObj.Name("UsableSize").Int(a.UsableSize())
			h.printRegions(a, arenaObj)
			arenaObj.End()
			return nil
		})
		arenas.End()
	}

	obj.End()
	return string(writer.Bytes())
}

func printStatistics(json *jwriter.ObjectState, stats *memutils.DetailedStatistics) {
	json.Name("ArenaCount").Int(stats.ArenaCount)
	json.Name("ArenaBytes").Int(stats.ArenaBytes)
	json.Name("BlockCount").Int(stats.BlockCount)
	json.Name("AllocationCount").Int(stats.AllocationCount)
	json.Name("AllocationBytes").Int(stats.AllocationBytes)
	json.Name("UnusedRangeCount").Int(stats.UnusedRangeCount)
	json.Name("UnusedBytes").Int(stats.UnusedBytes)

	if stats.AllocationCount > 0 {
		json.Name("AllocationSizeMin").Int(stats.AllocationSizeMin)
		json.Name("AllocationSizeMax").Int(stats.AllocationSizeMax)
	}

	if stats.UnusedRangeCount > 0 {
		json.Name("UnusedRangeSizeMin").Int(stats.UnusedRangeSizeMin)
		json.Name("UnusedRangeSizeMax").Int(stats.UnusedRangeSizeMax)
	}
}

func (h *Heap) printRegions(a *arena.Arena, json jwriter.ObjectState) {
	arrayState := json.Name("Regions").Array()
	defer arrayState.End()

	_ = h.blocks.VisitSpan(a.Span(), func(block ledger.Block, offset int, size int, requested int, free bool) error {
		obj := arrayState.Object()
		defer obj.End()

		obj.Name("Offset").Int(offset)
		obj.Name("Size").Int(size)
		if free {
			obj.Name("Type").String("Free")
		} else {
			obj.Name("Type").String("Used")
			obj.Name("Requested").Int(requested)
		}

		return nil
	})
}
