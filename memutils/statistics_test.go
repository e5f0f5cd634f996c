package memutils_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/poolalloc/memutils"
)

func TestDetailedStatisticsAccumulate(t *testing.T) {
	var first memutils.DetailedStatistics
	first.Clear()
	first.ArenaCount++
	first.ArenaBytes += 1000
	first.AddAllocation(100)
	first.AddAllocation(300)
	first.AddFreeChunk(600)

	var second memutils.DetailedStatistics
	second.Clear()
	second.ArenaCount++
	second.ArenaBytes += 500
	second.AddFreeChunk(500)

	var total memutils.DetailedStatistics
	total.Clear()
	total.AddDetailedStatistics(&first)
	total.AddDetailedStatistics(&second)

	require.Equal(t, memutils.DetailedStatistics{
		Statistics: memutils.Statistics{
			ArenaCount:      2,
			AllocationCount: 2,
			ArenaBytes:      1500,
			AllocationBytes: 400,
		},
		FreeChunkCount:    2,
		AllocationSizeMin: 100,
		AllocationSizeMax: 300,
		FreeChunkSizeMin:  500,
		FreeChunkSizeMax:  600,
	}, total)
	require.Equal(t, 1100, total.FreeBytes())

	total.Clear()
	require.Equal(t, math.MaxInt, total.AllocationSizeMin)
	require.Equal(t, math.MaxInt, total.FreeChunkSizeMin)
	require.Zero(t, total.ArenaBytes)
}
