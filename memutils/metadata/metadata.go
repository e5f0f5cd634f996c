package metadata

import (
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/vkngwrapper/poolalloc/memutils"
)

// BlockMetadata represents a single arena of memory managed in place. It exposes the
// diagnostic side of an allocator: consistency checks, enumeration of regions and
// statistics. None of these methods are required on the allocation fast path.
type BlockMetadata interface {
	// Size retrieves the number of bytes covered by chunks in the arena. This value never changes
	// after construction, regardless of allocations and frees.
	Size() int

	// Validate performs internal consistency checks on the metadata. These checks walk every chunk
	// and every free list entry and so are expensive. When the implementation is functioning correctly,
	// it should not be possible for this method to return an error, but this may assist in diagnosing
	// heap corruption caused by consumers writing outside their allocations.
	Validate() error
	// AllocationCount returns the number of allocations currently live in the arena. This number
	// should be the number of successful allocations minus the number of frees.
	AllocationCount() int
	// FreeRegionsCount returns the number of free chunks in the arena. Adjacent free chunks are always
	// merged, so this is also the number of maximal free spans.
	FreeRegionsCount() int
	// SumFreeSize returns the number of free bytes of memory in the arena, header overhead included.
	SumFreeSize() int
	// IsEmpty will return true if this arena has no live allocations
	IsEmpty() bool

	// VisitAllRegions will call the provided callback once for each allocation and free region in
	// the arena, in address order. If the callback returns an error, enumeration stops and the error
	// is returned.
	VisitAllRegions(handleBlock func(handle BlockAllocationHandle, offset int, size int, free bool) error) error

	// AddDetailedStatistics sums this arena's allocation statistics into the statistics currently present
	// in the provided memutils.DetailedStatistics object.
	AddDetailedStatistics(stats *memutils.DetailedStatistics)
	// AddStatistics sums this arena's allocation statistics into the statistics currently present in the
	// provided memutils.Statistics object.
	AddStatistics(stats *memutils.Statistics)

	// BlockJsonData populates a json object with summary information about this arena
	BlockJsonData(json *jwriter.ObjectState)

	// CheckCorruption returns nil if anti-corruption memory markers are present after every live
	// allocation in the arena.
	//
	// Bear in mind that anti-corruption memory markers are only written when memutils is built with
	// the build flag `debug_mem_utils`. This method will not return an error when that flag is not present.
	CheckCorruption() error
}

// BlockMetadataBase is a simple struct that provides a few shared utilities for BlockMetadata
// implementations in the memutils module.
type BlockMetadataBase struct {
	size int
}

// Init sizes the block in bytes based on the parameter size.
func (m *BlockMetadataBase) Init(size int) {
	m.size = size
}

// Size returns the size of the block in bytes
func (m *BlockMetadataBase) Size() int { return m.size }

// BlockJsonSummary populates a json object with the fields every BlockMetadata reports
func (m *BlockMetadataBase) BlockJsonSummary(json *jwriter.ObjectState, unusedBytes, allocationCount, unusedRangeCount int) {
	json.Name("TotalBytes").Int(m.Size())
	json.Name("UnusedBytes").Int(unusedBytes)
	json.Name("Allocations").Int(allocationCount)
	json.Name("UnusedRanges").Int(unusedRangeCount)
}
