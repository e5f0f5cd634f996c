package metadata

import "math"

// BlockAllocationHandle identifies a live allocation within a BlockMetadata. For in-place
// allocators it is the byte offset of the allocation's payload within the arena.
type BlockAllocationHandle uint64

const (
	NoAllocation BlockAllocationHandle = math.MaxUint64
)

// Region describes one chunk of an arena, as reported by VisitAllRegions
type Region struct {
	Handle BlockAllocationHandle
	Offset int
	Size   int
	Free   bool
}

// CollectRegions returns every region of the block in address order
func CollectRegions(m BlockMetadata) ([]Region, error) {
	var regions []Region
	err := m.VisitAllRegions(func(handle BlockAllocationHandle, offset int, size int, free bool) error {
		regions = append(regions, Region{
			Handle: handle,
			Offset: offset,
			Size:   size,
			Free:   free,
		})
		return nil
	})
	return regions, err
}
