package pool

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/vkngwrapper/poolalloc/memutils"
	"github.com/vkngwrapper/poolalloc/memutils/metadata"
)

// AllocationCount returns the number of live allocations
func (p *Pool) AllocationCount() int {
	return p.allocCount
}

// FreeRegionsCount returns the number of free chunks, which is also the length of the free list
func (p *Pool) FreeRegionsCount() int {
	return p.freeCount
}

// SumFreeSize returns the total size of all free chunks, headers included. Because of those
// headers, no single request of this many bytes can succeed.
func (p *Pool) SumFreeSize() int {
	return p.freeSize
}

// IsEmpty returns true when the pool has no live allocations. An exhausted pool is always empty.
func (p *Pool) IsEmpty() bool {
	return p.allocCount == 0
}

// LargestFreeRegion returns the size in bytes, header included, of the largest free chunk
func (p *Pool) LargestFreeRegion() int {
	largest := 0
	for offset := p.freeList; offset != noChunk; {
		chunk := p.headerAt(offset)
		largest = chunk.size()
		offset = chunk.nextFree()
	}
	return largest
}

// MaxAllocationSize returns the largest request that Allocate would currently satisfy,
// or -1 if even an empty request would fail.
func (p *Pool) MaxAllocationSize() int {
	largest := p.LargestFreeRegion()
	smallest, ok := p.chunkSizeFor(0)
	if !ok || largest < smallest {
		return -1
	}
	return largest - headerOverhead - memutils.DebugMargin
}

func (p *Pool) Validate() error {
	if p.first == noChunk {
		if p.freeList != noChunk || p.allocCount != 0 || p.freeCount != 0 || p.freeSize != 0 || p.Size() != 0 {
			return errors.New("exhausted pool has chunks")
		}
		return nil
	}

	if p.SumFreeSize() > p.Size() {
		return errors.New("invalid pool free size")
	}

	firstChunk := p.headerAt(p.first)
	if firstChunk.word(prevSizeField) != inUse {
		return errors.Newf("leading sentinel has been overwritten: %#x", firstChunk.word(prevSizeField))
	}

	sentinel := p.headerAt(p.sentinel)
	if sentinel.word(thisSizeField) != inUse {
		return errors.Newf("trailing sentinel at offset %d has been overwritten: %#x", p.sentinel, sentinel.word(thisSizeField))
	}

	// Check integrity of the free list
	listed := swiss.NewMap[int, struct{}](uint32(p.freeCount) + 1)
	expectedSlot := headSlot
	previousSize := 0
	for offset := p.freeList; offset != noChunk; {
		if offset < p.first || offset >= p.sentinel {
			return errors.Newf("free list entry at offset %d lies outside the arena", offset)
		}
		if listed.Has(offset) {
			return errors.Newf("free list entry at offset %d appears twice", offset)
		}
		listed.Put(offset, struct{}{})

		chunk := p.headerAt(offset)
		if chunk.isInUse() {
			return errors.Newf("chunk at offset %d is in the free list but is not free", offset)
		}
		if chunk.prevFree() != expectedSlot {
			return errors.Newf("chunk at offset %d is referenced by slot %d, but records slot %d", offset, expectedSlot, chunk.prevFree())
		}
		if chunk.size() < previousSize {
			return errors.Newf("chunk at offset %d has size %d, smaller than the entry before it (%d)", offset, chunk.size(), previousSize)
		}

		previousSize = chunk.size()
		expectedSlot = chunk.nextFreeSlot()
		offset = chunk.nextFree()
	}

	base := uintptr(unsafe.Pointer(unsafe.SliceData(p.arena)))
	calculatedSize := 0
	calculatedFreeSize := 0
	var allocCount, freeCount int
	expectedPrevSize := inUse
	prevFree := false

	for offset := p.first; offset != p.sentinel; {
		chunk := p.headerAt(offset)
		size := chunk.size()

		if size < headerSize || size%int(p.alignment) != 0 {
			return errors.Newf("chunk at offset %d has invalid size %d", offset, size)
		}
		if offset+size > p.sentinel {
			return errors.Newf("chunk at offset %d with size %d runs past the trailing sentinel", offset, size)
		}
		if (base+uintptr(chunk.payload()))%uintptr(p.alignment) != 0 {
			return errors.Newf("chunk at offset %d has a misaligned payload", offset)
		}
		if chunk.word(prevSizeField) != expectedPrevSize {
			return errors.Newf("chunk at offset %d records previous size %#x, but the previous chunk is %#x", offset, chunk.word(prevSizeField), expectedPrevSize)
		}

		if chunk.isInUse() {
			allocCount++
			prevFree = false
		} else {
			if prevFree {
				return errors.Newf("free chunk at offset %d was not merged with the free chunk before it", offset)
			}
			if !listed.Has(offset) {
				return errors.Newf("free chunk at offset %d is missing from the free list", offset)
			}

			freeCount++
			calculatedFreeSize += size
			prevFree = true
		}

		expectedPrevSize = chunk.word(thisSizeField)
		calculatedSize += size
		offset += size
	}

	if sentinel.word(prevSizeField) != expectedPrevSize {
		return errors.Newf("trailing sentinel records previous size %#x, but the last chunk is %#x", sentinel.word(prevSizeField), expectedPrevSize)
	}

	if listed.Count() != freeCount {
		return errors.Newf("the number of free chunks in the physical chain and the number of entries in the free list do not match! free list size: %d, physical free chunks: %d", listed.Count(), freeCount)
	}

	if calculatedSize != p.Size() {
		return errors.Newf("the full size of the pool is %d, but the chunks only added up to %d", p.Size(), calculatedSize)
	}

	if calculatedFreeSize != p.SumFreeSize() {
		return errors.Newf("the free size of the pool is %d, but the free chunks only added up to %d", p.SumFreeSize(), calculatedFreeSize)
	}

	if allocCount != p.allocCount {
		return errors.Newf("the allocation count of the pool is %d, but the used chunks only added up to %d", p.allocCount, allocCount)
	}

	if freeCount != p.freeCount {
		return errors.Newf("the free chunk count of the pool is %d, but there were only %d free chunks", p.freeCount, freeCount)
	}

	return nil
}

func (p *Pool) VisitAllRegions(handleBlock func(handle metadata.BlockAllocationHandle, offset int, size int, free bool) error) error {
	for offset := p.first; offset != p.sentinel; {
		chunk := p.headerAt(offset)
		handle := NoHandle
		if chunk.isInUse() {
			handle = Handle(chunk.payload())
		}

		err := handleBlock(handle, offset, chunk.size(), !chunk.isInUse())
		if err != nil {
			return err
		}

		offset += chunk.size()
	}

	return nil
}

func (p *Pool) AddDetailedStatistics(stats *memutils.DetailedStatistics) {
	stats.ArenaCount++
	stats.ArenaBytes += p.Size()

	for offset := p.first; offset != p.sentinel; {
		chunk := p.headerAt(offset)
		if chunk.isInUse() {
			stats.AddAllocation(chunk.size())
		} else {
			stats.AddFreeChunk(chunk.size())
		}
		offset += chunk.size()
	}
}

func (p *Pool) AddStatistics(stats *memutils.Statistics) {
	stats.ArenaCount++
	stats.AllocationCount += p.allocCount
	stats.ArenaBytes += p.Size()
	stats.AllocationBytes += p.Size() - p.SumFreeSize()
}

func (p *Pool) BlockJsonData(json *jwriter.ObjectState) {
	p.BlockJsonSummary(json, p.SumFreeSize(), p.AllocationCount(), p.FreeRegionsCount())
	json.Name("Alignment").Int(int(p.alignment))
	json.Name("LargestFreeRegion").Int(p.LargestFreeRegion())
}

func (p *Pool) CheckCorruption() error {
	for offset := p.first; offset != p.sentinel; {
		chunk := p.headerAt(offset)
		if chunk.isInUse() && !memutils.ValidateMagicValue(p.arena, offset+chunk.size()-memutils.DebugMargin) {
			return errors.Wrapf(memutils.CorruptionError, "allocation at offset %d", chunk.payload())
		}
		offset += chunk.size()
	}

	return nil
}
