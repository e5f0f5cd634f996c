// Package pool implements a boundary-tag allocator over a single caller-supplied arena.
//
// Every chunk of the arena starts with a header holding its own size and the size of the
// chunk physically before it, each with an in-use flag in the low bit. Free chunks additionally
// store free list links in the space that is payload while the chunk is in use. The free list
// is sorted by ascending size, so the first chunk large enough for a request is also the
// smallest one (best fit). Freeing a chunk merges it with free physical neighbors right away.
//
// A Pool is not safe for concurrent use. Callers sharing a pool between goroutines must
// serialize every call, or give each goroutine its own pool.
package pool

import (
	"github.com/vkngwrapper/poolalloc/memutils"
	"github.com/vkngwrapper/poolalloc/memutils/metadata"
	"golang.org/x/exp/slog"
)

// Handle identifies a live allocation. It is the offset of the allocation's payload within
// the arena passed to New.
type Handle = metadata.BlockAllocationHandle

// NoHandle is returned by Allocate when no free chunk is large enough for the request
const NoHandle = metadata.NoAllocation

// Pool is a manual memory allocator that carves allocations out of a fixed arena. All of its
// bookkeeping lives inside the arena itself, except for the free list head and a few counters.
type Pool struct {
	metadata.BlockMetadataBase

	logger    *slog.Logger
	arena     []byte
	alignment uint

	// first is the header offset of the lowest chunk, sentinel is the header offset of the
	// trailing sentinel. Both are noChunk for an exhausted pool.
	first    int
	sentinel int
	freeList int

	allocCount int
	freeCount  int
	freeSize   int
}

var _ metadata.BlockMetadata = &Pool{}

// Alignment returns the alignment of every payload handed out by this pool
func (p *Pool) Alignment() uint { return p.alignment }

// chunkSizeFor computes the chunk size needed to serve a request of size bytes. It fails for
// negative sizes and for sizes that could never fit in the arena, which also keeps the
// arithmetic from overflowing.
func (p *Pool) chunkSizeFor(size int) (int, bool) {
	if size < 0 {
		return 0, false
	}

	if size < minimumAllocSize {
		size = minimumAllocSize
	}

	need, ok := memutils.AddOverflowSafe(size, headerOverhead+memutils.DebugMargin)
	if !ok || need > p.Size() {
		return 0, false
	}

	return memutils.AlignUp(need, p.alignment), true
}

// Allocate reserves at least size bytes in the arena and returns a handle to them. The payload
// is aligned to Alignment(). NoHandle is returned when no free chunk is large enough.
func (p *Pool) Allocate(size int) Handle {
	p.logger.Debug("Pool::Allocate", slog.Int("Size", size))

	need, ok := p.chunkSizeFor(size)
	if !ok {
		p.logger.Debug("  Pool::Allocate FAILED", slog.Int("Size", size))
		return NoHandle
	}

	// The list is sorted by size, so the first chunk that fits is the best fit
	for offset := p.freeList; offset != noChunk; {
		chunk := p.headerAt(offset)
		chunkSize := chunk.size()
		if chunkSize < need {
			offset = chunk.nextFree()
			continue
		}

		p.unlink(chunk)

		remaining := chunkSize - need
		if remaining >= headerSize {
			chunk.setSize(need, true)
			rest := chunk.next()
			rest.setSize(remaining, false)
			p.link(rest)
		} else {
			chunk.setSize(chunkSize, true)
		}

		p.allocCount++

		if memutils.DebugMargin > 0 {
			memutils.WriteMagicValue(p.arena, chunk.offset+chunk.size()-memutils.DebugMargin)
		}

		p.logger.Debug("  Pool::Allocate",
			slog.Int("Offset", chunk.payload()),
			slog.Int("ChunkSize", chunk.size()),
		)
		memutils.DebugValidate(p)

		return Handle(chunk.payload())
	}

	p.logger.Debug("  Pool::Allocate FAILED", slog.Int("Size", size), slog.Int("ChunkSize", need))
	return NoHandle
}

// Deallocate returns an allocation to the pool, merging it with any free neighbors.
//
// The handle must have been returned by Allocate on this pool and must not have been
// deallocated since. This is not checked: violating it corrupts the arena. Use Validate
// to diagnose such corruption. Deallocating NoHandle does nothing.
func (p *Pool) Deallocate(handle Handle) {
	if handle == NoHandle {
		return
	}

	self := p.headerFromPayload(int(handle))
	chunkSize := self.size()

	p.logger.Debug("Pool::Deallocate", slog.Int("Offset", int(handle)), slog.Int("ChunkSize", chunkSize))

	if next, ok := self.nextIfFree(); ok {
		p.unlink(next)
		chunkSize += next.size()
	}

	// Merging with the previous chunk moves the merged chunk's header to the previous chunk
	if prev, ok := self.prevIfFree(); ok {
		p.unlink(prev)
		chunkSize += prev.size()
		self = prev
	}

	self.setSize(chunkSize, false)
	p.link(self)
	p.allocCount--

	memutils.DebugValidate(p)
}

// Bytes returns the payload of a live allocation. The slice covers the whole usable size of
// the allocation's chunk, which may be larger than the size originally requested, and its
// capacity is limited so that appending cannot spill into a neighboring chunk.
func (p *Pool) Bytes(handle Handle) []byte {
	if handle == NoHandle {
		return nil
	}

	begin := int(handle)
	end := begin + p.UsableSize(handle)
	return p.arena[begin:end:end]
}

// UsableSize returns the number of payload bytes available to a live allocation
func (p *Pool) UsableSize(handle Handle) int {
	if handle == NoHandle {
		return 0
	}
	return p.headerFromPayload(int(handle)).size() - headerOverhead - memutils.DebugMargin
}

// Clear frees every allocation at once, formatting the arena as it was after New. Handles
// obtained before the call become invalid.
func (p *Pool) Clear() {
	p.logger.Debug("Pool::Clear")
	p.format()
}
