package pool

import "encoding/binary"

const (
	wordSize = 8

	// Word offsets within a chunk header
	prevSizeField = 0 * wordSize
	thisSizeField = 1 * wordSize
	nextFreeField = 2 * wordSize
	prevFreeField = 3 * wordSize

	// headerOverhead is the part of a header that stays live while the chunk is in use. The
	// payload starts right after it, on top of the free list links.
	headerOverhead = 2 * wordSize
	// headerSize is the full header of a free chunk, and so the smallest chunk that can exist
	headerSize = 4 * wordSize
	// minimumAllocSize is the payload needed to hold the free list links once the chunk is freed
	minimumAllocSize = headerSize - headerOverhead

	// inUse is stored in the low bit of a size word. Chunk sizes are always multiples of the
	// alignment, so the bit is otherwise zero.
	inUse uint64 = 1

	// noChunk terminates the free list and marks an exhausted pool
	noChunk = -1
)

// header is a view over the chunk header found at a byte offset within the arena. It is
// cheap to construct and never copied into or out of the arena as a whole.
//
//	prevSize | prevInUse   size of the chunk physically before this one
//	thisSize | selfInUse   size of this chunk, header included
//	nextFree               offset of the next free list entry (free chunks only)
//	prevFree               slot referencing this chunk (free chunks only)
type header struct {
	arena  []byte
	offset int
}

func (h header) word(field int) uint64 {
	return binary.LittleEndian.Uint64(h.arena[h.offset+field : h.offset+field+wordSize])
}

func (h header) putWord(field int, value uint64) {
	binary.LittleEndian.PutUint64(h.arena[h.offset+field:h.offset+field+wordSize], value)
}

func (h header) size() int {
	return int(h.word(thisSizeField) &^ inUse)
}

func (h header) previousSize() int {
	return int(h.word(prevSizeField) &^ inUse)
}

func (h header) isInUse() bool {
	return h.word(thisSizeField)&inUse != 0
}

func (h header) isPrevInUse() bool {
	return h.word(prevSizeField)&inUse != 0
}

// setSize writes the size of this chunk into its own header and mirrors it into the
// header of the chunk that follows.
func (h header) setSize(size int, used bool) {
	value := uint64(size)
	if used {
		value |= inUse
	}
	h.putWord(thisSizeField, value)
	h.next().putWord(prevSizeField, value)
}

func (h header) next() header {
	return header{arena: h.arena, offset: h.offset + h.size()}
}

func (h header) nextIfFree() (header, bool) {
	next := h.next()
	if next.isInUse() {
		return header{}, false
	}
	return next, true
}

func (h header) prevIfFree() (header, bool) {
	if h.isPrevInUse() {
		return header{}, false
	}
	return header{arena: h.arena, offset: h.offset - h.previousSize()}, true
}

func (h header) payload() int {
	return h.offset + headerOverhead
}

func (h header) nextFree() int {
	return int(int64(h.word(nextFreeField)))
}

func (h header) setNextFree(offset int) {
	h.putWord(nextFreeField, uint64(int64(offset)))
}

func (h header) prevFree() slot {
	return slot(int64(h.word(prevFreeField)))
}

func (h header) setPrevFree(s slot) {
	h.putWord(prevFreeField, uint64(int64(s)))
}

// nextFreeSlot identifies this chunk's nextFree word as a slot of the free list
func (h header) nextFreeSlot() slot {
	return slot(h.offset + nextFreeField)
}

func (p *Pool) headerAt(offset int) header {
	return header{arena: p.arena, offset: offset}
}

func (p *Pool) headerFromPayload(payload int) header {
	return header{arena: p.arena, offset: payload - headerOverhead}
}
