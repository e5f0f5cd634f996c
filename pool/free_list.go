package pool

// slot identifies a word that references a free chunk: either the pool's list head or the
// nextFree word of another free chunk. A free chunk stores the slot that references it, so
// it can be unlinked without walking the list.
type slot int

const headSlot slot = -1

func (p *Pool) loadSlot(s slot) int {
	if s == headSlot {
		return p.freeList
	}
	return header{arena: p.arena, offset: int(s) - nextFreeField}.nextFree()
}

func (p *Pool) storeSlot(s slot, offset int) {
	if s == headSlot {
		p.freeList = offset
		return
	}
	header{arena: p.arena, offset: int(s) - nextFreeField}.setNextFree(offset)
}

// link inserts a free chunk in front of the first entry that is at least as large
func (p *Pool) link(h header) {
	size := h.size()

	iter := headSlot
	for {
		current := p.loadSlot(iter)
		if current == noChunk || p.headerAt(current).size() >= size {
			break
		}
		iter = p.headerAt(current).nextFreeSlot()
	}

	next := p.loadSlot(iter)
	h.setPrevFree(iter)
	h.setNextFree(next)
	p.storeSlot(iter, h.offset)
	if next != noChunk {
		p.headerAt(next).setPrevFree(h.nextFreeSlot())
	}

	p.freeCount++
	p.freeSize += size
}

func (p *Pool) unlink(h header) {
	next := h.nextFree()
	prev := h.prevFree()

	p.storeSlot(prev, next)
	if next != noChunk {
		p.headerAt(next).setPrevFree(prev)
	}

	p.freeCount--
	p.freeSize -= h.size()
}
