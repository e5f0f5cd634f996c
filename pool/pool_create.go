package pool

import (
	"io"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/poolalloc/memutils"
	"golang.org/x/exp/slog"
)

// CreateOptions contains optional settings when creating a pool
type CreateOptions struct {
	// Alignment is the alignment of every payload handed out by the pool, and the granularity
	// of every chunk size. If it is left at 0, memutils.MaxAlignment() is used. Otherwise it must
	// be a power of two no smaller than memutils.MaxAlignment().
	Alignment uint
}

// New creates a Pool that manages the provided arena in place. The arena remains owned by the
// caller, who must keep it alive and must not touch it, except through payloads handed out
// by the pool, for as long as the pool is in use.
//
// An arena too small to hold a single chunk is not an error: the resulting pool simply fails
// every allocation. An error is only returned for invalid options.
//
// logger - receives debug output for every operation. A nil logger discards everything.
func New(logger *slog.Logger, arena []byte, options CreateOptions) (*Pool, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	platformAlignment := memutils.MaxAlignment()
	alignment := options.Alignment
	if alignment == 0 {
		alignment = platformAlignment
	} else {
		err := memutils.CheckPow2(alignment, "CreateOptions.Alignment")
		if err != nil {
			return nil, err
		}

		if alignment < platformAlignment {
			return nil, errors.Newf("CreateOptions.Alignment is %d, but the platform requires at least %d", alignment, platformAlignment)
		}
	}

	pool := &Pool{
		logger:    logger,
		arena:     arena,
		alignment: alignment,
	}
	pool.format()

	return pool, nil
}

// format lays the arena out as a single free chunk between the two sentinels. Any previous
// contents of the arena are forgotten.
func (p *Pool) format() {
	p.first = noChunk
	p.sentinel = noChunk
	p.freeList = noChunk
	p.allocCount = 0
	p.freeCount = 0
	p.freeSize = 0
	p.Init(0)

	// The leading sentinel is the first chunk's prevSize word and the trailing sentinel is a
	// half header, so each end of the arena gives up headerOverhead bytes before alignment.
	if len(p.arena) < 2*headerOverhead+headerSize {
		p.logger.Warn("Pool::format arena too small, pool is exhausted", slog.Int("ArenaBytes", len(p.arena)))
		return
	}

	base := uintptr(unsafe.Pointer(unsafe.SliceData(p.arena)))
	begin := int(memutils.AlignUp(base+headerOverhead, p.alignment) - base)
	end := int(memutils.AlignDown(base+uintptr(len(p.arena)-headerOverhead), p.alignment) - base)

	if end-begin < headerSize {
		p.logger.Warn("Pool::format usable span too small, pool is exhausted",
			slog.Int("ArenaBytes", len(p.arena)),
			slog.Int("Begin", begin),
			slog.Int("End", end),
		)
		return
	}

	chunk := p.headerFromPayload(begin)
	chunk.setSize(end-begin, false)
	chunk.putWord(prevSizeField, inUse)
	chunk.next().putWord(thisSizeField, inUse)

	p.first = chunk.offset
	p.sentinel = chunk.next().offset
	p.Init(end - begin)
	p.link(chunk)

	p.logger.Debug("Pool::format",
		slog.Int("Begin", begin),
		slog.Int("End", end),
		slog.Int("Alignment", int(p.alignment)),
	)
}
