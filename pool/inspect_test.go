package pool_test

import (
	"encoding/binary"
	"fmt"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/poolalloc/memutils"
	"github.com/vkngwrapper/poolalloc/memutils/metadata"
	"github.com/vkngwrapper/poolalloc/pool"
)

func TestPoolVisitAllRegions(t *testing.T) {
	p := newTestPool(t, 1024)

	a := p.Allocate(100)
	b := p.Allocate(1)
	c := p.Allocate(50)
	p.Deallocate(b)

	regions, err := metadata.CollectRegions(p)
	require.NoError(t, err)
	sizeA, sizeB, sizeC := chunkFor(100), chunkFor(1), chunkFor(50)
	require.Equal(t, []metadata.Region{
		{Handle: a, Offset: 0, Size: sizeA, Free: false},
		{Handle: pool.NoHandle, Offset: sizeA, Size: sizeB, Free: true},
		{Handle: c, Offset: sizeA + sizeB, Size: sizeC, Free: false},
		{Handle: pool.NoHandle, Offset: sizeA + sizeB + sizeC, Size: 992 - sizeA - sizeB - sizeC, Free: true},
	}, regions)
}

func TestPoolVisitAllRegionsStopsOnError(t *testing.T) {
	p := newTestPool(t, 1024)
	p.Allocate(100)
	p.Allocate(100)

	stop := errors.New("stop")
	visited := 0
	err := p.VisitAllRegions(func(handle pool.Handle, offset int, size int, free bool) error {
		visited++
		return stop
	})
	require.ErrorIs(t, err, stop)
	require.Equal(t, 1, visited)
}

func TestPoolPrintDetailedMap(t *testing.T) {
	p := newTestPool(t, 1024)
	p.Allocate(100)

	writer := jwriter.NewWriter()
	obj := writer.Object()
	err := metadata.PrintDetailedMap(&obj, p)
	obj.End()
	require.NoError(t, err)
	require.NoError(t, writer.Error())

	used := chunkFor(100)
	require.JSONEq(t, fmt.Sprintf(`{
		"TotalBytes": 992,
		"UnusedBytes": %[2]d,
		"Allocations": 1,
		"UnusedRanges": 1,
		"Alignment": 16,
		"LargestFreeRegion": %[2]d,
		"Regions": [
			{"Offset": 0, "Size": %[1]d, "Type": "USED", "Handle": 16},
			{"Offset": %[1]d, "Size": %[2]d, "Type": "FREE"}
		]
	}`, used, 992-used), string(writer.Bytes()))
}

func TestPoolValidateDetectsCorruption(t *testing.T) {
	table := []struct {
		name    string
		corrupt func(arena []byte, handle pool.Handle, chunkSize int)
	}{
		{
			name: "leading-sentinel",
			corrupt: func(arena []byte, handle pool.Handle, chunkSize int) {
				binary.LittleEndian.PutUint64(arena[0:], 0)
			},
		},
		{
			name: "trailing-sentinel",
			corrupt: func(arena []byte, handle pool.Handle, chunkSize int) {
				binary.LittleEndian.PutUint64(arena[992+8:], 0)
			},
		},
		{
			name: "used-chunk-size",
			corrupt: func(arena []byte, handle pool.Handle, chunkSize int) {
				binary.LittleEndian.PutUint64(arena[int(handle)-8:], 64|1)
			},
		},
		{
			name: "boundary-tag-mismatch",
			corrupt: func(arena []byte, handle pool.Handle, chunkSize int) {
				// The free chunk after the allocation stops mirroring its size
				binary.LittleEndian.PutUint64(arena[chunkSize:], uint64(chunkSize-32)|1)
			},
		},
		{
			name: "free-list-link",
			corrupt: func(arena []byte, handle pool.Handle, chunkSize int) {
				binary.LittleEndian.PutUint64(arena[chunkSize+24:], 1234)
			},
		},
	}

	for _, e := range table {
		t.Run(e.name, func(t *testing.T) {
			arena := alignedArena(1024)
			p, err := pool.New(nil, arena, pool.CreateOptions{Alignment: 16})
			require.NoError(t, err)

			handle := p.Allocate(100)
			require.Equal(t, pool.Handle(16), handle)
			require.NoError(t, p.Validate())

			e.corrupt(arena, handle, chunkFor(100))
			require.Error(t, p.Validate())
		})
	}
}

func TestPoolCheckCorruption(t *testing.T) {
	p := newTestPool(t, 1024)
	a := p.Allocate(100)
	p.Allocate(30)

	require.NoError(t, p.CheckCorruption())

	p.Deallocate(a)
	require.NoError(t, p.CheckCorruption())
}

func TestPoolCheckCorruptionDetectsOverrun(t *testing.T) {
	if memutils.DebugMargin == 0 {
		t.Skip("allocation markers are only written with the debug_mem_utils build tag")
	}

	arena := alignedArena(1024)
	p, err := pool.New(nil, arena, pool.CreateOptions{Alignment: 16})
	require.NoError(t, err)

	a := p.Allocate(100)
	b := p.Allocate(100)
	require.NoError(t, p.CheckCorruption())

	// Write one byte past the end of b's payload
	end := int(b) + p.UsableSize(b)
	arena[end] ^= 0xFF

	err = p.CheckCorruption()
	require.ErrorIs(t, err, memutils.CorruptionError)
	require.Contains(t, err.Error(), fmt.Sprintf("offset %d", b))

	// Layout bookkeeping lives outside the markers, so the pool itself is still consistent
	require.NoError(t, p.Validate())

	arena[end] ^= 0xFF
	require.NoError(t, p.CheckCorruption())

	p.Deallocate(a)
	p.Deallocate(b)
	require.NoError(t, p.CheckCorruption())
}
