package main

import (
	"io"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/poolalloc/internal/region"
	"github.com/vkngwrapper/poolalloc/memutils/metadata"
	"github.com/vkngwrapper/poolalloc/pool"
)

func printPoolSummary(w io.Writer, p *pool.Pool) {
	printf(w, "Pool:\n")
	printf(w, "  Size: %d bytes\n", p.Size())
	printf(w, "  Alignment: %d\n", p.Alignment())
	printf(w, "  Allocations: %d\n", p.AllocationCount())
	printf(w, "  Free: %d bytes in %d chunks\n", p.SumFreeSize(), p.FreeRegionsCount())
	printf(w, "  Largest free region: %d bytes\n", p.LargestFreeRegion())
	if maxAlloc := p.MaxAllocationSize(); maxAlloc >= 0 {
		printf(w, "  Max allocation: %d bytes\n", maxAlloc)
	} else {
		printf(w, "  Max allocation: none\n")
	}
}

func printRegions(w io.Writer, p *pool.Pool) error {
	regions, err := metadata.CollectRegions(p)
	if err != nil {
		return err
	}

	printf(w, "Chunks:\n")
	printf(w, "  %-10s %-10s %-5s %s\n", "OFFSET", "SIZE", "TYPE", "HANDLE")
	for _, region := range regions {
		if region.Free {
			printf(w, "  %-10d %-10d %-5s -\n", region.Offset, region.Size, "FREE")
			continue
		}
		printf(w, "  %-10d %-10d %-5s %d\n", region.Offset, region.Size, "USED", uint64(region.Handle))
	}
	return nil
}

// releaseArena runs release and stores its failure in errp, unless errp already holds an
// earlier error
func releaseArena(release region.Release, errp *error) {
	if err := release(); err != nil && *errp == nil {
		*errp = errors.Wrap(err, "failed to release arena")
	}
}
