package main

import (
	"github.com/cockroachdb/errors"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/spf13/cobra"
	"github.com/vkngwrapper/poolalloc/internal/region"
	"github.com/vkngwrapper/poolalloc/memutils/metadata"
	"github.com/vkngwrapper/poolalloc/pool"
)

type layoutOptions struct {
	size      int
	alignment uint
	allocs    []int
	frees     []int
}

func newLayoutCmd(global *globalOptions) *cobra.Command {
	opts := &layoutOptions{}

	cmd := &cobra.Command{
		Use:   "layout",
		Short: "Allocate from a fresh arena and print its chunk map",
		Long: `The layout command formats an arena of the given size, performs the
requested allocations in order, frees the allocations selected by --free, and
prints every chunk of the arena.

Example:
  poolctl layout --size 4096 --alloc 100,200,300 --free 1
  poolctl layout --size 65536 --alignment 64 --alloc 1000 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLayout(cmd, global, opts)
		},
	}

	cmd.Flags().IntVar(&opts.size, "size", 4096, "Arena size in bytes")
	cmd.Flags().UintVar(&opts.alignment, "alignment", 0, "Payload alignment, 0 for the platform default")
	cmd.Flags().IntSliceVar(&opts.allocs, "alloc", nil, "Allocation sizes, performed in order")
	cmd.Flags().IntSliceVar(&opts.frees, "free", nil, "Indices into --alloc of allocations to free afterwards")

	return cmd
}

func runLayout(cmd *cobra.Command, global *globalOptions, opts *layoutOptions) (err error) {
	arena, release, err := region.Mapped(opts.size)
	if err != nil {
		return err
	}
	defer releaseArena(release, &err)

	p, err := pool.New(global.logger(cmd), arena, pool.CreateOptions{Alignment: opts.alignment})
	if err != nil {
		return err
	}

	handles := make([]pool.Handle, len(opts.allocs))
	for i, size := range opts.allocs {
		handles[i] = p.Allocate(size)
	}

	for _, index := range opts.frees {
		if index < 0 || index >= len(handles) {
			return errors.Newf("--free index %d is out of range for %d allocations", index, len(handles))
		}
		p.Deallocate(handles[index])
		handles[index] = pool.NoHandle
	}

	if err := p.Validate(); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if global.jsonOut {
		return writeJSON(out, func(obj *jwriter.ObjectState) error {
			requests := obj.Name("Requests").Array()
			for i, size := range opts.allocs {
				request := requests.Object()
				request.Name("Size").Int(size)
				if handles[i] == pool.NoHandle {
					request.Name("Handle").Null()
				} else {
					request.Name("Handle").Int(int(handles[i]))
				}
				request.End()
			}
			requests.End()

			layout := obj.Name("Pool").Object()
			err := metadata.PrintDetailedMap(&layout, p)
			layout.End()
			return err
		})
	}

	for i, size := range opts.allocs {
		if handles[i] == pool.NoHandle {
			printf(out, "alloc %d: %d bytes -> none\n", i, size)
			continue
		}
		printf(out, "alloc %d: %d bytes -> %d (usable %d)\n", i, size, uint64(handles[i]), p.UsableSize(handles[i]))
	}
	printPoolSummary(out, p)
	return printRegions(out, p)
}
