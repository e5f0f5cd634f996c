package main

import (
	"os"

	"github.com/cockroachdb/errors"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/spf13/cobra"
	"github.com/vkngwrapper/poolalloc/internal/region"
	"github.com/vkngwrapper/poolalloc/internal/trace"
	"github.com/vkngwrapper/poolalloc/memutils/metadata"
)

type replayOptions struct {
	showLayout bool
}

func newReplayCmd(global *globalOptions) *cobra.Command {
	opts := &replayOptions{}

	cmd := &cobra.Command{
		Use:   "replay <trace.json>",
		Short: "Replay an allocation trace against a fresh pool",
		Long: `The replay command reads a JSON allocation trace, formats a pool over an
arena of the size the trace asks for, and performs every op of the trace.

Example:
  poolctl replay trace.json
  poolctl replay trace.json --layout
  poolctl replay trace.json --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(cmd, global, opts, args[0])
		},
	}

	cmd.Flags().BoolVar(&opts.showLayout, "layout", false, "Print the final chunk map")

	return cmd
}

func runReplay(cmd *cobra.Command, global *globalOptions, opts *replayOptions, path string) (err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "failed to read trace")
	}

	script, err := trace.Parse(data)
	if err != nil {
		return err
	}

	arena, release, err := region.Mapped(script.ArenaSize)
	if err != nil {
		return err
	}
	defer releaseArena(release, &err)

	p, result, err := trace.Replay(global.logger(cmd), script, arena)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if global.jsonOut {
		return writeJSON(out, func(obj *jwriter.ObjectState) error {
			obj.Name("Trace").String(path)
			obj.Name("Ops").Int(len(script.Ops))
			obj.Name("Allocations").Int(result.Allocations)
			obj.Name("FailedAllocations").Int(result.FailedAllocs)
			obj.Name("Frees").Int(result.Frees)
			obj.Name("Validations").Int(result.Validations)
			obj.Name("RejectedOps").Int(result.RejectedOps)
			obj.Name("PeakAllocatedBytes").Int(result.PeakAllocBytes)

			rejected := obj.Name("Rejected").Array()
			for _, outcome := range result.Outcomes {
				if outcome.Err == nil {
					continue
				}
				entry := rejected.Object()
				entry.Name("Index").Int(outcome.Index)
				entry.Name("Op").String(outcome.Op.Kind.String())
				entry.Name("Error").String(outcome.Err.Error())
				entry.End()
			}
			rejected.End()

			layout := obj.Name("Pool").Object()
			if opts.showLayout {
				err = metadata.PrintDetailedMap(&layout, p)
			} else {
				p.BlockJsonData(&layout)
			}
			layout.End()
			return err
		})
	}

	printf(out, "Trace: %s\n", path)
	printf(out, "  Ops: %d\n", len(script.Ops))
	printf(out, "  Allocations: %d (%d failed)\n", result.Allocations, result.FailedAllocs)
	printf(out, "  Frees: %d\n", result.Frees)
	printf(out, "  Validations: %d\n", result.Validations)
	printf(out, "  Rejected ops: %d\n", result.RejectedOps)
	for _, outcome := range result.Outcomes {
		if outcome.Err != nil {
			printf(out, "    op %d (%s): %v\n", outcome.Index, outcome.Op.Kind, outcome.Err)
		}
	}
	printf(out, "  Peak allocated: %d bytes\n", result.PeakAllocBytes)
	printPoolSummary(out, p)

	if opts.showLayout {
		return printRegions(out, p)
	}
	return nil
}
