package trace

import (
	"io"

	"github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
	"github.com/vkngwrapper/poolalloc/memutils"
	"github.com/vkngwrapper/poolalloc/pool"
	"golang.org/x/exp/slog"
)

// Outcome records what happened to one op. Err is set for ops the replayer refused to
// perform, such as freeing an id that is not live. A failed alloc is not an error: the pool
// simply had no room, which is reported through Failed.
type Outcome struct {
	Index  int
	Op     Op
	Handle pool.Handle
	Failed bool
	Err    error
}

type Result struct {
	Outcomes []Outcome

	Allocations    int
	FailedAllocs   int
	Frees          int
	Validations    int
	RejectedOps    int
	PeakAllocBytes int

	Statistics memutils.DetailedStatistics
}

// Replay builds a pool over arena and runs every op of the script against it. The arena must
// be at least script.ArenaSize bytes; only that many bytes are handed to the pool. A validate
// op that finds the pool inconsistent stops the replay with an error.
func Replay(logger *slog.Logger, script *Script, arena []byte) (*pool.Pool, *Result, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if len(arena) < script.ArenaSize {
		return nil, nil, errors.Newf("arena has %d bytes, but the trace needs %d", len(arena), script.ArenaSize)
	}

	p, err := pool.New(logger, arena[:script.ArenaSize:script.ArenaSize], pool.CreateOptions{
		Alignment: script.Alignment,
	})
	if err != nil {
		return nil, nil, err
	}

	result := &Result{
		Outcomes: make([]Outcome, 0, len(script.Ops)),
	}
	live := swiss.NewMap[string, pool.Handle](uint32(len(script.Ops)) + 1)

	for index, op := range script.Ops {
		outcome := Outcome{Index: index, Op: op, Handle: pool.NoHandle}

		switch op.Kind {
		case OpAlloc:
			if live.Has(op.ID) {
				outcome.Err = errors.Newf("id %q is already live", op.ID)
				break
			}

			outcome.Handle = p.Allocate(op.Size)
			if outcome.Handle == pool.NoHandle {
				outcome.Failed = true
				result.FailedAllocs++
				break
			}

			live.Put(op.ID, outcome.Handle)
			result.Allocations++

			used := p.Size() - p.SumFreeSize()
			if used > result.PeakAllocBytes {
				result.PeakAllocBytes = used
			}
		case OpFree:
			handle, ok := live.Get(op.ID)
			if !ok {
				outcome.Err = errors.Newf("id %q is not live", op.ID)
				break
			}

			p.Deallocate(handle)
			live.Delete(op.ID)
			outcome.Handle = handle
			result.Frees++
		case OpValidate:
			result.Validations++
			if err := p.Validate(); err != nil {
				return p, result, errors.Wrapf(err, "validation failed at op %d", index)
			}
		}

		if outcome.Err != nil {
			result.RejectedOps++
			logger.Warn("rejected trace op", slog.Int("Index", index), slog.String("Op", op.Kind.String()), slog.Any("Error", outcome.Err))
		}
		result.Outcomes = append(result.Outcomes, outcome)
	}

	result.Statistics.Clear()
	p.AddDetailedStatistics(&result.Statistics)

	return p, result, nil
}
