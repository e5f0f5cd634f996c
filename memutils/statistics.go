package memutils

import "math"

// Statistics is a cheap summary of one or more arenas. All sizes are chunk sizes in bytes,
// so AllocationBytes includes per-chunk header overhead.
type Statistics struct {
	ArenaCount      int
	AllocationCount int
	ArenaBytes      int
	AllocationBytes int
}

// Clear zeroes every counter so the struct can be reused for a new pass over a set of arenas
func (s *Statistics) Clear() {
	s.ArenaCount = 0
	s.AllocationCount = 0
	s.ArenaBytes = 0
	s.AllocationBytes = 0
}

// AddStatistics folds the totals gathered from other arenas into s
func (s *Statistics) AddStatistics(other *Statistics) {
	s.ArenaCount += other.ArenaCount
	s.AllocationCount += other.AllocationCount
	s.ArenaBytes += other.ArenaBytes
	s.AllocationBytes += other.AllocationBytes
}

// FreeBytes is the number of bytes not covered by live allocations
func (s *Statistics) FreeBytes() int {
	return s.ArenaBytes - s.AllocationBytes
}

// DetailedStatistics extends Statistics with per-chunk extremes. It must be cleared with
// Clear before use so that the minimums start at math.MaxInt.
type DetailedStatistics struct {
	Statistics
	FreeChunkCount    int
	AllocationSizeMin int
	AllocationSizeMax int
	FreeChunkSizeMin  int
	FreeChunkSizeMax  int
}

// Clear zeroes the counters and primes the minimums, so that the first chunk added sets them
func (s *DetailedStatistics) Clear() {
	s.Statistics.Clear()
	s.FreeChunkCount = 0
	s.AllocationSizeMin = math.MaxInt
	s.AllocationSizeMax = 0
	s.FreeChunkSizeMin = math.MaxInt
	s.FreeChunkSizeMax = 0
}

// AddFreeChunk records one free chunk. Free bytes are not accumulated separately: they are
// ArenaBytes minus AllocationBytes.
func (s *DetailedStatistics) AddFreeChunk(size int) {
	s.FreeChunkCount++

	if size < s.FreeChunkSizeMin {
		s.FreeChunkSizeMin = size
	}

	if size > s.FreeChunkSizeMax {
		s.FreeChunkSizeMax = size
	}
}

// AddAllocation records one used chunk, header overhead included
func (s *DetailedStatistics) AddAllocation(size int) {
	s.AllocationCount++
	s.AllocationBytes += size

	if size < s.AllocationSizeMin {
		s.AllocationSizeMin = size
	}

	if size > s.AllocationSizeMax {
		s.AllocationSizeMax = size
	}
}

// AddDetailedStatistics merges the statistics of other arenas into s, keeping the extremes
// across both
func (s *DetailedStatistics) AddDetailedStatistics(other *DetailedStatistics) {
	s.Statistics.AddStatistics(&other.Statistics)
	s.FreeChunkCount += other.FreeChunkCount

	if other.FreeChunkSizeMin < s.FreeChunkSizeMin {
		s.FreeChunkSizeMin = other.FreeChunkSizeMin
	}

	if other.FreeChunkSizeMax > s.FreeChunkSizeMax {
		s.FreeChunkSizeMax = other.FreeChunkSizeMax
	}

	if other.AllocationSizeMin < s.AllocationSizeMin {
		s.AllocationSizeMin = other.AllocationSizeMin
	}

	if other.AllocationSizeMax > s.AllocationSizeMax {
		s.AllocationSizeMax = other.AllocationSizeMax
	}
}
