// Package region obtains the backing memory that a pool carves allocations out of.
package region

import (
	"github.com/pkg/errors"
)

// ErrInvalidSize is returned when a region of negative size is requested
var ErrInvalidSize = errors.New("region size must not be negative")

// Release returns a region's memory to wherever it came from. Calling it more than once is harmless.
type Release func() error

func noRelease() error { return nil }

// Heap allocates a region from the Go heap. The garbage collector owns the memory, so the
// returned Release does nothing.
func Heap(size int) ([]byte, Release, error) {
	if size < 0 {
		return nil, noRelease, errors.Wrapf(ErrInvalidSize, "requested %d bytes", size)
	}
	return make([]byte, size), noRelease, nil
}
