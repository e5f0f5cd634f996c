//go:build unix

package region

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Mapped maps a private anonymous region of size bytes. The memory lives outside the Go heap
// and is page aligned. It stays valid until Release is called.
func Mapped(size int) ([]byte, Release, error) {
	if size < 0 {
		return nil, noRelease, errors.Wrapf(ErrInvalidSize, "requested %d bytes", size)
	}
	if size == 0 {
		return []byte{}, noRelease, nil
	}

	data, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, noRelease, errors.Wrapf(err, "failed to map %d bytes", size)
	}

	release := func() error {
		if data == nil {
			return nil
		}
		err := unix.Munmap(data)
		data = nil
		if errors.Is(err, unix.EINVAL) {
			return nil
		}
		return err
	}
	return data, release, nil
}
