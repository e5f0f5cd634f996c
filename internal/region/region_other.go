//go:build !unix

package region

// Mapped falls back to the Go heap where anonymous mappings are not available
func Mapped(size int) ([]byte, Release, error) {
	return Heap(size)
}
