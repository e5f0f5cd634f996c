package pool_test

import (
	"fmt"

	"github.com/vkngwrapper/poolalloc/pool"
)

func ExamplePool() {
	arena := make([]byte, 64*1024)

	p, err := pool.New(nil, arena, pool.CreateOptions{})
	if err != nil {
		panic(err)
	}

	handle := p.Allocate(128)
	if handle == pool.NoHandle {
		panic("out of memory")
	}

	payload := p.Bytes(handle)
	copy(payload, "hello")
	fmt.Println(string(payload[:5]), len(payload) >= 128)

	p.Deallocate(handle)
	fmt.Println(p.IsEmpty(), p.FreeRegionsCount())

	// Output:
	// hello true
	// true 1
}
