package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/poolalloc/memutils"
)

func runPoolctl(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return out.String(), err
}

func writeTrace(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "trace.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// chunkFor is the chunk size a 16-byte aligned pool uses for a request of size bytes
func chunkFor(size int) int {
	return memutils.AlignUp(max(size, 16)+16+memutils.DebugMargin, 16)
}

func TestLayoutJSON(t *testing.T) {
	output, err := runPoolctl(t, "layout", "--size", "1024", "--alignment", "16", "--alloc", "100,1,50", "--free", "1", "--json")
	require.NoError(t, err)

	sizeA, sizeB, sizeC := chunkFor(100), chunkFor(1), chunkFor(50)
	tail := 992 - sizeA - sizeB - sizeC
	require.JSONEq(t, fmt.Sprintf(`{
		"Requests": [
			{"Size": 100, "Handle": 16},
			{"Size": 1, "Handle": null},
			{"Size": 50, "Handle": %[5]d}
		],
		"Pool": {
			"TotalBytes": 992,
			"UnusedBytes": %[6]d,
			"Allocations": 2,
			"UnusedRanges": 2,
			"Alignment": 16,
			"LargestFreeRegion": %[4]d,
			"Regions": [
				{"Offset": 0, "Size": %[1]d, "Type": "USED", "Handle": 16},
				{"Offset": %[1]d, "Size": %[2]d, "Type": "FREE"},
				{"Offset": %[7]d, "Size": %[3]d, "Type": "USED", "Handle": %[5]d},
				{"Offset": %[8]d, "Size": %[4]d, "Type": "FREE"}
			]
		}
	}`, sizeA, sizeB, sizeC, tail, sizeA+sizeB+16, sizeB+tail, sizeA+sizeB, sizeA+sizeB+sizeC), output)
}

func TestLayoutText(t *testing.T) {
	output, err := runPoolctl(t, "layout", "--size", "1024", "--alignment", "16", "--alloc", "100,5000")
	require.NoError(t, err)

	require.Contains(t, output, "alloc 0: 100 bytes -> 16")
	require.Contains(t, output, "alloc 1: 5,000 bytes -> none")
	require.Contains(t, output, "Size: 992 bytes")
	require.Contains(t, output, "Allocations: 1")
	require.Contains(t, output, "Chunks:")
}

func TestLayoutErrors(t *testing.T) {
	_, err := runPoolctl(t, "layout", "--size", "1024", "--alloc", "10", "--free", "3")
	require.Error(t, err)

	_, err = runPoolctl(t, "layout", "--size", "1024", "--alignment", "24")
	require.Error(t, err)

	_, err = runPoolctl(t, "layout", "--size", "-1")
	require.Error(t, err)
}

func TestReplayText(t *testing.T) {
	path := writeTrace(t, `{
		"arenaSize": 4096,
		"alignment": 16,
		"ops": [
			{"op": "alloc", "id": "a", "size": 100},
			{"op": "alloc", "id": "b", "size": 100},
			{"op": "free", "id": "a"},
			{"op": "free", "id": "a"},
			{"op": "validate"}
		]
	}`)

	output, err := runPoolctl(t, "replay", path, "--layout")
	require.NoError(t, err)

	require.Contains(t, output, "Ops: 5")
	require.Contains(t, output, "Allocations: 2 (0 failed)")
	require.Contains(t, output, "Frees: 1")
	require.Contains(t, output, "Rejected ops: 1")
	require.Contains(t, output, `op 3 (free): id "a" is not live`)
	require.Contains(t, output, "Size: 4,064 bytes")
	require.Contains(t, output, "Chunks:")
}

func TestReplayJSON(t *testing.T) {
	path := writeTrace(t, `{
		"arenaSize": 1024,
		"alignment": 16,
		"ops": [
			{"op": "alloc", "id": "a", "size": 100},
			{"op": "free", "id": "nope"}
		]
	}`)

	output, err := runPoolctl(t, "replay", path, "--json")
	require.NoError(t, err)

	require.JSONEq(t, `{
		"Trace": "`+path+`",
		"Ops": 2,
		"Allocations": 1,
		"FailedAllocations": 0,
		"Frees": 0,
		"Validations": 0,
		"RejectedOps": 1,
		"PeakAllocatedBytes": `+strconv.Itoa(chunkFor(100))+`,
		"Rejected": [
			{"Index": 1, "Op": "free", "Error": "id \"nope\" is not live"}
		],
		"Pool": {
			"TotalBytes": 992,
			"UnusedBytes": `+strconv.Itoa(992-chunkFor(100))+`,
			"Allocations": 1,
			"UnusedRanges": 1,
			"Alignment": 16,
			"LargestFreeRegion": `+strconv.Itoa(992-chunkFor(100))+`
		}
	}`, output)
}

func TestReplayErrors(t *testing.T) {
	_, err := runPoolctl(t, "replay", filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)

	_, err = runPoolctl(t, "replay", writeTrace(t, `{"ops": []}`))
	require.Error(t, err)

	_, err = runPoolctl(t, "replay")
	require.Error(t, err)
}

func TestReleaseArena(t *testing.T) {
	unmapFailed := errors.New("munmap failed")
	released := 0
	release := func() error {
		released++
		return unmapFailed
	}

	var err error
	releaseArena(release, &err)
	require.Equal(t, 1, released)
	require.ErrorIs(t, err, unmapFailed)

	earlier := errors.New("earlier failure")
	err = earlier
	releaseArena(release, &err)
	require.Equal(t, 2, released)
	require.Equal(t, earlier, err)

	err = nil
	releaseArena(func() error { return nil }, &err)
	require.NoError(t, err)
}

func TestVersion(t *testing.T) {
	output, err := runPoolctl(t, "version")
	require.NoError(t, err)
	require.Contains(t, output, "poolctl dev")
}
