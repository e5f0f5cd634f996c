package metadata

import (
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
)

// PrintDetailedMap writes the summary produced by BlockJsonData followed by a "Regions" array
// describing every chunk in the block in address order.
func PrintDetailedMap(json *jwriter.ObjectState, m BlockMetadata) error {
	m.BlockJsonData(json)

	regions := json.Name("Regions").Array()
	defer regions.End()

	return m.VisitAllRegions(func(handle BlockAllocationHandle, offset int, size int, free bool) error {
		obj := regions.Object()
		defer obj.End()

		obj.Name("Offset").Int(offset)
		obj.Name("Size").Int(size)
		if free {
			obj.Name("Type").String("FREE")
		} else {
			obj.Name("Type").String("USED")
			obj.Name("Handle").Int(int(handle))
		}
		return nil
	})
}
