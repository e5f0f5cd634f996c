// Package trace reads allocation scripts and replays them against a pool.
package trace

import (
	"github.com/cockroachdb/errors"
	"github.com/launchdarkly/go-jsonstream/v3/jreader"
)

type OpKind int

const (
	OpAlloc OpKind = iota
	OpFree
	OpValidate
)

var opKindNames = map[string]OpKind{
	"alloc":    OpAlloc,
	"free":     OpFree,
	"validate": OpValidate,
}

func (k OpKind) String() string {
	switch k {
	case OpAlloc:
		return "alloc"
	case OpFree:
		return "free"
	case OpValidate:
		return "validate"
	}
	return "unknown"
}

// Op is a single step of a script. ID names an allocation across alloc and free steps.
type Op struct {
	Kind OpKind
	ID   string
	Size int
}

// Script describes an arena and a sequence of operations to perform on it
type Script struct {
	ArenaSize int
	Alignment uint
	Ops       []Op
}

// Parse reads a script of the form
//
//	{"arenaSize": 4096, "alignment": 16, "ops": [
//	  {"op": "alloc", "id": "a", "size": 100},
//	  {"op": "free", "id": "a"},
//	  {"op": "validate"}
//	]}
//
// Unknown properties are ignored.
func Parse(data []byte) (*Script, error) {
	reader := jreader.NewReader(data)
	script := &Script{}
	arenaSizeSet := false

	for obj := reader.Object(); obj.Next(); {
		switch string(obj.Name()) {
		case "arenaSize":
			script.ArenaSize = reader.Int()
			arenaSizeSet = true
		case "alignment":
			alignment := reader.Int()
			if alignment < 0 {
				reader.AddError(errors.Newf("alignment must not be negative, got %d", alignment))
			}
			script.Alignment = uint(alignment)
		case "ops":
			for arr := reader.Array(); arr.Next(); {
				op, err := parseOp(&reader)
				if err != nil {
					reader.AddError(errors.Wrapf(err, "op %d", len(script.Ops)))
					break
				}
				script.Ops = append(script.Ops, op)
			}
		default:
			_ = reader.SkipValue()
		}
	}

	if err := reader.Error(); err != nil {
		return nil, errors.Wrap(err, "failed to parse trace")
	}
	if !arenaSizeSet {
		return nil, errors.New("trace does not specify arenaSize")
	}
	if script.ArenaSize < 0 {
		return nil, errors.Newf("arenaSize must not be negative, got %d", script.ArenaSize)
	}

	return script, nil
}

func parseOp(reader *jreader.Reader) (Op, error) {
	var op Op
	var kindName string
	sizeSet := false

	for obj := reader.Object(); obj.Next(); {
		switch string(obj.Name()) {
		case "op":
			kindName = reader.String()
		case "id":
			op.ID = reader.String()
		case "size":
			op.Size = reader.Int()
			sizeSet = true
		default:
			_ = reader.SkipValue()
		}
	}
	if err := reader.Error(); err != nil {
		return op, err
	}

	kind, ok := opKindNames[kindName]
	if !ok {
		return op, errors.Newf("unknown op %q", kindName)
	}
	op.Kind = kind

	switch kind {
	case OpAlloc:
		if op.ID == "" {
			return op, errors.New("alloc requires an id")
		}
		if !sizeSet {
			return op, errors.Newf("alloc %q requires a size", op.ID)
		}
	case OpFree:
		if op.ID == "" {
			return op, errors.New("free requires an id")
		}
	}

	return op, nil
}
