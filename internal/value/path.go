package value

import (
	"fmt"
	"strconv"
	"strings"
)

// PathSegment is one step of a property path: either an object key or an
// array index.
type PathSegment struct {
	key   string
	index int
	isKey bool
}

// ParsePath parses a dotted/bracketed property path such as
// "contacts[2].address.city" into its segments. An empty path addresses
// the root value.
func ParsePath(path string) ([]PathSegment, error) {
	var segs []PathSegment
	rest := path
	for rest != "" {
		switch rest[0] {
		case '.':
			rest = rest[1:]
			if rest == "" {
				return nil, fmt.Errorf("path %q ends with '.'", path)
			}
		case '[':
			end := strings.IndexByte(rest, ']')
			if end < 0 {
				return nil, fmt.Errorf("path %q has unterminated index", path)
			}
			n, err := strconv.Atoi(rest[1:end])
			if err != nil || n < 0 {
				return nil, fmt.Errorf("path %q has invalid index %q", path, rest[1:end])
			}
			segs = append(segs, PathSegment{index: n})
			rest = rest[end+1:]
		default:
			end := strings.IndexAny(rest, ".[")
			if end < 0 {
				end = len(rest)
			}
			segs = append(segs, PathSegment{key: rest[:end], isKey: true})
			rest = rest[end:]
		}
	}
	return segs, nil
}

// Eval navigates root along the parsed path. Returns nil (no error) when
// any step is missing or the value shape does not match the step; the
// caller maps that to SQL NULL.
func Eval(root Value, segs []PathSegment) Value {
	cur := root
	for _, seg := range segs {
		switch node := cur.(type) {
		case Object:
			if !seg.isKey {
				return nil
			}
			cur = node.Get(seg.key)
			if cur == nil {
				return nil
			}
		case Array:
			if seg.isKey || seg.index >= len(node) {
				return nil
			}
			cur = node[seg.index]
		default:
			return nil
		}
	}
	return cur
}

// EvalPath parses path and navigates root in one step.
func EvalPath(root Value, path string) (Value, error) {
	segs, err := ParsePath(path)
	if err != nil {
		return nil, err
	}
	return Eval(root, segs), nil
}
