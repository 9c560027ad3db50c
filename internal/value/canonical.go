package value

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"golang.org/x/text/unicode/norm"
)

// MarshalCanonical produces deterministic JSON for golden-file
// comparison. Strings are NFC normalized at the serialization boundary
// and HTML escaping is disabled so fixtures stay byte-stable across Go
// versions.
//
// Accepts Value trees plus the plain Go shapes (string, bool, int,
// []any, map[string]any) that snapshot builders produce. Object fields
// keep source order; map keys are sorted.
func MarshalCanonical(v any) ([]byte, error) {
	switch val := v.(type) {
	case nil, Null:
		return []byte("null"), nil
	case Bool:
		return marshalBool(bool(val)), nil
	case bool:
		return marshalBool(val), nil
	case Number:
		return []byte(val), nil
	case String:
		return marshalCanonicalString(string(val))
	case string:
		return marshalCanonicalString(val)
	case int:
		return []byte(fmt.Sprintf("%d", val)), nil
	case int64:
		return []byte(fmt.Sprintf("%d", val)), nil
	case Array:
		elems := make([]any, len(val))
		for i, e := range val {
			elems[i] = e
		}
		return marshalCanonicalArray(elems)
	case []any:
		return marshalCanonicalArray(val)
	case []string:
		elems := make([]any, len(val))
		for i, e := range val {
			elems[i] = e
		}
		return marshalCanonicalArray(elems)
	case Object:
		var buf bytes.Buffer
		buf.WriteByte('{')
		for i, f := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writePair(&buf, f.Key, f.Val); err != nil {
				return nil, err
			}
		}
		buf.WriteByte('}')
		return buf.Bytes(), nil
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var buf bytes.Buffer
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writePair(&buf, k, val[k]); err != nil {
				return nil, err
			}
		}
		buf.WriteByte('}')
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("unsupported type for canonical JSON: %T", v)
	}
}

func writePair(buf *bytes.Buffer, key string, val any) error {
	keyBytes, err := marshalCanonicalString(key)
	if err != nil {
		return fmt.Errorf("key %q: %w", key, err)
	}
	buf.Write(keyBytes)
	buf.WriteByte(':')
	valBytes, err := MarshalCanonical(val)
	if err != nil {
		return fmt.Errorf("value for key %q: %w", key, err)
	}
	buf.Write(valBytes)
	return nil
}

func marshalBool(b bool) []byte {
	if b {
		return []byte("true")
	}
	return []byte("false")
}

// marshalCanonicalString produces a JSON string with NFC normalization
// and no HTML escaping.
func marshalCanonicalString(s string) ([]byte, error) {
	normalized := norm.NFC.String(s)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(normalized); err != nil {
		return nil, err
	}

	// json.Encoder adds a trailing newline, remove it.
	result := buf.Bytes()
	if len(result) > 0 && result[len(result)-1] == '\n' {
		result = result[:len(result)-1]
	}
	return result, nil
}

func marshalCanonicalArray(elems []any) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, elem := range elems {
		if i > 0 {
			buf.WriteByte(',')
		}
		elemBytes, err := MarshalCanonical(elem)
		if err != nil {
			return nil, fmt.Errorf("array[%d]: %w", i, err)
		}
		buf.Write(elemBytes)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}
