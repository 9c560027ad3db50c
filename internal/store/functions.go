package store

import (
	"encoding/binary"
	"fmt"
	"strconv"

	"github.com/mattn/go-sqlite3"

	"github.com/benoitc/couchbase-lite-core/internal/value"
)

// registerFunctions installs the scalar document-reading functions on a
// connection. These are the opaque symbols the translator names: each
// takes the body column and a property path and reads into the
// serialized document.
func registerFunctions(conn *sqlite3.SQLiteConn) error {
	funcs := []struct {
		name string
		impl any
	}{
		{"fl_value", flValue},
		{"fl_type", flType},
		{"fl_exists", flExists},
		{"fl_count", flCount},
		{"fl_contains", flContains},
		{"rank", ftsRank},
	}
	for _, f := range funcs {
		if err := conn.RegisterFunc(f.name, f.impl, true); err != nil {
			return fmt.Errorf("register %s: %w", f.name, err)
		}
	}
	return nil
}

// evalBodyPath parses a document body and navigates the property path.
// A missing property or an unparseable path yields nil; a body that is
// not valid JSON is an error (the store never writes one).
func evalBodyPath(body, path string) (value.Value, error) {
	root, err := value.ParseJSON([]byte(body))
	if err != nil {
		return nil, fmt.Errorf("document body is not valid JSON: %w", err)
	}
	segs, err := value.ParsePath(path)
	if err != nil {
		return nil, nil
	}
	return value.Eval(root, segs), nil
}

// toSQL converts a document value to its SQL representation: numbers
// become int64/float64, booleans 1/0, strings text, arrays and objects
// their JSON text, null and missing NULL.
func toSQL(v value.Value) (any, error) {
	switch val := v.(type) {
	case nil, value.Null:
		return nil, nil
	case value.Bool:
		if val {
			return int64(1), nil
		}
		return int64(0), nil
	case value.Number:
		if n, ok := val.Int64(); ok {
			return n, nil
		}
		f, err := strconv.ParseFloat(string(val), 64)
		if err != nil {
			return nil, fmt.Errorf("bad number %q: %w", string(val), err)
		}
		return f, nil
	case value.String:
		return string(val), nil
	default:
		text, err := value.MarshalCanonical(val)
		if err != nil {
			return nil, err
		}
		return string(text), nil
	}
}

// flValue implements fl_value(body, path).
func flValue(body, path string) (any, error) {
	v, err := evalBodyPath(body, path)
	if err != nil {
		return nil, err
	}
	return toSQL(v)
}

// flType implements fl_type(body, path). Returns the document type code
// of the value at path, or NULL when the property is missing.
func flType(body, path string) (any, error) {
	v, err := evalBodyPath(body, path)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	return int64(value.TypeOf(v)), nil
}

// flExists implements fl_exists(body, path).
func flExists(body, path string) (bool, error) {
	v, err := evalBodyPath(body, path)
	if err != nil {
		return false, err
	}
	return v != nil, nil
}

// flCount implements fl_count(body, path): the length of the array at
// path, or 0 when the property is missing or not an array.
func flCount(body, path string) (int64, error) {
	v, err := evalBodyPath(body, path)
	if err != nil {
		return 0, err
	}
	arr, ok := v.(value.Array)
	if !ok {
		return 0, nil
	}
	return int64(len(arr)), nil
}

// flContains implements fl_contains(body, path, all, v...). With all=1
// every wanted value must appear in the array at path; with all=0 one
// match suffices.
func flContains(body, path string, all int64, wanted ...any) (bool, error) {
	v, err := evalBodyPath(body, path)
	if err != nil {
		return false, err
	}
	arr, ok := v.(value.Array)
	if !ok {
		return false, nil
	}

	for _, want := range wanted {
		found := false
		for _, elem := range arr {
			if sqlValueEquals(elem, want) {
				found = true
				break
			}
		}
		if all != 0 && !found {
			return false, nil
		}
		if all == 0 && found {
			return true, nil
		}
	}
	// all=1: every value matched. all=0: none did.
	return all != 0, nil
}

// sqlValueEquals compares a document value against a SQL argument the
// driver passed in. Numeric comparison crosses int64/float64; booleans
// match the 1/0 the translator emits.
func sqlValueEquals(elem value.Value, want any) bool {
	switch w := want.(type) {
	case nil:
		_, isNull := elem.(value.Null)
		return isNull
	case string:
		s, ok := elem.(value.String)
		return ok && string(s) == w
	case []byte:
		s, ok := elem.(value.String)
		return ok && string(s) == string(w)
	case int64:
		return numberEquals(elem, float64(w))
	case float64:
		return numberEquals(elem, w)
	case bool:
		b, ok := elem.(value.Bool)
		return ok && bool(b) == w
	default:
		return false
	}
}

func numberEquals(elem value.Value, want float64) bool {
	switch e := elem.(type) {
	case value.Number:
		f, err := strconv.ParseFloat(string(e), 64)
		return err == nil && f == want
	case value.Bool:
		// Booleans surface as 1/0 in SQL.
		if e {
			return want == 1
		}
		return want == 0
	default:
		return false
	}
}

// ftsRank implements rank(matchinfo(...)) for FTS relevance ordering.
// The matchinfo blob is the default "pcx" format: phrase count, column
// count, then per phrase/column hit statistics. The score is the total
// number of hits in the row; good enough for best-match-first ordering.
func ftsRank(matchinfo []byte) (float64, error) {
	if len(matchinfo) < 8 || len(matchinfo)%4 != 0 {
		return 0, nil
	}
	words := make([]uint32, len(matchinfo)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(matchinfo[i*4:])
	}
	phrases := int(words[0])
	cols := int(words[1])
	if len(words) < 2+3*phrases*cols {
		return 0, nil
	}
	var score float64
	for p := 0; p < phrases; p++ {
		for c := 0; c < cols; c++ {
			hits := words[2+3*(p*cols+c)]
			score += float64(hits)
		}
	}
	return score, nil
}
