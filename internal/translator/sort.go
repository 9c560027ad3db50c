package translator

import (
	"fmt"

	"github.com/benoitc/couchbase-lite-core/internal/value"
)

// parseSort translates a sort spec: absent means the primary-key default
// ordering, a string is one ordering term, an array is a comma-joined
// sequence of terms.
func (t *Translator) parseSort(expr value.Value) error {
	if expr == nil {
		t.sort.WriteString("key")
		return nil
	}
	switch sv := expr.(type) {
	case value.String:
		return t.writeOrderBy(sv)
	case value.Array:
		d := newDelimiter(&t.sort, ", ")
		for _, elem := range sv {
			s, ok := elem.(value.String)
			if !ok {
				return errInvalid("sort element must be a string")
			}
			d.next()
			if err := t.writeOrderBy(s); err != nil {
				return err
			}
		}
		return nil
	default:
		return errInvalid("sort spec must be a string or an array of strings")
	}
}

// writeOrderBy emits one ordering term. A leading '+' or '-' selects the
// direction (ascending by default). A term naming a registered FTS
// property orders by match relevance instead of property value.
func (t *Translator) writeOrderBy(property value.String) error {
	s := string(property)
	if s == "" {
		return errInvalid("sort property must not be empty")
	}

	ascending := true
	if s[0] == '-' || s[0] == '+' {
		ascending = s[0] == '+'
		s = s[1:]
		if s == "" {
			return errInvalid("sort property must not be empty")
		}
	}

	if t.ftsPropertyIndex(s) > 0 {
		t.writeOrderByFTSRank(s)
		return nil
	}

	switch s {
	case "_id":
		t.sort.WriteString("key")
	case "_sequence":
		t.sort.WriteString("sequence")
	default:
		t.sort.WriteString(PropertyGetter(s, t.bodyColumn))
	}
	if !ascending {
		t.sort.WriteString(" DESC")
	}
	return nil
}

// writeOrderByFTSRank emits relevance ordering for a full-text match,
// best match first.
func (t *Translator) writeOrderByFTSRank(propertyPath string) {
	fmt.Fprintf(&t.sort, "rank(matchinfo(\"%s::%s\")) DESC", t.tableName, propertyPath)
}
