package translator

import (
	"fmt"

	"github.com/benoitc/couchbase-lite-core/internal/value"
)

// parseElemMatch translates an "$elemMatch" expression into a correlated
// EXISTS subquery over the fl_each table-valued function.
func (t *Translator) parseElemMatch(property string, match value.Value) error {
	t.where.WriteString("EXISTS (SELECT 1 FROM ")
	if err := t.writePropertyGetter("fl_each", property); err != nil {
		return err
	}
	t.where.WriteString(" WHERE ")
	if err := t.parseElemMatchTerm("fl_each", match); err != nil {
		return err
	}
	t.where.WriteString(")")
	return nil
}

// parseElemMatchTerm translates the operator inside an $elemMatch. The
// iterated element is addressed through the pseudo-table alias: its
// value and type columns replace the fl_value/fl_type getters, and
// count(alias.*) replaces fl_count. Array-membership operators, nested
// $elemMatch, $match, and object-valued sub-property terms are not
// expressible against a single iterated element and fail.
func (t *Translator) parseElemMatchTerm(table string, v value.Value) error {
	rel, arg, err := findRelation(v)
	if err != nil {
		return err
	}
	if rel == nil {
		return errInvalid("$elemMatch does not support sub-property objects")
	}

	switch rel.kind {
	case kindCompare:
		t.where.WriteString(table)
		t.where.WriteString(".value")
		t.where.WriteString(rel.sqlOp)
		return t.writeLiteral(arg)

	case kindType:
		name, ok := arg.(value.String)
		if !ok {
			return errInvalid("$type requires a type name string")
		}
		code := value.TypeCode(string(name))
		if code < 0 {
			return errInvalid("unknown $type name %q", string(name))
		}
		fmt.Fprintf(&t.where, "%s.type=%d", table, code)
		return nil

	case kindExists:
		b, ok := arg.(value.Bool)
		if !ok {
			return errInvalid("$exists requires a boolean")
		}
		if !bool(b) {
			t.where.WriteString("NOT ")
		}
		fmt.Fprintf(&t.where, "(%s.type >= 0)", table)
		return nil

	case kindInList:
		arr, ok := arg.(value.Array)
		if !ok {
			return errInvalid("%s requires an array", rel.tag)
		}
		t.where.WriteString(table)
		t.where.WriteString(".value")
		t.where.WriteString(rel.sqlOp)
		t.where.WriteString("(")
		d := newDelimiter(&t.where, ", ")
		for _, elem := range arr {
			d.next()
			if err := t.writeLiteral(elem); err != nil {
				return err
			}
		}
		t.where.WriteString(")")
		return nil

	case kindSize:
		fmt.Fprintf(&t.where, "count(%s.*)=", table)
		return t.writeLiteral(arg)

	case kindAll, kindAny, kindElemMatch, kindFTS:
		return errInvalid("%s is not supported inside $elemMatch", rel.tag)

	default:
		return errInvalid("unhandled operator kind for %q", rel.tag)
	}
}

// ftsPropertyIndex returns the 1-based registration index of an FTS
// property path, or 0 if it has not been referenced.
func (t *Translator) ftsPropertyIndex(propertyPath string) int {
	for i, p := range t.ftsProperties {
		if p == propertyPath {
			return i + 1
		}
	}
	return 0
}

// parseFTSMatch translates a "$match" expression. The FTS index is a
// separate virtual table; the property path is registered so FromClause
// later emits the implicit join source, and the match condition ties the
// FTS rowid back to the row table's sequence.
func (t *Translator) parseFTSMatch(property string, match value.Value) error {
	propertyPath := appendPaths(t.propertyPath, property)
	ftsTableNo := t.ftsPropertyIndex(propertyPath)
	if ftsTableNo == 0 {
		t.ftsProperties = append(t.ftsProperties, propertyPath)
		ftsTableNo = len(t.ftsProperties)
	}

	fmt.Fprintf(&t.where, "(FTS%d.text MATCH ", ftsTableNo)
	if err := t.writeLiteral(match); err != nil {
		return err
	}
	fmt.Fprintf(&t.where, " AND FTS%d.rowid = %s.sequence)", ftsTableNo, t.tableName)
	return nil
}
