package translator

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/benoitc/couchbase-lite-core/internal/value"
)

// DefaultBodyColumn is the row column holding serialized document bodies
// when the caller does not name one.
const DefaultBodyColumn = "body"

// Translator compiles a JSON-shaped predicate/sort expression into SQL
// clause fragments for a document row table.
//
// One Translator carries the state of one Parse call: the WHERE and
// ORDER BY buffers, the property-path prefix for the current lexical
// scope, and the full-text-search tables discovered along the way. A
// Translator is not safe for concurrent use; distinct instances may run
// in parallel.
type Translator struct {
	tableName  string
	bodyColumn string

	where bytes.Buffer
	sort  bytes.Buffer

	// propertyPath accumulates the dotted path prefix while descending
	// into nested property predicates. It is restored on every exit path.
	propertyPath string

	// ftsProperties lists FTS-indexed property paths in first-appearance
	// order. The 1-based position assigned on first reference is stable
	// for the rest of the parse; FromClause and FTSTableNames emit the
	// same order.
	ftsProperties []string
}

// New creates a Translator for the given row table. bodyColumn names the
// column holding document bodies; empty means DefaultBodyColumn. Both
// strings are SQL identifiers controlled by the caller, not query input.
func New(tableName, bodyColumn string) *Translator {
	if bodyColumn == "" {
		bodyColumn = DefaultBodyColumn
	}
	return &Translator{
		tableName:  tableName,
		bodyColumn: bodyColumn,
	}
}

// Parse translates a predicate and a sort spec. Either may be nil: a nil
// where emits an empty WHERE clause, a nil sort emits the primary-key
// default ordering. On error the buffers are invalid and must be
// discarded; all failures are *InvalidQueryError.
func (t *Translator) Parse(where, sort value.Value) error {
	t.reset()
	if where != nil {
		if err := t.parsePredicate(where); err != nil {
			return err
		}
	}
	return t.parseSort(sort)
}

// ParseJSON decodes raw JSON and delegates to Parse. A nil or empty
// slice stands for an absent expression. JSON syntax errors surface as
// the same uniform error as structural violations.
func (t *Translator) ParseJSON(whereJSON, sortJSON []byte) error {
	var where, sort value.Value
	if len(whereJSON) > 0 {
		v, err := value.ParseJSON(whereJSON)
		if err != nil {
			return errInvalid("malformed where JSON: %v", err)
		}
		where = v
	}
	if len(sortJSON) > 0 {
		v, err := value.ParseJSON(sortJSON)
		if err != nil {
			return errInvalid("malformed sort JSON: %v", err)
		}
		sort = v
	}
	return t.Parse(where, sort)
}

// WhereClause returns the assembled WHERE fragment. May be empty.
func (t *Translator) WhereClause() string {
	return t.where.String()
}

// OrderBy returns the assembled ORDER BY fragment.
func (t *Translator) OrderBy() string {
	return t.sort.String()
}

// FromClause returns the join source: the row table followed by one
// aliased FTS virtual table per discovered property, in registration
// order.
func (t *Translator) FromClause() string {
	var from strings.Builder
	from.WriteString(t.tableName)
	for i, path := range t.ftsProperties {
		fmt.Fprintf(&from, ", \"%s::%s\" AS FTS%d", t.tableName, path, i+1)
	}
	return from.String()
}

// FTSTableNames returns the quoted FTS virtual-table names referenced by
// the parsed query, in registration order.
func (t *Translator) FTSTableNames() []string {
	names := make([]string, 0, len(t.ftsProperties))
	for _, path := range t.ftsProperties {
		names = append(names, fmt.Sprintf("\"%s::%s\"", t.tableName, path))
	}
	return names
}

// reset clears all per-parse state so an instance may be reused
// sequentially.
func (t *Translator) reset() {
	t.where.Reset()
	t.sort.Reset()
	t.propertyPath = ""
	t.ftsProperties = nil
}

// delimiter writes its word to the buffer every time next is called but
// the first.
type delimiter struct {
	buf   *bytes.Buffer
	word  string
	first bool
}

func newDelimiter(buf *bytes.Buffer, word string) *delimiter {
	return &delimiter{buf: buf, word: word, first: true}
}

func (d *delimiter) next() {
	if d.first {
		d.first = false
	} else {
		d.buf.WriteString(d.word)
	}
}

// specialKey returns the first field (in source order) whose key starts
// with '$'.
func specialKey(obj value.Object) (string, value.Value, bool) {
	for _, f := range obj {
		if strings.HasPrefix(f.Key, "$") {
			return f.Key, f.Val, true
		}
	}
	return "", nil, false
}

// appendPaths combines a parent property path with a child path. A
// leading '$' (and an optional following '.') on the child is stripped;
// a child starting with '[' concatenates without a dot.
func appendPaths(parent, child string) string {
	if strings.HasPrefix(child, "$") {
		if strings.HasPrefix(child, "$.") {
			child = child[2:]
		} else {
			child = child[1:]
		}
	}
	if parent == "" {
		return child
	}
	if strings.HasPrefix(child, "[") {
		return parent + child
	}
	return parent + "." + child
}

// writeSQLString emits s as a SQL string literal: wrapped in apostrophes
// with contained apostrophes doubled. The common no-apostrophe case is a
// single write.
func writeSQLString(buf *bytes.Buffer, s string) {
	buf.WriteByte('\'')
	if !strings.ContainsRune(s, '\'') {
		buf.WriteString(s)
	} else {
		for i := 0; i < len(s); i++ {
			if s[i] == '\'' {
				buf.WriteString("''")
			} else {
				buf.WriteByte(s[i])
			}
		}
	}
	buf.WriteByte('\'')
}

// writeQuotedPath emits a property path as a double-quoted argument,
// doubling contained quote characters.
func writeQuotedPath(buf *bytes.Buffer, path string) {
	buf.WriteByte('"')
	if !strings.ContainsRune(path, '"') {
		buf.WriteString(path)
	} else {
		for i := 0; i < len(path); i++ {
			if path[i] == '"' {
				buf.WriteString(`""`)
			} else {
				buf.WriteByte(path[i])
			}
		}
	}
	buf.WriteByte('"')
}

// isBindingIdentifier reports whether s is safe to splice after ":_" as
// a named parameter.
func isBindingIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c == '_':
		case c >= '0' && c <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// writeLiteral emits a leaf value as a SQL literal. A single-element
// array is a placeholder binding: [3] emits :_3, ["name"] emits :_name.
func (t *Translator) writeLiteral(v value.Value) error {
	switch lit := v.(type) {
	case value.Number:
		t.where.WriteString(string(lit))
	case value.Bool:
		// SQL has no true/false.
		if lit {
			t.where.WriteByte('1')
		} else {
			t.where.WriteByte('0')
		}
	case value.String:
		writeSQLString(&t.where, string(lit))
	case value.Array:
		if len(lit) != 1 {
			return errInvalid("placeholder must be a single-element array, got %d elements", len(lit))
		}
		switch ident := lit[0].(type) {
		case value.Number:
			n, ok := ident.Int64()
			if !ok {
				return errInvalid("placeholder index %q is not an integer", string(ident))
			}
			fmt.Fprintf(&t.where, ":_%d", n)
		case value.String:
			if !isBindingIdentifier(string(ident)) {
				return errInvalid("placeholder name %q is not a valid identifier", string(ident))
			}
			t.where.WriteString(":_")
			t.where.WriteString(string(ident))
		default:
			return errInvalid("placeholder must contain an integer or a string")
		}
	default:
		return errInvalid("value cannot be used as a SQL literal")
	}
	return nil
}

// parsePredicate translates a boolean-valued expression, usually the top
// level of a query. The input must be an object; its first $-key decides
// how the rest is interpreted.
func (t *Translator) parsePredicate(q value.Value) error {
	query, ok := q.(value.Object)
	if !ok {
		return errInvalid("predicate must be an object")
	}
	key, arg, found := specialKey(query)
	if !found {
		// No special operator; each key is a property path with an
		// implicit AND between terms.
		d := newDelimiter(&t.where, " AND ")
		for _, f := range query {
			d.next()
			if err := t.parseTerm(f.Key, f.Val); err != nil {
				return err
			}
		}
		return nil
	}
	switch key {
	case "$and":
		return t.writeBooleanExpr(arg, " AND ")
	case "$or":
		return t.writeBooleanExpr(arg, " OR ")
	case "$nor":
		t.where.WriteString("NOT (")
		if err := t.writeBooleanExpr(arg, " OR "); err != nil {
			return err
		}
		t.where.WriteString(")")
		return nil
	case "$not":
		terms, ok := arg.(value.Array)
		if !ok {
			return errInvalid("$not requires an array")
		}
		if len(terms) != 1 {
			return errInvalid("$not requires exactly one sub-predicate, got %d", len(terms))
		}
		t.where.WriteString("NOT (")
		if err := t.parsePredicate(terms[0]); err != nil {
			return err
		}
		t.where.WriteString(")")
		return nil
	default:
		return errInvalid("unknown operator %q at predicate level", key)
	}
}

// writeBooleanExpr emits a series of sub-predicates separated by AND or
// OR.
func (t *Translator) writeBooleanExpr(terms value.Value, op string) error {
	arr, ok := terms.(value.Array)
	if !ok {
		return errInvalid("boolean combiner requires an array")
	}
	d := newDelimiter(&t.where, op)
	for _, term := range arr {
		d.next()
		if err := t.parsePredicate(term); err != nil {
			return err
		}
	}
	return nil
}

// findRelation classifies the value of a term. It returns the operator
// entry and its argument, or (nil, value, nil) when the value is an
// operator-free object to be parsed as a nested sub-predicate.
func findRelation(v value.Value) (*opEntry, value.Value, error) {
	if obj, ok := v.(value.Object); ok {
		tag, arg, found := specialKey(obj)
		if !found {
			return nil, v, nil
		}
		rel := lookupOperator(tag)
		if rel == nil {
			return nil, nil, errInvalid("unknown operator %q", tag)
		}
		return rel, arg, nil
	}
	// Bare literal: implicit equality.
	return lookupOperator("$eq"), v, nil
}

// parseTerm translates a key/value mapping, like `"x": {"$gt": 5}`.
func (t *Translator) parseTerm(key string, v value.Value) error {
	rel, arg, err := findRelation(v)
	if err != nil {
		return err
	}
	if rel == nil {
		obj := arg.(value.Object)
		return t.parseSubPropertyTerm(key, obj)
	}

	switch rel.kind {
	case kindCompare:
		if err := t.writePropertyGetter("fl_value", key); err != nil {
			return err
		}
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
		if err := t.writePropertyGetter("fl_type", key); err != nil {
			return err
		}
		fmt.Fprintf(&t.where, "=%d", code)
		return nil

	case kindExists:
		b, ok := arg.(value.Bool)
		if !ok {
			return errInvalid("$exists requires a boolean")
		}
		if !bool(b) {
			t.where.WriteString("NOT ")
		}
		return t.writePropertyGetter("fl_exists", key)

	case kindInList:
		arr, ok := arg.(value.Array)
		if !ok {
			return errInvalid("%s requires an array", rel.tag)
		}
		if err := t.writePropertyGetter("fl_value", key); err != nil {
			return err
		}
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
		if err := t.writePropertyGetter("fl_count", key); err != nil {
			return err
		}
		t.where.WriteString("=")
		return t.writeLiteral(arg)

	case kindAll, kindAny:
		arr, ok := arg.(value.Array)
		if !ok {
			return errInvalid("%s requires an array", rel.tag)
		}
		t.writePropertyGetterLeftOpen("fl_contains", key)
		if rel.kind == kindAll {
			t.where.WriteString(", 1")
		} else {
			t.where.WriteString(", 0")
		}
		for _, elem := range arr {
			t.where.WriteString(", ")
			if err := t.writeLiteral(elem); err != nil {
				return err
			}
		}
		t.where.WriteString(")")
		return nil

	case kindElemMatch:
		return t.parseElemMatch(key, arg)

	case kindFTS:
		return t.parseFTSMatch(key, arg)

	default:
		return errInvalid("unhandled operator kind for %q", rel.tag)
	}
}

// parseSubPropertyTerm translates a nested predicate inside a property.
// The property is appended to the path prefix for the duration of the
// nested parse and restored on every exit path, including failure.
func (t *Translator) parseSubPropertyTerm(property string, obj value.Object) error {
	saved := t.propertyPath
	t.propertyPath = appendPaths(t.propertyPath, property)
	defer func() { t.propertyPath = saved }()

	t.where.WriteString("(")
	if err := t.parsePredicate(obj); err != nil {
		return err
	}
	t.where.WriteString(")")
	return nil
}

// writePropertyPathString emits the full property path as a quoted SQL
// argument.
func (t *Translator) writePropertyPathString(property string) {
	path := appendPaths(t.propertyPath, property)
	writeQuotedPath(&t.where, path)
}

// writePropertyGetterLeftOpen emits a document function call without the
// closing ")", so the caller can append further arguments.
func (t *Translator) writePropertyGetterLeftOpen(fn, property string) {
	t.where.WriteString(fn)
	t.where.WriteString("(")
	t.where.WriteString(t.bodyColumn)
	t.where.WriteString(", ")
	t.writePropertyPathString(property)
}

// writePropertyGetter emits a complete document function call. The
// meta-properties _id and _sequence stand for real row columns and only
// make sense where a plain value read would go.
func (t *Translator) writePropertyGetter(fn, property string) error {
	switch property {
	case "_id":
		if fn != "fl_value" {
			return errInvalid("_id cannot be used with %s", fn)
		}
		t.where.WriteString("key")
	case "_sequence":
		if fn != "fl_value" {
			return errInvalid("_sequence cannot be used with %s", fn)
		}
		t.where.WriteString("sequence")
	default:
		t.writePropertyGetterLeftOpen(fn, property)
		t.where.WriteString(")")
	}
	return nil
}

// PropertyGetter returns the SQL expression reading a document property
// from the given body column, e.g. `fl_value(body, "name")`.
func PropertyGetter(property, column string) string {
	qp := New("XXX", column)
	// fl_value never fails in writePropertyGetter.
	_ = qp.writePropertyGetter("fl_value", property)
	return qp.WhereClause()
}
