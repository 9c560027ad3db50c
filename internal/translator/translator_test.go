package translator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benoitc/couchbase-lite-core/internal/value"
)

// mustParse decodes JSON into a value tree for test input.
func mustParse(t *testing.T, src string) value.Value {
	t.Helper()
	v, err := value.ParseJSON([]byte(src))
	require.NoError(t, err)
	return v
}

func translate(t *testing.T, whereJSON, sortJSON string) *Translator {
	t.Helper()
	qp := New("kv_default", "")
	var where, sort value.Value
	if whereJSON != "" {
		where = mustParse(t, whereJSON)
	}
	if sortJSON != "" {
		sort = mustParse(t, sortJSON)
	}
	require.NoError(t, qp.Parse(where, sort))
	return qp
}

func TestParse_WhereClauses(t *testing.T) {
	testCases := []struct {
		name  string
		where string
		want  string
	}{
		{
			name:  "string equality",
			where: `{"name":"Bob"}`,
			want:  `fl_value(body, "name") = 'Bob'`,
		},
		{
			name:  "explicit eq matches implicit",
			where: `{"name":{"$eq":"Bob"}}`,
			want:  `fl_value(body, "name") = 'Bob'`,
		},
		{
			name:  "numeric comparison",
			where: `{"age":{"$gte":21}}`,
			want:  `fl_value(body, "age") >= 21`,
		},
		{
			name:  "float literal keeps source text",
			where: `{"score":{"$lt":3.25}}`,
			want:  `fl_value(body, "score") < 3.25`,
		},
		{
			name:  "ne operator",
			where: `{"state":{"$ne":"done"}}`,
			want:  `fl_value(body, "state") <> 'done'`,
		},
		{
			name:  "le alias",
			where: `{"n":{"$le":5}}`,
			want:  `fl_value(body, "n") <= 5`,
		},
		{
			name:  "like operator",
			where: `{"name":{"$like":"Bo%"}}`,
			want:  `fl_value(body, "name") LIKE 'Bo%'`,
		},
		{
			name:  "implicit and between terms",
			where: `{"a":1,"b":2}`,
			want:  `fl_value(body, "a") = 1 AND fl_value(body, "b") = 2`,
		},
		{
			name:  "empty predicate emits nothing",
			where: `{}`,
			want:  ``,
		},
		{
			name:  "and combiner",
			where: `{"$and":[{"a":1},{"b":2}]}`,
			want:  `fl_value(body, "a") = 1 AND fl_value(body, "b") = 2`,
		},
		{
			name:  "or combiner",
			where: `{"$or":[{"a":1},{"b":2}]}`,
			want:  `fl_value(body, "a") = 1 OR fl_value(body, "b") = 2`,
		},
		{
			name:  "nor wraps or in not",
			where: `{"$nor":[{"a":1},{"b":2}]}`,
			want:  `NOT (fl_value(body, "a") = 1 OR fl_value(body, "b") = 2)`,
		},
		{
			name:  "not with single predicate",
			where: `{"$not":[{"a":1}]}`,
			want:  `NOT (fl_value(body, "a") = 1)`,
		},
		{
			name:  "in list",
			where: `{"tags":{"$in":["x","y"]}}`,
			want:  `fl_value(body, "tags") IN ('x', 'y')`,
		},
		{
			name:  "nin list",
			where: `{"tags":{"$nin":[1,2]}}`,
			want:  `fl_value(body, "tags") NOT IN (1, 2)`,
		},
		{
			name:  "type operator",
			where: `{"x":{"$type":"string"}}`,
			want:  `fl_type(body, "x")=3`,
		},
		{
			name:  "exists true",
			where: `{"x":{"$exists":true}}`,
			want:  `fl_exists(body, "x")`,
		},
		{
			name:  "exists false",
			where: `{"x":{"$exists":false}}`,
			want:  `NOT fl_exists(body, "x")`,
		},
		{
			name:  "size operator",
			where: `{"items":{"$size":3}}`,
			want:  `fl_count(body, "items")=3`,
		},
		{
			name:  "all operator",
			where: `{"tags":{"$all":["a","b"]}}`,
			want:  `fl_contains(body, "tags", 1, 'a', 'b')`,
		},
		{
			name:  "any operator",
			where: `{"tags":{"$any":["a","b"]}}`,
			want:  `fl_contains(body, "tags", 0, 'a', 'b')`,
		},
		{
			name:  "elemMatch comparison",
			where: `{"items":{"$elemMatch":{"$gt":10}}}`,
			want:  `EXISTS (SELECT 1 FROM fl_each(body, "items") WHERE fl_each.value > 10)`,
		},
		{
			name:  "elemMatch implicit equality",
			where: `{"items":{"$elemMatch":"x"}}`,
			want:  `EXISTS (SELECT 1 FROM fl_each(body, "items") WHERE fl_each.value = 'x')`,
		},
		{
			name:  "elemMatch type",
			where: `{"items":{"$elemMatch":{"$type":"number"}}}`,
			want:  `EXISTS (SELECT 1 FROM fl_each(body, "items") WHERE fl_each.type=2)`,
		},
		{
			name:  "elemMatch exists",
			where: `{"items":{"$elemMatch":{"$exists":true}}}`,
			want:  `EXISTS (SELECT 1 FROM fl_each(body, "items") WHERE (fl_each.type >= 0))`,
		},
		{
			name:  "elemMatch not exists",
			where: `{"items":{"$elemMatch":{"$exists":false}}}`,
			want:  `EXISTS (SELECT 1 FROM fl_each(body, "items") WHERE NOT (fl_each.type >= 0))`,
		},
		{
			name:  "elemMatch in",
			where: `{"items":{"$elemMatch":{"$in":[1,2]}}}`,
			want:  `EXISTS (SELECT 1 FROM fl_each(body, "items") WHERE fl_each.value IN (1, 2))`,
		},
		{
			name:  "elemMatch size",
			where: `{"items":{"$elemMatch":{"$size":2}}}`,
			want:  `EXISTS (SELECT 1 FROM fl_each(body, "items") WHERE count(fl_each.*)=2)`,
		},
		{
			name:  "nested sub-property",
			where: `{"address":{"city":"Paris"}}`,
			want:  `(fl_value(body, "address.city") = 'Paris')`,
		},
		{
			name:  "doubly nested sub-property",
			where: `{"a":{"b":{"c":1}}}`,
			want:  `((fl_value(body, "a.b.c") = 1))`,
		},
		{
			name:  "bracketed child path concatenates",
			where: `{"list":{"[0]":"x"}}`,
			want:  `(fl_value(body, "list[0]") = 'x')`,
		},
		{
			name:  "boolean literal",
			where: `{"done":true}`,
			want:  `fl_value(body, "done") = 1`,
		},
		{
			name:  "apostrophe doubled in literal",
			where: `{"name":"O'Brien"}`,
			want:  `fl_value(body, "name") = 'O''Brien'`,
		},
		{
			name:  "integer placeholder",
			where: `{"x":{"$eq":[7]}}`,
			want:  `fl_value(body, "x") = :_7`,
		},
		{
			name:  "named placeholder",
			where: `{"x":{"$gt":["min"]}}`,
			want:  `fl_value(body, "x") > :_min`,
		},
		{
			name:  "id meta-property",
			where: `{"_id":"doc1"}`,
			want:  `key = 'doc1'`,
		},
		{
			name:  "id with in list",
			where: `{"_id":{"$in":["a","b"]}}`,
			want:  `key IN ('a', 'b')`,
		},
		{
			name:  "sequence meta-property",
			where: `{"_sequence":{"$gt":42}}`,
			want:  `sequence > 42`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			qp := translate(t, tc.where, "")
			assert.Equal(t, tc.want, qp.WhereClause())
		})
	}
}

func TestParse_InvalidQueries(t *testing.T) {
	testCases := []struct {
		name  string
		where string
	}{
		{"predicate not an object", `[1,2]`},
		{"unknown top-level combiner", `{"$xor":[{"a":1}]}`},
		{"unknown operator", `{"x":{"$regex":"a"}}`},
		{"and requires array", `{"$and":{"a":1}}`},
		{"not wrong arity", `{"$not":[{"a":1},{"b":2}]}`},
		{"not empty", `{"$not":[]}`},
		{"type name unknown", `{"x":{"$type":"decimal"}}`},
		{"type name not a string", `{"x":{"$type":7}}`},
		{"exists not boolean", `{"x":{"$exists":1}}`},
		{"in requires array", `{"x":{"$in":"a"}}`},
		{"all requires array", `{"x":{"$all":"a"}}`},
		{"null literal", `{"x":null}`},
		{"object literal in list", `{"x":{"$in":[{"a":1}]}}`},
		{"placeholder wrong arity", `{"x":{"$eq":[1,2]}}`},
		{"placeholder bad name", `{"x":{"$eq":["no-good"]}}`},
		{"placeholder starts with digit", `{"x":{"$eq":["1abc"]}}`},
		{"placeholder float index", `{"x":{"$eq":[1.5]}}`},
		{"placeholder bool element", `{"x":{"$eq":[true]}}`},
		{"id with type", `{"_id":{"$type":"string"}}`},
		{"id with exists", `{"_id":{"$exists":true}}`},
		{"id with size", `{"_id":{"$size":1}}`},
		{"id with elemMatch", `{"_id":{"$elemMatch":{"$gt":1}}}`},
		{"sequence with size", `{"_sequence":{"$size":1}}`},
		{"elemMatch all", `{"x":{"$elemMatch":{"$all":[1]}}}`},
		{"elemMatch any", `{"x":{"$elemMatch":{"$any":[1]}}}`},
		{"elemMatch nested elemMatch", `{"x":{"$elemMatch":{"$elemMatch":{"$gt":1}}}}`},
		{"elemMatch fts", `{"x":{"$elemMatch":{"$match":"q"}}}`},
		{"elemMatch sub-property object", `{"x":{"$elemMatch":{"y":1}}}`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			qp := New("kv_default", "")
			err := qp.Parse(mustParse(t, tc.where), nil)
			require.Error(t, err)
			assert.True(t, IsInvalidQuery(err), "want InvalidQueryError, got %v", err)
		})
	}
}

func TestParse_InvalidSorts(t *testing.T) {
	testCases := []struct {
		name string
		sort string
	}{
		{"sort not string or array", `{"by":"name"}`},
		{"sort number", `42`},
		{"sort array with non-string", `["name", 2]`},
		{"sort empty string", `""`},
		{"sort bare sign", `"-"`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			qp := New("kv_default", "")
			err := qp.Parse(nil, mustParse(t, tc.sort))
			require.Error(t, err)
			assert.True(t, IsInvalidQuery(err))
		})
	}
}

func TestParse_SortClauses(t *testing.T) {
	testCases := []struct {
		name string
		sort string
		want string
	}{
		{"default", "", "key"},
		{"single property", `"name"`, `fl_value(body, "name")`},
		{"descending", `"-date"`, `fl_value(body, "date") DESC`},
		{"explicit ascending", `"+name"`, `fl_value(body, "name")`},
		{"mixed array", `["-date","+name"]`, `fl_value(body, "date") DESC, fl_value(body, "name")`},
		{"id sorts by key column", `"_id"`, `key`},
		{"sequence column", `"-_sequence"`, `sequence DESC`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			qp := translate(t, "", tc.sort)
			assert.Equal(t, tc.want, qp.OrderBy())
		})
	}
}

func TestParse_FTSMatch(t *testing.T) {
	qp := translate(t, `{"title":{"$match":"hello"}}`, "")

	assert.Equal(t,
		`(FTS1.text MATCH 'hello' AND FTS1.rowid = kv_default.sequence)`,
		qp.WhereClause())
	assert.Equal(t, `kv_default, "kv_default::title" AS FTS1`, qp.FromClause())
	assert.Equal(t, []string{`"kv_default::title"`}, qp.FTSTableNames())
}

func TestParse_FTSRegistrationOrderIsStable(t *testing.T) {
	qp := translate(t,
		`{"$and":[{"title":{"$match":"a"}},{"body":{"$match":"b"}},{"title":{"$match":"c"}}]}`, "")

	// Re-matching the same property reuses its first-appearance index.
	assert.Equal(t,
		`(FTS1.text MATCH 'a' AND FTS1.rowid = kv_default.sequence) AND `+
			`(FTS2.text MATCH 'b' AND FTS2.rowid = kv_default.sequence) AND `+
			`(FTS1.text MATCH 'c' AND FTS1.rowid = kv_default.sequence)`,
		qp.WhereClause())
	assert.Equal(t,
		`kv_default, "kv_default::title" AS FTS1, "kv_default::body" AS FTS2`,
		qp.FromClause())
	assert.Len(t, qp.FTSTableNames(), 2)
}

func TestParse_FTSSortByRank(t *testing.T) {
	qp := translate(t, `{"title":{"$match":"hello"}}`, `"title"`)
	assert.Equal(t, `rank(matchinfo("kv_default::title")) DESC`, qp.OrderBy())

	// A sign prefix still resolves to the registered property.
	qp = translate(t, `{"title":{"$match":"hello"}}`, `"-title"`)
	assert.Equal(t, `rank(matchinfo("kv_default::title")) DESC`, qp.OrderBy())
}

func TestParse_FTSInsideNestedProperty(t *testing.T) {
	qp := translate(t, `{"doc":{"title":{"$match":"go"}}}`, "")
	assert.Equal(t, []string{`"kv_default::doc.title"`}, qp.FTSTableNames())
	assert.Contains(t, qp.WhereClause(), "FTS1.text MATCH 'go'")
}

func TestParse_PropertyPathRestored(t *testing.T) {
	qp := New("kv_default", "")
	err := qp.Parse(mustParse(t, `{"a":{"b":{"c":1}},"d":2}`), nil)
	require.NoError(t, err)
	assert.Empty(t, qp.propertyPath)
	// The sibling term after the nested descent resolves at the root.
	assert.Contains(t, qp.WhereClause(), `fl_value(body, "d") = 2`)
}

func TestParse_PropertyPathRestoredOnFailure(t *testing.T) {
	qp := New("kv_default", "")
	err := qp.Parse(mustParse(t, `{"a":{"b":{"$bogus":1}}}`), nil)
	require.Error(t, err)
	assert.Empty(t, qp.propertyPath)
}

func TestParse_ImplicitEqualityMatchesExplicit(t *testing.T) {
	literals := []string{`"s"`, `1`, `2.5`, `true`, `false`}
	for _, lit := range literals {
		implicit := translate(t, `{"x":`+lit+`}`, "")
		explicit := translate(t, `{"x":{"$eq":`+lit+`}}`, "")
		assert.Equal(t, explicit.WhereClause(), implicit.WhereClause(), "literal %s", lit)
	}
}

func TestParse_NorMatchesNegatedOr(t *testing.T) {
	or := translate(t, `{"$or":[{"a":1},{"b":2}]}`, "")
	nor := translate(t, `{"$nor":[{"a":1},{"b":2}]}`, "")
	assert.Equal(t, "NOT ("+or.WhereClause()+")", nor.WhereClause())
}

func TestParse_ReuseResetsState(t *testing.T) {
	qp := New("kv_default", "")
	require.NoError(t, qp.Parse(mustParse(t, `{"title":{"$match":"x"}}`), nil))
	require.Len(t, qp.FTSTableNames(), 1)

	require.NoError(t, qp.Parse(mustParse(t, `{"a":1}`), nil))
	assert.Empty(t, qp.FTSTableNames())
	assert.Equal(t, `fl_value(body, "a") = 1`, qp.WhereClause())
	assert.Equal(t, "key", qp.OrderBy())
	assert.Equal(t, "kv_default", qp.FromClause())
}

func TestParseJSON(t *testing.T) {
	qp := New("kv_default", "")
	require.NoError(t, qp.ParseJSON([]byte(`{"name":"Bob"}`), []byte(`"-name"`)))
	assert.Equal(t, `fl_value(body, "name") = 'Bob'`, qp.WhereClause())
	assert.Equal(t, `fl_value(body, "name") DESC`, qp.OrderBy())
}

func TestParseJSON_NilInputs(t *testing.T) {
	qp := New("kv_default", "")
	require.NoError(t, qp.ParseJSON(nil, nil))
	assert.Empty(t, qp.WhereClause())
	assert.Equal(t, "key", qp.OrderBy())
}

func TestParseJSON_MalformedJSONIsInvalidQuery(t *testing.T) {
	qp := New("kv_default", "")
	err := qp.ParseJSON([]byte(`{"name":`), nil)
	require.Error(t, err)
	assert.True(t, IsInvalidQuery(err))

	err = qp.ParseJSON([]byte(`{}`), []byte(`["name"`))
	require.Error(t, err)
	assert.True(t, IsInvalidQuery(err))
}

func TestNew_CustomBodyColumn(t *testing.T) {
	qp := New("kv_default", "raw")
	require.NoError(t, qp.Parse(mustParse(t, `{"a":1}`), nil))
	assert.Equal(t, `fl_value(raw, "a") = 1`, qp.WhereClause())
}

func TestPropertyGetter(t *testing.T) {
	assert.Equal(t, `fl_value(body, "name")`, PropertyGetter("name", "body"))
	assert.Equal(t, `fl_value(raw, "a.b")`, PropertyGetter("a.b", "raw"))
}

func TestWriteSQLString_RoundTrip(t *testing.T) {
	// Any byte string must decode back to itself under SQL unquoting.
	inputs := []string{"", "plain", "O'Brien", "''", "a'b'c", "unicode é'"}
	for _, in := range inputs {
		qp := translate(t, `{"x":{"$eq":"`+escapeJSON(in)+`"}}`, "")
		where := qp.WhereClause()
		// Strip the getter prefix and the operator, leaving the literal.
		lit := where[len(`fl_value(body, "x") = `):]
		require.True(t, len(lit) >= 2 && lit[0] == '\'' && lit[len(lit)-1] == '\'')
		var decoded []byte
		body := lit[1 : len(lit)-1]
		for i := 0; i < len(body); i++ {
			if body[i] == '\'' {
				i++ // skip the doubled apostrophe
			}
			decoded = append(decoded, body[i])
		}
		assert.Equal(t, in, string(decoded), "input %q", in)
	}
}

// escapeJSON escapes a string for embedding in a JSON test literal.
func escapeJSON(s string) string {
	out := ""
	for _, r := range s {
		switch r {
		case '"':
			out += `\"`
		case '\\':
			out += `\\`
		default:
			out += string(r)
		}
	}
	return out
}
