package store

import (
	"fmt"

	"github.com/mattn/go-sqlite3"

	"github.com/benoitc/couchbase-lite-core/internal/value"
)

// registerEach installs fl_each as an eponymous virtual table. A query
// can then select from fl_each(body, path) and iterate one row per
// element of the array at path, which is how the translator compiles
// $elemMatch subqueries.
func registerEach(conn *sqlite3.SQLiteConn) error {
	return conn.CreateModule("fl_each", &eachModule{})
}

// eachModule is the module behind the fl_each table-valued function.
type eachModule struct{}

func (m *eachModule) EponymousOnlyModule() {}

func (m *eachModule) Create(c *sqlite3.SQLiteConn, args []string) (sqlite3.VTab, error) {
	err := c.DeclareVTab("CREATE TABLE x(value, type, body HIDDEN, path HIDDEN)")
	if err != nil {
		return nil, err
	}
	return &eachTable{}, nil
}

func (m *eachModule) Connect(c *sqlite3.SQLiteConn, args []string) (sqlite3.VTab, error) {
	return m.Create(c, args)
}

func (m *eachModule) DestroyModule() {}

// Column indexes of the declared virtual table.
const (
	eachColValue = 0
	eachColType  = 1
	eachColBody  = 2
	eachColPath  = 3
)

type eachTable struct{}

// BestIndex consumes usable equality constraints on the hidden body and
// path columns - the two call arguments - and hands them to Filter. IdxStr
// records the argument order as one letter per constraint. A plan without
// a body constraint is still accepted; Filter then yields no rows.
func (t *eachTable) BestIndex(csts []sqlite3.InfoConstraint, ob []sqlite3.InfoOrderBy) (*sqlite3.IndexResult, error) {
	used := make([]bool, len(csts))
	idxStr := ""
	for i, c := range csts {
		if !c.Usable || c.Op != sqlite3.OpEQ {
			continue
		}
		switch c.Column {
		case eachColBody:
			used[i] = true
			idxStr += "b"
		case eachColPath:
			used[i] = true
			idxStr += "p"
		}
	}
	return &sqlite3.IndexResult{
		IdxNum:        0,
		IdxStr:        idxStr,
		Used:          used,
		EstimatedCost: 25,
	}, nil
}

func (t *eachTable) Disconnect() error { return nil }
func (t *eachTable) Destroy() error    { return nil }

func (t *eachTable) Open() (sqlite3.VTabCursor, error) {
	return &eachCursor{}, nil
}

// eachCursor iterates the elements of one array.
type eachCursor struct {
	elems []value.Value
	index int
}

func (c *eachCursor) Close() error { return nil }

// Filter receives the body and path arguments in the order BestIndex
// recorded them and loads the array elements.
func (c *eachCursor) Filter(idxNum int, idxStr string, vals []any) error {
	c.elems = nil
	c.index = 0

	var body, path string
	for i, tag := range idxStr {
		if i >= len(vals) {
			return fmt.Errorf("fl_each: missing argument %d", i)
		}
		s, ok := asText(vals[i])
		if !ok {
			return fmt.Errorf("fl_each: argument %d is not text", i)
		}
		if tag == 'b' {
			body = s
		} else {
			path = s
		}
	}
	if body == "" {
		return nil
	}

	v, err := evalBodyPath(body, path)
	if err != nil {
		return err
	}
	if arr, ok := v.(value.Array); ok {
		c.elems = arr
	}
	return nil
}

func asText(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case []byte:
		return string(s), true
	default:
		return "", false
	}
}

func (c *eachCursor) Next() error {
	c.index++
	return nil
}

func (c *eachCursor) EOF() bool {
	return c.index >= len(c.elems)
}

func (c *eachCursor) Rowid() (int64, error) {
	return int64(c.index), nil
}

func (c *eachCursor) Column(ctx *sqlite3.SQLiteContext, col int) error {
	elem := c.elems[c.index]
	switch col {
	case eachColValue:
		v, err := toSQL(elem)
		if err != nil {
			return err
		}
		switch sv := v.(type) {
		case nil:
			ctx.ResultNull()
		case int64:
			ctx.ResultInt64(sv)
		case float64:
			ctx.ResultDouble(sv)
		case string:
			ctx.ResultText(sv)
		}
	case eachColType:
		ctx.ResultInt(value.TypeOf(elem))
	default:
		// Hidden argument columns have no output representation.
		ctx.ResultNull()
	}
	return nil
}
