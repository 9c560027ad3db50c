// Package store persists JSON documents in SQLite and executes
// translated queries against them.
//
// Each document is one row of the kv_default table: a key, a
// monotonically increasing sequence, and the JSON body. The connect
// hook installs the document-reading SQL functions the translator
// emits (fl_value, fl_type, fl_exists, fl_count, fl_contains), a rank
// function for FTS relevance ordering, and the fl_each table-valued
// function that backs $elemMatch subqueries.
//
// Full-text search uses one FTS4 virtual table per indexed property
// path, named "<table>::<path>" with rowid tied to the document
// sequence, matching the join source the translator's FromClause emits.
package store
