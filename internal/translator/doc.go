// Package translator compiles JSON-shaped document queries to SQL.
//
// A query is a predicate object in the familiar operator-tag style
// ({"age": {"$gte": 21}}, {"$or": [...]}) plus an optional sort spec.
// Parse walks the predicate once, appending to a WHERE buffer, then
// walks the sort spec into an ORDER BY buffer. Document properties are
// read through opaque SQL functions (fl_value, fl_type, fl_exists,
// fl_count, fl_contains, fl_each) applied to the body column of the row
// table; $match predicates additionally register full-text-search
// virtual tables that FromClause threads into the join source.
//
// Every malformed input fails with the single uniform error kind
// *InvalidQueryError; on failure the output buffers are invalid.
package translator
