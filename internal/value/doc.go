// Package value defines the tagged-variant tree shared by the query
// translator and the document store.
//
// A Value is one of Null, Bool, Number, String, Array, or Object. The
// interface is sealed with a marker method so type switches over it are
// exhaustive. Objects preserve source field order, which the translator
// relies on when scanning for the first $-prefixed key.
//
// The package also provides order-preserving JSON decoding (ParseJSON),
// property-path navigation over document bodies (ParsePath, Eval), and
// deterministic canonical marshaling for golden tests (MarshalCanonical).
package value
