// Package harness runs YAML-defined translation scenarios against
// golden files.
//
// A scenario names a where/sort input and the table it targets; the
// expected SQL lives in testdata/golden/<name>.golden as canonical
// JSON, regenerated with `go test ./internal/harness -update`. This
// keeps the conformance corpus editable without touching Go code.
package harness
