package translator

import (
	"errors"
	"fmt"
)

// InvalidQueryError is the single error kind the translator raises.
//
// Every structural or operator-level violation maps to it: a missing
// value, a wrong variant, an unknown operator tag or $type name, a bad
// arity on $not or a placeholder array, an unsupported combination
// inside $elemMatch, or _id/_sequence used where only a plain value
// comparison is allowed. There is no partial success: when Parse returns
// this error the output buffers are invalid and must be discarded.
type InvalidQueryError struct {
	// Reason is a human-readable description of the violation.
	Reason string
}

// Error implements the error interface.
func (e *InvalidQueryError) Error() string {
	return fmt.Sprintf("invalid query: %s", e.Reason)
}

// IsInvalidQuery returns true if the error is an InvalidQueryError.
// Uses errors.As to handle wrapped errors.
func IsInvalidQuery(err error) bool {
	var qe *InvalidQueryError
	return errors.As(err, &qe)
}

// errInvalid constructs an InvalidQueryError.
func errInvalid(format string, args ...any) error {
	return &InvalidQueryError{Reason: fmt.Sprintf(format, args...)}
}
