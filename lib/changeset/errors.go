package changeset

import (
	"errors"
	"fmt"
)

// ErrMalformed is wrapped by every error caused by a changeset, op stream or
// attribute string that does not follow the wire grammar.
var ErrMalformed = errors.New("malformed changeset")

// ErrMissingPool is returned when attributes have to be interned but no pool
// was supplied.
var ErrMissingPool = errors.New("attribute pool required")

// ParseError reports the offset of the first character in an op stream that
// could not be parsed.
type ParseError struct {
	Ops    string
	Offset int
	Char   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid operation %q at offset %d in %q", e.Char, e.Offset, e.Ops)
}

func (e *ParseError) Unwrap() error {
	return ErrMalformed
}

// PreconditionError is returned when the inputs of an operation are well formed
// but do not fit together, e.g. composing changesets whose lengths differ.
type PreconditionError struct {
	Op       string
	Expected int
	Actual   int
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%s: length mismatch, expected %d but got %d", e.Op, e.Expected, e.Actual)
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformed, fmt.Sprintf(format, args...))
}
