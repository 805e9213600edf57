package qp

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownTag is returned when a processing step names an unregistered node
	ErrUnknownTag = errors.New("unknown processing step")

	// ErrIncompatibleNode is returned when node requirements do not fit the query shape
	ErrIncompatibleNode = errors.New("incompatible node requirements")

	// ErrDuplicateTag is returned when a tag is registered twice
	ErrDuplicateTag = errors.New("processing step already registered")

	// ErrRegistrySealed is returned when registering after start-up
	ErrRegistrySealed = errors.New("registry is sealed")

	// ErrInvalidRequest is returned for malformed reshape requests
	ErrInvalidRequest = errors.New("invalid reshape request")
)

// ParserError rejects a query before any data flows
type ParserError struct {
	Msg string
	Err error
}

// NewParserError creates a parser error wrapping err (may be nil)
func NewParserError(err error, format string, args ...interface{}) *ParserError {
	return &ParserError{Msg: fmt.Sprintf(format, args...), Err: err}
}

func (e *ParserError) Error() string {
	if e.Err == nil {
		return "query parse error: " + e.Msg
	}
	return fmt.Sprintf("query parse error: %s: %v", e.Msg, e.Err)
}

func (e *ParserError) Unwrap() error {
	return e.Err
}

// IsRejected reports whether err means the query was rejected at build time
func IsRejected(err error) bool {
	var pe *ParserError
	return errors.As(err, &pe) || errors.Is(err, ErrIncompatibleNode) || errors.Is(err, ErrInvalidRequest)
}
