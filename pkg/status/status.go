package status

import (
	"context"
	"errors"
)

// Status is an execution status code. Every fallible pipeline operation
// reports one of these instead of panicking.
type Status int

const (
	Success Status = iota
	NotFound
	BadArg
	Internal
	NotPermitted
	Overflow
	Busy
	Timeout
	Closed
	QueryParsingError
	NoData
)

var names = map[Status]string{
	Success:           "success",
	NotFound:          "not found",
	BadArg:            "bad argument",
	Internal:          "internal error",
	NotPermitted:      "not permitted",
	Overflow:          "overflow",
	Busy:              "busy",
	Timeout:           "timeout",
	Closed:            "closed",
	QueryParsingError: "query parsing error",
	NoData:            "no data",
}

// String returns the human readable name of the status
func (s Status) String() string {
	if name, ok := names[s]; ok {
		return name
	}
	return "unknown status"
}

// Error makes Status usable as an error value
func (s Status) Error() string {
	return s.String()
}

// OK reports whether s is Success
func (s Status) OK() bool {
	return s == Success
}

// FromError maps an arbitrary error to a status code.
// nil maps to Success, context errors map to Timeout/Closed.
func FromError(err error) Status {
	if err == nil {
		return Success
	}

	var st Status
	if errors.As(err, &st) {
		return st
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return Timeout
	case errors.Is(err, context.Canceled):
		return Closed
	default:
		return Internal
	}
}
