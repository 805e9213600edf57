package qp

import (
	"github.com/nicktill/tinyqp/pkg/sample"
	"github.com/nicktill/tinyqp/pkg/status"
)

// Requirements describes how a node functions. The builder checks them
// before any sample flows.
type Requirements int

const (
	// RequireEmpty means no special requirements
	RequireEmpty Requirements = 0
	// RequireGroupBy marks nodes that need grouped input: aggregators need
	// GROUP BY TIME windows, terminals with this flag accept group-by-tag ids.
	RequireGroupBy Requirements = 1
	// RequireTerminal marks a node that can end a chain
	RequireTerminal Requirements = 2
)

// Has reports whether all flags in f are set
func (r Requirements) Has(f Requirements) bool {
	return r&f == f
}

// Node is a single pipeline stage. A node owns its successor and never
// references its predecessor.
//
// Put is called once per sample by the previous stage. Returning false
// asks the caller to stop sending data; every caller must propagate it.
// Complete signals end of stream and must be forwarded to the successor
// after the node flushes its own state. SetError is forwarded immediately.
type Node interface {
	Put(s sample.Sample) bool
	Complete()
	SetError(st status.Status)
	Requirements() Requirements
}
