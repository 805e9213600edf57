package nodes

import (
	"fmt"

	"github.com/nicktill/tinyqp/pkg/qp"
	"github.com/nicktill/tinyqp/pkg/sample"
	"github.com/nicktill/tinyqp/pkg/status"
)

// Limit skips the first Offset data samples, forwards the next Limit ones
// and then asks the producer to stop. Stopping is early termination, not
// an error.
type Limit struct {
	limit  int64
	offset int64
	seen   int64
	next   qp.Node
}

type limitParams struct {
	Limit  int64 `json:"limit"`
	Offset int64 `json:"offset"`
}

// NewLimit creates a limit node
func NewLimit(limit, offset int64, next qp.Node) *Limit {
	return &Limit{limit: limit, offset: offset, next: next}
}

func newLimit(args qp.Args, next qp.Node) (qp.Node, error) {
	var p limitParams
	if err := args.Decode(&p); err != nil {
		return nil, err
	}
	if p.Limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", p.Limit)
	}
	if p.Offset < 0 {
		return nil, fmt.Errorf("offset must not be negative, got %d", p.Offset)
	}
	return NewLimit(p.Limit, p.Offset, next), nil
}

func (l *Limit) Put(s sample.Sample) bool {
	if !s.IsData() {
		return l.next.Put(s)
	}

	l.seen++
	if l.seen <= l.offset {
		return true
	}
	if l.seen > l.offset+l.limit {
		return false
	}
	if !l.next.Put(s) {
		return false
	}
	return l.seen < l.offset+l.limit
}

func (l *Limit) Complete() {
	l.next.Complete()
}

func (l *Limit) SetError(st status.Status) {
	l.next.SetError(st)
}

func (l *Limit) Requirements() qp.Requirements {
	return qp.RequireEmpty
}
