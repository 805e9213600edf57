package nodes

import (
	"errors"

	"github.com/nicktill/tinyqp/pkg/qp"
	"github.com/nicktill/tinyqp/pkg/sample"
	"github.com/nicktill/tinyqp/pkg/status"
)

// ValueFilter drops data samples whose value falls outside the configured bounds
type ValueFilter struct {
	gt, ge, lt, le *float64
	next           qp.Node
}

type filterParams struct {
	GT *float64 `json:"gt"`
	GE *float64 `json:"ge"`
	LT *float64 `json:"lt"`
	LE *float64 `json:"le"`
}

func newValueFilter(args qp.Args, next qp.Node) (qp.Node, error) {
	var p filterParams
	if err := args.Decode(&p); err != nil {
		return nil, err
	}
	if p.GT == nil && p.GE == nil && p.LT == nil && p.LE == nil {
		return nil, errors.New("filter needs at least one of gt, ge, lt, le")
	}
	return &ValueFilter{gt: p.GT, ge: p.GE, lt: p.LT, le: p.LE, next: next}, nil
}

func (f *ValueFilter) match(v float64) bool {
	switch {
	case f.gt != nil && !(v > *f.gt):
		return false
	case f.ge != nil && !(v >= *f.ge):
		return false
	case f.lt != nil && !(v < *f.lt):
		return false
	case f.le != nil && !(v <= *f.le):
		return false
	}
	return true
}

func (f *ValueFilter) Put(s sample.Sample) bool {
	if s.IsData() && !f.match(s.Payload.Value) {
		return true
	}
	return f.next.Put(s)
}

func (f *ValueFilter) Complete() {
	f.next.Complete()
}

func (f *ValueFilter) SetError(st status.Status) {
	f.next.SetError(st)
}

func (f *ValueFilter) Requirements() qp.Requirements {
	return qp.RequireEmpty
}

// Scale applies value*factor + offset to data samples
type Scale struct {
	factor float64
	offset float64
	next   qp.Node
}

type scaleParams struct {
	Factor *float64 `json:"factor"`
	Offset float64  `json:"offset"`
}

func newScale(args qp.Args, next qp.Node) (qp.Node, error) {
	var p scaleParams
	if err := args.Decode(&p); err != nil {
		return nil, err
	}
	factor := 1.0
	if p.Factor != nil {
		factor = *p.Factor
	}
	return &Scale{factor: factor, offset: p.Offset, next: next}, nil
}

func (s *Scale) Put(smp sample.Sample) bool {
	if smp.IsData() {
		smp.Payload.Value = smp.Payload.Value*s.factor + s.offset
	}
	return s.next.Put(smp)
}

func (s *Scale) Complete() {
	s.next.Complete()
}

func (s *Scale) SetError(st status.Status) {
	s.next.SetError(st)
}

func (s *Scale) Requirements() qp.Requirements {
	return qp.RequireEmpty
}
