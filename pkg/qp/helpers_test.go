package qp

import (
	"github.com/nicktill/tinyqp/pkg/sample"
	"github.com/nicktill/tinyqp/pkg/status"
)

// recorder is a terminal node that remembers everything it receives
type recorder struct {
	samples   []sample.Sample
	completed int
	errors    []status.Status

	// refuse makes Put return false for samples it matches
	refuse func(sample.Sample) bool
	reqs   Requirements
}

func newRecorder() *recorder {
	return &recorder{reqs: RequireTerminal | RequireGroupBy}
}

func (r *recorder) Put(s sample.Sample) bool {
	if r.refuse != nil && r.refuse(s) {
		return false
	}
	r.samples = append(r.samples, s)
	return true
}

func (r *recorder) Complete() { r.completed++ }

func (r *recorder) SetError(st status.Status) { r.errors = append(r.errors, st) }

func (r *recorder) Requirements() Requirements { return r.reqs }

func (r *recorder) markers() []sample.Sample {
	var out []sample.Sample
	for _, s := range r.samples {
		if s.IsMarker() {
			out = append(out, s)
		}
	}
	return out
}

func (r *recorder) data() []sample.Sample {
	var out []sample.Sample
	for _, s := range r.samples {
		if s.IsData() {
			out = append(out, s)
		}
	}
	return out
}

// passthrough is a minimal intermediate node
type passthrough struct {
	next Node
	reqs Requirements
}

func (p *passthrough) Put(s sample.Sample) bool   { return p.next.Put(s) }
func (p *passthrough) Complete()                  { p.next.Complete() }
func (p *passthrough) SetError(st status.Status)  { p.next.SetError(st) }
func (p *passthrough) Requirements() Requirements { return p.reqs }
