package nodes

import (
	"math"

	"github.com/nicktill/tinyqp/pkg/qp"
	"github.com/nicktill/tinyqp/pkg/sample"
	"github.com/nicktill/tinyqp/pkg/status"
)

// accumulator folds the values of one series within one window
type accumulator struct {
	count int64
	sum   float64
	min   float64
	max   float64
	first float64
	last  float64
}

func (a *accumulator) add(v float64) {
	if a.count == 0 {
		a.min, a.max, a.first = v, v, v
	}
	a.count++
	a.sum += v
	a.min = math.Min(a.min, v)
	a.max = math.Max(a.max, v)
	a.last = v
}

// Reducer turns an accumulator into the output value of a window
type Reducer func(a *accumulator) float64

var reducers = map[string]Reducer{
	"paa":       func(a *accumulator) float64 { return a.sum / float64(a.count) },
	"min-paa":   func(a *accumulator) float64 { return a.min },
	"max-paa":   func(a *accumulator) float64 { return a.max },
	"sum-paa":   func(a *accumulator) float64 { return a.sum },
	"count-paa": func(a *accumulator) float64 { return float64(a.count) },
	"first-paa": func(a *accumulator) float64 { return a.first },
	"last-paa":  func(a *accumulator) float64 { return a.last },
}

// PAA is a piecewise aggregate approximation: it reduces every series to
// one value per GROUP BY TIME window. Output is emitted when a window
// boundary marker arrives or on Complete, stamped with the start of the
// window the first buffered sample fell into.
type PAA struct {
	step   int64
	reduce Reducer
	next   qp.Node

	order []uint64
	accs  map[uint64]*accumulator
	start int64
}

// NewPAA creates an aggregating node
func NewPAA(step int64, reduce Reducer, next qp.Node) *PAA {
	return &PAA{
		step:   step,
		reduce: reduce,
		next:   next,
		accs:   make(map[uint64]*accumulator),
	}
}

func paaFactory(reduce Reducer) qp.Factory {
	return func(args qp.Args, next qp.Node) (qp.Node, error) {
		return NewPAA(args.Step, reduce, next), nil
	}
}

func (p *PAA) Put(s sample.Sample) bool {
	switch {
	case s.IsData():
		acc, ok := p.accs[s.ParamID]
		if !ok {
			if len(p.order) == 0 && p.step > 0 {
				p.start = s.Timestamp - mod(s.Timestamp, p.step)
			}
			acc = &accumulator{}
			p.accs[s.ParamID] = acc
			p.order = append(p.order, s.ParamID)
		}
		acc.add(s.Payload.Value)
		return true
	case s.IsMarker():
		// Stamp with the window of the buffered data, not the marker. After a
		// jump over several windows the marker still carries the bound that
		// advanced by a single step.
		if !p.flush(p.start) {
			return false
		}
		return p.next.Put(s)
	default:
		return p.next.Put(s)
	}
}

// flush emits one sample per buffered series and resets the window
func (p *PAA) flush(ts int64) bool {
	for _, id := range p.order {
		out := sample.New(ts, id, p.reduce(p.accs[id]))
		if !p.next.Put(out) {
			p.reset()
			return false
		}
	}
	p.reset()
	return true
}

func (p *PAA) reset() {
	p.order = p.order[:0]
	clear(p.accs)
}

func (p *PAA) Complete() {
	if len(p.order) > 0 {
		p.flush(p.start)
	}
	p.next.Complete()
}

func (p *PAA) SetError(st status.Status) {
	p.reset()
	p.next.SetError(st)
}

func (p *PAA) Requirements() qp.Requirements {
	return qp.RequireGroupBy
}

func mod(a, b int64) int64 {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}
