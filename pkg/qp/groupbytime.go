package qp

import (
	"math"

	"github.com/nicktill/tinyqp/pkg/sample"
)

// GroupByTime buckets a time-ordered stream into windows of width step and
// interleaves boundary markers so downstream aggregators know when a window
// closes. It is not a Node; the processor calls it in front of the root.
//
// At most one marker is emitted per sample and bounds move by exactly one
// step, even if the sample jumps over several windows.
type GroupByTime struct {
	step       int64
	firstHit   bool
	lowerbound int64
	upperbound int64
}

// NewGroupByTime creates a windowing adapter. step == 0 disables it.
func NewGroupByTime(step int64) GroupByTime {
	return GroupByTime{
		step:       step,
		firstHit:   true,
		lowerbound: math.MinInt64,
		upperbound: math.MinInt64,
	}
}

// Step returns the window width
func (g *GroupByTime) Step() int64 {
	return g.step
}

// Empty reports whether windowing is a no-op
func (g *GroupByTime) Empty() bool {
	return g.step == 0
}

// Bounds returns the current window
func (g *GroupByTime) Bounds() (lower, upper int64) {
	return g.lowerbound, g.upperbound
}

// Put forwards s to next, preceded by a boundary marker if s crossed the
// current window. Returns false if next asked to stop; in that case s is
// not forwarded when the marker was rejected.
func (g *GroupByTime) Put(s sample.Sample, next Node) bool {
	if g.step != 0 && s.IsData() {
		ts := s.Timestamp
		if g.firstHit {
			g.firstHit = false
			aligned := floorDiv(ts, g.step) * g.step
			g.lowerbound = aligned
			g.upperbound = aligned + g.step
		}
		if ts >= g.upperbound {
			// forward direction
			if !next.Put(sample.Margin(sample.HiMargin, g.upperbound)) {
				return false
			}
			g.lowerbound += g.step
			g.upperbound += g.step
		} else if ts < g.lowerbound {
			// backward direction
			if !next.Put(sample.Margin(sample.LoMargin, g.upperbound)) {
				return false
			}
			g.lowerbound -= g.step
			g.upperbound -= g.step
		}
	}
	return next.Put(s)
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
