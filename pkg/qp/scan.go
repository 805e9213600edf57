package qp

import (
	"github.com/nicktill/tinyqp/pkg/sample"
	"github.com/nicktill/tinyqp/pkg/status"
)

// ScanProcessor drives numeric output: raw data or derivatives, depending
// on the node chain.
type ScanProcessor struct {
	lifecycle

	rng     QueryRange
	ids     []uint64
	orderBy OrderBy
	groupBy GroupByTime
	mapping map[uint64]uint64
	filter  Filter
	matcher NameResolver
}

// NewScanProcessor wraps root. step is the GROUP BY TIME width (0 = none).
func NewScanProcessor(root Node, req ReshapeRequest, step int64, matcher NameResolver) *ScanProcessor {
	p := &ScanProcessor{
		lifecycle: lifecycle{root: root},
		rng:       req.Range(),
		ids:       req.Select.IDs,
		orderBy:   req.OrderBy,
		groupBy:   NewGroupByTime(step),
		filter:    NewIDFilter(req.Select.IDs),
		matcher:   matcher,
	}
	if req.GroupBy.Enabled {
		p.mapping = req.GroupBy.TransientMap
	}
	return p
}

// Start returns false when no series matched the query
func (p *ScanProcessor) Start() bool {
	return p.start(len(p.ids) > 0)
}

// Put forwards s through the windowing adapter into the root node.
// Real samples outside the query range are skipped.
func (p *ScanProcessor) Put(s sample.Sample) bool {
	if p.state != Started {
		return false
	}
	if s.IsData() {
		p.counters.Received++
		if !p.rng.Contains(s.Timestamp) {
			p.counters.Skipped++
			return true
		}
	}
	if p.groupBy.Empty() {
		return p.root.Put(s)
	}
	return p.groupBy.Put(s, p.root)
}

func (p *ScanProcessor) Stop() {
	p.stop()
}

func (p *ScanProcessor) SetError(st status.Status) {
	p.setError(st)
}

// Range returns the query range
func (p *ScanProcessor) Range() QueryRange {
	return p.rng
}

// IDs returns the selected series ids in scan order
func (p *ScanProcessor) IDs() []uint64 {
	return p.ids
}

// OrderBy returns the requested output order
func (p *ScanProcessor) OrderBy() OrderBy {
	return p.orderBy
}

// Filter returns the row filter
func (p *ScanProcessor) Filter() Filter {
	return p.filter
}

// Matcher returns the resolver for output ids
func (p *ScanProcessor) Matcher() NameResolver {
	return p.matcher
}

// GroupByMapping returns the group-by-tag mapping, if grouping is enabled
func (p *ScanProcessor) GroupByMapping() (map[uint64]uint64, bool) {
	return p.mapping, p.mapping != nil
}
