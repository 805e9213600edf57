package qp

import (
	"github.com/nicktill/tinyqp/pkg/sample"
	"github.com/nicktill/tinyqp/pkg/status"
)

// MetadataProcessor drives metadata-only listings. It has no time range
// and no windowing; the filter alone decides what is produced.
type MetadataProcessor struct {
	lifecycle

	filter  Filter
	matcher NameResolver
}

// NewMetadataProcessor wraps root
func NewMetadataProcessor(root Node, filter Filter, matcher NameResolver) *MetadataProcessor {
	return &MetadataProcessor{
		lifecycle: lifecycle{root: root},
		filter:    filter,
		matcher:   matcher,
	}
}

func (p *MetadataProcessor) Start() bool {
	return p.start(true)
}

func (p *MetadataProcessor) Put(s sample.Sample) bool {
	if p.state != Started {
		return false
	}
	if s.IsData() {
		p.counters.Received++
	}
	return p.root.Put(s)
}

func (p *MetadataProcessor) Stop() {
	p.stop()
}

func (p *MetadataProcessor) SetError(st status.Status) {
	p.setError(st)
}

// Range is always empty for metadata queries
func (p *MetadataProcessor) Range() QueryRange {
	return QueryRange{}
}

func (p *MetadataProcessor) Filter() Filter {
	return p.filter
}

func (p *MetadataProcessor) Matcher() NameResolver {
	return p.matcher
}

// GroupByMapping always reports no grouping
func (p *MetadataProcessor) GroupByMapping() (map[uint64]uint64, bool) {
	return nil, false
}
