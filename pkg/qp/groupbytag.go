package qp

import (
	"github.com/nicktill/tinyqp/pkg/sample"
	"github.com/nicktill/tinyqp/pkg/status"
)

// GroupByTag remaps persistent series ids to transient group ids so that
// series sharing a tag set collapse into one output series.
type GroupByTag struct {
	mapping map[uint64]uint64
	next    Node
}

// NewGroupByTag creates a remapping node. Ids missing from mapping pass unchanged.
func NewGroupByTag(mapping map[uint64]uint64, next Node) *GroupByTag {
	return &GroupByTag{mapping: mapping, next: next}
}

func (g *GroupByTag) Put(s sample.Sample) bool {
	if s.IsData() {
		if id, ok := g.mapping[s.ParamID]; ok {
			s.ParamID = id
		}
	}
	return g.next.Put(s)
}

func (g *GroupByTag) Complete() {
	g.next.Complete()
}

func (g *GroupByTag) SetError(st status.Status) {
	g.next.SetError(st)
}

func (g *GroupByTag) Requirements() Requirements {
	return RequireEmpty
}
