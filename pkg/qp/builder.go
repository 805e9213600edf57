package qp

import (
	"encoding/json"
	"fmt"
)

// Step is one processing step emitted by the query parser
type Step struct {
	Tag    string
	Params json.RawMessage
}

// Builder assembles node chains from processing steps
type Builder struct {
	registry *Registry
}

// NewBuilder creates a builder resolving tags against registry
func NewBuilder(registry *Registry) *Builder {
	return &Builder{registry: registry}
}

// Build walks steps in the order given. Each step wraps the chain built so
// far, starting with terminal, so the last step becomes the root. When
// grouping is enabled a GroupByTag node is placed at the root so every
// stage sees transient ids.
//
// All requirement checks happen here; a rejected query never produces a chain.
func (b *Builder) Build(steps []Step, req ReshapeRequest, groupStep int64, terminal Node) (Node, error) {
	if terminal == nil {
		return nil, fmt.Errorf("%w: terminal node is nil", ErrIncompatibleNode)
	}
	if !terminal.Requirements().Has(RequireTerminal) {
		return nil, fmt.Errorf("%w: %T is not a terminal node", ErrIncompatibleNode, terminal)
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.GroupBy.Enabled && !terminal.Requirements().Has(RequireGroupBy) {
		return nil, fmt.Errorf("%w: %T does not support group-by-tag", ErrIncompatibleNode, terminal)
	}

	args := Args{Step: groupStep}
	current := terminal
	for _, step := range steps {
		args.Params = step.Params
		node, err := b.registry.Create(step.Tag, args, current)
		if err != nil {
			return nil, err
		}
		if node.Requirements().Has(RequireGroupBy) && groupStep <= 0 {
			return nil, fmt.Errorf("%w: %q requires group-by time", ErrIncompatibleNode, step.Tag)
		}
		current = node
	}

	if req.GroupBy.Enabled {
		current = NewGroupByTag(req.GroupBy.TransientMap, current)
	}
	return current, nil
}
