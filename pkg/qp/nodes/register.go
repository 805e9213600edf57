// Package nodes holds the processing steps a query can name.
package nodes

import (
	"sort"

	"github.com/nicktill/tinyqp/pkg/qp"
)

// RegisterAll registers every node type with registry. It must run once
// at start-up, before the first query is built.
func RegisterAll(registry *qp.Registry) error {
	tokens := []qp.Token{
		{Tag: "limit", Description: "forward at most N samples after skipping an offset", Factory: newLimit},
		{Tag: "filter", Description: "drop samples outside value bounds", Factory: newValueFilter},
		{Tag: "scale", Description: "linear transform of sample values", Factory: newScale},
	}

	tags := make([]string, 0, len(reducers))
	for tag := range reducers {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	for _, tag := range tags {
		tokens = append(tokens, qp.Token{
			Tag:         tag,
			Description: "per-window aggregate, requires group-by time",
			Factory:     paaFactory(reducers[tag]),
		})
	}

	for _, t := range tokens {
		if err := registry.Register(t); err != nil {
			return err
		}
	}
	return nil
}

// NewRegistry returns a sealed registry with every node type registered
func NewRegistry() (*qp.Registry, error) {
	registry := qp.NewRegistry()
	if err := RegisterAll(registry); err != nil {
		return nil, err
	}
	registry.Seal()
	return registry, nil
}
