package series

import (
	"sort"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// Matcher maps series names to stable numeric ids and back.
// Ids are the xxhash of the canonical name, so the same series gets the
// same id in every process without a persistent counter.
// Matcher is read-mostly: queries only read it, ingestion adds to it.
type Matcher struct {
	mu sync.RWMutex

	names map[uint64]Name
	ids   map[string]uint64

	// inverted index: metric -> ids, metric -> tag -> value -> ids
	byMetric map[string][]uint64
	byTag    map[string]map[string]map[string][]uint64
}

// NewMatcher creates an empty matcher
func NewMatcher() *Matcher {
	return &Matcher{
		names:    make(map[uint64]Name),
		ids:      make(map[string]uint64),
		byMetric: make(map[string][]uint64),
		byTag:    make(map[string]map[string]map[string][]uint64),
	}
}

// ID computes the id of a series name without registering it
func ID(name string) (uint64, error) {
	canon, err := Canonical(name)
	if err != nil {
		return 0, err
	}
	return xxhash.Sum64String(canon), nil
}

// Add registers a series name and returns its id. Adding an existing
// series returns the id it already has.
func (m *Matcher) Add(name string) (uint64, error) {
	n, err := Parse(name)
	if err != nil {
		return 0, err
	}
	canon := n.String()

	m.mu.RLock()
	id, ok := m.ids[canon]
	m.mu.RUnlock()
	if ok {
		return id, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if id, ok := m.ids[canon]; ok {
		return id, nil
	}

	id = xxhash.Sum64String(canon)
	m.ids[canon] = id
	m.names[id] = n
	m.byMetric[n.Metric] = append(m.byMetric[n.Metric], id)

	tags, ok := m.byTag[n.Metric]
	if !ok {
		tags = make(map[string]map[string][]uint64)
		m.byTag[n.Metric] = tags
	}
	for k, v := range n.Tags {
		if tags[k] == nil {
			tags[k] = make(map[string][]uint64)
		}
		tags[k][v] = append(tags[k][v], id)
	}
	return id, nil
}

// Lookup returns the id of a registered series
func (m *Matcher) Lookup(name string) (uint64, bool) {
	canon, err := Canonical(name)
	if err != nil {
		return 0, false
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.ids[canon]
	return id, ok
}

// Name returns the canonical name of id
func (m *Matcher) Name(id uint64) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.names[id]
	if !ok {
		return "", false
	}
	return n.String(), true
}

// Tags returns the parsed name of id
func (m *Matcher) Tags(id uint64) (Name, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.names[id]
	return n, ok
}

// Match returns ids of series of the given metric whose tags match the
// filter: for every key in where, the tag value must be one of the listed
// values. The result is sorted by canonical name so output order is stable.
func (m *Matcher) Match(metric string, where map[string][]string) []uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	candidates := m.byMetric[metric]
	if len(candidates) == 0 {
		return nil
	}

	result := append([]uint64(nil), candidates...)
	for key, values := range where {
		allowed := make(map[uint64]struct{})
		for _, v := range values {
			for _, id := range m.byTag[metric][key][v] {
				allowed[id] = struct{}{}
			}
		}

		filtered := result[:0]
		for _, id := range result {
			if _, ok := allowed[id]; ok {
				filtered = append(filtered, id)
			}
		}
		result = filtered
		if len(result) == 0 {
			return nil
		}
	}

	m.sortByName(result)
	return result
}

// MatchTags is Match across all metrics
func (m *Matcher) MatchTags(where map[string][]string) []uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []uint64
	for id, n := range m.names {
		if n.matches(where) {
			result = append(result, id)
		}
	}
	m.sortByName(result)
	return result
}

func (n Name) matches(where map[string][]string) bool {
	for key, values := range where {
		v, ok := n.Tags[key]
		if !ok {
			return false
		}
		found := false
		for _, want := range values {
			if v == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// All returns every registered id sorted by canonical name
func (m *Matcher) All() []uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]uint64, 0, len(m.names))
	for id := range m.names {
		result = append(result, id)
	}
	m.sortByName(result)
	return result
}

// Len returns the number of registered series
func (m *Matcher) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.names)
}

// sortByName must be called with the read lock held
func (m *Matcher) sortByName(ids []uint64) {
	sort.Slice(ids, func(i, j int) bool {
		return m.names[ids[i]].String() < m.names[ids[j]].String()
	})
}
