package qp

// FilterResult is the answer of a row filter
type FilterResult int

const (
	Process FilterResult = iota
	Skip
)

// Filter decides whether a series is in scope for a query. The storage
// scan consults it before producing samples; nodes never do.
type Filter interface {
	Apply(id uint64) FilterResult
}

// IDFilter accepts a fixed set of ids
type IDFilter struct {
	ids map[uint64]struct{}
}

// NewIDFilter creates a filter accepting ids
func NewIDFilter(ids []uint64) *IDFilter {
	f := &IDFilter{ids: make(map[uint64]struct{}, len(ids))}
	for _, id := range ids {
		f.ids[id] = struct{}{}
	}
	return f
}

func (f *IDFilter) Apply(id uint64) FilterResult {
	if _, ok := f.ids[id]; ok {
		return Process
	}
	return Skip
}

// AllFilter accepts every series
type AllFilter struct{}

func (AllFilter) Apply(uint64) FilterResult {
	return Process
}

// NameResolver translates ids back to display names
type NameResolver interface {
	Name(id uint64) (string, bool)
}
