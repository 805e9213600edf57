package series

// Resolver turns an id back into a series name
type Resolver interface {
	Name(id uint64) (string, bool)
}

// Chain resolves ids with each resolver in turn. Queries that group by
// tag keep their transient group names in a private Matcher chained in
// front of the global one.
type Chain []Resolver

// Name returns the first name any resolver knows for id
func (c Chain) Name(id uint64) (string, bool) {
	for _, r := range c {
		if r == nil {
			continue
		}
		if name, ok := r.Name(id); ok {
			return name, true
		}
	}
	return "", false
}
