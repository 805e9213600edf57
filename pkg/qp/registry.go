package qp

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
)

// Args are passed to a node factory
type Args struct {
	// Params holds the raw parameters of the processing step
	Params json.RawMessage
	// Step is the GROUP BY TIME window width of the query, 0 if none
	Step int64
}

// Decode unmarshals Params into v. Empty params leave v untouched.
func (a Args) Decode(v interface{}) error {
	if len(a.Params) == 0 {
		return nil
	}
	return json.Unmarshal(a.Params, v)
}

// Factory creates a node that forwards its output to next
type Factory func(args Args, next Node) (Node, error)

// Token registers one node type under a tag
type Token struct {
	Tag         string
	Description string
	Factory     Factory
}

// Registry maps processing step tags to node factories.
// It is populated once at start-up and then sealed; lookups on a sealed
// registry take no locks.
type Registry struct {
	mu     sync.Mutex
	tokens map[string]Token
	sealed atomic.Bool
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{tokens: make(map[string]Token)}
}

// Register adds a token. Registering a tag twice is an error.
func (r *Registry) Register(t Token) error {
	if t.Tag == "" {
		return fmt.Errorf("register: empty tag")
	}
	if t.Factory == nil {
		return fmt.Errorf("register %q: nil factory", t.Tag)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed.Load() {
		return fmt.Errorf("register %q: %w", t.Tag, ErrRegistrySealed)
	}
	if _, exists := r.tokens[t.Tag]; exists {
		return fmt.Errorf("register %q: %w", t.Tag, ErrDuplicateTag)
	}
	r.tokens[t.Tag] = t
	return nil
}

// MustRegister is Register that panics on error. Registration problems are
// programming errors.
func (r *Registry) MustRegister(t Token) {
	if err := r.Register(t); err != nil {
		panic(err)
	}
}

// Seal forbids further registration
func (r *Registry) Seal() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sealed.Store(true)
}

// Lookup returns the token registered under tag
func (r *Registry) Lookup(tag string) (Token, bool) {
	if r.sealed.Load() {
		t, ok := r.tokens[tag]
		return t, ok
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[tag]
	return t, ok
}

// Create builds a node for tag
func (r *Registry) Create(tag string, args Args, next Node) (Node, error) {
	t, ok := r.Lookup(tag)
	if !ok {
		return nil, NewParserError(ErrUnknownTag, "tag %q", tag)
	}
	node, err := t.Factory(args, next)
	if err != nil {
		return nil, NewParserError(err, "invalid parameters for %q", tag)
	}
	return node, nil
}

// Tags lists registered tags in sorted order
func (r *Registry) Tags() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	tags := make([]string, 0, len(r.tokens))
	for tag := range r.tokens {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}
