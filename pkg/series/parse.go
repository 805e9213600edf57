package series

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrEmptyName is returned for blank series names
var ErrEmptyName = errors.New("series name is empty")

// Name is a parsed series name: metric plus tag set
type Name struct {
	Metric string
	Tags   map[string]string
}

// Parse parses "metric tag=value tag2=value2" into a Name.
// Whitespace between tokens is folded, tag order is irrelevant.
func Parse(s string) (Name, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return Name{}, ErrEmptyName
	}

	n := Name{Metric: fields[0], Tags: make(map[string]string, len(fields)-1)}
	if strings.Contains(n.Metric, "=") {
		return Name{}, fmt.Errorf("invalid metric name %q", n.Metric)
	}

	for _, f := range fields[1:] {
		k, v, ok := strings.Cut(f, "=")
		if !ok || k == "" || v == "" {
			return Name{}, fmt.Errorf("invalid tag %q in series %q", f, s)
		}
		n.Tags[k] = v
	}
	return n, nil
}

// String returns the canonical form: metric followed by tags sorted by key
func (n Name) String() string {
	if len(n.Tags) == 0 {
		return n.Metric
	}

	keys := make([]string, 0, len(n.Tags))
	for k := range n.Tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(n.Metric)
	for _, k := range keys {
		b.WriteByte(' ')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(n.Tags[k])
	}
	return b.String()
}

// Canonical parses s and returns its canonical form
func Canonical(s string) (string, error) {
	n, err := Parse(s)
	if err != nil {
		return "", err
	}
	return n.String(), nil
}
