package query

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/nicktill/tinyqp/pkg/config"
	"github.com/nicktill/tinyqp/pkg/qp"
	"github.com/nicktill/tinyqp/pkg/series"
)

// Kind of a parsed query
type Kind int

const (
	// KindScan reads samples from storage
	KindScan Kind = iota
	// KindMetadata lists series names
	KindMetadata
)

func (k Kind) String() string {
	if k == KindMetadata {
		return "metadata"
	}
	return "scan"
}

// MetaNames selects the series-name listing instead of samples. A
// ":metric" suffix restricts the listing to one metric.
const MetaNames = "meta:names"

// Plan is a parsed query, ready to be built into a node chain
type Plan struct {
	Kind   Kind
	Metric string

	// Steps are in build order: the first step wraps the terminal, the
	// last one becomes the root
	Steps []qp.Step

	Reshape qp.ReshapeRequest

	// Step is the group-by time width, 0 if the query does not window
	Step int64

	// Names resolves output ids, including transient group ids
	Names series.Resolver
}

// stringList accepts either "value" or ["value", ...]
type stringList []string

func (s *stringList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var one string
		if err := json.Unmarshal(data, &one); err != nil {
			return err
		}
		*s = stringList{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*s = many
	return nil
}

type rangeClause struct {
	From *int64 `json:"from"`
	To   *int64 `json:"to"`
}

type groupByClause struct {
	Time int64      `json:"time"`
	Tag  stringList `json:"tag"`
}

type queryText struct {
	Select   string                `json:"select"`
	Where    map[string]stringList `json:"where"`
	Range    *rangeClause          `json:"range"`
	GroupBy  *groupByClause        `json:"group-by"`
	OrderBy  string                `json:"order-by"`
	Pipeline []json.RawMessage     `json:"pipeline"`
	Limit    int64                 `json:"limit"`
	Offset   int64                 `json:"offset"`
}

type stepName struct {
	Name string `json:"name"`
}

// Parser turns JSON query text into plans. Series are resolved against
// the matcher at parse time.
type Parser struct {
	matcher   *series.Matcher
	maxSeries int
}

// NewParser creates a parser backed by matcher
func NewParser(matcher *series.Matcher) *Parser {
	return &Parser{matcher: matcher, maxSeries: config.QueryMaxSeries}
}

// Parse parses a query. Every error it returns is a *qp.ParserError.
func (p *Parser) Parse(text []byte) (*Plan, error) {
	var q queryText
	dec := json.NewDecoder(bytes.NewReader(text))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&q); err != nil {
		return nil, qp.NewParserError(err, "invalid query JSON")
	}

	q.Select = strings.TrimSpace(q.Select)
	switch {
	case q.Select == "":
		return nil, qp.NewParserError(nil, "select is required")
	case q.Select == MetaNames:
		return p.parseMetadata(&q, "")
	case strings.HasPrefix(q.Select, MetaNames+":"):
		return p.parseMetadata(&q, strings.TrimPrefix(q.Select, MetaNames+":"))
	case strings.ContainsAny(q.Select, " =\t"):
		return nil, qp.NewParserError(nil, "invalid metric %q", q.Select)
	}
	return p.parseScan(&q)
}

// parseMetadata handles "meta:names" and "meta:names:<metric>"
func (p *Parser) parseMetadata(q *queryText, metric string) (*Plan, error) {
	if q.Range != nil || q.GroupBy != nil || len(q.Pipeline) > 0 || q.OrderBy != "" {
		return nil, qp.NewParserError(nil, "%s accepts only where, limit and offset", MetaNames)
	}

	steps, err := limitStep(q.Limit, q.Offset)
	if err != nil {
		return nil, err
	}

	var ids []uint64
	if metric == "" {
		ids = p.matcher.MatchTags(where(q.Where))
	} else {
		ids = p.matcher.Match(metric, where(q.Where))
	}
	return &Plan{
		Kind:    KindMetadata,
		Metric:  metric,
		Steps:   steps,
		Reshape: qp.ReshapeRequest{Select: qp.Selection{IDs: ids}},
		Names:   p.matcher,
	}, nil
}

func (p *Parser) parseScan(q *queryText) (*Plan, error) {
	if q.Range == nil || q.Range.From == nil || q.Range.To == nil {
		return nil, qp.NewParserError(nil, "range with from and to is required")
	}

	order, err := parseOrder(q.OrderBy)
	if err != nil {
		return nil, err
	}

	ids := p.matcher.Match(q.Select, where(q.Where))
	if p.maxSeries > 0 && len(ids) > p.maxSeries {
		return nil, qp.NewParserError(nil, "query matches %d series, limit is %d", len(ids), p.maxSeries)
	}

	plan := &Plan{
		Kind:   KindScan,
		Metric: q.Select,
		Reshape: qp.ReshapeRequest{
			Select:  qp.Selection{IDs: ids, Begin: *q.Range.From, End: *q.Range.To},
			OrderBy: order,
		},
		Names: p.matcher,
	}

	if q.GroupBy != nil {
		if q.GroupBy.Time < 0 {
			return nil, qp.NewParserError(nil, "group-by time must not be negative, got %d", q.GroupBy.Time)
		}
		plan.Step = q.GroupBy.Time

		// windows are tracked across the whole stream, so series must interleave
		if plan.Step > 0 {
			if q.OrderBy == "series" {
				return nil, qp.NewParserError(nil, "group-by time requires order-by time")
			}
			plan.Reshape.OrderBy = qp.OrderByTime
		}

		if len(q.GroupBy.Tag) > 0 {
			groups, mapping, err := p.groupByTag(ids, q.GroupBy.Tag)
			if err != nil {
				return nil, err
			}
			plan.Reshape.GroupBy = qp.GroupBy{Enabled: true, TransientMap: mapping}
			plan.Names = series.Chain{groups, p.matcher}
		}
	}

	// The top-level limit sits right before the terminal, the user's first
	// pipeline step becomes the root
	steps, err := limitStep(q.Limit, q.Offset)
	if err != nil {
		return nil, err
	}
	for i := len(q.Pipeline) - 1; i >= 0; i-- {
		step, err := parseStep(q.Pipeline[i])
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}
	plan.Steps = steps
	return plan, nil
}

// groupByTag merges series sharing the same values of tags into one
// transient series named "metric tag=value...". The group names live in a
// private matcher so they never leak into the global index.
func (p *Parser) groupByTag(ids []uint64, tags []string) (*series.Matcher, map[uint64]uint64, error) {
	groups := series.NewMatcher()
	mapping := make(map[uint64]uint64, len(ids))

	for _, id := range ids {
		name, ok := p.matcher.Tags(id)
		if !ok {
			continue
		}
		group := series.Name{Metric: name.Metric, Tags: make(map[string]string, len(tags))}
		for _, tag := range tags {
			if v, ok := name.Tags[tag]; ok {
				group.Tags[tag] = v
			}
		}
		gid, err := groups.Add(group.String())
		if err != nil {
			return nil, nil, qp.NewParserError(err, "group-by tag")
		}
		mapping[id] = gid
	}
	return groups, mapping, nil
}

func parseOrder(s string) (qp.OrderBy, error) {
	switch s {
	case "", "series":
		return qp.OrderBySeries, nil
	case "time":
		return qp.OrderByTime, nil
	default:
		return 0, qp.NewParserError(nil, "unknown order-by %q", s)
	}
}

func parseStep(raw json.RawMessage) (qp.Step, error) {
	var name stepName
	if err := json.Unmarshal(raw, &name); err != nil {
		return qp.Step{}, qp.NewParserError(err, "invalid pipeline step")
	}
	if name.Name == "" {
		return qp.Step{}, qp.NewParserError(errors.New("missing name"), "invalid pipeline step %s", raw)
	}
	return qp.Step{Tag: name.Name, Params: raw}, nil
}

func limitStep(limit, offset int64) ([]qp.Step, error) {
	switch {
	case limit < 0 || offset < 0:
		return nil, qp.NewParserError(nil, "limit and offset must not be negative")
	case limit == 0 && offset > 0:
		return nil, qp.NewParserError(nil, "offset requires limit")
	case limit == 0:
		return nil, nil
	}
	params, err := json.Marshal(map[string]int64{"limit": limit, "offset": offset})
	if err != nil {
		return nil, fmt.Errorf("encode limit: %w", err)
	}
	return []qp.Step{{Tag: "limit", Params: params}}, nil
}

func where(w map[string]stringList) map[string][]string {
	out := make(map[string][]string, len(w))
	for k, v := range w {
		out[k] = v
	}
	return out
}
