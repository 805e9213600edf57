package query

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/nicktill/tinyqp/pkg/qp"
	"github.com/nicktill/tinyqp/pkg/sample"
	"github.com/nicktill/tinyqp/pkg/series"
	"github.com/nicktill/tinyqp/pkg/status"
	"github.com/nicktill/tinyqp/pkg/storage"
)

// Executor parses queries, builds their node chains and drives them with
// samples from storage
type Executor struct {
	store   storage.Store
	parser  *Parser
	builder *qp.Builder
	metrics *Metrics
	timeout time.Duration
}

// NewExecutor creates a new query executor. registry must be sealed;
// metrics may be nil.
func NewExecutor(store storage.Store, matcher *series.Matcher, registry *qp.Registry, metrics *Metrics) *Executor {
	return &Executor{
		store:   store,
		parser:  NewParser(matcher),
		builder: qp.NewBuilder(registry),
		metrics: metrics,
	}
}

// WithTimeout bounds every execution by d (0 = no bound)
func (e *Executor) WithTimeout(d time.Duration) *Executor {
	e.timeout = d
	return e
}

// Run describes one finished execution
type Run struct {
	ID       string
	Kind     Kind
	Names    series.Resolver
	State    qp.State
	Status   status.Status
	Counters qp.Counters
	Elapsed  time.Duration
}

// processor is what both stream processors offer the executor
type processor interface {
	qp.StreamProcessor
	Close()
	State() qp.State
	Counters() qp.Counters
}

// Prepared is a parsed and built query that has not run yet
type Prepared struct {
	ID    string
	Kind  Kind
	Names series.Resolver

	exec *Executor
	plan *Plan
	root qp.Node
}

// Prepare parses text and builds the node chain ending in terminal. A
// rejected query returns a *qp.ParserError or a builder error; the
// terminal then receives SetError and storage is never touched.
func (e *Executor) Prepare(text []byte, terminal qp.Node) (*Prepared, error) {
	id := uuid.NewString()

	plan, err := e.parser.Parse(text)
	if err != nil {
		return nil, e.reject(id, terminal, err)
	}
	root, err := e.builder.Build(plan.Steps, plan.Reshape, plan.Step, terminal)
	if err != nil {
		return nil, e.reject(id, terminal, err)
	}
	return &Prepared{ID: id, Kind: plan.Kind, Names: plan.Names, exec: e, plan: plan, root: root}, nil
}

// Execute prepares and runs query text. The terminal receives exactly one
// Complete or SetError.
func (e *Executor) Execute(ctx context.Context, text []byte, terminal qp.Node) (*Run, error) {
	prepared, err := e.Prepare(text, terminal)
	if err != nil {
		return nil, err
	}
	return prepared.Run(ctx)
}

// Run drives the prepared chain with samples from storage. It must be
// called at most once.
func (p *Prepared) Run(ctx context.Context) (*Run, error) {
	e := p.exec
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	e.metrics.begin()
	start := time.Now()

	var (
		proc processor
		err  error
	)
	switch p.Kind {
	case KindMetadata:
		mp := qp.NewMetadataProcessor(p.root, qp.NewIDFilter(p.plan.Reshape.Select.IDs), p.Names)
		proc = mp
		err = storage.Drive(ctx, listing(p.plan.Reshape.Select.IDs), mp)
	default:
		sp := qp.NewScanProcessor(p.root, p.plan.Reshape, p.plan.Step, p.Names)
		proc = sp
		err = e.store.Scan(ctx, storage.NewScanRequest(sp), sp)
	}
	// completes the chain if a node stopped the scan early
	proc.Close()

	run := &Run{
		ID:       p.ID,
		Kind:     p.Kind,
		Names:    p.Names,
		State:    proc.State(),
		Status:   status.FromError(err),
		Counters: proc.Counters(),
		Elapsed:  time.Since(start),
	}
	e.metrics.finish(run.Kind, run.Status, run.Counters.Received, run.Counters.Skipped, run.Elapsed)

	if err != nil {
		log.Printf("Query %s failed after %v: %v", p.ID, run.Elapsed, err)
		return run, err
	}
	return run, nil
}

func (e *Executor) reject(id string, terminal qp.Node, err error) error {
	e.metrics.rejected()
	log.Printf("Query %s rejected: %v", id, err)
	if terminal != nil {
		terminal.SetError(status.QueryParsingError)
	}
	return err
}

// listing produces one sample per series for metadata queries
func listing(ids []uint64) []sample.Sample {
	out := make([]sample.Sample, len(ids))
	for i, id := range ids {
		out[i] = sample.New(0, id, 0)
	}
	return out
}
