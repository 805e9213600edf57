package qp

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nicktill/tinyqp/pkg/sample"
)

// tagging appends its tag to the value so tests can see the chain order
type tagging struct {
	passthrough
	mark float64
}

func (n *tagging) Put(s sample.Sample) bool {
	if s.IsData() {
		s.Payload.Value = s.Payload.Value*10 + n.mark
	}
	return n.next.Put(s)
}

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry()
	for i, tag := range []string{"one", "two", "three"} {
		mark := float64(i + 1)
		r.MustRegister(Token{Tag: tag, Factory: func(args Args, next Node) (Node, error) {
			return &tagging{passthrough: passthrough{next: next}, mark: mark}, nil
		}})
	}
	r.MustRegister(Token{Tag: "window", Factory: func(args Args, next Node) (Node, error) {
		return &passthrough{next: next, reqs: RequireGroupBy}, nil
	}})
	r.MustRegister(Token{Tag: "picky", Factory: func(args Args, next Node) (Node, error) {
		var p struct {
			N int `json:"n"`
		}
		if err := args.Decode(&p); err != nil {
			return nil, err
		}
		if p.N <= 0 {
			return nil, errors.New("n must be positive")
		}
		return &passthrough{next: next}, nil
	}})
	r.Seal()
	return r
}

func selectIDs(ids ...uint64) ReshapeRequest {
	return ReshapeRequest{Select: Selection{IDs: ids, Begin: 0, End: 100}}
}

func TestBuilder_ChainOrder(t *testing.T) {
	b := NewBuilder(testRegistry(t))
	rec := newRecorder()

	// build order: "one" wraps the terminal, "three" becomes the root
	root, err := b.Build([]Step{{Tag: "one"}, {Tag: "two"}, {Tag: "three"}}, selectIDs(1), 0, rec)
	require.NoError(t, err)

	require.True(t, root.Put(sample.New(0, 1, 0)))
	require.Len(t, rec.samples, 1)
	// three runs first, one last
	assert.Equal(t, 321.0, rec.samples[0].Payload.Value)
}

func TestBuilder_NoSteps(t *testing.T) {
	b := NewBuilder(testRegistry(t))
	rec := newRecorder()

	root, err := b.Build(nil, selectIDs(1), 0, rec)
	require.NoError(t, err)
	assert.Same(t, rec, root)
}

func TestBuilder_UnknownTag(t *testing.T) {
	b := NewBuilder(testRegistry(t))

	_, err := b.Build([]Step{{Tag: "one"}, {Tag: "nope"}}, selectIDs(1), 0, newRecorder())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownTag)

	var pe *ParserError
	assert.True(t, errors.As(err, &pe))
	assert.Contains(t, err.Error(), `"nope"`)
}

func TestBuilder_FactoryError(t *testing.T) {
	b := NewBuilder(testRegistry(t))

	_, err := b.Build([]Step{{Tag: "picky", Params: json.RawMessage(`{"n": 0}`)}}, selectIDs(1), 0, newRecorder())
	require.Error(t, err)
	assert.True(t, IsRejected(err))
	assert.Contains(t, err.Error(), "n must be positive")

	_, err = b.Build([]Step{{Tag: "picky", Params: json.RawMessage(`{"n": 2}`)}}, selectIDs(1), 0, newRecorder())
	require.NoError(t, err)
}

func TestBuilder_TerminalChecks(t *testing.T) {
	b := NewBuilder(testRegistry(t))

	_, err := b.Build(nil, selectIDs(1), 0, nil)
	assert.ErrorIs(t, err, ErrIncompatibleNode)

	notTerminal := newRecorder()
	notTerminal.reqs = RequireEmpty
	_, err = b.Build(nil, selectIDs(1), 0, notTerminal)
	assert.ErrorIs(t, err, ErrIncompatibleNode)
}

func TestBuilder_GroupByTagNeedsCapableTerminal(t *testing.T) {
	b := NewBuilder(testRegistry(t))
	req := selectIDs(1, 2)
	req.GroupBy = GroupBy{Enabled: true, TransientMap: map[uint64]uint64{1: 9, 2: 9}}

	plain := newRecorder()
	plain.reqs = RequireTerminal
	_, err := b.Build(nil, req, 0, plain)
	assert.ErrorIs(t, err, ErrIncompatibleNode)

	rec := newRecorder()
	root, err := b.Build([]Step{{Tag: "one"}}, req, 0, rec)
	require.NoError(t, err)

	// the remap sits at the root, every stage sees transient ids
	_, ok := root.(*GroupByTag)
	require.True(t, ok)
	require.True(t, root.Put(sample.New(0, 2, 0)))
	assert.Equal(t, uint64(9), rec.samples[0].ParamID)
}

func TestBuilder_GroupByNodeNeedsStep(t *testing.T) {
	b := NewBuilder(testRegistry(t))

	_, err := b.Build([]Step{{Tag: "window"}}, selectIDs(1), 0, newRecorder())
	assert.ErrorIs(t, err, ErrIncompatibleNode)

	_, err = b.Build([]Step{{Tag: "window"}}, selectIDs(1), 10, newRecorder())
	assert.NoError(t, err)
}

func TestBuilder_InvalidReshape(t *testing.T) {
	b := NewBuilder(testRegistry(t))
	req := selectIDs(1)
	req.GroupBy = GroupBy{Enabled: true, TransientMap: map[uint64]uint64{5: 9}}

	_, err := b.Build(nil, req, 0, newRecorder())
	assert.ErrorIs(t, err, ErrInvalidRequest)

	req = selectIDs(1)
	req.OrderBy = OrderBy(7)
	_, err = b.Build(nil, req, 0, newRecorder())
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	factory := func(args Args, next Node) (Node, error) { return next, nil }

	require.NoError(t, r.Register(Token{Tag: "a", Factory: factory}))
	assert.ErrorIs(t, r.Register(Token{Tag: "a", Factory: factory}), ErrDuplicateTag)
	assert.Error(t, r.Register(Token{Tag: "", Factory: factory}))
	assert.Error(t, r.Register(Token{Tag: "b"}))

	_, ok := r.Lookup("a")
	assert.True(t, ok)

	r.Seal()
	assert.ErrorIs(t, r.Register(Token{Tag: "c", Factory: factory}), ErrRegistrySealed)
	assert.Panics(t, func() { r.MustRegister(Token{Tag: "c", Factory: factory}) })

	_, ok = r.Lookup("a")
	assert.True(t, ok)
	_, ok = r.Lookup("c")
	assert.False(t, ok)
	assert.Equal(t, []string{"a"}, r.Tags())
}

func TestArgs_Decode(t *testing.T) {
	var p struct {
		N int `json:"n"`
	}
	p.N = 3
	require.NoError(t, Args{}.Decode(&p))
	assert.Equal(t, 3, p.N)

	require.NoError(t, Args{Params: json.RawMessage(`{"n": 5, "name": "x"}`)}.Decode(&p))
	assert.Equal(t, 5, p.N)

	assert.Error(t, Args{Params: json.RawMessage(`[`)}.Decode(&p))
}
