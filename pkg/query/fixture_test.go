package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nicktill/tinyqp/pkg/qp/nodes"
	"github.com/nicktill/tinyqp/pkg/sample"
	"github.com/nicktill/tinyqp/pkg/series"
	"github.com/nicktill/tinyqp/pkg/storage/memory"
)

// fixture holds four series with samples at ts 0, 10, ..., 90:
//
//	cpu dc=x host=a  value ts/10
//	cpu dc=x host=b  value 100 + ts/10
//	cpu dc=y host=c  value 200 + ts/10
//	mem host=a       value 1
type fixture struct {
	store    *memory.Storage
	matcher  *series.Matcher
	executor *Executor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := memory.New()
	matcher := series.NewMatcher()
	ctx := context.Background()

	data := map[string]func(ts int64) float64{
		"cpu host=a dc=x": func(ts int64) float64 { return float64(ts / 10) },
		"cpu host=b dc=x": func(ts int64) float64 { return 100 + float64(ts/10) },
		"cpu host=c dc=y": func(ts int64) float64 { return 200 + float64(ts/10) },
		"mem host=a":      func(int64) float64 { return 1 },
	}
	for name, value := range data {
		id, err := matcher.Add(name)
		require.NoError(t, err)

		var samples []sample.Sample
		for ts := int64(0); ts < 100; ts += 10 {
			samples = append(samples, sample.New(ts, id, value(ts)))
		}
		require.NoError(t, store.Write(ctx, samples))
	}

	registry, err := nodes.NewRegistry()
	require.NoError(t, err)

	return &fixture{
		store:    store,
		matcher:  matcher,
		executor: NewExecutor(store, matcher, registry, nil),
	}
}

func (f *fixture) id(t *testing.T, name string) uint64 {
	t.Helper()
	id, ok := f.matcher.Lookup(name)
	require.True(t, ok, "series %q not registered", name)
	return id
}

func values(samples []sample.Sample) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = s.Payload.Value
	}
	return out
}

func timestamps(samples []sample.Sample) []int64 {
	out := make([]int64, len(samples))
	for i, s := range samples {
		out[i] = s.Timestamp
	}
	return out
}
