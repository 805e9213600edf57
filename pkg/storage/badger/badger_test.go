package badger

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nicktill/tinyqp/pkg/qp"
	"github.com/nicktill/tinyqp/pkg/sample"
	"github.com/nicktill/tinyqp/pkg/status"
	"github.com/nicktill/tinyqp/pkg/storage"
)

var _ storage.Store = (*Storage)(nil)

func newTestStore(t *testing.T) *Storage {
	t.Helper()
	// Use in-memory mode for tests
	store, err := New(Config{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func readAll(t *testing.T, store *Storage, id uint64, rng qp.QueryRange) []sample.Sample {
	t.Helper()
	it, err := store.Series(context.Background(), id, rng)
	require.NoError(t, err)
	defer it.Close()

	var out []sample.Sample
	for {
		s, ok := it.Next()
		if !ok {
			break
		}
		out = append(out, s)
	}
	require.NoError(t, it.Err())
	return out
}

func timestamps(samples []sample.Sample) []int64 {
	var out []int64
	for _, s := range samples {
		out = append(out, s.Timestamp)
	}
	return out
}

func TestDataKey_RoundTripAndOrder(t *testing.T) {
	for _, ts := range []int64{math.MinInt64, -1, 0, 1, math.MaxInt64} {
		id, got := parseDataKey(dataKey(42, ts))
		assert.Equal(t, uint64(42), id)
		assert.Equal(t, ts, got)
	}

	// Negative timestamps sort before positive ones
	assert.Less(t, string(dataKey(1, -10)), string(dataKey(1, 10)))
	assert.Less(t, string(dataKey(1, math.MaxInt64)), string(dataKey(2, math.MinInt64)))
}

func TestBadgerStorage_WriteAndSeries(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.Write(ctx, []sample.Sample{
		sample.New(30, 1, 3.5),
		sample.New(-10, 1, -1),
		sample.New(10, 1, 1),
		sample.New(20, 2, 9),
		sample.NoData(),
	})
	require.NoError(t, err)

	got := readAll(t, store, 1, qp.QueryRange{Begin: -100, End: 100})
	assert.Equal(t, []int64{-10, 10, 30}, timestamps(got))
	assert.Equal(t, 3.5, got[2].Payload.Value)
	assert.Equal(t, uint64(1), got[0].ParamID)
}

func TestBadgerStorage_Backward(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Write(ctx, []sample.Sample{
		sample.New(10, 1, 0),
		sample.New(20, 1, 0),
		sample.New(30, 1, 0),
		sample.New(40, 1, 0),
		sample.New(25, 2, 0),
	}))

	// (10, 30] newest first
	got := readAll(t, store, 1, qp.QueryRange{Begin: 30, End: 10})
	assert.Equal(t, []int64{30, 20}, timestamps(got))
}

func TestBadgerStorage_ForwardExcludesEnd(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Write(ctx, []sample.Sample{
		sample.New(10, 1, 0),
		sample.New(20, 1, 0),
		sample.New(30, 1, 0),
	}))

	got := readAll(t, store, 1, qp.QueryRange{Begin: 10, End: 30})
	assert.Equal(t, []int64{10, 20}, timestamps(got))

	assert.Empty(t, readAll(t, store, 3, qp.QueryRange{Begin: 0, End: 100}))
}

func TestBadgerStorage_Scan(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Write(ctx, []sample.Sample{
		sample.New(10, 1, 1),
		sample.New(20, 2, 2),
		sample.New(30, 1, 3),
	}))

	var got []sample.Sample
	proc := &sink{put: func(s sample.Sample) bool {
		if s.IsData() {
			got = append(got, s)
		}
		return true
	}}
	req := storage.ScanRequest{IDs: []uint64{1, 2}, Range: qp.QueryRange{Begin: 0, End: 100}, OrderBy: qp.OrderByTime}

	require.NoError(t, store.Scan(ctx, req, proc))
	assert.Equal(t, []int64{10, 20, 30}, timestamps(got))
	assert.True(t, proc.stopped)
}

func TestBadgerStorage_Delete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Write(ctx, []sample.Sample{
		sample.New(10, 1, 0),
		sample.New(20, 1, 0),
		sample.New(5, 2, 0),
	}))
	require.NoError(t, store.Delete(ctx, 15))

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), stats.TotalSamples)
	assert.Equal(t, uint64(1), stats.TotalSeries)
	assert.Equal(t, int64(20), stats.Oldest)
	assert.Equal(t, int64(20), stats.Newest)
}

func TestBadgerStorage_SeriesNames(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveSeries(ctx, "cpu host=a"))
	require.NoError(t, store.SaveSeries(ctx, "cpu host=a"))
	require.NoError(t, store.SaveSeries(ctx, "mem host=a"))

	names, err := store.LoadSeries(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"cpu host=a", "mem host=a"}, names)
}

func TestNew_Modes(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"in memory", Config{InMemory: true}},
		{"on disk", Config{Path: t.TempDir()}},
		{"on disk with memory limit", Config{Path: t.TempDir(), MaxMemoryMB: 48}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := New(tt.cfg)
			require.NoError(t, err)
			defer store.Close()

			require.NoError(t, store.Write(context.Background(), []sample.Sample{sample.New(5, 1, 2.5)}))
			got := readAll(t, store, 1, qp.QueryRange{Begin: 0, End: 10})
			require.Len(t, got, 1)
			assert.Equal(t, 2.5, got[0].Payload.Value)
		})
	}
}

func TestBadgerStorage_Persistence(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := New(Config{Path: dir})
	require.NoError(t, err)
	require.NoError(t, store.Write(ctx, []sample.Sample{sample.New(1, 7, 42)}))
	require.NoError(t, store.SaveSeries(ctx, "persistent host=a"))
	require.NoError(t, store.Close())

	store, err = New(Config{Path: dir})
	require.NoError(t, err)
	defer store.Close()

	got := readAll(t, store, 7, qp.QueryRange{Begin: 0, End: 10})
	require.Len(t, got, 1)
	assert.Equal(t, 42.0, got[0].Payload.Value)

	names, err := store.LoadSeries(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"persistent host=a"}, names)
}

func TestBadgerStorage_WriteCancelled(t *testing.T) {
	store := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := store.Write(ctx, []sample.Sample{sample.New(1, 1, 1)})
	assert.ErrorIs(t, err, context.Canceled)
}

type sink struct {
	put     func(sample.Sample) bool
	stopped bool
}

func (s *sink) Start() bool                { return true }
func (s *sink) Put(smp sample.Sample) bool { return s.put(smp) }
func (s *sink) Stop()                      { s.stopped = true }
func (s *sink) SetError(status.Status)     {}
