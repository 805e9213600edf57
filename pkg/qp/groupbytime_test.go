package qp

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nicktill/tinyqp/pkg/sample"
)

func TestGroupByTime_ForwardScenario(t *testing.T) {
	g := NewGroupByTime(100)
	rec := newRecorder()

	for _, ts := range []int64{50, 120, 260} {
		require.True(t, g.Put(sample.New(ts, 1, 0), rec))
	}

	got := rec.samples
	require.Len(t, got, 5)

	assert.Equal(t, int64(50), got[0].Timestamp)
	assert.True(t, got[0].IsData())

	assert.Equal(t, sample.HiMargin, got[1].Payload.Type)
	assert.Equal(t, int64(100), got[1].Timestamp)
	assert.Equal(t, int64(120), got[2].Timestamp)

	// 260 jumps two windows, still only one marker
	assert.Equal(t, sample.HiMargin, got[3].Payload.Type)
	assert.Equal(t, int64(200), got[3].Timestamp)
	assert.Equal(t, int64(260), got[4].Timestamp)

	lo, hi := g.Bounds()
	assert.Equal(t, int64(200), lo)
	assert.Equal(t, int64(300), hi)
}

func TestGroupByTime_SingleStepAdvanceOnGap(t *testing.T) {
	g := NewGroupByTime(10)
	rec := newRecorder()

	require.True(t, g.Put(sample.New(0, 1, 0), rec))
	require.True(t, g.Put(sample.New(55, 1, 0), rec))

	// bounds moved by one step although 55 lies five windows ahead
	lo, hi := g.Bounds()
	assert.Equal(t, int64(10), lo)
	assert.Equal(t, int64(20), hi)
	assert.Len(t, rec.markers(), 1)
}

func TestGroupByTime_Backward(t *testing.T) {
	g := NewGroupByTime(100)
	rec := newRecorder()

	for _, ts := range []int64{250, 210, 180, 20} {
		require.True(t, g.Put(sample.New(ts, 1, 0), rec))
	}

	markers := rec.markers()
	require.Len(t, markers, 2)
	for _, m := range markers {
		assert.Equal(t, sample.LoMargin, m.Payload.Type)
	}
	// stamped with the upperbound before the move
	assert.Equal(t, int64(300), markers[0].Timestamp)
	assert.Equal(t, int64(200), markers[1].Timestamp)

	assert.Len(t, rec.data(), 4)
}

func TestGroupByTime_StepZeroIsIdentity(t *testing.T) {
	g := NewGroupByTime(0)
	rec := newRecorder()
	assert.True(t, g.Empty())

	in := []sample.Sample{
		sample.New(math.MinInt64, 1, 1),
		sample.New(5, 2, 2),
		sample.NoData(),
		sample.New(-5, 1, 3),
	}
	for _, s := range in {
		require.True(t, g.Put(s, rec))
	}
	assert.Equal(t, in, rec.samples)
}

func TestGroupByTime_NegativeTimestampsAlign(t *testing.T) {
	g := NewGroupByTime(100)
	rec := newRecorder()

	require.True(t, g.Put(sample.New(-50, 1, 0), rec))
	lo, hi := g.Bounds()
	assert.Equal(t, int64(-100), lo)
	assert.Equal(t, int64(0), hi)
	assert.Empty(t, rec.markers())
}

func TestGroupByTime_MarkerRejectedDropsSample(t *testing.T) {
	g := NewGroupByTime(100)
	rec := newRecorder()
	rec.refuse = func(s sample.Sample) bool { return s.IsMarker() }

	require.True(t, g.Put(sample.New(50, 1, 0), rec))
	assert.False(t, g.Put(sample.New(150, 1, 0), rec))

	// the crossing sample was not forwarded
	require.Len(t, rec.samples, 1)
	assert.Equal(t, int64(50), rec.samples[0].Timestamp)
}

func TestGroupByTime_NonDataIgnored(t *testing.T) {
	g := NewGroupByTime(100)
	rec := newRecorder()

	require.True(t, g.Put(sample.NoData(), rec))
	require.True(t, g.Put(sample.New(50, 1, 0), rec))
	require.True(t, g.Put(sample.Sample{Timestamp: 500, Payload: sample.Payload{Type: sample.Empty}}, rec))

	assert.Empty(t, rec.markers())
	assert.Len(t, rec.samples, 3)
}

// Property: for a forward stream whose samples never skip a window,
// every sample is forwarded, markers are strictly increasing multiples
// of step and each data sample lies inside the window open at the time.
func TestGroupByTime_ForwardProperty(t *testing.T) {
	const step = 7
	g := NewGroupByTime(step)
	rec := newRecorder()

	var in []int64
	for ts := int64(-30); ts < 100; ts += 3 {
		in = append(in, ts)
		require.True(t, g.Put(sample.New(ts, 1, 0), rec))
	}

	assert.Len(t, rec.data(), len(in))

	var last int64 = math.MinInt64
	var upper int64 = math.MinInt64
	for _, s := range rec.samples {
		if s.IsMarker() {
			assert.Equal(t, sample.HiMargin, s.Payload.Type)
			assert.Greater(t, s.Timestamp, last)
			assert.Zero(t, ((s.Timestamp%step)+step)%step)
			last = s.Timestamp
			upper = s.Timestamp + step
			continue
		}
		if upper != math.MinInt64 {
			assert.Less(t, s.Timestamp, upper)
			assert.GreaterOrEqual(t, s.Timestamp, upper-step)
		}
	}
}
