package compaction

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nicktill/tinyqp/pkg/sample"
	"github.com/nicktill/tinyqp/pkg/storage"
	"github.com/nicktill/tinyqp/pkg/storage/memory"
)

func seed(t *testing.T, store *memory.Storage) {
	t.Helper()
	var samples []sample.Sample
	for ts := int64(0); ts < 100; ts += 10 {
		samples = append(samples, sample.New(ts, 1, float64(ts)), sample.New(ts, 2, 1))
	}
	require.NoError(t, store.Write(context.Background(), samples))
}

func TestCleanup_DropsOldSamples(t *testing.T) {
	store := memory.New()
	seed(t, store)

	result, err := New(store, 45).Cleanup(context.Background())
	require.NoError(t, err)

	// newest is 90, so 0..40 go
	assert.Equal(t, int64(45), result.Horizon)
	assert.Equal(t, uint64(20), result.SamplesBefore)
	assert.Equal(t, uint64(10), result.SamplesAfter)
	assert.Equal(t, uint64(10), result.SamplesDropped)

	stats, err := store.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(50), stats.Oldest)
	assert.Equal(t, int64(90), stats.Newest)
}

func TestCleanup_Idempotent(t *testing.T) {
	store := memory.New()
	seed(t, store)
	c := New(store, 45)

	_, err := c.Cleanup(context.Background())
	require.NoError(t, err)
	result, err := c.Cleanup(context.Background())
	require.NoError(t, err)

	assert.Zero(t, result.Horizon)
	assert.Zero(t, result.SamplesDropped)
	assert.Equal(t, uint64(10), result.SamplesAfter)
}

func TestCleanup_NothingToDrop(t *testing.T) {
	tests := []struct {
		name      string
		retention int64
		seeded    bool
	}{
		{"disabled", 0, true},
		{"window covers everything", 1000, true},
		{"empty store", 10, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := memory.New()
			if tt.seeded {
				seed(t, store)
			}
			result, err := New(store, tt.retention).Cleanup(context.Background())
			require.NoError(t, err)
			assert.Zero(t, result.Horizon)
			assert.Zero(t, result.SamplesDropped)
			assert.Equal(t, result.SamplesBefore, result.SamplesAfter)
		})
	}
}

func TestHorizon(t *testing.T) {
	c := New(memory.New(), 30)

	h, ok := c.Horizon(&storage.Stats{TotalSamples: 5, Oldest: 0, Newest: 100})
	assert.True(t, ok)
	assert.Equal(t, int64(70), h)

	_, ok = c.Horizon(&storage.Stats{TotalSamples: 5, Oldest: 70, Newest: 100})
	assert.False(t, ok, "oldest sample sits on the horizon")
}

// failingStore fails every Delete
type failingStore struct {
	*memory.Storage
}

func (failingStore) Delete(context.Context, int64) error {
	return errors.New("disk full")
}

func TestCleanup_RecordsFailures(t *testing.T) {
	store := memory.New()
	seed(t, store)
	c := New(failingStore{store}, 10)

	for i := 0; i <= maxConsecutiveErrors; i++ {
		_, err := c.Cleanup(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "disk full")
	}

	status := c.Monitor().Status(time.Hour)
	assert.False(t, status.Healthy)
	assert.Equal(t, maxConsecutiveErrors+1, status.ConsecutiveErrors)
	assert.Contains(t, status.LastError, "disk full")
	assert.Empty(t, status.LastSuccess)
	assert.NotEmpty(t, status.LastAttempt)
}

func TestMonitor(t *testing.T) {
	m := &Monitor{}
	assert.True(t, m.IsHealthy(time.Hour), "never ran")

	m.RecordFailure(errors.New("boom"))
	assert.True(t, m.IsHealthy(time.Hour))

	m.RecordSuccess()
	status := m.Status(time.Hour)
	assert.True(t, status.Healthy)
	assert.Zero(t, status.ConsecutiveErrors)
	assert.Empty(t, status.LastError)
	assert.NotEmpty(t, status.LastSuccess)

	m.lastSuccess = time.Now().Add(-2 * time.Hour)
	assert.False(t, m.IsHealthy(time.Hour), "stale success")
	assert.True(t, m.IsHealthy(0), "no age limit")
}
