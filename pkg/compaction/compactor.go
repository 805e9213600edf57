package compaction

import (
	"context"
	"fmt"
	"time"

	"github.com/nicktill/tinyqp/pkg/storage"
)

// Compactor drops samples that fell out of the retention window
type Compactor struct {
	store     storage.Store
	retention int64
	monitor   *Monitor
}

// New creates a compactor keeping retention timestamp units behind the
// newest stored sample
func New(store storage.Store, retention int64) *Compactor {
	return &Compactor{
		store:     store,
		retention: retention,
		monitor:   &Monitor{},
	}
}

// Monitor returns the health tracker updated by Cleanup
func (c *Compactor) Monitor() *Monitor {
	return c.monitor
}

// Result describes one cleanup run
type Result struct {
	// Horizon is the timestamp samples were dropped before, 0 when nothing
	// was old enough
	Horizon        int64         `json:"horizon"`
	SamplesBefore  uint64        `json:"samples_before"`
	SamplesAfter   uint64        `json:"samples_after"`
	SamplesDropped uint64        `json:"samples_dropped"`
	Duration       time.Duration `json:"duration"`
}

// Horizon returns the timestamp before which samples are dropped. ok is
// false while the stored range still fits in the retention window.
func (c *Compactor) Horizon(stats *storage.Stats) (horizon int64, ok bool) {
	if c.retention <= 0 || stats.TotalSamples == 0 {
		return 0, false
	}
	horizon = stats.Newest - c.retention
	if horizon <= stats.Oldest {
		return 0, false
	}
	return horizon, true
}

// Cleanup deletes every sample older than the retention horizon.
// It is idempotent; running it twice drops nothing the second time.
func (c *Compactor) Cleanup(ctx context.Context) (*Result, error) {
	start := time.Now()
	result, err := c.cleanup(ctx)
	if err != nil {
		c.monitor.RecordFailure(err)
		return nil, err
	}
	result.Duration = time.Since(start)
	c.monitor.RecordSuccess()
	return result, nil
}

func (c *Compactor) cleanup(ctx context.Context) (*Result, error) {
	before, err := c.store.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read storage stats: %w", err)
	}

	result := &Result{SamplesBefore: before.TotalSamples, SamplesAfter: before.TotalSamples}
	horizon, ok := c.Horizon(before)
	if !ok {
		return result, nil
	}

	if err := c.store.Delete(ctx, horizon); err != nil {
		return nil, fmt.Errorf("failed to delete samples before %d: %w", horizon, err)
	}

	after, err := c.store.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read storage stats: %w", err)
	}

	result.Horizon = horizon
	result.SamplesAfter = after.TotalSamples
	if after.TotalSamples < before.TotalSamples {
		result.SamplesDropped = before.TotalSamples - after.TotalSamples
	}
	return result, nil
}
