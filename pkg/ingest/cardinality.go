package ingest

import (
	"sort"
	"sync"

	"github.com/nicktill/tinyqp/pkg/series"
)

// CardinalityTracker counts series per metric to enforce cardinality limits.
// Series are never forgotten since the matcher keeps every id for the
// lifetime of the process.
type CardinalityTracker struct {
	mu sync.RWMutex

	// metric -> number of series
	seriesCount map[string]int
	totalSeries int
}

// NewCardinalityTracker creates a tracker seeded with the series already
// known to matcher
func NewCardinalityTracker(matcher *series.Matcher) *CardinalityTracker {
	c := &CardinalityTracker{seriesCount: make(map[string]int)}
	if matcher == nil {
		return c
	}
	for _, id := range matcher.All() {
		if n, ok := matcher.Tags(id); ok {
			c.Record(n)
		}
	}
	return c
}

// Check validates that one more series of n's metric stays within limits.
// It must only be called for series the matcher does not know yet.
func (c *CardinalityTracker) Check(n series.Name) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.totalSeries >= MaxUniqueSeries {
		return ErrCardinalityLimit
	}
	if c.seriesCount[n.Metric] >= MaxSeriesPerMetric {
		return ErrMetricCardinalityLimit
	}
	return nil
}

// Record counts a new series. Call it once per series, after Check passed
// and the series was registered.
func (c *CardinalityTracker) Record(n series.Name) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seriesCount[n.Metric]++
	c.totalSeries++
}

// MetricCardinality is the series count of one metric
type MetricCardinality struct {
	Metric string `json:"metric"`
	Series int    `json:"series"`
}

// CardinalityStats provides cardinality usage information
type CardinalityStats struct {
	TotalSeries    int                 `json:"total_series"`
	UniqueMetrics  int                 `json:"unique_metrics"`
	TopMetrics     []MetricCardinality `json:"top_metrics"`
	SeriesLimit    int                 `json:"series_limit"`
	PerMetricLimit int                 `json:"per_metric_limit"`
	UtilizationPct float64             `json:"utilization_percent"`
}

// Stats returns current cardinality statistics with the top metrics by
// series count, highest first
func (c *CardinalityTracker) Stats(top int) CardinalityStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	metrics := make([]MetricCardinality, 0, len(c.seriesCount))
	for name, count := range c.seriesCount {
		metrics = append(metrics, MetricCardinality{Metric: name, Series: count})
	}
	sort.Slice(metrics, func(i, j int) bool {
		if metrics[i].Series != metrics[j].Series {
			return metrics[i].Series > metrics[j].Series
		}
		return metrics[i].Metric < metrics[j].Metric
	})
	if top > 0 && len(metrics) > top {
		metrics = metrics[:top]
	}

	return CardinalityStats{
		TotalSeries:    c.totalSeries,
		UniqueMetrics:  len(c.seriesCount),
		TopMetrics:     metrics,
		SeriesLimit:    MaxUniqueSeries,
		PerMetricLimit: MaxSeriesPerMetric,
		UtilizationPct: float64(c.totalSeries) / float64(MaxUniqueSeries) * 100,
	}
}
