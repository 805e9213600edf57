package ingest

import (
	"fmt"
	"math"

	"github.com/nicktill/tinyqp/pkg/series"
)

// Cardinality and validation limits
const (
	// Per-series limits
	MaxTagsPerSeries  = 20   // Maximum tags per series
	MaxTagKeyLength   = 256  // Maximum tag key length
	MaxTagValueLength = 1024 // Maximum tag value length
	MaxMetricLength   = 256  // Maximum metric name length

	// Global limits
	MaxUniqueSeries    = 100000 // Maximum unique series known to the matcher
	MaxSeriesPerMetric = 10000  // Maximum series sharing one metric name
)

var (
	// ErrTooManyTags is returned when a series has too many tags
	ErrTooManyTags = fmt.Errorf("too many tags (max %d)", MaxTagsPerSeries)

	// ErrTagKeyTooLong is returned when a tag key is too long
	ErrTagKeyTooLong = fmt.Errorf("tag key too long (max %d chars)", MaxTagKeyLength)

	// ErrTagValueTooLong is returned when a tag value is too long
	ErrTagValueTooLong = fmt.Errorf("tag value too long (max %d chars)", MaxTagValueLength)

	// ErrMetricTooLong is returned when a metric name is too long
	ErrMetricTooLong = fmt.Errorf("metric name too long (max %d chars)", MaxMetricLength)

	// ErrInvalidValue is returned for NaN and infinite values
	ErrInvalidValue = fmt.Errorf("value must be finite")

	// ErrCardinalityLimit is returned when the total series limit is exceeded
	ErrCardinalityLimit = fmt.Errorf("cardinality limit exceeded (max %d unique series)", MaxUniqueSeries)

	// ErrMetricCardinalityLimit is returned when one metric has too many series
	ErrMetricCardinalityLimit = fmt.Errorf("metric cardinality limit exceeded (max %d series per metric)", MaxSeriesPerMetric)
)

// ValidatePoint validates a point and returns its parsed series name
func ValidatePoint(p Point) (series.Name, error) {
	n, err := series.Parse(p.Series)
	if err != nil {
		return series.Name{}, err
	}
	if len(n.Metric) > MaxMetricLength {
		return series.Name{}, fmt.Errorf("%w: %q has %d chars", ErrMetricTooLong, n.Metric, len(n.Metric))
	}
	if len(n.Tags) > MaxTagsPerSeries {
		return series.Name{}, fmt.Errorf("%w: series %q has %d tags", ErrTooManyTags, p.Series, len(n.Tags))
	}
	for k, v := range n.Tags {
		if len(k) > MaxTagKeyLength {
			return series.Name{}, fmt.Errorf("%w: key %q in series %q", ErrTagKeyTooLong, k, n.Metric)
		}
		if len(v) > MaxTagValueLength {
			return series.Name{}, fmt.Errorf("%w: value for key %q in series %q", ErrTagValueTooLong, k, n.Metric)
		}
	}
	if math.IsNaN(p.Value) || math.IsInf(p.Value, 0) {
		return series.Name{}, fmt.Errorf("%w: series %q at %d", ErrInvalidValue, p.Series, p.Timestamp)
	}
	return n, nil
}
