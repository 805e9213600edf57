package query

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nicktill/tinyqp/pkg/status"
)

// Metrics holds Prometheus metrics for query execution.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	queriesTotal    *prometheus.CounterVec
	queryDuration   *prometheus.HistogramVec
	samplesReceived prometheus.Counter
	samplesSkipped  prometheus.Counter
	rejectedTotal   prometheus.Counter
	activeQueries   prometheus.Gauge
}

// NewMetrics creates query metrics and registers them with reg
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		queriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tinyqp",
				Subsystem: "query",
				Name:      "total",
				Help:      "Total number of executed queries by kind and final status",
			},
			[]string{"kind", "status"},
		),
		queryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "tinyqp",
				Subsystem: "query",
				Name:      "duration_seconds",
				Help:      "Query execution duration",
				Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 10),
			},
			[]string{"kind"},
		),
		samplesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tinyqp",
			Subsystem: "query",
			Name:      "samples_received_total",
			Help:      "Data samples handed to stream processors",
		}),
		samplesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tinyqp",
			Subsystem: "query",
			Name:      "samples_skipped_total",
			Help:      "Data samples dropped for falling outside the query range",
		}),
		rejectedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tinyqp",
			Subsystem: "query",
			Name:      "rejected_total",
			Help:      "Queries rejected before execution",
		}),
		activeQueries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "tinyqp",
			Subsystem: "query",
			Name:      "active",
			Help:      "Queries currently executing",
		}),
	}

	for _, c := range []prometheus.Collector{
		m.queriesTotal,
		m.queryDuration,
		m.samplesReceived,
		m.samplesSkipped,
		m.rejectedTotal,
		m.activeQueries,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) begin() {
	if m == nil {
		return
	}
	m.activeQueries.Inc()
}

func (m *Metrics) rejected() {
	if m == nil {
		return
	}
	m.rejectedTotal.Inc()
}

func (m *Metrics) finish(kind Kind, st status.Status, received, skipped int64, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.activeQueries.Dec()
	m.queriesTotal.WithLabelValues(kind.String(), st.String()).Inc()
	m.queryDuration.WithLabelValues(kind.String()).Observe(elapsed.Seconds())
	m.samplesReceived.Add(float64(received))
	m.samplesSkipped.Add(float64(skipped))
}
