package storage

import (
	"context"

	"github.com/nicktill/tinyqp/pkg/qp"
	"github.com/nicktill/tinyqp/pkg/sample"
)

// Store defines the interface for sample storage backends.
// Implementations: memory (testing), badger (production)
type Store interface {
	Source

	// Write stores data samples
	Write(ctx context.Context, samples []sample.Sample) error

	// Scan produces the samples a query needs and drives proc with them
	Scan(ctx context.Context, req ScanRequest, proc qp.StreamProcessor) error

	// Delete removes samples older than the given timestamp
	Delete(ctx context.Context, before int64) error

	// SaveSeries persists a series name so the matcher survives restarts
	SaveSeries(ctx context.Context, name string) error

	// LoadSeries returns every persisted series name
	LoadSeries(ctx context.Context) ([]string, error)

	// Close cleanly shuts down the storage
	Close() error

	// Stats returns storage statistics
	Stats(ctx context.Context) (*Stats, error)
}

// Source reads the samples of a single series
type Source interface {
	// Series returns an iterator over the samples of id inside rng, in
	// rng's scan direction
	Series(ctx context.Context, id uint64, rng qp.QueryRange) (Iterator, error)
}

// Iterator walks samples of one series
type Iterator interface {
	Next() (sample.Sample, bool)
	Err() error
	Close()
}

// ScanRequest specifies what the scan produces
type ScanRequest struct {
	IDs     []uint64
	Range   qp.QueryRange
	OrderBy qp.OrderBy
	Filter  qp.Filter

	// FlushEvery sends an empty flush sample after this many data samples
	// (0 = use default)
	FlushEvery int
}

// NewScanRequest derives the scan request of a scan processor
func NewScanRequest(p *qp.ScanProcessor) ScanRequest {
	return ScanRequest{
		IDs:     p.IDs(),
		Range:   p.Range(),
		OrderBy: p.OrderBy(),
		Filter:  p.Filter(),
	}
}

// Stats provides storage health and usage info
type Stats struct {
	// Total samples stored
	TotalSamples uint64

	// Series that have at least one sample
	TotalSeries uint64

	// Storage size in bytes
	SizeBytes uint64

	// Oldest sample timestamp
	Oldest int64

	// Newest sample timestamp
	Newest int64
}
