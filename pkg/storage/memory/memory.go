package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/nicktill/tinyqp/pkg/qp"
	"github.com/nicktill/tinyqp/pkg/sample"
	"github.com/nicktill/tinyqp/pkg/storage"
)

type point struct {
	ts    int64
	value float64
}

// Storage stores samples in memory. Data is lost on restart.
// Useful for testing and development.
type Storage struct {
	series map[uint64][]point
	names  []string
	mu     sync.RWMutex
}

// New creates an in-memory storage backend
func New() *Storage {
	return &Storage{
		series: make(map[uint64][]point),
	}
}

// Write stores data samples, keeping every series sorted by timestamp.
// A sample with an existing timestamp replaces the old value.
func (s *Storage) Write(ctx context.Context, samples []sample.Sample) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, smp := range samples {
		if !smp.IsData() {
			continue
		}
		pts := s.series[smp.ParamID]
		p := point{ts: smp.Timestamp, value: smp.Payload.Value}

		// Fast path: appending in order
		if n := len(pts); n == 0 || pts[n-1].ts < p.ts {
			s.series[smp.ParamID] = append(pts, p)
			continue
		}

		i := sort.Search(len(pts), func(i int) bool { return pts[i].ts >= p.ts })
		if i < len(pts) && pts[i].ts == p.ts {
			pts[i] = p
			continue
		}
		pts = append(pts, point{})
		copy(pts[i+1:], pts[i:])
		pts[i] = p
		s.series[smp.ParamID] = pts
	}
	return nil
}

// Series returns an iterator over a snapshot of the series
func (s *Storage) Series(ctx context.Context, id uint64, rng qp.QueryRange) (storage.Iterator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pts := s.series[id]
	lo := sort.Search(len(pts), func(i int) bool { return pts[i].ts >= rng.Lower() })
	hi := sort.Search(len(pts), func(i int) bool { return pts[i].ts > rng.Upper() })
	if lo > hi {
		lo = hi
	}

	window := make([]point, hi-lo)
	copy(window, pts[lo:hi])
	return &iterator{id: id, points: window, backward: rng.Direction() == qp.Backward}, nil
}

// Scan drives proc with the samples req selects
func (s *Storage) Scan(ctx context.Context, req storage.ScanRequest, proc qp.StreamProcessor) error {
	return storage.Scan(ctx, s, req, proc)
}

// Delete removes samples older than before
func (s *Storage) Delete(ctx context.Context, before int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, pts := range s.series {
		i := sort.Search(len(pts), func(i int) bool { return pts[i].ts >= before })
		if i == len(pts) {
			delete(s.series, id)
			continue
		}
		s.series[id] = append([]point(nil), pts[i:]...)
	}
	return nil
}

// SaveSeries remembers a series name
func (s *Storage) SaveSeries(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.names {
		if n == name {
			return nil
		}
	}
	s.names = append(s.names, name)
	return nil
}

// LoadSeries returns remembered series names
func (s *Storage) LoadSeries(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.names...), nil
}

// Close is a no-op for memory storage
func (s *Storage) Close() error {
	return nil
}

// Stats returns storage statistics
func (s *Storage) Stats(ctx context.Context) (*storage.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &storage.Stats{}
	first := true
	for _, pts := range s.series {
		if len(pts) == 0 {
			continue
		}
		stats.TotalSeries++
		stats.TotalSamples += uint64(len(pts))
		if first || pts[0].ts < stats.Oldest {
			stats.Oldest = pts[0].ts
		}
		if first || pts[len(pts)-1].ts > stats.Newest {
			stats.Newest = pts[len(pts)-1].ts
		}
		first = false
	}

	// Rough size estimate (16 bytes per point)
	stats.SizeBytes = stats.TotalSamples * 16
	return stats, nil
}

type iterator struct {
	id       uint64
	points   []point
	backward bool
	pos      int
}

func (it *iterator) Next() (sample.Sample, bool) {
	if it.pos >= len(it.points) {
		return sample.Sample{}, false
	}
	i := it.pos
	if it.backward {
		i = len(it.points) - 1 - it.pos
	}
	it.pos++
	p := it.points[i]
	return sample.New(p.ts, it.id, p.value), true
}

func (it *iterator) Err() error { return nil }

func (it *iterator) Close() {}
