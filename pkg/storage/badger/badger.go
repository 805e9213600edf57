package badger

import (
	"context"
	"encoding/binary"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/nicktill/tinyqp/pkg/config"
	"github.com/nicktill/tinyqp/pkg/qp"
	"github.com/nicktill/tinyqp/pkg/sample"
	"github.com/nicktill/tinyqp/pkg/storage"
)

// Key prefixes
const (
	prefixData   byte = 'd'
	prefixSeries byte = 'n'
)

const dataKeyLen = 17

// Storage implements storage.Store using BadgerDB (LSM tree)
type Storage struct {
	db *badger.DB
}

// Config holds BadgerDB configuration
type Config struct {
	// Path to store database files
	Path string

	// InMemory mode (for testing)
	InMemory bool

	// MaxMemoryMB limits BadgerDB memory usage in MB (0 = laptop-friendly defaults)
	MaxMemoryMB int64
}

// New creates a BadgerDB storage backend
func New(cfg Config) (*Storage, error) {
	opts := badger.DefaultOptions(cfg.Path)
	opts.Logger = nil

	if cfg.InMemory {
		// badger refuses directories in disk-less mode
		opts = opts.WithDir("").WithValueDir("").WithInMemory(true)
	}

	var memTableSize int64 = 16 * 1024 * 1024
	if cfg.MaxMemoryMB > 0 {
		memTableSize = cfg.MaxMemoryMB * 1024 * 1024 / 3 // ~33% for memtable
	}

	// BadgerDB has several unbounded memory consumers, cap them all
	blockCacheSize := memTableSize / 2
	indexCacheSize := memTableSize / 4

	opts = opts.
		WithCompression(options.Snappy).
		WithNumVersionsToKeep(1).
		WithMemTableSize(memTableSize).
		WithNumMemtables(3).
		WithBlockCacheSize(blockCacheSize).
		WithIndexCacheSize(indexCacheSize).
		WithMaxLevels(4).
		WithNumLevelZeroTables(2).
		WithNumLevelZeroTablesStall(4).
		WithValueThreshold(1024).
		WithNumCompactors(2).
		WithValueLogFileSize(64 << 20)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}

	return &Storage{db: db}, nil
}

// Write stores data samples. Enforces context cancellation.
func (s *Storage) Write(ctx context.Context, samples []sample.Sample) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() {
		wb := s.db.NewWriteBatch()
		defer wb.Cancel()

		for i, smp := range samples {
			// Check context periodically (every 100 samples)
			if i%100 == 0 {
				if err := ctx.Err(); err != nil {
					done <- err
					return
				}
			}
			if !smp.IsData() {
				continue
			}
			if err := wb.Set(dataKey(smp.ParamID, smp.Timestamp), encodeValue(smp.Payload.Value)); err != nil {
				done <- fmt.Errorf("failed to write sample: %w", err)
				return
			}
		}
		done <- wb.Flush()
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("write operation cancelled: %w", ctx.Err())
	}
}

// Series returns an iterator over one series in rng's direction. The
// iterator holds a read transaction until Close.
func (s *Storage) Series(ctx context.Context, id uint64, rng qp.QueryRange) (storage.Iterator, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	backward := rng.Direction() == qp.Backward
	txn := s.db.NewTransaction(false)

	opts := badger.DefaultIteratorOptions
	opts.PrefetchSize = 100
	opts.Reverse = backward
	opts.Prefix = seriesPrefix(id)

	it := &iterator{
		txn:      txn,
		it:       txn.NewIterator(opts),
		id:       id,
		lower:    rng.Lower(),
		upper:    rng.Upper(),
		backward: backward,
	}
	if backward {
		it.it.Seek(dataKey(id, it.upper))
	} else {
		it.it.Seek(dataKey(id, it.lower))
	}
	return it, nil
}

// Scan drives proc with the samples req selects
func (s *Storage) Scan(ctx context.Context, req storage.ScanRequest, proc qp.StreamProcessor) error {
	return storage.Scan(ctx, s, req, proc)
}

// Delete removes samples older than before
func (s *Storage) Delete(ctx context.Context, before int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var keys [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte{prefixData}

		it := txn.NewIterator(opts)
		defer it.Close()

		var iterCount int
		for it.Rewind(); it.Valid(); it.Next() {
			iterCount++
			if iterCount%config.ScanContextCheckInterval == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			_, ts := parseDataKey(it.Item().Key())
			if ts < before {
				keys = append(keys, it.Item().KeyCopy(nil))
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, key := range keys {
		if err := wb.Delete(key); err != nil {
			return fmt.Errorf("failed to delete sample: %w", err)
		}
	}
	return wb.Flush()
}

// SaveSeries persists a series name keyed by its hash
func (s *Storage) SaveSeries(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key := make([]byte, 9)
	key[0] = prefixSeries
	binary.BigEndian.PutUint64(key[1:], xxhash.Sum64String(name))
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, []byte(name))
	})
}

// LoadSeries returns every persisted series name
func (s *Storage) LoadSeries(ctx context.Context) ([]string, error) {
	var names []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte{prefixSeries}

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := it.Item().Value(func(val []byte) error {
				names = append(names, string(val))
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	return names, err
}

// Close shuts down BadgerDB cleanly
func (s *Storage) Close() error {
	return s.db.Close()
}

// RunGC runs BadgerDB's value log garbage collection.
// Returns an error if no rewrite happened; callers treat that as "nothing to do".
func (s *Storage) RunGC(discardRatio float64) error {
	return s.db.RunValueLogGC(discardRatio)
}

// Stats returns storage statistics
func (s *Storage) Stats(ctx context.Context) (*storage.Stats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	stats := &storage.Stats{}
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte{prefixData}

		it := txn.NewIterator(opts)
		defer it.Close()

		var lastID uint64
		first := true
		for it.Rewind(); it.Valid(); it.Next() {
			if stats.TotalSamples%config.ScanContextCheckInterval == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			id, ts := parseDataKey(it.Item().Key())
			stats.TotalSamples++
			if first || id != lastID {
				stats.TotalSeries++
				lastID = id
			}
			if first || ts < stats.Oldest {
				stats.Oldest = ts
			}
			if first || ts > stats.Newest {
				stats.Newest = ts
			}
			first = false
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	lsmSize, vlogSize := s.db.Size()
	stats.SizeBytes = uint64(lsmSize + vlogSize)

	if elapsed := time.Since(start); elapsed > 5*time.Second {
		log.Printf("Slow stats scan completed in %v (%d samples)", elapsed, stats.TotalSamples)
	}
	return stats, nil
}

type iterator struct {
	txn      *badger.Txn
	it       *badger.Iterator
	id       uint64
	lower    int64
	upper    int64
	backward bool
	err      error
	started  bool
}

func (it *iterator) Next() (sample.Sample, bool) {
	if it.started {
		it.it.Next()
	}
	it.started = true

	if !it.it.Valid() {
		return sample.Sample{}, false
	}
	item := it.it.Item()
	_, ts := parseDataKey(item.Key())
	if ts < it.lower || ts > it.upper {
		return sample.Sample{}, false
	}

	var value float64
	if err := item.Value(func(val []byte) error {
		v, err := decodeValue(val)
		value = v
		return err
	}); err != nil {
		it.err = err
		return sample.Sample{}, false
	}
	return sample.New(ts, it.id, value), true
}

func (it *iterator) Err() error {
	return it.err
}

func (it *iterator) Close() {
	it.it.Close()
	it.txn.Discard()
}

// dataKey creates a sortable key: prefix + series id + timestamp
// Format: ['d'][series id (8 bytes)][timestamp, sign bit flipped (8 bytes)]
func dataKey(id uint64, ts int64) []byte {
	key := make([]byte, dataKeyLen)
	key[0] = prefixData
	binary.BigEndian.PutUint64(key[1:9], id)
	binary.BigEndian.PutUint64(key[9:17], uint64(ts)^(1<<63))
	return key
}

func seriesPrefix(id uint64) []byte {
	prefix := make([]byte, 9)
	prefix[0] = prefixData
	binary.BigEndian.PutUint64(prefix[1:], id)
	return prefix
}

// parseDataKey extracts series id and timestamp from a data key
func parseDataKey(key []byte) (uint64, int64) {
	id := binary.BigEndian.Uint64(key[1:9])
	ts := int64(binary.BigEndian.Uint64(key[9:17]) ^ (1 << 63))
	return id, ts
}

func encodeValue(v float64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, math.Float64bits(v))
	return buf
}

func decodeValue(buf []byte) (float64, error) {
	if len(buf) != 8 {
		return 0, fmt.Errorf("corrupt sample value: %d bytes", len(buf))
	}
	return math.Float64frombits(binary.BigEndian.Uint64(buf)), nil
}
