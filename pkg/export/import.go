package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/nicktill/tinyqp/pkg/ingest"
)

const (
	// MaxImportBatchSize is the maximum number of points to write at once
	MaxImportBatchSize = 5000
)

// PointWriter stores validated points. ingest.Handler implements it.
type PointWriter interface {
	Write(ctx context.Context, points []ingest.Point) (int, error)
}

// Importer reads exports back into storage
type Importer struct {
	writer    PointWriter
	batchSize int
}

// NewImporter creates a new importer
func NewImporter(writer PointWriter) *Importer {
	return &Importer{writer: writer, batchSize: MaxImportBatchSize}
}

// ImportResult contains stats about the import operation
type ImportResult struct {
	PointsImported int       `json:"points_imported"`
	SeriesCreated  int       `json:"series_created"`
	BatchesWritten int       `json:"batches_written"`
	Oldest         int64     `json:"oldest,omitempty"`
	Newest         int64     `json:"newest,omitempty"`
	ImportedAt     time.Time `json:"imported_at"`
}

// Import reads points in format from r and writes them in batches. Batches
// written before a failure stay written.
func (im *Importer) Import(ctx context.Context, r io.Reader, format Format) (*ImportResult, error) {
	next, err := im.reader(r, format)
	if err != nil {
		return nil, err
	}

	result := &ImportResult{}
	batch := make([]ingest.Point, 0, im.batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		created, err := im.writer.Write(ctx, batch)
		if err != nil {
			return fmt.Errorf("failed to write batch %d: %w", result.BatchesWritten, err)
		}
		result.SeriesCreated += created
		result.BatchesWritten++
		batch = batch[:0]
		return nil
	}

	for line := 1; ; line++ {
		p, err := next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return result, fmt.Errorf("point %d: %w", line, err)
		}

		if result.PointsImported == 0 || p.Timestamp < result.Oldest {
			result.Oldest = p.Timestamp
		}
		if result.PointsImported == 0 || p.Timestamp > result.Newest {
			result.Newest = p.Timestamp
		}
		result.PointsImported++

		batch = append(batch, p)
		if len(batch) >= im.batchSize {
			if err := flush(); err != nil {
				return result, err
			}
		}
	}
	if err := flush(); err != nil {
		return result, err
	}

	result.ImportedAt = time.Now()
	return result, nil
}

// reader returns a function yielding one point per call and io.EOF at the end
func (im *Importer) reader(r io.Reader, format Format) (func() (ingest.Point, error), error) {
	if format != CSV {
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		return func() (ingest.Point, error) {
			var p ingest.Point
			err := dec.Decode(&p)
			return p, err
		}, nil
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(csvHeader)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	for i, h := range csvHeader {
		if header[i] != h {
			return nil, fmt.Errorf("unexpected CSV header %v, want %v", header, csvHeader)
		}
	}

	return func() (ingest.Point, error) {
		rec, err := cr.Read()
		if err != nil {
			return ingest.Point{}, err
		}
		ts, err := strconv.ParseInt(rec[1], 10, 64)
		if err != nil {
			return ingest.Point{}, fmt.Errorf("invalid timestamp %q", rec[1])
		}
		v, err := strconv.ParseFloat(rec[2], 64)
		if err != nil {
			return ingest.Point{}, fmt.Errorf("invalid value %q", rec[2])
		}
		return ingest.Point{Series: rec[0], Timestamp: ts, Value: v}, nil
	}, nil
}
