package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/nicktill/tinyqp/pkg/ingest"
	"github.com/nicktill/tinyqp/pkg/qp"
	"github.com/nicktill/tinyqp/pkg/query"
	"github.com/nicktill/tinyqp/pkg/sample"
	"github.com/nicktill/tinyqp/pkg/series"
	"github.com/nicktill/tinyqp/pkg/status"
)

// Format of an export stream
type Format string

const (
	// JSON writes one ingest.Point object per line
	JSON Format = "json"
	// CSV writes a series,timestamp,value header followed by one row per point
	CSV Format = "csv"
)

// ParseFormat parses a format name, empty means JSON
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", JSON:
		return JSON, nil
	case CSV:
		return CSV, nil
	default:
		return "", fmt.Errorf("invalid format %q, must be 'json' or 'csv'", s)
	}
}

// ContentType returns the MIME type of f
func (f Format) ContentType() string {
	if f == CSV {
		return "text/csv"
	}
	return "application/x-ndjson"
}

var csvHeader = []string{"series", "timestamp", "value"}

// ErrNotScan is returned when an export is asked for a metadata query
var ErrNotScan = fmt.Errorf("export needs a scan query: %w", status.BadArg)

// Exporter writes query results in a format the Importer reads back
type Exporter struct {
	executor *query.Executor
}

// NewExporter creates a new exporter
func NewExporter(executor *query.Executor) *Exporter {
	return &Exporter{executor: executor}
}

// ExportResult contains stats about the export
type ExportResult struct {
	QueryID        string    `json:"query_id"`
	PointsExported int       `json:"points_exported"`
	Format         Format    `json:"format"`
	ExportedAt     time.Time `json:"exported_at"`
}

// Export runs the query text and streams every output row to w
func (e *Exporter) Export(ctx context.Context, w io.Writer, text []byte, format Format) (*ExportResult, error) {
	out := newSink(w, format)

	prepared, err := e.executor.Prepare(text, out)
	if err != nil {
		return nil, err
	}
	if prepared.Kind != query.KindScan {
		return nil, ErrNotScan
	}
	out.names = prepared.Names

	if _, err := prepared.Run(ctx); err != nil {
		return nil, err
	}
	if out.err != nil {
		return nil, fmt.Errorf("failed to write export: %w", out.err)
	}
	if err := out.flush(); err != nil {
		return nil, fmt.Errorf("failed to write export: %w", err)
	}

	return &ExportResult{
		QueryID:        prepared.ID,
		PointsExported: out.count,
		Format:         format,
		ExportedAt:     time.Now(),
	}, nil
}

// sink is a terminal node encoding rows as they arrive
type sink struct {
	format Format
	json   *json.Encoder
	csv    *csv.Writer
	names  series.Resolver

	count  int
	err    error
	header bool
}

func newSink(w io.Writer, format Format) *sink {
	s := &sink{format: format}
	if format == CSV {
		s.csv = csv.NewWriter(w)
	} else {
		s.json = json.NewEncoder(w)
	}
	return s
}

func (s *sink) Put(smp sample.Sample) bool {
	if !smp.IsData() {
		return true
	}

	name, ok := s.names.Name(smp.ParamID)
	if !ok {
		s.err = fmt.Errorf("no series name for id %d", smp.ParamID)
		return false
	}

	if s.format == CSV {
		if !s.header {
			s.header = true
			if s.err = s.csv.Write(csvHeader); s.err != nil {
				return false
			}
		}
		s.err = s.csv.Write([]string{
			name,
			strconv.FormatInt(smp.Timestamp, 10),
			strconv.FormatFloat(smp.Payload.Value, 'g', -1, 64),
		})
	} else {
		s.err = s.json.Encode(ingest.Point{Series: name, Timestamp: smp.Timestamp, Value: smp.Payload.Value})
	}
	if s.err != nil {
		return false
	}
	s.count++
	return true
}

func (s *sink) Complete() {}

func (s *sink) SetError(status.Status) {}

func (s *sink) Requirements() qp.Requirements {
	return qp.RequireTerminal | qp.RequireGroupBy
}

func (s *sink) flush() error {
	if s.csv == nil {
		return nil
	}
	if !s.header {
		s.header = true
		if err := s.csv.Write(csvHeader); err != nil {
			return err
		}
	}
	s.csv.Flush()
	return s.csv.Error()
}
