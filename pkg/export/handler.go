package export

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/nicktill/tinyqp/pkg/config"
	"github.com/nicktill/tinyqp/pkg/httpx"
	"github.com/nicktill/tinyqp/pkg/query"
)

// Handler handles export/import HTTP endpoints
type Handler struct {
	exporter *Exporter
	importer *Importer
}

// NewHandler creates a new export/import handler
func NewHandler(executor *query.Executor, writer PointWriter) *Handler {
	return &Handler{
		exporter: NewExporter(executor),
		importer: NewImporter(writer),
	}
}

// HandleExport handles POST /v1/export?format=json|csv. The body is a scan
// query; its rows are streamed back as an attachment.
func (h *Handler) HandleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpx.RespondErrorString(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	format, err := ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		httpx.RespondError(w, http.StatusBadRequest, err)
		return
	}
	text, err := io.ReadAll(http.MaxBytesReader(w, r.Body, config.QueryMaxBodySize))
	if err != nil {
		httpx.RespondError(w, http.StatusRequestEntityTooLarge, fmt.Errorf("read query: %w", err))
		return
	}

	// Headers must be set before the first row is written
	timestamp := time.Now().Format("20060102-150405")
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=tinyqp-export-%s.%s", timestamp, format))

	lw := &lazyWriter{w: w}
	result, err := h.exporter.Export(r.Context(), lw, text, format)
	if err != nil {
		log.Printf("❌ Export failed: %v", err)
		if !lw.started {
			w.Header().Del("Content-Disposition")
			httpx.RespondQueryError(w, "", err)
		}
		return
	}

	log.Printf("✅ Exported %d points (%s) for query %s", result.PointsExported, format, result.QueryID)
}

// HandleImport handles POST /v1/import?format=json|csv
func (h *Handler) HandleImport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpx.RespondErrorString(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	format, err := ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		httpx.RespondError(w, http.StatusBadRequest, err)
		return
	}

	result, err := h.importer.Import(r.Context(), r.Body, format)
	if err != nil {
		log.Printf("❌ Import failed: %v", err)
		httpx.RespondError(w, http.StatusBadRequest, err)
		return
	}

	log.Printf("✅ Imported %d points in %d batches", result.PointsImported, result.BatchesWritten)
	httpx.RespondJSON(w, http.StatusOK, result)
}

// lazyWriter tracks whether anything reached the response, so an error
// before the first row can still become a JSON error response
type lazyWriter struct {
	w       http.ResponseWriter
	started bool
}

func (l *lazyWriter) Write(p []byte) (int, error) {
	if !l.started {
		l.started = true
		l.w.WriteHeader(http.StatusOK)
	}
	return l.w.Write(p)
}
