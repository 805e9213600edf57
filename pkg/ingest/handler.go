package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"sync"

	"github.com/nicktill/tinyqp/pkg/config"
	"github.com/nicktill/tinyqp/pkg/httpx"
	"github.com/nicktill/tinyqp/pkg/sample"
	"github.com/nicktill/tinyqp/pkg/series"
	"github.com/nicktill/tinyqp/pkg/storage"
)

// Handler handles sample ingestion
type Handler struct {
	storage     storage.Store
	matcher     *series.Matcher
	cardinality *CardinalityTracker

	// serializes registration of new series
	mu sync.Mutex
}

// NewHandler creates a new ingest handler. Series already in matcher count
// towards the cardinality limits.
func NewHandler(store storage.Store, matcher *series.Matcher) *Handler {
	return &Handler{
		storage:     store,
		matcher:     matcher,
		cardinality: NewCardinalityTracker(matcher),
	}
}

// Point is one sample in wire form
type Point struct {
	Series    string  `json:"series"`
	Timestamp int64   `json:"timestamp"`
	Value     float64 `json:"value"`
}

// IngestResponse represents the response payload
type IngestResponse struct {
	Status  string `json:"status"`
	Count   int    `json:"count"`
	Series  int    `json:"new_series,omitempty"`
	Message string `json:"message,omitempty"`
}

// HandleWrite handles POST /v1/write. The body is a JSON array of points.
func (h *Handler) HandleWrite(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpx.RespondErrorString(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var points []Point
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, config.IngestMaxBodySize)).Decode(&points); err != nil {
		httpx.RespondError(w, http.StatusBadRequest, fmt.Errorf("invalid JSON: %w", err))
		return
	}
	if len(points) > config.IngestMaxBatchSize {
		httpx.RespondErrorString(w, http.StatusBadRequest,
			fmt.Sprintf("too many points in request (max %d)", config.IngestMaxBatchSize))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), config.IngestTimeout)
	defer cancel()

	created, err := h.Write(ctx, points)
	if err != nil {
		code := http.StatusInternalServerError
		switch {
		case errors.Is(err, ErrCardinalityLimit), errors.Is(err, ErrMetricCardinalityLimit):
			code = http.StatusTooManyRequests
		case errors.Is(err, errInvalidPoint):
			code = http.StatusBadRequest
		case errors.Is(err, context.DeadlineExceeded):
			code = http.StatusGatewayTimeout
		}
		httpx.RespondError(w, code, err)
		return
	}

	httpx.RespondJSON(w, http.StatusOK, IngestResponse{
		Status: "success",
		Count:  len(points),
		Series: created,
	})
}

var errInvalidPoint = errors.New("invalid point")

// Write validates points, registers unseen series and stores the samples.
// It returns how many series were new. Nothing is written if any point is
// invalid.
func (h *Handler) Write(ctx context.Context, points []Point) (int, error) {
	names := make([]series.Name, len(points))
	for i, p := range points {
		n, err := ValidatePoint(p)
		if err != nil {
			return 0, fmt.Errorf("%w %d: %v", errInvalidPoint, i, err)
		}
		names[i] = n
	}

	samples := make([]sample.Sample, len(points))
	created := 0
	for i, p := range points {
		id, isNew, err := h.register(ctx, names[i])
		if err != nil {
			return created, err
		}
		if isNew {
			created++
		}
		samples[i] = sample.New(p.Timestamp, id, p.Value)
	}

	if err := h.storage.Write(ctx, samples); err != nil {
		log.Printf("Failed to write %d samples: %v", len(samples), err)
		return created, fmt.Errorf("failed to write samples: %w", err)
	}
	return created, nil
}

// register returns the id of n, adding it to the matcher and persisting
// its name when it was not known yet
func (h *Handler) register(ctx context.Context, n series.Name) (uint64, bool, error) {
	canon := n.String()
	if id, ok := h.matcher.Lookup(canon); ok {
		return id, false, nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if id, ok := h.matcher.Lookup(canon); ok {
		return id, false, nil
	}
	if err := h.cardinality.Check(n); err != nil {
		return 0, false, err
	}
	if err := h.storage.SaveSeries(ctx, canon); err != nil {
		return 0, false, fmt.Errorf("failed to save series: %w", err)
	}
	id, err := h.matcher.Add(canon)
	if err != nil {
		return 0, false, fmt.Errorf("%w: %v", errInvalidPoint, err)
	}
	h.cardinality.Record(n)
	return id, true, nil
}

// HandleCardinality handles GET /v1/cardinality?top=N
func (h *Handler) HandleCardinality(w http.ResponseWriter, r *http.Request) {
	top := 10
	if s := r.URL.Query().Get("top"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			httpx.RespondErrorString(w, http.StatusBadRequest, fmt.Sprintf("invalid top %q", s))
			return
		}
		top = n
	}
	httpx.RespondJSON(w, http.StatusOK, h.cardinality.Stats(top))
}

// RestoreSeries loads persisted series names into matcher. It runs once at
// start-up so ids written before a restart resolve again.
func RestoreSeries(ctx context.Context, store storage.Store, matcher *series.Matcher) (int, error) {
	names, err := store.LoadSeries(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load series: %w", err)
	}
	for _, name := range names {
		if _, err := matcher.Add(name); err != nil {
			log.Printf("Skipping unparsable series %q: %v", name, err)
		}
	}
	return matcher.Len(), nil
}
