package query

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nicktill/tinyqp/pkg/config"
	"github.com/nicktill/tinyqp/pkg/httpx"
	"github.com/nicktill/tinyqp/pkg/qp"
	"github.com/nicktill/tinyqp/pkg/qp/terminal"
	"github.com/nicktill/tinyqp/pkg/sample"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		// No Origin header = direct connection (non-browser clients)
		return origin == "" || origin == "http://"+r.Host || origin == "https://"+r.Host
	},
	ReadBufferSize:  config.WSReadBufferSize,
	WriteBufferSize: config.WSWriteBufferSize,
}

// Handler serves query endpoints
type Handler struct {
	executor *Executor
	maxRows  int
}

// NewHandler creates a new query handler
func NewHandler(executor *Executor) *Handler {
	return &Handler{
		executor: executor,
		maxRows:  config.QueryMaxRows,
	}
}

// WithMaxRows caps the rows returned by /v1/query (0 = unlimited)
func (h *Handler) WithMaxRows(n int) *Handler {
	h.maxRows = n
	return h
}

// Row is one output sample in wire form
type Row struct {
	Series    string  `json:"series"`
	Timestamp int64   `json:"timestamp"`
	Value     float64 `json:"value"`
}

// QueryResponse represents the response payload of /v1/query
type QueryResponse struct {
	Status    string    `json:"status"`
	QueryID   string    `json:"query_id"`
	Rows      []Row     `json:"rows"`
	Truncated bool      `json:"truncated,omitempty"`
	Stats     *RunStats `json:"stats,omitempty"`
}

// RunStats summarises an execution
type RunStats struct {
	Received int64   `json:"received"`
	Skipped  int64   `json:"skipped"`
	Millis   float64 `json:"elapsed_ms"`
}

// StreamMessage is sent over the websocket after the last row
type StreamMessage struct {
	Status  string `json:"status"`
	QueryID string `json:"query_id,omitempty"`
	Rows    int    `json:"rows"`
	Error   string `json:"error,omitempty"`
}

// SeriesResponse lists series names
type SeriesResponse struct {
	Series []string `json:"series"`
	Count  int      `json:"count"`
}

// HandleQuery handles POST /v1/query. The body is the JSON query itself.
func (h *Handler) HandleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpx.RespondErrorString(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	text, err := io.ReadAll(http.MaxBytesReader(w, r.Body, config.QueryMaxBodySize))
	if err != nil {
		httpx.RespondError(w, http.StatusRequestEntityTooLarge, fmt.Errorf("read query: %w", err))
		return
	}

	collector := terminal.NewCollector()
	collector.MaxRows = h.maxRows

	prepared, err := h.executor.Prepare(text, collector)
	if err != nil {
		httpx.RespondQueryError(w, "", err)
		return
	}
	run, err := prepared.Run(r.Context())
	if err != nil {
		httpx.RespondQueryError(w, prepared.ID, err)
		return
	}

	httpx.RespondJSON(w, http.StatusOK, QueryResponse{
		Status:    "success",
		QueryID:   run.ID,
		Rows:      toRows(collector.Samples(), run.Names),
		Truncated: collector.Truncated(),
		Stats: &RunStats{
			Received: run.Counters.Received,
			Skipped:  run.Counters.Skipped,
			Millis:   float64(run.Elapsed.Microseconds()) / 1000,
		},
	})
}

// HandleStream handles GET /v1/query/stream. The first websocket message
// is the query; rows are pushed as they are produced, followed by one
// StreamMessage.
func (h *Handler) HandleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(config.WSReadDeadline))
	_, text, err := conn.ReadMessage()
	if err != nil {
		log.Printf("WebSocket read error: %v", err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Any further read means the client closed or misbehaved
	go func() {
		conn.SetReadDeadline(time.Time{})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	cursor := terminal.NewCursor(ctx, config.QueryCursorSize)
	defer cursor.Close()

	prepared, err := h.executor.Prepare(text, cursor)
	if err != nil {
		writeJSON(conn, StreamMessage{Status: "error", Error: err.Error()})
		return
	}
	cursor.Go(func() {
		prepared.Run(ctx)
	})

	rows := 0
	for {
		s, ok, err := cursor.Read(ctx)
		if !ok {
			msg := StreamMessage{Status: "success", QueryID: prepared.ID, Rows: rows}
			if err != nil {
				msg.Status = "error"
				msg.Error = err.Error()
			}
			writeJSON(conn, msg)
			return
		}
		if err := writeJSON(conn, toRow(s, prepared.Names)); err != nil {
			log.Printf("WebSocket write error: %v", err)
			return
		}
		rows++
	}
}

// HandleSeries handles GET /v1/series?metric=&tag=k=v&limit=
func (h *Handler) HandleSeries(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpx.RespondErrorString(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	selector := MetaNames
	if metric := r.URL.Query().Get("metric"); metric != "" {
		selector += ":" + metric
	}
	q := map[string]interface{}{"select": selector}

	where := make(map[string][]string)
	for _, tag := range r.URL.Query()["tag"] {
		k, v, ok := strings.Cut(tag, "=")
		if !ok || k == "" || v == "" {
			httpx.RespondErrorString(w, http.StatusBadRequest, fmt.Sprintf("invalid tag filter %q", tag))
			return
		}
		where[k] = append(where[k], v)
	}
	if len(where) > 0 {
		q["where"] = where
	}
	if s := r.URL.Query().Get("limit"); s != "" {
		limit, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			httpx.RespondError(w, http.StatusBadRequest, fmt.Errorf("invalid limit: %w", err))
			return
		}
		q["limit"] = limit
	}
	text, err := json.Marshal(q)
	if err != nil {
		httpx.RespondError(w, http.StatusInternalServerError, err)
		return
	}

	collector := terminal.NewCollector()
	run, err := h.executor.Execute(r.Context(), text, collector)
	if err != nil {
		queryID := ""
		if run != nil {
			queryID = run.ID
		}
		httpx.RespondQueryError(w, queryID, err)
		return
	}

	names := make([]string, 0, len(collector.Samples()))
	for _, s := range collector.Samples() {
		if name, ok := run.Names.Name(s.ParamID); ok {
			names = append(names, name)
		}
	}

	httpx.RespondJSON(w, http.StatusOK, SeriesResponse{Series: names, Count: len(names)})
}

func toRows(samples []sample.Sample, names qp.NameResolver) []Row {
	rows := make([]Row, 0, len(samples))
	for _, s := range samples {
		rows = append(rows, toRow(s, names))
	}
	return rows
}

func toRow(s sample.Sample, names qp.NameResolver) Row {
	name, ok := names.Name(s.ParamID)
	if !ok {
		name = strconv.FormatUint(s.ParamID, 10)
	}
	return Row{Series: name, Timestamp: s.Timestamp, Value: s.Payload.Value}
}

func writeJSON(conn *websocket.Conn, v interface{}) error {
	conn.SetWriteDeadline(time.Now().Add(config.WSWriteDeadline))
	return conn.WriteJSON(v)
}
