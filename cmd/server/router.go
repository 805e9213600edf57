package main

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/klauspost/compress/gzhttp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nicktill/tinyqp/pkg/compaction"
	"github.com/nicktill/tinyqp/pkg/config"
	"github.com/nicktill/tinyqp/pkg/export"
	"github.com/nicktill/tinyqp/pkg/httpx"
	"github.com/nicktill/tinyqp/pkg/ingest"
	"github.com/nicktill/tinyqp/pkg/qp/nodes"
	"github.com/nicktill/tinyqp/pkg/query"
	"github.com/nicktill/tinyqp/pkg/series"
	"github.com/nicktill/tinyqp/pkg/storage"
)

var startTime = time.Now()

// services bundles everything the HTTP routes need
type services struct {
	store    storage.Store
	matcher  *series.Matcher
	ingest   *ingest.Handler
	query    *query.Handler
	export   *export.Handler
	registry *prometheus.Registry

	// compactor is nil when retention is disabled
	compactor         *compaction.Compactor
	retentionInterval time.Duration
}

// newServices restores the series matcher from store and wires the
// ingest and query handlers around it
func newServices(ctx context.Context, store storage.Store, cfg *config.Server) (*services, error) {
	matcher := series.NewMatcher()
	n, err := ingest.RestoreSeries(ctx, store, matcher)
	if err != nil {
		return nil, err
	}
	log.Printf("📚 Restored %d series names", n)

	nodeRegistry, err := nodes.NewRegistry()
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := query.NewMetrics(reg)
	if err != nil {
		return nil, err
	}

	executor := query.NewExecutor(store, matcher, nodeRegistry, metrics).WithTimeout(cfg.QueryTimeout)
	ingestHandler := ingest.NewHandler(store, matcher)

	svc := &services{
		store:             store,
		matcher:           matcher,
		ingest:            ingestHandler,
		query:             query.NewHandler(executor).WithMaxRows(cfg.QueryMaxRows),
		export:            export.NewHandler(executor, ingestHandler),
		registry:          reg,
		retentionInterval: cfg.RetentionInterval,
	}
	if cfg.Retention > 0 {
		svc.compactor = compaction.New(store, cfg.Retention)
	}
	return svc, nil
}

// router builds the HTTP routes
func (s *services) router() *mux.Router {
	router := mux.NewRouter()

	// CORS middleware for API access
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	})
	router.Use(compress)

	// Set on both routers: a method mismatch under the /v1 subrouter
	// otherwise surfaces as a 404
	router.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowed)
	api := router.PathPrefix("/v1").Subrouter()
	api.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowed)
	api.HandleFunc("/write", s.ingest.HandleWrite).Methods(http.MethodPost)
	api.HandleFunc("/query", s.query.HandleQuery).Methods(http.MethodPost)
	api.HandleFunc("/query/stream", s.query.HandleStream).Methods(http.MethodGet)
	api.HandleFunc("/series", s.query.HandleSeries).Methods(http.MethodGet)
	api.HandleFunc("/export", s.export.HandleExport).Methods(http.MethodPost)
	api.HandleFunc("/import", s.export.HandleImport).Methods(http.MethodPost)
	api.HandleFunc("/cardinality", s.ingest.HandleCardinality).Methods(http.MethodGet)
	api.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	router.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	return router
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	httpx.RespondErrorString(w, http.StatusMethodNotAllowed, "Method not allowed")
}

// compress gzips responses for clients that accept it. Websocket upgrades
// bypass it since the connection gets hijacked.
func compress(next http.Handler) http.Handler {
	gz := gzhttp.GzipHandler(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
			next.ServeHTTP(w, r)
			return
		}
		gz.ServeHTTP(w, r)
	})
}

// StatsResponse reports storage usage
type StatsResponse struct {
	Series       int    `json:"series"`
	TotalSamples uint64 `json:"total_samples"`
	TotalSeries  uint64 `json:"stored_series"`
	SizeBytes    uint64 `json:"size_bytes"`
	Oldest       int64  `json:"oldest"`
	Newest       int64  `json:"newest"`
}

func (s *services) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats(r.Context())
	if err != nil {
		log.Printf("❌ Failed to read storage stats: %v", err)
		httpx.RespondError(w, http.StatusInternalServerError, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, StatsResponse{
		Series:       s.matcher.Len(),
		TotalSamples: stats.TotalSamples,
		TotalSeries:  stats.TotalSeries,
		SizeBytes:    stats.SizeBytes,
		Oldest:       stats.Oldest,
		Newest:       stats.Newest,
	})
}

// handleHealth returns service health status. A failing retention
// cleanup turns it into a 503.
func (s *services) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"status":  "healthy",
		"version": "1.0.0",
		"uptime":  time.Since(startTime).String(),
	}
	code := http.StatusOK

	if s.compactor != nil {
		// Two missed runs in a row count as stale
		cleanup := s.compactor.Monitor().Status(2 * s.retentionInterval)
		resp["retention"] = cleanup
		if !cleanup.Healthy {
			resp["status"] = "unhealthy"
			code = http.StatusServiceUnavailable
		}
	}

	httpx.RespondJSON(w, code, resp)
}
