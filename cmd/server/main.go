package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/nicktill/tinyqp/pkg/compaction"
	"github.com/nicktill/tinyqp/pkg/config"
	"github.com/nicktill/tinyqp/pkg/storage/badger"
)

const (
	// Server configuration
	serverReadTimeout = 10 * time.Second
	shutdownTimeout   = 30 * time.Second
)

func main() {
	configFile := flag.String("config", "", "optional config file (yaml, json or toml)")
	flag.Parse()

	log.Println("🚀 Starting TinyQP Server...")

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("❌ Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("❌ Invalid configuration: %v", err)
	}
	log.Printf("⚙️  Configuration: port=%s, memory limit=%d MB, query timeout=%v, max rows=%d, retention=%d",
		cfg.Port, cfg.MaxMemoryMB, cfg.QueryTimeout, cfg.QueryMaxRows, cfg.Retention)

	if !cfg.InMemory {
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			log.Fatalf("❌ Failed to create data directory: %v", err)
		}
		log.Printf("📁 Data directory: %s", cfg.DataDir)
	}

	log.Println("💾 Initializing BadgerDB storage with Snappy compression...")
	store, err := badger.New(badger.Config{
		Path:        cfg.DataDir,
		InMemory:    cfg.InMemory,
		MaxMemoryMB: cfg.MaxMemoryMB,
	})
	if err != nil {
		log.Fatalf("❌ Failed to initialize storage: %v", err)
	}
	defer store.Close()
	log.Println("✅ BadgerDB storage initialized successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc, err := newServices(ctx, store, cfg)
	if err != nil {
		log.Fatalf("❌ Failed to set up query services: %v", err)
	}
	log.Println("🔍 Query executor ready")

	var wg sync.WaitGroup
	if !cfg.InMemory {
		wg.Add(1)
		go runBadgerGC(ctx, store, cfg.GCInterval, cfg.GCDiscardRatio, &wg)
	}
	if svc.compactor != nil {
		wg.Add(1)
		go runRetention(ctx, svc.compactor, cfg.RetentionInterval, &wg)
	}

	// Query responses can take as long as the query timeout allows
	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      svc.router(),
		ReadTimeout:  serverReadTimeout,
		WriteTimeout: cfg.QueryTimeout + serverReadTimeout,
	}

	go func() {
		log.Printf("🌐 Server starting on http://localhost%s", cfg.Addr())
		log.Println("📡 API endpoints:")
		log.Println("   POST /v1/write          - Write samples")
		log.Println("   POST /v1/query          - Run a query")
		log.Println("   GET  /v1/query/stream   - Stream a query over websocket")
		log.Println("   GET  /v1/series         - List series names")
		log.Println("   POST /v1/export         - Export query rows (json, csv)")
		log.Println("   POST /v1/import         - Import an export")
		log.Println("   GET  /v1/cardinality    - Series per metric")
		log.Println("   GET  /v1/stats          - Storage statistics")
		log.Println("   GET  /metrics           - Prometheus endpoint")
		log.Println("✅ Server ready to accept requests")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ Server failed to start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutdown signal received...")

	// Cancel before wg.Wait() so the GC loop can exit
	log.Println("⏸️  Stopping background tasks...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	log.Println("🔄 Gracefully shutting down server...")
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("⚠️  Server shutdown warning: %v", err)
	}

	log.Println("⏳ Waiting for background tasks to complete...")
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("✅ All background tasks stopped cleanly")
	case <-time.After(5 * time.Second):
		log.Println("⚠️  Some background tasks did not stop in time (forcing exit)")
	}

	log.Println("👋 TinyQP server exited cleanly")
}

// runBadgerGC runs BadgerDB value log garbage collection periodically.
// Overwritten samples leave garbage in the value log that is only
// reclaimed here.
func runBadgerGC(ctx context.Context, store *badger.Storage, interval time.Duration, ratio float64, wg *sync.WaitGroup) {
	defer wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Printf("🗑️  BadgerDB GC scheduler started (runs every %v)", interval)

	for {
		select {
		case <-ticker.C:
			start := time.Now()
			if err := store.RunGC(ratio); err != nil {
				// Not an error if no GC was needed
				log.Printf("🗑️  GC completed in %v (no rewrite needed)", time.Since(start).Round(time.Millisecond))
			} else {
				log.Printf("✅ GC completed in %v (disk space reclaimed)", time.Since(start).Round(time.Millisecond))
			}
		case <-ctx.Done():
			log.Println("🛑 Stopping BadgerDB GC scheduler")
			return
		}
	}
}

// runRetention drops samples past the retention window periodically.
// The first run happens right away so a restart with a shorter window
// takes effect immediately.
func runRetention(ctx context.Context, compactor *compaction.Compactor, interval time.Duration, wg *sync.WaitGroup) {
	defer wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Printf("🗜️  Retention cleanup started (runs every %v)", interval)

	run := func() {
		runCtx, cancel := context.WithTimeout(ctx, interval)
		defer cancel()

		result, err := compactor.Cleanup(runCtx)
		if err != nil {
			log.Printf("❌ Retention cleanup failed: %v", err)
			return
		}
		if result.SamplesDropped > 0 {
			log.Printf("✅ Dropped %d samples before %d in %v",
				result.SamplesDropped, result.Horizon, result.Duration.Round(time.Millisecond))
		}
	}

	run()
	for {
		select {
		case <-ticker.C:
			run()
		case <-ctx.Done():
			log.Println("🛑 Stopping retention cleanup")
			return
		}
	}
}
