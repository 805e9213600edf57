package config

import "time"

// Server defaults
const (
	DefaultPort        = "8080"
	DefaultDataDir     = "./data/tinyqp"
	DefaultMaxMemoryMB = 48
)

// Background task intervals
const (
	BadgerGCInterval = 10 * time.Minute

	// RetentionInterval is how often samples past the retention window are dropped
	RetentionInterval = time.Hour
)

// Query timeouts and defaults
const (
	QueryTimeout     = 30 * time.Second
	QueryMaxRows     = 100_000
	QueryCursorSize  = 256
	QueryMaxSeries   = 10_000
	QueryMaxBodySize = 1 << 20
)

// Scan driver tuning
const (
	// DefaultFlushEvery is the number of data samples between empty flush samples
	DefaultFlushEvery = 4096

	// ScanContextCheckInterval is how often (in samples) the scan checks for cancellation
	ScanContextCheckInterval = 1000
)

// Ingest limits
const (
	IngestTimeout      = 5 * time.Second
	IngestMaxBatchSize = 10_000
	IngestMaxBodySize  = 8 << 20
)

// WebSocket configuration
const (
	WSReadBufferSize  = 1024
	WSWriteBufferSize = 1024
	WSWriteDeadline   = 10 * time.Second
	WSReadDeadline    = 60 * time.Second
)
