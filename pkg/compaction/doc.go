/*
Package compaction keeps storage bounded by dropping samples that fell out
of the retention window.

Timestamps carry no unit, so the window is measured from the newest stored
sample rather than the wall clock:

	horizon = newest - retention

Every sample with a timestamp below the horizon is deleted. Nothing is
deleted while the whole stored range fits inside the window, and a
retention of 0 disables cleanup.

# Usage

	store, _ := badger.New(badger.Config{Path: "./data"})
	compactor := compaction.New(store, 86_400)

	result, err := compactor.Cleanup(ctx)
	if err != nil {
	    log.Printf("cleanup failed: %v", err)
	}

Cleanup is idempotent. The server runs it on a ticker and reports
Monitor().Status on /v1/health; a run of failed cleanups turns the health
check red.

Deleted samples leave garbage in the Badger value log until the next GC.
*/
package compaction
