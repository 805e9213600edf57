/*
Package storage provides the pluggable sample storage behind the query pipeline.

# Storage Interface

Backends store float samples keyed by series id and timestamp:
  - memory: In-memory storage for testing and ephemeral workloads
  - badger: BadgerDB (LSM tree + Snappy compression) for persistent storage

All backends implement the Store interface. Reads go through Source, which
returns one Iterator per series in the scan direction of a qp.QueryRange.

# Scan Protocol

Scan is the producer side of a query. Given a ScanRequest and a
qp.StreamProcessor it:

 1. calls Start (returns immediately if Start reports nothing to do)
 2. calls Put once per sample, in series order or merged time order
 3. sends an empty sample every FlushEvery samples so windowed nodes can flush
 4. calls Stop

If Put returns false the scan ends quietly and Stop is not called. Any
failure (iterator error, cancelled context) is passed to SetError and
returned to the caller.

# Usage Example

	store, err := badger.New(badger.Config{Path: "./data"})
	if err != nil {
	    log.Fatal(err)
	}
	defer store.Close()

	err = store.Write(ctx, []sample.Sample{sample.New(ts, id, 42)})

	proc := qp.NewScanProcessor(root, req, 0, matcher)
	err = store.Scan(ctx, storage.NewScanRequest(proc), proc)

# Key Layout (badger)

	['d'][series id (8 bytes BE)][timestamp with sign bit flipped (8 bytes BE)] -> float64 bits
	['n'][xxhash of series name (8 bytes BE)] -> series name

Flipping the sign bit keeps negative timestamps ordered before positive ones,
so a forward iterator walks a series oldest first and a reverse iterator
newest first.
*/
package storage
