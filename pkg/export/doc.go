// Package export provides sample backup and restore on top of the query
// pipeline.
//
// # Overview
//
// An export is a scan query whose rows are streamed to a writer instead of
// being collected in memory. The Exporter plugs a terminal node into the
// node chain that encodes every data sample as soon as it arrives, so the
// size of an export is bounded by disk, not by the query row limit.
// Anything a query can express works: raw ranges, group-by windows with
// aggregates, filters and limits.
//
// The Importer reads an export back and writes it through the ingest path,
// so imported series are validated and registered exactly like written
// ones.
//
// # Formats
//
// JSON (default): newline delimited ingest points, the same objects
// POST /v1/write accepts.
//
//	{"series":"cpu host=a","timestamp":10,"value":1}
//	{"series":"cpu host=a","timestamp":20,"value":2}
//
// CSV: a fixed series,timestamp,value header followed by one row per point.
//
// # HTTP API
//
// Export endpoint: POST /v1/export?format=json|csv with a scan query body.
//
//	curl -X POST "http://localhost:8080/v1/export?format=csv" \
//	  -d '{"select": "cpu", "range": {"from": 0, "to": 1000}}' -o cpu.csv
//
// Import endpoint: POST /v1/import?format=json|csv
//
//	curl -X POST "http://localhost:8080/v1/import?format=csv" --data-binary @cpu.csv
//
// # Limits
//
//   - Import batch size: 5,000 points per write
//   - Metadata queries cannot be exported
//   - An import stops at the first invalid point; earlier batches stay written
//
// # Programmatic Usage
//
//	exporter := export.NewExporter(executor)
//	result, err := exporter.Export(ctx, file, queryText, export.CSV)
//
//	importer := export.NewImporter(ingestHandler)
//	result, err := importer.Import(ctx, file, export.CSV)
package export
