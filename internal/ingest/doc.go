// Package ingest loads ingestion documents and feeds them to the catalog.
//
// A document lists files with the variables read from them. Aggregated
// variables carry an aggregation block (fragment names, per-record time
// bounds and records per fragment) which AggregationField presents to the
// manifest builder as a field. Documents are YAML or JSON and must satisfy
// the embedded CUE schema (schema.cue) before they are decoded.
package ingest
