// Package telemetry persists device observations and mirrors them to
// time-series storage.
//
// The SQLite-backed Repository is the durable source consumed by the
// reconciliation engine: the ingest pipeline inserts every bus report,
// and QueryLatest serves the lowest-precedence merge snapshot. The
// Mirror forwards observed (never fabricated) merged states to
// InfluxDB for dashboards and retention beyond the relational window.
package telemetry
