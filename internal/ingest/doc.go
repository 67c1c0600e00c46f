// Package ingest consumes device traffic from the message bus.
//
// The pipeline subscribes to the per-device data, status, and alert
// topics. Data reports land in the live Cache, the highest-precedence
// source for the reconciliation engine, and are persisted to the
// durable store best effort. Status messages refresh liveness evidence
// without fabricating data, and alerts accumulate in a bounded
// in-memory ring served by the API.
package ingest
