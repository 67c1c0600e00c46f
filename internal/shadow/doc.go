// Package shadow provides the HTTP client for the device shadow
// service, the middle-precedence state source.
//
// The shadow service keeps the last document each device reported.
// Documents can lag live data or describe devices that no longer
// exist, so the reconciliation engine ranks shadow values below the
// live cache and above the durable store.
package shadow
