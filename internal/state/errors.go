package state

import "errors"

// Sentinel errors for state operations. Wrapped with fmt.Errorf("%w")
// to add context; check with errors.Is.
var (
	// ErrNotFound indicates a source holds no document for the device.
	// Source adapters return this for "no data" conditions that are not
	// failures, e.g. a shadow that was never created. The refresher
	// treats it as an empty snapshot, not a source failure.
	ErrNotFound = errors.New("no state recorded for device")

	// ErrSourceUnavailable indicates a source query failed outright
	// (timeout, connection refused, malformed response).
	ErrSourceUnavailable = errors.New("state source unavailable")
)
