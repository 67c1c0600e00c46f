package state

import "context"

// DurableStore is the lowest-precedence source: latest persisted
// telemetry for a device. Implementations return ErrNotFound when no
// rows exist for the device; any other error is treated as a source
// failure for degraded-mode accounting.
type DurableStore interface {
	QueryLatest(ctx context.Context, deviceID string) (*SourceSnapshot, error)
}

// ShadowStore is the middle-precedence source: the last reported
// document from the device shadow service. Implementations return
// ErrNotFound when the device has no shadow.
type ShadowStore interface {
	FetchReported(ctx context.Context, deviceID string) (*SourceSnapshot, error)
}

// LiveCache is the highest-precedence source: the in-process cache fed
// directly by the message bus. Reads are local and cannot fail; a nil
// return means no live data has arrived for the device.
type LiveCache interface {
	Read(deviceID string) *SourceSnapshot
}
