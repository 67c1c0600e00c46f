package ingest

import (
	"sync"
	"time"

	"github.com/nerrad567/thingview-core/internal/state"
)

// Cache is the in-process live cache, the highest-precedence state
// source. The pipeline writes every bus report into it; the engine
// reads it on each refresh cycle.
//
// Writes replace the whole per-device entry with a fresh snapshot, so
// readers never observe a partially updated one. Implements
// state.LiveCache.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*state.SourceSnapshot
}

// NewCache creates an empty live cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]*state.SourceSnapshot)}
}

// Apply merges a freshly received snapshot over the cached entry.
// Fields the new report omits are retained from the previous entry, so
// a sensors-only payload does not discard cached relay states.
func (c *Cache) Apply(deviceID string, snap *state.SourceSnapshot) {
	if deviceID == "" || snap.IsEmpty() {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	current := c.entries[deviceID].Clone()
	if current == nil {
		c.entries[deviceID] = snap.Clone()
		return
	}

	for k, v := range snap.SensorReadings {
		if current.SensorReadings == nil {
			current.SensorReadings = make(state.Readings, len(snap.SensorReadings))
		}
		current.SensorReadings[k] = v
	}
	for k, v := range snap.ActuatorStates {
		if current.ActuatorStates == nil {
			current.ActuatorStates = make(state.Actuators, len(snap.ActuatorStates))
		}
		current.ActuatorStates[k] = v
	}
	if snap.UptimeSeconds != nil {
		uptime := *snap.UptimeSeconds
		current.UptimeSeconds = &uptime
	}
	if snap.SignalStrength != nil {
		rssi := *snap.SignalStrength
		current.SignalStrength = &rssi
	}
	if snap.ReportedAt != nil {
		ts := snap.ReportedAt.UTC()
		if current.ReportedAt == nil || ts.After(*current.ReportedAt) {
			current.ReportedAt = &ts
		}
	}

	c.entries[deviceID] = current
}

// Touch refreshes the report timestamp of an existing entry. Used for
// status messages, which carry liveness evidence but no data. A device
// with no cached data is not created; a bare status message proves the
// connection, not the readings.
func (c *Cache) Touch(deviceID string, at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	current, ok := c.entries[deviceID]
	if !ok {
		return
	}
	next := current.Clone()
	ts := at.UTC()
	if next.ReportedAt == nil || ts.After(*next.ReportedAt) {
		next.ReportedAt = &ts
	}
	c.entries[deviceID] = next
}

// Read returns a copy of the cached snapshot for a device, or nil when
// nothing has been received. Implements state.LiveCache.
func (c *Cache) Read(deviceID string) *state.SourceSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries[deviceID].Clone()
}
