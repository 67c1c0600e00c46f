// Package state reconciles device state from three unreliable sources
// into a single consistent, always-answerable view per device.
//
// Sources are merged field by field in fixed precedence order: the live
// bus-fed cache wins over the shadow store, which wins over the durable
// telemetry store. A source that omits a field never erases a value a
// lower-precedence source contributed, and a cycle where every source
// is empty leaves the previous view unchanged.
//
// Liveness (online/offline) is derived from the age of the merged
// report timestamp and is never taken from source payloads. When all
// sources go quiet past a threshold, a synthesizer fabricates plausible
// readings, clearly flagged so downstream consumers can tell fabricated
// data from observed data.
//
// The Engine runs one background refresher per tracked device. A
// refresher whose sources keep failing backs off into degraded mode
// with a doubling, capped interval, and recovers on the first
// successful cycle.
package state
