package state

import (
	"fmt"
	"time"
)

// Well-known sensor reading keys. Sources may report any subset, plus
// additional keys the firmware grows later; the map carries them all.
const (
	ReadingTemperature = "temperature"
	ReadingHumidity    = "humidity"
	ReadingPressure    = "pressure"
	ReadingMotion      = "motion_detected"
)

// Readings holds sensor values keyed by sensor name.
// Values are float64 for numeric sensors and bool for detection sensors.
type Readings map[string]any

// Actuators holds actuator (relay) states keyed by actuator name,
// e.g. "relay_1" through "relay_4".
type Actuators map[string]bool

// RelayName returns the canonical actuator key for a relay number.
func RelayName(n int) string {
	return fmt.Sprintf("relay_%d", n)
}

// Liveness is the derived online/offline status of a device.
type Liveness string

// Liveness constants.
const (
	LivenessOnline  Liveness = "online"
	LivenessOffline Liveness = "offline"
	LivenessUnknown Liveness = "unknown"
)

// DeviceState is the single consistent view of one device, produced by
// merging the durable store, shadow store, and live cache.
//
// A DeviceState value is immutable once published: the refresher and the
// command dispatcher replace the whole snapshot atomically rather than
// mutating it in place, so concurrent readers never observe a torn
// update. Callers receive clones and can modify them freely.
type DeviceState struct {
	// DeviceID is the stable device identifier (thing name).
	DeviceID string `json:"device_id"`

	// SensorReadings holds the latest value per sensor. Keys come and go
	// per source; merge is last-writer-wins at the field level.
	SensorReadings Readings `json:"sensor_readings"`

	// ActuatorStates holds observed relay states, plus optimistic
	// predictions applied on command dispatch until the next observed
	// merge replaces them.
	ActuatorStates Actuators `json:"actuator_states"`

	// UptimeSeconds is the device session uptime, from whichever source
	// last reported it.
	UptimeSeconds *int64 `json:"uptime_seconds,omitempty"`

	// SignalStrength is the reported WiFi RSSI in dBm.
	SignalStrength *int `json:"signal_strength,omitempty"`

	// LastUpdate is the most recent report timestamp, normalized to UTC.
	// Monotonically non-decreasing across refresh cycles.
	LastUpdate *time.Time `json:"last_update,omitempty"`

	// Liveness is derived from LastUpdate against the staleness
	// threshold; never set externally.
	Liveness Liveness `json:"liveness"`

	// IsSynthetic marks snapshots whose readings were fabricated by the
	// synthesizer rather than observed from the device.
	IsSynthetic bool `json:"is_synthetic"`
}

// Clone creates a complete independent copy of the DeviceState.
// Map fields are copied so modifications to the clone do not leak into
// snapshots held by concurrent readers.
func (s *DeviceState) Clone() *DeviceState {
	if s == nil {
		return nil
	}

	cpy := *s

	if s.SensorReadings != nil {
		cpy.SensorReadings = make(Readings, len(s.SensorReadings))
		for k, v := range s.SensorReadings {
			cpy.SensorReadings[k] = v
		}
	}
	if s.ActuatorStates != nil {
		cpy.ActuatorStates = make(Actuators, len(s.ActuatorStates))
		for k, v := range s.ActuatorStates {
			cpy.ActuatorStates[k] = v
		}
	}

	if s.UptimeSeconds != nil {
		uptime := *s.UptimeSeconds
		cpy.UptimeSeconds = &uptime
	}
	if s.SignalStrength != nil {
		rssi := *s.SignalStrength
		cpy.SignalStrength = &rssi
	}
	if s.LastUpdate != nil {
		ts := *s.LastUpdate
		cpy.LastUpdate = &ts
	}

	return &cpy
}

// Temperature returns the temperature reading if present.
func (s *DeviceState) Temperature() (float64, bool) {
	return numericReading(s.SensorReadings, ReadingTemperature)
}

// Humidity returns the humidity reading if present.
func (s *DeviceState) Humidity() (float64, bool) {
	return numericReading(s.SensorReadings, ReadingHumidity)
}

// numericReading extracts a float64 reading, tolerating the integer
// types JSON decoding and test fixtures produce.
func numericReading(r Readings, key string) (float64, bool) {
	v, ok := r[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// SourceSnapshot is the ephemeral, per-source partial view consumed by
// the merger. A nil snapshot or a zero-value snapshot means the source
// had no data this cycle.
type SourceSnapshot struct {
	// SensorReadings holds whatever sensor values the source reported.
	SensorReadings Readings

	// ActuatorStates holds whatever relay states the source reported.
	ActuatorStates Actuators

	// UptimeSeconds, if non-nil, is the reported session uptime.
	UptimeSeconds *int64

	// SignalStrength, if non-nil, is the reported RSSI in dBm.
	SignalStrength *int

	// ReportedAt, if non-nil, is the source's report timestamp
	// normalized to UTC. Nil means the source reported no usable
	// timestamp (including malformed ones).
	ReportedAt *time.Time

	// Synthetic marks snapshots produced by the synthesizer. The merger
	// propagates this onto the resulting DeviceState.
	Synthetic bool
}

// Clone creates an independent copy of the snapshot.
func (s *SourceSnapshot) Clone() *SourceSnapshot {
	if s == nil {
		return nil
	}

	cpy := *s

	if s.SensorReadings != nil {
		cpy.SensorReadings = make(Readings, len(s.SensorReadings))
		for k, v := range s.SensorReadings {
			cpy.SensorReadings[k] = v
		}
	}
	if s.ActuatorStates != nil {
		cpy.ActuatorStates = make(Actuators, len(s.ActuatorStates))
		for k, v := range s.ActuatorStates {
			cpy.ActuatorStates[k] = v
		}
	}
	if s.UptimeSeconds != nil {
		uptime := *s.UptimeSeconds
		cpy.UptimeSeconds = &uptime
	}
	if s.SignalStrength != nil {
		rssi := *s.SignalStrength
		cpy.SignalStrength = &rssi
	}
	if s.ReportedAt != nil {
		ts := *s.ReportedAt
		cpy.ReportedAt = &ts
	}

	return &cpy
}

// IsEmpty reports whether the snapshot carries no data at all.
func (s *SourceSnapshot) IsEmpty() bool {
	if s == nil {
		return true
	}
	return len(s.SensorReadings) == 0 &&
		len(s.ActuatorStates) == 0 &&
		s.UptimeSeconds == nil &&
		s.SignalStrength == nil &&
		s.ReportedAt == nil
}
