package ingest

import (
	"testing"
	"time"

	"github.com/nerrad567/thingview-core/internal/state"
)

func timePtr(t time.Time) *time.Time { return &t }
func int64Ptr(v int64) *int64        { return &v }

func TestCacheApplyAndRead(t *testing.T) {
	cache := NewCache()
	reported := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	cache.Apply("dev-1", &state.SourceSnapshot{
		SensorReadings: state.Readings{state.ReadingTemperature: 23.0},
		ActuatorStates: state.Actuators{"relay_1": true},
		ReportedAt:     timePtr(reported),
	})

	snap := cache.Read("dev-1")
	if snap == nil {
		t.Fatal("Read() returned nil after Apply()")
	}
	if temp := snap.SensorReadings[state.ReadingTemperature]; temp != 23.0 {
		t.Errorf("temperature = %v, want 23.0", temp)
	}
	if !snap.ActuatorStates["relay_1"] {
		t.Error("relay_1 not cached")
	}

	if cache.Read("other") != nil {
		t.Error("Read() for unknown device should return nil")
	}
}

func TestCacheApplyRetainsOmittedFields(t *testing.T) {
	cache := NewCache()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	cache.Apply("dev-1", &state.SourceSnapshot{
		SensorReadings: state.Readings{state.ReadingTemperature: 23.0, state.ReadingHumidity: 50.0},
		ActuatorStates: state.Actuators{"relay_1": true},
		UptimeSeconds:  int64Ptr(100),
		ReportedAt:     timePtr(base),
	})

	// Sensors-only follow-up must not discard relays or uptime.
	cache.Apply("dev-1", &state.SourceSnapshot{
		SensorReadings: state.Readings{state.ReadingTemperature: 24.0},
		ReportedAt:     timePtr(base.Add(time.Second)),
	})

	snap := cache.Read("dev-1")
	if temp := snap.SensorReadings[state.ReadingTemperature]; temp != 24.0 {
		t.Errorf("temperature = %v, want updated 24.0", temp)
	}
	if hum := snap.SensorReadings[state.ReadingHumidity]; hum != 50.0 {
		t.Errorf("humidity = %v, want retained 50.0", hum)
	}
	if !snap.ActuatorStates["relay_1"] {
		t.Error("relay states lost on sensors-only update")
	}
	if snap.UptimeSeconds == nil || *snap.UptimeSeconds != 100 {
		t.Error("uptime lost on sensors-only update")
	}
	if !snap.ReportedAt.Equal(base.Add(time.Second)) {
		t.Errorf("ReportedAt = %v, want advanced", snap.ReportedAt)
	}
}

func TestCacheReadReturnsCopy(t *testing.T) {
	cache := NewCache()
	cache.Apply("dev-1", &state.SourceSnapshot{
		SensorReadings: state.Readings{state.ReadingTemperature: 23.0},
	})

	snap := cache.Read("dev-1")
	snap.SensorReadings[state.ReadingTemperature] = 99.0

	if temp := cache.Read("dev-1").SensorReadings[state.ReadingTemperature]; temp != 23.0 {
		t.Error("Read() shares internal state with callers")
	}
}

func TestCacheTouch(t *testing.T) {
	cache := NewCache()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	// Touching an unknown device must not create an empty entry.
	cache.Touch("ghost", base)
	if cache.Read("ghost") != nil {
		t.Error("Touch() created an entry for an unknown device")
	}

	cache.Apply("dev-1", &state.SourceSnapshot{
		SensorReadings: state.Readings{state.ReadingTemperature: 23.0},
		ReportedAt:     timePtr(base),
	})
	cache.Touch("dev-1", base.Add(10*time.Second))

	snap := cache.Read("dev-1")
	if !snap.ReportedAt.Equal(base.Add(10 * time.Second)) {
		t.Errorf("ReportedAt = %v, want touched forward", snap.ReportedAt)
	}

	// A lagging touch must not move the timestamp backwards.
	cache.Touch("dev-1", base.Add(-time.Minute))
	if !cache.Read("dev-1").ReportedAt.Equal(base.Add(10 * time.Second)) {
		t.Error("Touch() moved ReportedAt backwards")
	}
}
