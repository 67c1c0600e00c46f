package telemetry

import (
	"testing"
	"time"

	"github.com/nerrad567/thingview-core/internal/state"
)

// mockWriter records mirror writes for assertions.
type mockWriter struct {
	sensors map[string]float64
	health  int
}

func (m *mockWriter) WriteSensorReading(deviceID, sensor string, value float64, ts time.Time) {
	if m.sensors == nil {
		m.sensors = make(map[string]float64)
	}
	m.sensors[sensor] = value
}

func (m *mockWriter) WriteDeviceHealth(deviceID string, uptime int64, rssi int, ts time.Time) {
	m.health++
}

func TestMirrorRecordsNumericReadings(t *testing.T) {
	writer := &mockWriter{}
	mirror := NewMirror(writer)

	uptime := int64(100)
	rssi := -60
	ts := time.Now().UTC()
	mirror.Record(&state.DeviceState{
		DeviceID: "dev-1",
		SensorReadings: state.Readings{
			state.ReadingTemperature: 23.5,
			state.ReadingMotion:      true, // boolean, must be skipped
		},
		UptimeSeconds:  &uptime,
		SignalStrength: &rssi,
		LastUpdate:     &ts,
	})

	if got := writer.sensors[state.ReadingTemperature]; got != 23.5 {
		t.Errorf("temperature = %v, want 23.5", got)
	}
	if _, ok := writer.sensors[state.ReadingMotion]; ok {
		t.Error("boolean reading should not be written as a numeric series")
	}
	if writer.health != 1 {
		t.Errorf("health writes = %d, want 1", writer.health)
	}
}

func TestMirrorSkipsSyntheticStates(t *testing.T) {
	writer := &mockWriter{}
	mirror := NewMirror(writer)

	mirror.Record(&state.DeviceState{
		DeviceID:       "dev-1",
		SensorReadings: state.Readings{state.ReadingTemperature: 23.5},
		IsSynthetic:    true,
	})

	if len(writer.sensors) != 0 || writer.health != 0 {
		t.Error("fabricated states must never reach time-series storage")
	}
}
