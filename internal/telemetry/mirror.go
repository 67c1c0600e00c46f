package telemetry

import (
	"time"

	"github.com/nerrad567/thingview-core/internal/state"
)

// MetricWriter is the subset of the InfluxDB client the mirror needs.
// A negative uptime or zero rssi means that indicator was not reported;
// the writer omits the corresponding field from the stored point.
type MetricWriter interface {
	WriteSensorReading(deviceID string, sensor string, value float64, timestamp time.Time)
	WriteDeviceHealth(deviceID string, uptimeSeconds int64, rssi int, timestamp time.Time)
}

// Mirror forwards observed merged states to time-series storage.
// Fabricated snapshots are never mirrored so the series only contains
// data a device actually reported.
type Mirror struct {
	writer MetricWriter
}

// NewMirror creates a telemetry mirror over the given writer.
func NewMirror(writer MetricWriter) *Mirror {
	return &Mirror{writer: writer}
}

// Record writes the numeric readings and health indicators of one
// published state. Non-numeric readings (motion booleans) are skipped;
// InfluxDB fields keep one type per series. Safe to register directly
// as an engine update listener.
func (m *Mirror) Record(s *state.DeviceState) {
	if s == nil || s.IsSynthetic {
		return
	}

	timestamp := time.Now().UTC()
	if s.LastUpdate != nil {
		timestamp = *s.LastUpdate
	}

	for sensor, value := range s.SensorReadings {
		switch v := value.(type) {
		case float64:
			m.writer.WriteSensorReading(s.DeviceID, sensor, v, timestamp)
		case int:
			m.writer.WriteSensorReading(s.DeviceID, sensor, float64(v), timestamp)
		case int64:
			m.writer.WriteSensorReading(s.DeviceID, sensor, float64(v), timestamp)
		}
	}

	uptime := int64(-1)
	if s.UptimeSeconds != nil {
		uptime = *s.UptimeSeconds
	}
	rssi := 0
	if s.SignalStrength != nil {
		rssi = *s.SignalStrength
	}
	if uptime >= 0 || rssi != 0 {
		m.writer.WriteDeviceHealth(s.DeviceID, uptime, rssi, timestamp)
	}
}
