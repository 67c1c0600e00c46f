package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteSensorReading records one sensor measurement, tagged by device
// and sensor name. Non-blocking; the point joins the current batch.
func (c *Client) WriteSensorReading(deviceID string, sensor string, value float64, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"sensor_readings",
		map[string]string{
			"device_id": deviceID,
			"sensor":    sensor,
		},
		map[string]interface{}{
			"value": value,
		},
		timestamp,
	)

	c.writeAPI.WritePoint(point)
}

// WriteDeviceHealth records session uptime and WiFi signal strength for
// a device. A negative uptime or zero rssi marks that indicator as not
// reported; the field is omitted from the point, and when neither is
// present nothing is written.
func (c *Client) WriteDeviceHealth(deviceID string, uptimeSeconds int64, rssi int, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	fields := map[string]interface{}{}
	if uptimeSeconds >= 0 {
		fields["uptime_seconds"] = uptimeSeconds
	}
	if rssi != 0 {
		fields["signal_strength"] = rssi
	}
	if len(fields) == 0 {
		return
	}

	point := write.NewPoint(
		"device_health",
		map[string]string{
			"device_id": deviceID,
		},
		fields,
		timestamp,
	)

	c.writeAPI.WritePoint(point)
}
