// Package influxdb is the time-series sink for ThingView Core.
//
// It wraps influxdb-client-go v2 with connection management, health
// checks, and the two write helpers the telemetry mirror uses: sensor
// readings and device health indicators.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteSensorReading("ESP32_SmartDevice", "temperature", 23.5, reportedAt)
//
// # Error Handling
//
// Writes are non-blocking and batched, so write failures surface only
// through the callback registered with SetOnError. Connection and
// health check errors are returned directly.
//
// All methods are safe for concurrent use from multiple goroutines.
package influxdb
