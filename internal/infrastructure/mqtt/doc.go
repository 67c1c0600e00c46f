// Package mqtt provides the message-bus client for ThingView Core.
//
// It wraps paho.mqtt.golang with connection management, automatic
// reconnection, subscription restoration, and Last Will and Testament
// publishing so peers can observe this service's liveness.
//
// The bus carries two flows:
//
//   - Inbound device telemetry on devices/{id}/data, devices/{id}/status
//     and devices/{id}/alerts, consumed by the ingest pipeline to feed
//     the live cache and durable store.
//   - Outbound control commands on devices/{id}/commands, published by
//     the command dispatcher (fire and forget, QoS 1).
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topics := mqtt.Topics{}
//	client.Subscribe(topics.AllDeviceData(), 1, handleData)
//	client.Publish(topics.DeviceCommands("ESP32_SmartDevice"), payload, 1, false)
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
package mqtt
