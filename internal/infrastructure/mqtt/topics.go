package mqtt

import (
	"fmt"
	"strings"
)

// Topic scheme for device traffic, matching the firmware's publishing
// convention:
//
//	devices/{device_id}/data      sensor payloads (readings, relays, uptime, rssi)
//	devices/{device_id}/status    liveness announcements from the device
//	devices/{device_id}/commands  outbound control commands to the device
//	devices/{device_id}/alerts    threshold alerts raised by the device
//
// System topics carry this service's own status:
//
//	thingview/system/status
const (
	// TopicPrefixDevices is the base for all per-device topics.
	TopicPrefixDevices = "devices"

	// TopicPrefixSystem is the base for service status topics.
	TopicPrefixSystem = "thingview/system"
)

// Topic leaf names.
const (
	topicLeafData     = "data"
	topicLeafStatus   = "status"
	topicLeafCommands = "commands"
	topicLeafAlerts   = "alerts"

	// deviceTopicParts is the segment count of a per-device topic.
	deviceTopicParts = 3
)

// Topics provides builders for the MQTT topics used by ThingView.
// Using these helpers keeps topic naming consistent across the codebase.
//
//	topics := mqtt.Topics{}
//	topics.DeviceData("ESP32_SmartDevice") // "devices/ESP32_SmartDevice/data"
type Topics struct{}

// DeviceData returns the topic a device publishes sensor payloads on.
func (Topics) DeviceData(deviceID string) string {
	return fmt.Sprintf("%s/%s/%s", TopicPrefixDevices, deviceID, topicLeafData)
}

// DeviceStatus returns the topic a device announces liveness on.
func (Topics) DeviceStatus(deviceID string) string {
	return fmt.Sprintf("%s/%s/%s", TopicPrefixDevices, deviceID, topicLeafStatus)
}

// DeviceCommands returns the topic commands are dispatched to.
func (Topics) DeviceCommands(deviceID string) string {
	return fmt.Sprintf("%s/%s/%s", TopicPrefixDevices, deviceID, topicLeafCommands)
}

// DeviceAlerts returns the topic a device raises alerts on.
func (Topics) DeviceAlerts(deviceID string) string {
	return fmt.Sprintf("%s/%s/%s", TopicPrefixDevices, deviceID, topicLeafAlerts)
}

// AllDeviceData returns a wildcard subscription matching every device's
// data topic.
func (Topics) AllDeviceData() string {
	return TopicPrefixDevices + "/+/" + topicLeafData
}

// AllDeviceStatus returns a wildcard subscription matching every device's
// status topic.
func (Topics) AllDeviceStatus() string {
	return TopicPrefixDevices + "/+/" + topicLeafStatus
}

// AllDeviceAlerts returns a wildcard subscription matching every device's
// alerts topic.
func (Topics) AllDeviceAlerts() string {
	return TopicPrefixDevices + "/+/" + topicLeafAlerts
}

// SystemStatus returns the topic this service publishes its own
// online/offline status on.
func (Topics) SystemStatus() string {
	return TopicPrefixSystem + "/status"
}

// ParseDeviceTopic splits a per-device topic into device id and leaf.
//
// Parameters:
//   - topic: A concrete topic such as "devices/ESP32_SmartDevice/data"
//
// Returns:
//   - deviceID: The device id segment
//   - leaf: One of "data", "status", "commands", "alerts"
//   - ok: false if the topic is not a well-formed per-device topic
func ParseDeviceTopic(topic string) (deviceID, leaf string, ok bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != deviceTopicParts || parts[0] != TopicPrefixDevices {
		return "", "", false
	}
	if parts[1] == "" || parts[1] == "+" || parts[1] == "#" {
		return "", "", false
	}
	switch parts[2] {
	case topicLeafData, topicLeafStatus, topicLeafCommands, topicLeafAlerts:
		return parts[1], parts[2], true
	default:
		return "", "", false
	}
}
