package mqtt

import (
	"testing"
)

func TestTopics_Builders(t *testing.T) {
	topics := Topics{}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"data", topics.DeviceData("ESP32_SmartDevice"), "devices/ESP32_SmartDevice/data"},
		{"status", topics.DeviceStatus("node-2"), "devices/node-2/status"},
		{"commands", topics.DeviceCommands("node-2"), "devices/node-2/commands"},
		{"alerts", topics.DeviceAlerts("node-2"), "devices/node-2/alerts"},
		{"all data", topics.AllDeviceData(), "devices/+/data"},
		{"all status", topics.AllDeviceStatus(), "devices/+/status"},
		{"all alerts", topics.AllDeviceAlerts(), "devices/+/alerts"},
		{"system status", topics.SystemStatus(), "thingview/system/status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestParseDeviceTopic(t *testing.T) {
	tests := []struct {
		name       string
		topic      string
		wantDevice string
		wantLeaf   string
		wantOK     bool
	}{
		{"data topic", "devices/ESP32_SmartDevice/data", "ESP32_SmartDevice", "data", true},
		{"status topic", "devices/node-2/status", "node-2", "status", true},
		{"alerts topic", "devices/node-2/alerts", "node-2", "alerts", true},
		{"commands topic", "devices/node-2/commands", "node-2", "commands", true},
		{"wrong prefix", "sensors/node-2/data", "", "", false},
		{"unknown leaf", "devices/node-2/firmware", "", "", false},
		{"too many segments", "devices/node-2/data/relay/extra", "", "", false},
		{"wildcard id", "devices/+/data", "", "", false},
		{"empty", "", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			device, leaf, ok := ParseDeviceTopic(tt.topic)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if device != tt.wantDevice {
				t.Errorf("device = %q, want %q", device, tt.wantDevice)
			}
			if leaf != tt.wantLeaf {
				t.Errorf("leaf = %q, want %q", leaf, tt.wantLeaf)
			}
		})
	}
}
