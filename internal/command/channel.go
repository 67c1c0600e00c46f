package command

import (
	"github.com/nerrad567/thingview-core/internal/infrastructure/mqtt"
)

// Publisher is the subset of the MQTT client the bus channel needs.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// BusChannel publishes commands to per-device command topics over MQTT.
// Implements Channel.
type BusChannel struct {
	bus    Publisher
	topics mqtt.Topics
	qos    byte
}

// NewBusChannel creates a bus-backed command channel.
func NewBusChannel(bus Publisher, qos byte) *BusChannel {
	return &BusChannel{bus: bus, qos: qos}
}

// PublishCommand sends a command payload to the device's command topic.
// Commands are never retained: a device that reconnects later must not
// replay stale control messages.
func (c *BusChannel) PublishCommand(deviceID string, payload []byte) error {
	return c.bus.Publish(c.topics.DeviceCommands(deviceID), payload, c.qos, false)
}
