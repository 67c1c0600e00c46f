package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nerrad567/thingview-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/thingview-core/internal/state"
	"github.com/nerrad567/thingview-core/internal/telemetry"
)

// persistTimeout bounds the durable insert performed per bus message.
const persistTimeout = 5 * time.Second

// Subscriber is the subset of the MQTT client the pipeline needs.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// Inserter persists observations received from the bus.
type Inserter interface {
	Insert(ctx context.Context, obs telemetry.Observation) error
}

// Logger defines the logging interface the pipeline requires.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Pipeline consumes device topics from the bus and feeds the live
// cache, the durable store, and the alert ring.
//
// Data reports update the cache immediately and are persisted best
// effort: a failed insert is logged and the live view still advances,
// so a database hiccup never stalls ingestion.
type Pipeline struct {
	bus    Subscriber
	cache  *Cache
	repo   Inserter // nil disables durable persistence
	alerts *AlertRing
	topics mqtt.Topics
	qos    byte
	logger Logger

	baseCtx context.Context
}

// NewPipeline creates an ingest pipeline. The repository may be nil
// when durable persistence is disabled.
func NewPipeline(bus Subscriber, cache *Cache, repo Inserter, alerts *AlertRing, qos byte, logger Logger) *Pipeline {
	if alerts == nil {
		alerts = NewAlertRing()
	}
	return &Pipeline{
		bus:    bus,
		cache:  cache,
		repo:   repo,
		alerts: alerts,
		qos:    qos,
		logger: logger,
	}
}

// Alerts returns the alert ring for API consumption.
func (p *Pipeline) Alerts() *AlertRing {
	return p.alerts
}

// Start subscribes to the device data, status, and alert topics.
// The context bounds durable inserts triggered by incoming messages;
// cancel it on shutdown so in-flight inserts stop with the service.
func (p *Pipeline) Start(ctx context.Context) error {
	p.baseCtx = ctx

	subscriptions := []struct {
		topic   string
		handler mqtt.MessageHandler
	}{
		{p.topics.AllDeviceData(), p.handleData},
		{p.topics.AllDeviceStatus(), p.handleStatus},
		{p.topics.AllDeviceAlerts(), p.handleAlert},
	}
	for _, sub := range subscriptions {
		if err := p.bus.Subscribe(sub.topic, p.qos, sub.handler); err != nil {
			return fmt.Errorf("subscribing to %s: %w", sub.topic, err)
		}
	}

	p.logger.Info("ingest pipeline started", "subscriptions", len(subscriptions))
	return nil
}

// dataPayload is the wire shape of a device data report. Firmware
// versions differ: newer ones nest readings under sensor_data, older
// ones put them at the top level.
type dataPayload struct {
	SensorData     map[string]any  `json:"sensor_data"`
	Relays         map[string]bool `json:"relays"`
	UptimeSeconds  *int64          `json:"uptime_seconds"`
	SignalStrength *int            `json:"wifi_rssi"`
	Timestamp      string          `json:"timestamp"`
}

func (p *Pipeline) handleData(topic string, payload []byte) error {
	deviceID, _, ok := mqtt.ParseDeviceTopic(topic)
	if !ok {
		return fmt.Errorf("unparseable device topic: %s", topic)
	}

	var report dataPayload
	if err := json.Unmarshal(payload, &report); err != nil {
		p.logger.Warn("discarding malformed data payload",
			"device_id", deviceID, "error", err)
		return nil
	}
	if report.SensorData == nil {
		report.SensorData = topLevelReadings(payload)
	}

	snap := snapshotFromReport(report, time.Now().UTC())
	if snap.IsEmpty() {
		p.logger.Debug("empty data payload", "device_id", deviceID)
		return nil
	}

	p.cache.Apply(deviceID, snap)
	p.persist(deviceID, snap)

	p.logger.Debug("device data ingested",
		"device_id", deviceID, "readings", len(snap.SensorReadings))
	return nil
}

func (p *Pipeline) handleStatus(topic string, payload []byte) error {
	deviceID, _, ok := mqtt.ParseDeviceTopic(topic)
	if !ok {
		return fmt.Errorf("unparseable device topic: %s", topic)
	}

	var status struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(payload, &status); err != nil {
		p.logger.Warn("discarding malformed status payload",
			"device_id", deviceID, "error", err)
		return nil
	}

	// A status message is connection evidence, not data. Refresh the
	// cached report time so liveness reflects it.
	if status.Status == "online" {
		p.cache.Touch(deviceID, time.Now().UTC())
	}

	p.logger.Debug("device status received",
		"device_id", deviceID, "status", status.Status)
	return nil
}

func (p *Pipeline) handleAlert(topic string, payload []byte) error {
	deviceID, _, ok := mqtt.ParseDeviceTopic(topic)
	if !ok {
		return fmt.Errorf("unparseable device topic: %s", topic)
	}

	var alert Alert
	if err := json.Unmarshal(payload, &alert); err != nil {
		p.logger.Warn("discarding malformed alert payload",
			"device_id", deviceID, "error", err)
		return nil
	}
	alert.DeviceID = deviceID
	alert.ReceivedAt = time.Now().UTC()
	if alert.Severity == "" {
		alert.Severity = "info"
	}

	p.alerts.Append(alert)
	p.logger.Info("device alert received",
		"device_id", deviceID, "type", alert.Type, "severity", alert.Severity)
	return nil
}

// persist writes the snapshot to the durable store, best effort.
func (p *Pipeline) persist(deviceID string, snap *state.SourceSnapshot) {
	if p.repo == nil {
		return
	}

	reportedAt := time.Now().UTC()
	if snap.ReportedAt != nil {
		reportedAt = *snap.ReportedAt
	}

	ctx, cancel := context.WithTimeout(p.baseCtx, persistTimeout)
	defer cancel()

	err := p.repo.Insert(ctx, telemetry.Observation{
		DeviceID:       deviceID,
		SensorReadings: snap.SensorReadings,
		ActuatorStates: snap.ActuatorStates,
		UptimeSeconds:  snap.UptimeSeconds,
		SignalStrength: snap.SignalStrength,
		ReportedAt:     reportedAt,
	})
	if err != nil {
		p.logger.Warn("durable insert failed",
			"device_id", deviceID, "error", err)
	}
}

// snapshotFromReport maps a decoded data payload to a source snapshot.
// The payload timestamp is used when parseable; otherwise arrival time
// stands in, since the report just came off the wire.
func snapshotFromReport(report dataPayload, receivedAt time.Time) *state.SourceSnapshot {
	snap := &state.SourceSnapshot{}

	if len(report.SensorData) > 0 {
		snap.SensorReadings = make(state.Readings, len(report.SensorData))
		for k, v := range report.SensorData {
			snap.SensorReadings[k] = v
		}
	}
	if len(report.Relays) > 0 {
		snap.ActuatorStates = make(state.Actuators, len(report.Relays))
		for k, v := range report.Relays {
			snap.ActuatorStates[k] = v
		}
	}
	snap.UptimeSeconds = report.UptimeSeconds
	snap.SignalStrength = report.SignalStrength

	if ts, ok := state.ParseTimestamp(report.Timestamp); ok {
		snap.ReportedAt = &ts
	} else if !snap.IsEmpty() {
		snap.ReportedAt = &receivedAt
	}

	return snap
}

// topLevelReadings extracts well-known sensor keys from a flat payload.
func topLevelReadings(payload []byte) map[string]any {
	var flat map[string]any
	if err := json.Unmarshal(payload, &flat); err != nil {
		return nil
	}

	known := []string{
		state.ReadingTemperature,
		state.ReadingHumidity,
		state.ReadingPressure,
		state.ReadingMotion,
	}
	readings := make(map[string]any)
	for _, key := range known {
		if v, ok := flat[key]; ok {
			readings[key] = v
		}
	}
	if len(readings) == 0 {
		return nil
	}
	return readings
}
