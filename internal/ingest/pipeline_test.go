package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/thingview-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/thingview-core/internal/state"
	"github.com/nerrad567/thingview-core/internal/telemetry"
)

// mockBus records subscriptions and lets tests inject messages.
type mockBus struct {
	handlers map[string]mqtt.MessageHandler
	err      error
}

func (m *mockBus) Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error {
	if m.err != nil {
		return m.err
	}
	if m.handlers == nil {
		m.handlers = make(map[string]mqtt.MessageHandler)
	}
	m.handlers[topic] = handler
	return nil
}

// deliver routes a message to the wildcard handler for its leaf.
func (m *mockBus) deliver(t *testing.T, topic string, payload string) {
	t.Helper()
	_, leaf, ok := mqtt.ParseDeviceTopic(topic)
	if !ok {
		t.Fatalf("bad test topic %q", topic)
	}
	handler, ok := m.handlers[mqtt.TopicPrefixDevices+"/+/"+leaf]
	if !ok {
		t.Fatalf("no subscription for leaf %q", leaf)
	}
	if err := handler(topic, []byte(payload)); err != nil {
		t.Fatalf("handler error = %v", err)
	}
}

// mockInserter records persisted observations with optional error injection.
type mockInserter struct {
	mu           sync.Mutex
	observations []telemetry.Observation
	err          error
}

func (m *mockInserter) Insert(ctx context.Context, obs telemetry.Observation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.observations = append(m.observations, obs)
	return nil
}

type testLogger struct{}

func (testLogger) Debug(msg string, args ...any) {}
func (testLogger) Info(msg string, args ...any)  {}
func (testLogger) Warn(msg string, args ...any)  {}
func (testLogger) Error(msg string, args ...any) {}

func startTestPipeline(t *testing.T, bus *mockBus, repo Inserter) *Pipeline {
	t.Helper()
	pipeline := NewPipeline(bus, NewCache(), repo, NewAlertRing(), 1, testLogger{})
	if err := pipeline.Start(t.Context()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	return pipeline
}

func TestPipelineDataReport(t *testing.T) {
	bus := &mockBus{}
	repo := &mockInserter{}
	pipeline := startTestPipeline(t, bus, repo)

	bus.deliver(t, "devices/ESP32_SmartDevice/data", `{
		"sensor_data": {"temperature": 24.5, "humidity": 51.0},
		"relays": {"relay_1": true},
		"uptime_seconds": 3600,
		"wifi_rssi": -58,
		"timestamp": "2026-03-01T12:00:00Z"
	}`)

	snap := pipeline.cache.Read("ESP32_SmartDevice")
	if snap == nil {
		t.Fatal("data report did not reach the live cache")
	}
	if temp := snap.SensorReadings[state.ReadingTemperature]; temp != 24.5 {
		t.Errorf("temperature = %v, want 24.5", temp)
	}
	want := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if snap.ReportedAt == nil || !snap.ReportedAt.Equal(want) {
		t.Errorf("ReportedAt = %v, want payload timestamp", snap.ReportedAt)
	}

	repo.mu.Lock()
	defer repo.mu.Unlock()
	if len(repo.observations) != 1 {
		t.Fatalf("persisted %d observations, want 1", len(repo.observations))
	}
	if repo.observations[0].DeviceID != "ESP32_SmartDevice" {
		t.Errorf("persisted device = %q", repo.observations[0].DeviceID)
	}
}

func TestPipelineFlatPayload(t *testing.T) {
	bus := &mockBus{}
	pipeline := startTestPipeline(t, bus, nil)

	// Older firmware publishes readings at the top level.
	bus.deliver(t, "devices/dev-1/data", `{"temperature": 22.0, "humidity": 40.0, "uptime_seconds": 10}`)

	snap := pipeline.cache.Read("dev-1")
	if snap == nil {
		t.Fatal("flat payload did not reach the cache")
	}
	if temp := snap.SensorReadings[state.ReadingTemperature]; temp != 22.0 {
		t.Errorf("temperature = %v, want 22.0", temp)
	}
	if snap.ReportedAt == nil {
		t.Error("arrival time should stand in for a missing timestamp")
	}
}

func TestPipelineMalformedPayloadIsDiscarded(t *testing.T) {
	bus := &mockBus{}
	repo := &mockInserter{}
	pipeline := startTestPipeline(t, bus, repo)

	bus.deliver(t, "devices/dev-1/data", `not json`)

	if pipeline.cache.Read("dev-1") != nil {
		t.Error("malformed payload must not reach the cache")
	}
	repo.mu.Lock()
	defer repo.mu.Unlock()
	if len(repo.observations) != 0 {
		t.Error("malformed payload must not be persisted")
	}
}

func TestPipelinePersistFailureDoesNotBlockCache(t *testing.T) {
	bus := &mockBus{}
	repo := &mockInserter{err: errors.New("disk full")}
	pipeline := startTestPipeline(t, bus, repo)

	bus.deliver(t, "devices/dev-1/data", `{"sensor_data": {"temperature": 22.0}}`)

	if pipeline.cache.Read("dev-1") == nil {
		t.Error("cache update must survive a failed durable insert")
	}
}

func TestPipelineStatusTouchesCache(t *testing.T) {
	bus := &mockBus{}
	pipeline := startTestPipeline(t, bus, nil)

	bus.deliver(t, "devices/dev-1/data", `{"sensor_data": {"temperature": 22.0}, "timestamp": "2026-03-01T12:00:00Z"}`)
	before := pipeline.cache.Read("dev-1").ReportedAt

	bus.deliver(t, "devices/dev-1/status", `{"status": "online"}`)

	after := pipeline.cache.Read("dev-1").ReportedAt
	if !after.After(*before) {
		t.Error("online status should advance the cached report time")
	}

	// Offline status carries no liveness evidence.
	bus.deliver(t, "devices/dev-1/status", `{"status": "offline"}`)
	if !pipeline.cache.Read("dev-1").ReportedAt.Equal(*after) {
		t.Error("offline status must not touch the cache")
	}
}

func TestPipelineAlerts(t *testing.T) {
	bus := &mockBus{}
	pipeline := startTestPipeline(t, bus, nil)

	bus.deliver(t, "devices/dev-1/alerts", `{"type": "high_temperature", "message": "temperature above 29C", "severity": "warning"}`)
	bus.deliver(t, "devices/dev-2/alerts", `{"type": "low_battery", "message": "battery at 5%"}`)

	all := pipeline.Alerts().List("")
	if len(all) != 2 {
		t.Fatalf("got %d alerts, want 2", len(all))
	}
	if all[0].DeviceID != "dev-2" {
		t.Error("alerts should list newest first")
	}
	if all[0].Severity != "info" {
		t.Errorf("severity = %q, want default info", all[0].Severity)
	}

	filtered := pipeline.Alerts().List("dev-1")
	if len(filtered) != 1 || filtered[0].Type != "high_temperature" {
		t.Errorf("device filter returned %v", filtered)
	}
}

func TestAlertRingEviction(t *testing.T) {
	ring := NewAlertRing()
	for i := 0; i < maxAlerts+10; i++ {
		ring.Append(Alert{DeviceID: "dev-1", Type: "t", ReceivedAt: time.Now()})
	}
	if got := len(ring.List("")); got != maxAlerts {
		t.Errorf("ring holds %d alerts, want capped at %d", got, maxAlerts)
	}
}

func TestPipelineStartSubscribeFailure(t *testing.T) {
	bus := &mockBus{err: errors.New("not connected")}
	pipeline := NewPipeline(bus, NewCache(), nil, nil, 1, testLogger{})
	if err := pipeline.Start(t.Context()); err == nil {
		t.Error("Start() should surface subscription failures")
	}
}
