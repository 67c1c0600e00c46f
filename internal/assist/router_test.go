package assist

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/thingview-core/internal/command"
	"github.com/nerrad567/thingview-core/internal/state"
	"github.com/nerrad567/thingview-core/internal/telemetry"
)

// mockGateway is a Gateway with injectable results.
type mockGateway struct {
	text  string
	err   error
	calls int
}

func (m *mockGateway) Query(ctx context.Context, query string, deviceState *state.DeviceState) (string, error) {
	m.calls++
	return m.text, m.err
}

// mockModel is a Model with injectable results.
type mockModel struct {
	text   string
	err    error
	calls  int
	prompt string
}

func (m *mockModel) Invoke(ctx context.Context, prompt string) (string, error) {
	m.calls++
	m.prompt = prompt
	return m.text, m.err
}

// mockStates serves a fixed device state.
type mockStates struct {
	state *state.DeviceState
}

func (m *mockStates) GetDeviceState(deviceID string) *state.DeviceState {
	if m.state != nil {
		return m.state
	}
	return &state.DeviceState{DeviceID: deviceID, Liveness: state.LivenessUnknown}
}

// mockRelays records intent dispatches.
type mockRelays struct {
	relay int
	on    bool
	err   error
	calls int
}

func (m *mockRelays) DispatchRelay(deviceID string, relay int, on bool) (*command.PendingCommand, error) {
	m.calls++
	m.relay = relay
	m.on = on
	if m.err != nil {
		return nil, m.err
	}
	return &command.PendingCommand{ID: "cmd-1", DeviceID: deviceID}, nil
}

// mockObservations serves fixed history.
type mockObservations struct {
	observations []telemetry.Observation
	err          error
}

func (m *mockObservations) Recent(ctx context.Context, deviceID string, limit int) ([]telemetry.Observation, error) {
	return m.observations, m.err
}

func onlineState() *state.DeviceState {
	now := time.Now().UTC()
	return &state.DeviceState{
		DeviceID: "dev-1",
		SensorReadings: state.Readings{
			state.ReadingTemperature: 23.5,
			state.ReadingHumidity:    48.0,
		},
		ActuatorStates: state.Actuators{"relay_1": true, "relay_2": false},
		LastUpdate:     &now,
		Liveness:       state.LivenessOnline,
	}
}

func TestRouteGatewayFirst(t *testing.T) {
	gateway := &mockGateway{text: "gateway answer"}
	model := &mockModel{text: "model answer"}
	router := NewRouter(gateway, model, &mockStates{state: onlineState()}, &mockRelays{}, nil, nil)

	answer, err := router.Route(t.Context(), "dev-1", "what is the temperature")
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}
	if answer.Stage != StageGateway || answer.Text != "gateway answer" {
		t.Errorf("answer = %+v, want gateway stage", answer)
	}
	if model.calls != 0 {
		t.Error("model must not be invoked when the gateway answers")
	}
}

func TestRouteFallsBackToLocalPatterns(t *testing.T) {
	gateway := &mockGateway{err: errors.New("gateway down")}
	model := &mockModel{text: "model answer"}
	router := NewRouter(gateway, model, &mockStates{state: onlineState()}, &mockRelays{}, nil, nil)

	answer, err := router.Route(t.Context(), "dev-1", "what is the temperature?")
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}
	if answer.Stage != StageLocal {
		t.Fatalf("stage = %q, want local", answer.Stage)
	}
	if !strings.Contains(answer.Text, "23.5") {
		t.Errorf("answer = %q, want the current temperature", answer.Text)
	}
	if model.calls != 0 {
		t.Error("model must not be invoked when a local pattern matches")
	}
}

func TestRouteLocalPatterns(t *testing.T) {
	tests := []struct {
		query string
		want  string
	}{
		{"current humidity please", "48.0%"},
		{"what's the device status", "dev-1 is online"},
		{"is it online?", "dev-1 is online"},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			router := NewRouter(nil, nil, &mockStates{state: onlineState()}, &mockRelays{}, nil, nil)
			answer, err := router.Route(t.Context(), "dev-1", tt.query)
			if err != nil {
				t.Fatalf("Route() error = %v", err)
			}
			if answer.Stage != StageLocal {
				t.Fatalf("stage = %q, want local", answer.Stage)
			}
			if !strings.Contains(answer.Text, tt.want) {
				t.Errorf("answer = %q, want substring %q", answer.Text, tt.want)
			}
		})
	}
}

func TestRouteMissingReadingAnswersGracefully(t *testing.T) {
	empty := &state.DeviceState{DeviceID: "dev-1", Liveness: state.LivenessOffline}
	router := NewRouter(nil, nil, &mockStates{state: empty}, &mockRelays{}, nil, nil)

	answer, err := router.Route(t.Context(), "dev-1", "temperature?")
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}
	if !strings.Contains(answer.Text, "not available") {
		t.Errorf("answer = %q, want a graceful absence reply", answer.Text)
	}
}

func TestRouteIntentDispatch(t *testing.T) {
	relays := &mockRelays{}
	router := NewRouter(nil, nil, &mockStates{state: onlineState()}, relays, nil, nil)

	answer, err := router.Route(t.Context(), "dev-1", "please switch on the living room")
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}
	if relays.calls != 1 || relays.relay != 2 || !relays.on {
		t.Errorf("dispatch = %+v, want relay 2 on", relays)
	}
	if !strings.Contains(answer.Text, "relay 2") {
		t.Errorf("answer = %q, want confirmation naming relay 2", answer.Text)
	}
}

func TestRouteIntentDispatchFailure(t *testing.T) {
	relays := &mockRelays{err: errors.New("broker gone")}
	router := NewRouter(nil, nil, &mockStates{state: onlineState()}, relays, nil, nil)

	answer, err := router.Route(t.Context(), "dev-1", "turn on relay 3")
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}
	if !strings.Contains(answer.Text, "could not") {
		t.Errorf("answer = %q, want a failure reply", answer.Text)
	}
}

func TestRouteModelLastResort(t *testing.T) {
	model := &mockModel{text: "the model's take"}
	router := NewRouter(nil, model, &mockStates{state: onlineState()}, &mockRelays{}, nil, nil)

	answer, err := router.Route(t.Context(), "dev-1", "why is the pressure dropping?")
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}
	if answer.Stage != StageModel {
		t.Fatalf("stage = %q, want model", answer.Stage)
	}
	if !strings.Contains(model.prompt, "why is the pressure dropping?") {
		t.Error("prompt should embed the user's question")
	}
	if !strings.Contains(model.prompt, "dev-1") {
		t.Error("prompt should embed the device context")
	}
}

func TestRouteAllStagesExhausted(t *testing.T) {
	gateway := &mockGateway{err: errors.New("down")}
	model := &mockModel{err: errors.New("also down")}
	router := NewRouter(gateway, model, &mockStates{state: onlineState()}, &mockRelays{}, nil, nil)

	_, err := router.Route(t.Context(), "dev-1", "why is the pressure dropping?")
	if !errors.Is(err, ErrNoAnswer) {
		t.Errorf("error = %v, want ErrNoAnswer", err)
	}
}

func TestRouteEmptyQuery(t *testing.T) {
	router := NewRouter(nil, nil, &mockStates{}, nil, nil, nil)
	if _, err := router.Route(t.Context(), "dev-1", "  "); err == nil {
		t.Error("Route() should reject an empty query")
	}
}

func TestAnalyze(t *testing.T) {
	model := &mockModel{text: "temperature trending up"}
	recent := &mockObservations{observations: []telemetry.Observation{
		{
			DeviceID:       "dev-1",
			SensorReadings: state.Readings{state.ReadingTemperature: 24.0},
			ReportedAt:     time.Now().UTC(),
		},
	}}
	router := NewRouter(nil, model, &mockStates{state: onlineState()}, nil, recent, nil)

	insight, err := router.Analyze(t.Context(), "dev-1")
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if insight.Analysis != "temperature trending up" {
		t.Errorf("analysis = %q", insight.Analysis)
	}
	if !strings.Contains(model.prompt, "Recent readings") {
		t.Error("prompt should include history when available")
	}

	stored := router.Insights().List()
	if len(stored) != 1 || stored[0].DeviceID != "dev-1" {
		t.Errorf("insights = %v, want the stored analysis", stored)
	}
}

func TestAnalyzeWithoutModel(t *testing.T) {
	router := NewRouter(nil, nil, &mockStates{}, nil, nil, nil)
	if _, err := router.Analyze(t.Context(), "dev-1"); !errors.Is(err, ErrModelUnavailable) {
		t.Errorf("error = %v, want ErrModelUnavailable", err)
	}
}

func TestAnalyzeHistoryFailureIsNotFatal(t *testing.T) {
	model := &mockModel{text: "analysis"}
	recent := &mockObservations{err: errors.New("db locked")}
	router := NewRouter(nil, model, &mockStates{state: onlineState()}, nil, recent, nil)

	if _, err := router.Analyze(t.Context(), "dev-1"); err != nil {
		t.Errorf("Analyze() error = %v, want success without history", err)
	}
}

func TestInsightHistoryEviction(t *testing.T) {
	history := NewInsightHistory()
	for i := 0; i < maxInsights+5; i++ {
		history.Append(Insight{DeviceID: "dev-1", CreatedAt: time.Now()})
	}
	if got := len(history.List()); got != maxInsights {
		t.Errorf("history holds %d insights, want capped at %d", got, maxInsights)
	}
}
