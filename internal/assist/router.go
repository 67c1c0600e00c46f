package assist

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/nerrad567/thingview-core/internal/command"
	"github.com/nerrad567/thingview-core/internal/state"
	"github.com/nerrad567/thingview-core/internal/telemetry"
)

// Routing stage names, reported with every answer so callers can tell
// where it came from.
const (
	StageGateway = "gateway"
	StageLocal   = "local"
	StageModel   = "model"
)

// analysisWindow is how many recent observations feed an analysis.
const analysisWindow = 10

// Gateway answers queries through the external reasoning gateway.
type Gateway interface {
	Query(ctx context.Context, query string, deviceState *state.DeviceState) (string, error)
}

// Model invokes a hosted language model with a complete prompt.
type Model interface {
	Invoke(ctx context.Context, prompt string) (string, error)
}

// StateReader serves the current merged view of a device.
type StateReader interface {
	GetDeviceState(deviceID string) *state.DeviceState
}

// RelayDispatcher sends relay commands recognized in queries.
type RelayDispatcher interface {
	DispatchRelay(deviceID string, relay int, on bool) (*command.PendingCommand, error)
}

// ObservationSource provides recent persisted telemetry for analysis.
type ObservationSource interface {
	Recent(ctx context.Context, deviceID string, limit int) ([]telemetry.Observation, error)
}

// Logger defines the logging interface the router requires.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(msg string, args ...any) {}
func (noopLogger) Info(msg string, args ...any)  {}
func (noopLogger) Warn(msg string, args ...any)  {}
func (noopLogger) Error(msg string, args ...any) {}

// Answer is a routed query result.
type Answer struct {
	Text  string `json:"response"`
	Stage string `json:"source"`
}

// Router answers natural language queries about devices through a
// fixed fallback chain: the reasoning gateway first, then local
// pattern matching, then a direct model invocation. A stage failing or
// declining hands the query to the next; only when every stage is
// exhausted does the router give up.
type Router struct {
	gateway  Gateway // nil when no gateway is configured
	model    Model   // nil when no model endpoint is configured
	states   StateReader
	relays   RelayDispatcher
	recent   ObservationSource // nil disables history in analysis prompts
	insights *InsightHistory
	logger   Logger
}

// NewRouter creates a query router. Gateway, model, and observation
// source are optional; the chain skips what is not configured.
func NewRouter(gateway Gateway, model Model, states StateReader, relays RelayDispatcher, recent ObservationSource, logger Logger) *Router {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Router{
		gateway:  gateway,
		model:    model,
		states:   states,
		relays:   relays,
		recent:   recent,
		insights: NewInsightHistory(),
		logger:   logger,
	}
}

// Insights returns the stored analysis history.
func (r *Router) Insights() *InsightHistory {
	return r.insights
}

// Route answers a query about one device.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - deviceID: Device the query concerns
//   - query: Free-form user text
//
// Returns:
//   - Answer: The reply and the stage that produced it
//   - error: ErrNoAnswer when every stage failed or declined
func (r *Router) Route(ctx context.Context, deviceID, query string) (Answer, error) {
	if strings.TrimSpace(query) == "" {
		return Answer{}, fmt.Errorf("query is required")
	}

	deviceState := r.states.GetDeviceState(deviceID)

	if r.gateway != nil {
		text, err := r.gateway.Query(ctx, query, deviceState)
		if err == nil {
			return Answer{Text: text, Stage: StageGateway}, nil
		}
		r.logger.Warn("gateway stage failed, falling back",
			"device_id", deviceID, "error", err)
	}

	if text, ok := r.answerLocally(deviceID, query, deviceState); ok {
		return Answer{Text: text, Stage: StageLocal}, nil
	}

	if r.model != nil {
		text, err := r.model.Invoke(ctx, queryPrompt(query, deviceState))
		if err == nil {
			return Answer{Text: text, Stage: StageModel}, nil
		}
		r.logger.Warn("model stage failed",
			"device_id", deviceID, "error", err)
	}

	return Answer{}, ErrNoAnswer
}

// answerLocally handles queries that need no external reasoning:
// recognized relay commands and direct reading lookups.
func (r *Router) answerLocally(deviceID, query string, deviceState *state.DeviceState) (string, bool) {
	if intent, ok := command.ParseIntent(query); ok && r.relays != nil {
		if _, err := r.relays.DispatchRelay(deviceID, intent.Relay, intent.On); err != nil {
			r.logger.Warn("intent dispatch failed",
				"device_id", deviceID, "relay", intent.Relay, "error", err)
			return fmt.Sprintf("Sorry, I could not reach relay %d.", intent.Relay), true
		}
		verb := "off"
		if intent.On {
			verb = "on"
		}
		return fmt.Sprintf("Command sent: relay %d turned %s.", intent.Relay, verb), true
	}

	lower := strings.ToLower(query)
	switch {
	case strings.Contains(lower, "temperature") || strings.Contains(lower, "temp"):
		if v, ok := deviceState.Temperature(); ok {
			return fmt.Sprintf("The current temperature is %.1f°C.", v), true
		}
		return "Temperature is not available right now.", true

	case strings.Contains(lower, "humidity"):
		if v, ok := deviceState.Humidity(); ok {
			return fmt.Sprintf("The current humidity is %.1f%%.", v), true
		}
		return "Humidity is not available right now.", true

	case strings.Contains(lower, "status") || strings.Contains(lower, "online") || strings.Contains(lower, "device"):
		return statusSummary(deviceState), true
	}

	return "", false
}

// statusSummary renders a one-paragraph device overview.
func statusSummary(s *state.DeviceState) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s is %s", s.DeviceID, s.Liveness)
	if s.LastUpdate != nil {
		fmt.Fprintf(&b, " (last update %s)", s.LastUpdate.Format(time.RFC3339))
	}
	b.WriteString(".")

	var on []string
	for name, active := range s.ActuatorStates {
		if active {
			on = append(on, name)
		}
	}
	sort.Strings(on)
	if len(on) > 0 {
		fmt.Fprintf(&b, " Active relays: %s.", strings.Join(on, ", "))
	}
	if s.IsSynthetic {
		b.WriteString(" Current readings are simulated.")
	}
	return b.String()
}

// queryPrompt builds the model prompt for a free-form query, embedding
// the current device view as JSON context.
func queryPrompt(query string, deviceState *state.DeviceState) string {
	context, err := json.Marshal(deviceState)
	if err != nil {
		context = []byte("{}")
	}
	return fmt.Sprintf(
		"You are an IoT assistant. Current device state:\n%s\n\nAnswer the user's question concisely.\n\nQuestion: %s",
		context, query)
}

// Analyze asks the model for an assessment of recent sensor behavior
// and stores the result in the insight history.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - deviceID: Device to analyze
//
// Returns:
//   - Insight: The stored analysis
//   - error: ErrModelUnavailable when no model is configured or the
//     invocation fails
func (r *Router) Analyze(ctx context.Context, deviceID string) (Insight, error) {
	if r.model == nil {
		return Insight{}, ErrModelUnavailable
	}

	deviceState := r.states.GetDeviceState(deviceID)

	var history []telemetry.Observation
	if r.recent != nil {
		var err error
		history, err = r.recent.Recent(ctx, deviceID, analysisWindow)
		if err != nil {
			r.logger.Warn("analysis proceeding without history",
				"device_id", deviceID, "error", err)
		}
	}

	text, err := r.model.Invoke(ctx, analysisPrompt(deviceState, history))
	if err != nil {
		return Insight{}, err
	}

	insight := Insight{
		DeviceID:  deviceID,
		Analysis:  text,
		CreatedAt: time.Now().UTC(),
	}
	r.insights.Append(insight)

	r.logger.Info("sensor analysis stored", "device_id", deviceID)
	return insight, nil
}

// analysisPrompt builds the model prompt for a sensor analysis.
func analysisPrompt(deviceState *state.DeviceState, history []telemetry.Observation) string {
	var b strings.Builder
	b.WriteString("Analyze the following IoT sensor data. Point out trends, anomalies, and anything needing attention. Keep it under 150 words.\n\nCurrent state:\n")

	current, err := json.Marshal(deviceState)
	if err != nil {
		current = []byte("{}")
	}
	b.Write(current)

	if len(history) > 0 {
		b.WriteString("\n\nRecent readings, newest first:\n")
		for _, obs := range history {
			line, err := json.Marshal(map[string]any{
				"reported_at":     obs.ReportedAt.Format(time.RFC3339),
				"sensor_readings": obs.SensorReadings,
			})
			if err != nil {
				continue
			}
			b.Write(line)
			b.WriteString("\n")
		}
	}

	return b.String()
}
