package command

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/thingview-core/internal/state"
)

// Kind discriminates the supported command families.
type Kind string

// Command kinds.
const (
	// KindRelayControl switches one relay on or off.
	KindRelayControl Kind = "relay_control"

	// KindGeneric carries an arbitrary named command with optional
	// parameters, passed through to the device as-is.
	KindGeneric Kind = "generic"
)

// PendingCommand is the record of a dispatched command. Dispatch is
// fire and forget: the device does not acknowledge, so the record only
// proves what was sent and when.
type PendingCommand struct {
	ID       string    `json:"id"`
	DeviceID string    `json:"device_id"`
	Kind     Kind      `json:"kind"`
	Target   string    `json:"target"`
	Value    any       `json:"value,omitempty"`
	IssuedAt time.Time `json:"issued_at"`
}

// Channel publishes a command payload to a device's command topic.
type Channel interface {
	PublishCommand(deviceID string, payload []byte) error
}

// StateOverlay applies optimistic actuator predictions after dispatch.
// Satisfied by the state engine.
type StateOverlay interface {
	ApplyActuatorOverlay(deviceID, target string, value bool) *state.DeviceState
}

// Logger defines the logging interface the dispatcher requires.
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

// Dispatcher validates commands, publishes them to the bus, and
// records optimistic actuator predictions in the state engine.
//
// Publish failure aborts the whole operation: the overlay is applied
// only after the broker accepts the payload, so the optimistic view
// never claims a command that was not sent.
type Dispatcher struct {
	channel Channel
	states  StateOverlay
	logger  Logger
}

// NewDispatcher creates a command dispatcher. A nil logger disables
// logging.
func NewDispatcher(channel Channel, states StateOverlay, logger Logger) *Dispatcher {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Dispatcher{channel: channel, states: states, logger: logger}
}

// DispatchRelay switches one relay on a device.
//
// Parameters:
//   - deviceID: Target device
//   - relay: Relay number (1-based)
//   - on: Desired relay state
//
// Returns:
//   - *PendingCommand: Record of the dispatched command
//   - error: ErrInvalidCommand or ErrPublishFailed
func (d *Dispatcher) DispatchRelay(deviceID string, relay int, on bool) (*PendingCommand, error) {
	return d.Dispatch(deviceID, KindRelayControl, state.RelayName(relay), on)
}

// Dispatch validates and publishes a command.
//
// For relay control, target must be a canonical relay name ("relay_2")
// and value a bool; the optimistic overlay is applied after a
// successful publish. Generic commands take any target as the command
// name and an optional map[string]any of parameters merged into the
// payload.
//
// Parameters:
//   - deviceID: Target device
//   - kind: Command family
//   - target: Relay name or generic command name
//   - value: Desired state (bool) or parameter map
//
// Returns:
//   - *PendingCommand: Record with a fresh correlation id
//   - error: ErrInvalidCommand or ErrPublishFailed
func (d *Dispatcher) Dispatch(deviceID string, kind Kind, target string, value any) (*PendingCommand, error) {
	if deviceID == "" {
		return nil, fmt.Errorf("%w: device id is required", ErrInvalidCommand)
	}
	if target == "" {
		return nil, fmt.Errorf("%w: target is required", ErrInvalidCommand)
	}

	issuedAt := time.Now().UTC()

	var payload []byte
	var err error
	switch kind {
	case KindRelayControl:
		payload, err = relayPayload(target, value, issuedAt)
	case KindGeneric:
		payload, err = genericPayload(target, value, issuedAt)
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidCommand, kind)
	}
	if err != nil {
		return nil, err
	}

	if err := d.channel.PublishCommand(deviceID, payload); err != nil {
		d.logger.Error("command publish failed",
			"device_id", deviceID, "kind", string(kind), "target", target, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	pending := &PendingCommand{
		ID:       uuid.New().String(),
		DeviceID: deviceID,
		Kind:     kind,
		Target:   target,
		Value:    value,
		IssuedAt: issuedAt,
	}

	if kind == KindRelayControl && d.states != nil {
		on, _ := value.(bool)
		d.states.ApplyActuatorOverlay(deviceID, target, on)
	}

	d.logger.Info("command dispatched",
		"command_id", pending.ID,
		"device_id", deviceID,
		"kind", string(kind),
		"target", target)

	return pending, nil
}

// relayPayload builds the firmware's relay control message:
//
//	{"command": "relay_control", "relay": 2, "state": true, "timestamp": "..."}
func relayPayload(target string, value any, issuedAt time.Time) ([]byte, error) {
	relay, err := relayNumber(target)
	if err != nil {
		return nil, err
	}
	on, ok := value.(bool)
	if !ok {
		return nil, fmt.Errorf("%w: relay control needs a bool value, got %T", ErrInvalidCommand, value)
	}

	return json.Marshal(map[string]any{
		"command":   "relay_control",
		"relay":     relay,
		"state":     on,
		"timestamp": issuedAt.Format(time.RFC3339),
	})
}

// genericPayload builds a pass-through command message. A parameter map
// is merged into the payload; the command and timestamp keys always win.
func genericPayload(target string, value any, issuedAt time.Time) ([]byte, error) {
	payload := map[string]any{}
	if params, ok := value.(map[string]any); ok {
		for k, v := range params {
			payload[k] = v
		}
	} else if value != nil {
		return nil, fmt.Errorf("%w: generic command parameters must be a map, got %T", ErrInvalidCommand, value)
	}
	payload["command"] = target
	payload["timestamp"] = issuedAt.Format(time.RFC3339)

	return json.Marshal(payload)
}

// relayNumber extracts the relay number from a canonical actuator name.
func relayNumber(target string) (int, error) {
	suffix, ok := strings.CutPrefix(target, "relay_")
	if !ok {
		return 0, fmt.Errorf("%w: relay target must look like relay_N, got %q", ErrInvalidCommand, target)
	}
	relay, err := strconv.Atoi(suffix)
	if err != nil || relay < 1 {
		return 0, fmt.Errorf("%w: bad relay number in %q", ErrInvalidCommand, target)
	}
	return relay, nil
}
