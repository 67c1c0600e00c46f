package shadow

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nerrad567/thingview-core/internal/state"
)

const (
	defaultTimeout  = 5 * time.Second
	maxResponseSize = 1 << 20 // 1 MB
)

// Client fetches reported device documents from the shadow service.
// It implements state.ShadowStore.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a shadow client.
//
// Parameters:
//   - baseURL: Shadow service base URL, e.g. "https://shadow.example.com"
//   - timeout: Per-request timeout (default 5s when zero)
//
// Returns:
//   - *Client: Client ready for use
//   - error: If the base URL is missing or malformed
func New(baseURL string, timeout time.Duration) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("shadow base url is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("parsing shadow base url: %w", err)
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// shadowDocument is the wire shape of a shadow GET response. Only the
// reported section matters; desired state is the command path's concern.
type shadowDocument struct {
	State struct {
		Reported reportedState `json:"reported"`
	} `json:"state"`
}

type reportedState struct {
	SensorData     map[string]any  `json:"sensor_data"`
	Relays         map[string]bool `json:"relays"`
	UptimeSeconds  *int64          `json:"uptime_seconds"`
	SignalStrength *int            `json:"wifi_rssi"`
	Timestamp      string          `json:"timestamp"`
}

// FetchReported retrieves the last reported shadow document for a
// device and maps it to a merge source snapshot.
//
// A missing shadow (HTTP 404) returns state.ErrNotFound, which the
// engine treats as no data rather than a source failure. Any other
// non-200 status, transport error, or undecodable body is a failure.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - deviceID: Thing name the shadow is registered under
//
// Returns:
//   - *state.SourceSnapshot: Reported values, partial fields allowed
//   - error: state.ErrNotFound or the underlying failure
func (c *Client) FetchReported(ctx context.Context, deviceID string) (*state.SourceSnapshot, error) {
	if deviceID == "" {
		return nil, fmt.Errorf("device id is required")
	}

	endpoint := fmt.Sprintf("%s/things/%s/shadow", c.baseURL, url.PathEscape(deviceID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating shadow request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching shadow: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("reading shadow response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, fmt.Errorf("%w: no shadow for %s", state.ErrNotFound, deviceID)
	default:
		return nil, fmt.Errorf("shadow fetch failed: HTTP %d", resp.StatusCode)
	}

	var doc shadowDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("decoding shadow document: %w", err)
	}

	return snapshotFromReported(doc.State.Reported), nil
}

// snapshotFromReported maps a reported document to a source snapshot.
// The document timestamp is used when parseable; otherwise the report
// time is left unset so the merger never treats a stale document as
// fresh.
func snapshotFromReported(reported reportedState) *state.SourceSnapshot {
	snap := &state.SourceSnapshot{}

	if len(reported.SensorData) > 0 {
		snap.SensorReadings = make(state.Readings, len(reported.SensorData))
		for k, v := range reported.SensorData {
			snap.SensorReadings[k] = v
		}
	}
	if len(reported.Relays) > 0 {
		snap.ActuatorStates = make(state.Actuators, len(reported.Relays))
		for k, v := range reported.Relays {
			snap.ActuatorStates[normalizeRelayKey(k)] = v
		}
	}
	if reported.UptimeSeconds != nil {
		uptime := *reported.UptimeSeconds
		snap.UptimeSeconds = &uptime
	}
	if reported.SignalStrength != nil {
		rssi := *reported.SignalStrength
		snap.SignalStrength = &rssi
	}
	if ts, ok := state.ParseTimestamp(reported.Timestamp); ok {
		snap.ReportedAt = &ts
	}

	return snap
}

// normalizeRelayKey maps bare relay numbers ("2") to canonical actuator
// names ("relay_2"). Firmware versions differ on which form they report.
func normalizeRelayKey(key string) string {
	if key == "" {
		return key
	}
	if key[0] >= '0' && key[0] <= '9' {
		return "relay_" + key
	}
	return key
}
