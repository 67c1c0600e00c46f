package ingest

import (
	"sync"
	"time"
)

// maxAlerts bounds the in-memory alert history.
const maxAlerts = 50

// Alert is one device-originated alert received from the bus.
type Alert struct {
	DeviceID   string    `json:"device_id"`
	Type       string    `json:"type"`
	Message    string    `json:"message"`
	Severity   string    `json:"severity"`
	ReceivedAt time.Time `json:"received_at"`
}

// AlertRing keeps the most recent alerts in a fixed-size ring. Safe for
// concurrent use.
type AlertRing struct {
	mu     sync.RWMutex
	alerts []Alert
}

// NewAlertRing creates an empty alert ring.
func NewAlertRing() *AlertRing {
	return &AlertRing{alerts: make([]Alert, 0, maxAlerts)}
}

// Append records an alert, evicting the oldest when full.
func (r *AlertRing) Append(alert Alert) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.alerts) == maxAlerts {
		copy(r.alerts, r.alerts[1:])
		r.alerts = r.alerts[:maxAlerts-1]
	}
	r.alerts = append(r.alerts, alert)
}

// List returns alerts newest first, optionally filtered by device.
// Pass an empty deviceID for all devices.
func (r *AlertRing) List(deviceID string) []Alert {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Alert, 0, len(r.alerts))
	for i := len(r.alerts) - 1; i >= 0; i-- {
		if deviceID == "" || r.alerts[i].DeviceID == deviceID {
			out = append(out, r.alerts[i])
		}
	}
	return out
}
