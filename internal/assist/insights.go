package assist

import (
	"sync"
	"time"
)

// maxInsights bounds the in-memory analysis history.
const maxInsights = 20

// Insight is one stored sensor analysis result.
type Insight struct {
	DeviceID  string    `json:"device_id"`
	Analysis  string    `json:"analysis"`
	CreatedAt time.Time `json:"created_at"`
}

// InsightHistory keeps the most recent analysis results in a
// fixed-size ring. Safe for concurrent use.
type InsightHistory struct {
	mu       sync.RWMutex
	insights []Insight
}

// NewInsightHistory creates an empty insight history.
func NewInsightHistory() *InsightHistory {
	return &InsightHistory{insights: make([]Insight, 0, maxInsights)}
}

// Append records an insight, evicting the oldest when full.
func (h *InsightHistory) Append(insight Insight) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.insights) == maxInsights {
		copy(h.insights, h.insights[1:])
		h.insights = h.insights[:maxInsights-1]
	}
	h.insights = append(h.insights, insight)
}

// List returns insights newest first.
func (h *InsightHistory) List() []Insight {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]Insight, len(h.insights))
	for i, insight := range h.insights {
		out[len(h.insights)-1-i] = insight
	}
	return out
}
