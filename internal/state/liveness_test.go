package state

import (
	"testing"
	"time"
)

func TestLivenessEvaluate(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	eval := LivenessEvaluator{Staleness: 30 * time.Second}

	readings := Readings{ReadingTemperature: 22.0}

	tests := []struct {
		name  string
		state *DeviceState
		want  Liveness
	}{
		{
			name: "fresh update is online",
			state: &DeviceState{
				SensorReadings: readings,
				LastUpdate:     timePtr(now.Add(-10 * time.Second)),
			},
			want: LivenessOnline,
		},
		{
			name: "exactly at threshold is online",
			state: &DeviceState{
				SensorReadings: readings,
				LastUpdate:     timePtr(now.Add(-30 * time.Second)),
			},
			want: LivenessOnline,
		},
		{
			name: "just past threshold is offline",
			state: &DeviceState{
				SensorReadings: readings,
				LastUpdate:     timePtr(now.Add(-30*time.Second - time.Millisecond)),
			},
			want: LivenessOffline,
		},
		{
			name:  "no last update is offline",
			state: &DeviceState{SensorReadings: readings},
			want:  LivenessOffline,
		},
		{
			name: "no readings is offline even when fresh",
			state: &DeviceState{
				SensorReadings: Readings{},
				LastUpdate:     timePtr(now),
			},
			want: LivenessOffline,
		},
		{
			name:  "nil state is offline",
			state: nil,
			want:  LivenessOffline,
		},
		{
			name: "future timestamp from clock skew is online",
			state: &DeviceState{
				SensorReadings: readings,
				LastUpdate:     timePtr(now.Add(2 * time.Second)),
			},
			want: LivenessOnline,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := eval.Evaluate(tt.state, now); got != tt.want {
				t.Errorf("Evaluate() = %v, want %v", got, tt.want)
			}
		})
	}
}
