package state

import "time"

// LivenessEvaluator derives a device's liveness from its merged state.
// Evaluation fails closed: any condition that cannot be verified yields
// offline, never online.
type LivenessEvaluator struct {
	// Staleness is the maximum age of LastUpdate for a device to be
	// considered online.
	Staleness time.Duration
}

// Evaluate computes liveness for the given state at the given instant.
//
// A device is online only when all of the following hold: LastUpdate is
// set, its age relative to now does not exceed the staleness threshold,
// and at least one sensor reading is present. Everything else is
// offline.
func (e LivenessEvaluator) Evaluate(s *DeviceState, now time.Time) Liveness {
	if s == nil || s.LastUpdate == nil || s.LastUpdate.IsZero() {
		return LivenessOffline
	}
	if len(s.SensorReadings) == 0 {
		return LivenessOffline
	}
	if now.UTC().Sub(s.LastUpdate.UTC()) > e.Staleness {
		return LivenessOffline
	}
	return LivenessOnline
}
