package state

// Merge combines per-source snapshots into a single DeviceState.
//
// Snapshots are applied in ascending precedence order: each later
// snapshot overwrites earlier ones field by field, so the last snapshot
// in the slice wins any conflict. Callers pass sources ordered
// lowest-precedence first (synthetic, durable store, shadow store,
// live cache).
//
// Merging is strictly additive per field. A snapshot that omits a field
// never clears a value contributed by a lower-precedence snapshot or
// retained from the previous state. When every snapshot is empty the
// result is an unchanged clone of previous.
//
// LastUpdate never moves backwards: a snapshot whose ReportedAt
// precedes the already-merged timestamp contributes its data fields but
// not its timestamp.
//
// Liveness is not computed here; callers re-evaluate it against the
// merged result.
//
// Parameters:
//   - previous: the prior published state, or nil for a first merge
//   - deviceID: stable device identifier stamped onto the result
//   - snapshots: per-source partial views, lowest precedence first
//
// Returns:
//   - *DeviceState: a freshly allocated merged state, never nil
func Merge(previous *DeviceState, deviceID string, snapshots ...*SourceSnapshot) *DeviceState {
	merged := previous.Clone()
	if merged == nil {
		merged = &DeviceState{Liveness: LivenessUnknown}
	}
	merged.DeviceID = deviceID
	if merged.SensorReadings == nil {
		merged.SensorReadings = make(Readings)
	}
	if merged.ActuatorStates == nil {
		merged.ActuatorStates = make(Actuators)
	}

	observed := false
	fabricated := false

	for _, snap := range snapshots {
		if snap.IsEmpty() {
			continue
		}
		if snap.Synthetic {
			fabricated = true
		} else {
			observed = true
		}

		for k, v := range snap.SensorReadings {
			merged.SensorReadings[k] = v
		}
		for k, v := range snap.ActuatorStates {
			merged.ActuatorStates[k] = v
		}
		if snap.UptimeSeconds != nil {
			uptime := *snap.UptimeSeconds
			merged.UptimeSeconds = &uptime
		}
		if snap.SignalStrength != nil {
			rssi := *snap.SignalStrength
			merged.SignalStrength = &rssi
		}
		if snap.ReportedAt != nil {
			ts := snap.ReportedAt.UTC()
			if merged.LastUpdate == nil || ts.After(*merged.LastUpdate) {
				merged.LastUpdate = &ts
			}
		}
	}

	switch {
	case observed:
		merged.IsSynthetic = false
	case fabricated:
		merged.IsSynthetic = true
	}
	// Neither observed nor fabricated: no snapshot contributed, keep
	// the previous synthetic flag.

	return merged
}
