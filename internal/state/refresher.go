package state

import (
	"context"
	"time"
)

// refresher drives the reconciliation cycle for a single device. Each
// device gets its own goroutine, so a slow source for one device never
// delays another. Cycles are strictly sequential: the next tick is
// scheduled only after the current one completes.
type refresher struct {
	engine   *Engine
	deviceID string

	interval time.Duration
	failures int // consecutive cycles where every source query failed
	degraded bool
}

// run executes refresh cycles until ctx is cancelled. The first cycle
// runs immediately so startup publishes a view without waiting a full
// poll interval. An in-flight cycle always completes before exit.
func (r *refresher) run(ctx context.Context) {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		r.tick(ctx)
		timer.Reset(r.interval)
	}
}

// tick runs one reconciliation cycle: query sources, merge, fabricate
// if needed, evaluate liveness, publish.
func (r *refresher) tick(ctx context.Context) {
	e := r.engine
	now := e.now()

	snapshots, allFailed := e.collect(ctx, r.deviceID)
	r.account(allFailed)

	previous := e.current(r.deviceID)
	merged := Merge(previous, r.deviceID, snapshots...)

	if e.opts.Synthetic && (r.degraded || r.staleOrEmpty(merged, now)) {
		// Fabricated values sit below every real source so any observed
		// field still wins. Walking from the merged view keeps the
		// fabricated series continuous with the last known values.
		synthetic := e.synth.Snapshot(merged, now)
		ordered := append([]*SourceSnapshot{synthetic}, snapshots...)
		merged = Merge(previous, r.deviceID, ordered...)
	}

	merged.Liveness = e.eval.Evaluate(merged, now)
	e.publish(merged)

	e.logger.Debug("refresh cycle complete",
		"device_id", r.deviceID,
		"liveness", string(merged.Liveness),
		"synthetic", merged.IsSynthetic,
		"degraded", r.degraded)
}

// account updates the failure counter and mode transitions, and sets
// the interval for the next cycle.
func (r *refresher) account(allFailed bool) {
	e := r.engine

	if !allFailed {
		if r.degraded {
			r.degraded = false
			e.logger.Info("device refresh recovered",
				"device_id", r.deviceID,
				"failed_cycles", r.failures)
		}
		r.failures = 0
		r.interval = e.opts.PollInterval
		return
	}

	r.failures++
	if !r.degraded && r.failures >= e.opts.DegradedThreshold {
		r.degraded = true
		e.logger.Warn("device refresh entering degraded mode",
			"device_id", r.deviceID,
			"consecutive_failures", r.failures)
	}
	if r.degraded {
		next := r.interval * 2
		if next > e.opts.DegradedMaxInterval {
			next = e.opts.DegradedMaxInterval
		}
		r.interval = next
	}
}

// staleOrEmpty reports whether the merged view needs fabricated data:
// no readings at all, no report timestamp, or a timestamp older than
// the synthetic threshold.
func (r *refresher) staleOrEmpty(merged *DeviceState, now time.Time) bool {
	if len(merged.SensorReadings) == 0 || merged.LastUpdate == nil {
		return true
	}
	return now.Sub(*merged.LastUpdate) > r.engine.opts.SyntheticAfter
}
