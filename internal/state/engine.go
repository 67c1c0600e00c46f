package state

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Default reconciliation tuning, used when Options fields are zero.
const (
	DefaultPollInterval        = 5 * time.Second
	DefaultStaleness           = 30 * time.Second
	DefaultSyntheticAfter      = 60 * time.Second
	DefaultDegradedThreshold   = 3
	DefaultDegradedMaxInterval = 40 * time.Second
	DefaultSourceTimeout       = 5 * time.Second
)

// Options tunes the reconciliation engine.
type Options struct {
	// PollInterval is the per-device refresh cadence in normal mode.
	PollInterval time.Duration

	// Staleness is the maximum report age for a device to be online.
	Staleness time.Duration

	// SyntheticAfter is the report age past which the synthesizer takes
	// over fabricating readings.
	SyntheticAfter time.Duration

	// DegradedThreshold is the number of consecutive all-sources-failed
	// cycles before a refresher enters degraded mode.
	DegradedThreshold int

	// DegradedMaxInterval caps the backoff interval in degraded mode.
	DegradedMaxInterval time.Duration

	// SourceTimeout bounds each individual source query within a cycle.
	SourceTimeout time.Duration

	// Synthetic enables fabricated readings for absent or stale data.
	Synthetic bool
}

func (o *Options) withDefaults() {
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.Staleness <= 0 {
		o.Staleness = DefaultStaleness
	}
	if o.SyntheticAfter <= 0 {
		o.SyntheticAfter = DefaultSyntheticAfter
	}
	if o.DegradedThreshold <= 0 {
		o.DegradedThreshold = DefaultDegradedThreshold
	}
	if o.DegradedMaxInterval <= 0 {
		o.DegradedMaxInterval = DefaultDegradedMaxInterval
	}
	if o.SourceTimeout <= 0 {
		o.SourceTimeout = DefaultSourceTimeout
	}
}

// Engine reconciles device state from the durable store, shadow store,
// and live cache, and publishes one consistent snapshot per device.
//
// All published snapshots are immutable; the engine swaps whole
// DeviceState values under a write lock and hands out clones, so
// readers never block writers and never observe partial merges.
type Engine struct {
	durable DurableStore
	shadow  ShadowStore // nil when the shadow service is not configured
	live    LiveCache   // nil when bus ingestion is not running
	opts    Options
	logger  Logger
	synth   *Synthesizer
	eval    LivenessEvaluator
	now     func() time.Time

	mu     sync.RWMutex
	states map[string]*DeviceState

	listeners []func(*DeviceState)
	wg        sync.WaitGroup
}

// NewEngine creates a reconciliation engine. The shadow store and live
// cache may be nil; the engine merges whatever sources exist. A nil
// logger disables logging.
func NewEngine(durable DurableStore, shadow ShadowStore, live LiveCache, opts Options, logger Logger) *Engine {
	opts.withDefaults()
	if logger == nil {
		logger = noopLogger{}
	}
	return &Engine{
		durable: durable,
		shadow:  shadow,
		live:    live,
		opts:    opts,
		logger:  logger,
		synth:   NewSynthesizer(opts.PollInterval),
		eval:    LivenessEvaluator{Staleness: opts.Staleness},
		now:     func() time.Time { return time.Now().UTC() },
		states:  make(map[string]*DeviceState),
	}
}

// OnUpdate registers a callback invoked with a clone of every newly
// published snapshot. Register all listeners before Start; callbacks
// run on refresher goroutines and must not block.
func (e *Engine) OnUpdate(fn func(*DeviceState)) {
	e.listeners = append(e.listeners, fn)
}

// Start launches one refresher goroutine per tracked device. Refreshers
// run until ctx is cancelled; each finishes its in-flight cycle before
// exiting. Call Stop to wait for them.
func (e *Engine) Start(ctx context.Context, deviceIDs []string) {
	for _, id := range deviceIDs {
		r := &refresher{engine: e, deviceID: id, interval: e.opts.PollInterval}
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			r.run(ctx)
		}()
	}
	e.logger.Info("reconciliation engine started",
		"devices", len(deviceIDs),
		"poll_interval", e.opts.PollInterval.String(),
		"synthetic", e.opts.Synthetic)
}

// Stop blocks until all refreshers have exited. Cancel the context
// passed to Start first.
func (e *Engine) Stop() {
	e.wg.Wait()
	e.logger.Info("reconciliation engine stopped")
}

// GetDeviceState returns the current snapshot for a device.
//
// The engine always answers with its best-effort view. A device that
// has never been seen gets a synthetic snapshot fabricated on first
// access when synthesis is enabled; otherwise an empty snapshot with
// unknown liveness. The returned state is a clone the caller owns.
func (e *Engine) GetDeviceState(deviceID string) *DeviceState {
	e.mu.RLock()
	current, ok := e.states[deviceID]
	e.mu.RUnlock()
	if ok {
		return current.Clone()
	}

	if !e.opts.Synthetic {
		return &DeviceState{
			DeviceID:       deviceID,
			SensorReadings: make(Readings),
			ActuatorStates: make(Actuators),
			Liveness:       LivenessUnknown,
		}
	}

	now := e.now()
	fabricated := Merge(nil, deviceID, e.synth.Snapshot(nil, now))
	fabricated.Liveness = e.eval.Evaluate(fabricated, now)
	e.publish(fabricated)
	return fabricated.Clone()
}

// ApplyActuatorOverlay records an optimistic actuator prediction after
// a command is dispatched. Only the named actuator changes; LastUpdate
// and liveness are untouched so the overlay never masks staleness. The
// next merge that observes the actuator replaces the prediction.
func (e *Engine) ApplyActuatorOverlay(deviceID, target string, value bool) *DeviceState {
	e.mu.Lock()
	next := e.states[deviceID].Clone()
	if next == nil {
		next = &DeviceState{
			DeviceID:       deviceID,
			SensorReadings: make(Readings),
			Liveness:       LivenessUnknown,
		}
	}
	if next.ActuatorStates == nil {
		next.ActuatorStates = make(Actuators)
	}
	next.ActuatorStates[target] = value
	e.states[deviceID] = next
	e.mu.Unlock()

	e.notify(next)
	return next.Clone()
}

// Devices returns the IDs with a published snapshot, for summaries.
func (e *Engine) Devices() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ids := make([]string, 0, len(e.states))
	for id := range e.states {
		ids = append(ids, id)
	}
	return ids
}

// current returns the stored snapshot without cloning. Callers must
// treat it as read-only.
func (e *Engine) current(deviceID string) *DeviceState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.states[deviceID]
}

// publish atomically replaces the stored snapshot and notifies
// listeners.
func (e *Engine) publish(next *DeviceState) {
	e.mu.Lock()
	e.states[next.DeviceID] = next
	e.mu.Unlock()
	e.notify(next)
}

func (e *Engine) notify(next *DeviceState) {
	for _, fn := range e.listeners {
		fn(next.Clone())
	}
}

// collect queries all configured sources concurrently, each under its
// own timeout, and returns snapshots ordered lowest precedence first:
// durable store, shadow store, live cache. A source that fails or has
// no data contributes a nil snapshot.
//
// allFailed reports whether every remote query errored (ErrNotFound is
// no-data, not an error for this purpose). The live cache is a local
// read and does not participate in failure accounting.
func (e *Engine) collect(ctx context.Context, deviceID string) (snapshots []*SourceSnapshot, allFailed bool) {
	var (
		durableSnap, shadowSnap *SourceSnapshot
		durableErr, shadowErr   error
	)

	g, gctx := errgroup.WithContext(ctx)

	if e.durable != nil {
		g.Go(func() error {
			qctx, cancel := context.WithTimeout(gctx, e.opts.SourceTimeout)
			defer cancel()
			durableSnap, durableErr = e.querySource(qctx, deviceID, "durable", e.durable.QueryLatest)
			return nil
		})
	}
	if e.shadow != nil {
		g.Go(func() error {
			qctx, cancel := context.WithTimeout(gctx, e.opts.SourceTimeout)
			defer cancel()
			shadowSnap, shadowErr = e.querySource(qctx, deviceID, "shadow", e.shadow.FetchReported)
			return nil
		})
	}
	_ = g.Wait()

	var liveSnap *SourceSnapshot
	if e.live != nil {
		liveSnap = e.live.Read(deviceID)
	}

	queried := 0
	failed := 0
	if e.durable != nil {
		queried++
		if durableErr != nil {
			failed++
		}
	}
	if e.shadow != nil {
		queried++
		if shadowErr != nil {
			failed++
		}
	}

	return []*SourceSnapshot{durableSnap, shadowSnap, liveSnap},
		queried > 0 && failed == queried
}

// querySource runs one source query, mapping ErrNotFound to an empty
// result and logging real failures.
func (e *Engine) querySource(
	ctx context.Context,
	deviceID, source string,
	query func(context.Context, string) (*SourceSnapshot, error),
) (*SourceSnapshot, error) {
	snap, err := query(ctx, deviceID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			e.logger.Debug("source has no data for device",
				"source", source, "device_id", deviceID)
			return nil, nil
		}
		e.logger.Warn("source query failed",
			"source", source, "device_id", deviceID, "error", err)
		return nil, err
	}
	return snap, nil
}
