package state

import (
	"math/rand/v2"
	"sync"
	"time"
)

// Synthetic value bounds. Initial draws land inside the init ranges;
// subsequent cycles random-walk from the previous value and clamp to
// the hard bounds so fabricated series stay plausible.
const (
	synthTempInitMin = 22.0
	synthTempInitMax = 29.0
	synthTempStep    = 0.5
	synthTempMin     = 20.0
	synthTempMax     = 30.0

	synthHumidityInitMin = 40.0
	synthHumidityInitMax = 65.0
	synthHumidityStep    = 2.0
	synthHumidityMin     = 35.0
	synthHumidityMax     = 70.0

	synthPressureMin = 995.0
	synthPressureMax = 1015.0

	synthUptimeInitMin = 1000
	synthUptimeInitMax = 100000

	synthRSSIMin = -75
	synthRSSIMax = -45

	synthRelayCount = 4
)

// Synthesizer fabricates plausible sensor snapshots for devices with no
// fresh observed data. Values are continuous with the previous state
// where one exists, so a fabricated series looks like a drifting sensor
// rather than noise.
//
// Safe for concurrent use; the engine shares one Synthesizer across all
// device refreshers.
type Synthesizer struct {
	interval time.Duration

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSynthesizer creates a Synthesizer. The interval is the refresh
// cadence, used to advance fabricated uptime between cycles.
func NewSynthesizer(interval time.Duration) *Synthesizer {
	return newSynthesizer(interval, rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())))
}

// newSynthesizer allows tests to inject a seeded source.
func newSynthesizer(interval time.Duration, rng *rand.Rand) *Synthesizer {
	return &Synthesizer{interval: interval, rng: rng}
}

// Snapshot fabricates a complete source snapshot for one cycle.
//
// Temperature and humidity walk from the previous state's values when
// present, bounded per step and clamped to their ranges. Pressure,
// motion, signal strength, and relay states are redrawn each cycle.
// Uptime continues from the previous value plus the refresh interval,
// or is drawn fresh when there is no history.
//
// Parameters:
//   - previous: the prior published state, or nil when the device has
//     never been seen
//   - now: the current instant, stamped as the report time
//
// Returns:
//   - *SourceSnapshot: a fully populated snapshot with Synthetic set
func (s *Synthesizer) Snapshot(previous *DeviceState, now time.Time) *SourceSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	readings := Readings{
		ReadingTemperature: s.walk(previous, ReadingTemperature,
			synthTempInitMin, synthTempInitMax, synthTempStep, synthTempMin, synthTempMax),
		ReadingHumidity: s.walk(previous, ReadingHumidity,
			synthHumidityInitMin, synthHumidityInitMax, synthHumidityStep, synthHumidityMin, synthHumidityMax),
		ReadingPressure: round1(s.uniform(synthPressureMin, synthPressureMax)),
		ReadingMotion:   s.rng.IntN(2) == 1,
	}

	actuators := make(Actuators, synthRelayCount)
	for i := 1; i <= synthRelayCount; i++ {
		actuators[RelayName(i)] = s.rng.IntN(2) == 1
	}

	uptime := s.nextUptime(previous)
	rssi := synthRSSIMin + s.rng.IntN(synthRSSIMax-synthRSSIMin+1)
	reported := now.UTC()

	return &SourceSnapshot{
		SensorReadings: readings,
		ActuatorStates: actuators,
		UptimeSeconds:  &uptime,
		SignalStrength: &rssi,
		ReportedAt:     &reported,
		Synthetic:      true,
	}
}

// walk advances one numeric reading from the previous state, or draws a
// fresh value inside the init range when no prior value exists.
func (s *Synthesizer) walk(previous *DeviceState, key string, initMin, initMax, step, min, max float64) float64 {
	if previous != nil {
		if prior, ok := numericReading(previous.SensorReadings, key); ok {
			next := prior + s.uniform(-step, step)
			return round1(clamp(next, min, max))
		}
	}
	return round1(s.uniform(initMin, initMax))
}

func (s *Synthesizer) nextUptime(previous *DeviceState) int64 {
	if previous != nil && previous.UptimeSeconds != nil {
		return *previous.UptimeSeconds + int64(s.interval.Seconds())
	}
	return int64(synthUptimeInitMin + s.rng.IntN(synthUptimeInitMax-synthUptimeInitMin+1))
}

func (s *Synthesizer) uniform(min, max float64) float64 {
	return min + s.rng.Float64()*(max-min)
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// round1 rounds to one decimal place, matching what real firmware
// reports for environmental sensors.
func round1(v float64) float64 {
	return float64(int(v*10+0.5*sign(v))) / 10
}

func sign(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}
