package state

import (
	"math"
	"math/rand/v2"
	"testing"
	"time"
)

func testSynthesizer(interval time.Duration) *Synthesizer {
	return newSynthesizer(interval, rand.New(rand.NewPCG(1, 2)))
}

func TestSynthesizerInitialRanges(t *testing.T) {
	synth := testSynthesizer(5 * time.Second)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 200; i++ {
		snap := synth.Snapshot(nil, now)

		temp, ok := numericReading(snap.SensorReadings, ReadingTemperature)
		if !ok || temp < synthTempInitMin || temp > synthTempInitMax {
			t.Fatalf("initial temperature %v outside [%v, %v]", temp, synthTempInitMin, synthTempInitMax)
		}
		hum, ok := numericReading(snap.SensorReadings, ReadingHumidity)
		if !ok || hum < synthHumidityInitMin || hum > synthHumidityInitMax {
			t.Fatalf("initial humidity %v outside [%v, %v]", hum, synthHumidityInitMin, synthHumidityInitMax)
		}
		pressure, ok := numericReading(snap.SensorReadings, ReadingPressure)
		if !ok || pressure < synthPressureMin || pressure > synthPressureMax {
			t.Fatalf("pressure %v outside [%v, %v]", pressure, synthPressureMin, synthPressureMax)
		}
		if _, ok := snap.SensorReadings[ReadingMotion].(bool); !ok {
			t.Fatal("motion reading missing or not a bool")
		}
		if snap.UptimeSeconds == nil || *snap.UptimeSeconds < synthUptimeInitMin || *snap.UptimeSeconds > synthUptimeInitMax {
			t.Fatalf("initial uptime %v outside [%d, %d]", snap.UptimeSeconds, synthUptimeInitMin, synthUptimeInitMax)
		}
		if snap.SignalStrength == nil || *snap.SignalStrength < synthRSSIMin || *snap.SignalStrength > synthRSSIMax {
			t.Fatalf("rssi %v outside [%d, %d]", snap.SignalStrength, synthRSSIMin, synthRSSIMax)
		}
		if len(snap.ActuatorStates) != synthRelayCount {
			t.Fatalf("got %d relays, want %d", len(snap.ActuatorStates), synthRelayCount)
		}
		if !snap.Synthetic {
			t.Fatal("snapshot must be flagged synthetic")
		}
		if snap.ReportedAt == nil || !snap.ReportedAt.Equal(now) {
			t.Fatalf("ReportedAt = %v, want %v", snap.ReportedAt, now)
		}
	}
}

func TestSynthesizerWalkContinuity(t *testing.T) {
	synth := testSynthesizer(5 * time.Second)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	state := &DeviceState{
		DeviceID: "dev-1",
		SensorReadings: Readings{
			ReadingTemperature: 25.0,
			ReadingHumidity:    50.0,
		},
		UptimeSeconds: int64Ptr(5000),
	}

	for i := 0; i < 500; i++ {
		prevTemp, _ := state.Temperature()
		prevHum, _ := state.Humidity()
		prevUptime := *state.UptimeSeconds

		snap := synth.Snapshot(state, now)

		temp, _ := numericReading(snap.SensorReadings, ReadingTemperature)
		// The one-decimal rounding can add up to 0.05 on top of the step.
		if math.Abs(temp-prevTemp) > synthTempStep+0.05 {
			t.Fatalf("temperature jumped %v -> %v, step bound %v", prevTemp, temp, synthTempStep)
		}
		if temp < synthTempMin || temp > synthTempMax {
			t.Fatalf("temperature %v escaped clamp [%v, %v]", temp, synthTempMin, synthTempMax)
		}

		hum, _ := numericReading(snap.SensorReadings, ReadingHumidity)
		if math.Abs(hum-prevHum) > synthHumidityStep+0.05 {
			t.Fatalf("humidity jumped %v -> %v, step bound %v", prevHum, hum, synthHumidityStep)
		}
		if hum < synthHumidityMin || hum > synthHumidityMax {
			t.Fatalf("humidity %v escaped clamp [%v, %v]", hum, synthHumidityMin, synthHumidityMax)
		}

		if *snap.UptimeSeconds != prevUptime+5 {
			t.Fatalf("uptime = %d, want previous+interval %d", *snap.UptimeSeconds, prevUptime+5)
		}

		state = Merge(state, "dev-1", snap)
	}
}

func TestSynthesizerConcurrentUse(t *testing.T) {
	synth := testSynthesizer(time.Second)
	now := time.Now().UTC()

	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 100; j++ {
				if snap := synth.Snapshot(nil, now); snap.IsEmpty() {
					t.Error("synthesizer produced an empty snapshot")
					return
				}
			}
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}
}
