package core

import (
	"errors"
	"testing"
	"time"

	"github.com/signalsfoundry/handover-engine/model"
)

// pairMeas builds a serving/neighbor measurement at testEpoch + offset with
// benign geometry so D2 never fires unless a test asks for it.
func pairMeas(offset time.Duration, servingRSRP, neighborRSRP float64) PairMeasurement {
	return PairMeasurement{
		Timestamp:       testEpoch.Add(offset),
		ServingID:       "sat-serving",
		NeighborID:      "sat-neighbor",
		ServingRSRPDBm:  servingRSRP,
		NeighborRSRPDBm: neighborRSRP,
		ServingRangeKm:  800,
		ServingElevDeg:  45,
	}
}

func eventsOfType(events []model.MeasurementEvent, typ model.EventType) []model.MeasurementEvent {
	var out []model.MeasurementEvent
	for _, ev := range events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

func processAll(t *testing.T, d *MeasurementEventDetector, ms []PairMeasurement) []model.MeasurementEvent {
	t.Helper()
	var all []model.MeasurementEvent
	for _, m := range ms {
		evs, err := d.Process(m)
		if err != nil {
			t.Fatalf("unexpected detector error at %s: %v", m.Timestamp, err)
		}
		all = append(all, evs...)
	}
	return all
}

// TestProcess_A3EmitsOnceAfterTimeToTrigger: with a 1-minute time-to-trigger
// a condition entering at t0 confirms at t0+1min and stays silent afterward.
func TestProcess_A3EmitsOnceAfterTimeToTrigger(t *testing.T) {
	d := NewMeasurementEventDetector(testConfig())

	// Neighbor beats serving + 3 dB offset + 2 dB hysteresis by 1 dB.
	ms := []PairMeasurement{
		pairMeas(0, -90, -84),
		pairMeas(time.Minute, -90, -84),
		pairMeas(2*time.Minute, -90, -84),
		pairMeas(3*time.Minute, -90, -84),
	}

	a3 := eventsOfType(processAll(t, d, ms), model.EventA3)
	if len(a3) != 1 {
		t.Fatalf("expected exactly one A3, got %d", len(a3))
	}
	ev := a3[0]
	if !ev.Timestamp.Equal(testEpoch.Add(time.Minute)) {
		t.Errorf("A3 should confirm one time-to-trigger after entry, got %v", ev.Timestamp)
	}
	if !almostEqual(ev.TriggerMarginDB, 1.0, 1e-9) {
		t.Errorf("expected 1 dB trigger margin, got %.2f", ev.TriggerMarginDB)
	}
	if ev.ID == "" {
		t.Error("emitted event must carry an ID")
	}
}

func TestProcess_HysteresisBlocksMarginalCrossing(t *testing.T) {
	d := NewMeasurementEventDetector(testConfig())

	// Neighbor exactly at serving + offset: inside the hysteresis band.
	ms := []PairMeasurement{
		pairMeas(0, -90, -87),
		pairMeas(time.Minute, -90, -87),
		pairMeas(2*time.Minute, -90, -87),
	}
	if a3 := eventsOfType(processAll(t, d, ms), model.EventA3); len(a3) != 0 {
		t.Fatalf("crossing inside the hysteresis band must not fire, got %d A3", len(a3))
	}
}

// TestProcess_ConditionDropResetsTimeToTrigger: a dip below the threshold
// before time-to-trigger elapses discards the pending event entirely.
func TestProcess_ConditionDropResetsTimeToTrigger(t *testing.T) {
	d := NewMeasurementEventDetector(testConfig())

	ms := []PairMeasurement{
		pairMeas(0, -90, -84),                // holds, enters Triggering
		pairMeas(30*time.Second, -90, -95),   // drops, back to Idle
		pairMeas(time.Minute, -90, -84),      // holds again, re-enters
		pairMeas(90*time.Second, -90, -84),   // 30s held: still pending
		pairMeas(2*time.Minute, -90, -84),    // 60s held: confirms here
		pairMeas(3*time.Minute, -90, -84),    // silent
	}

	a3 := eventsOfType(processAll(t, d, ms), model.EventA3)
	if len(a3) != 1 {
		t.Fatalf("expected exactly one A3 after the reset, got %d", len(a3))
	}
	if !a3[0].Timestamp.Equal(testEpoch.Add(2 * time.Minute)) {
		t.Errorf("A3 should confirm at t+2min, got %v", a3[0].Timestamp)
	}
}

func TestProcess_ReentryAfterTriggeredAllowsSecondEvent(t *testing.T) {
	d := NewMeasurementEventDetector(testConfig())

	ms := []PairMeasurement{
		pairMeas(0, -90, -84),
		pairMeas(time.Minute, -90, -84),          // first event
		pairMeas(2*time.Minute, -90, -95),        // condition clears
		pairMeas(3*time.Minute, -90, -84),        // new cycle begins
		pairMeas(4*time.Minute, -90, -84),        // second event
	}

	a3 := eventsOfType(processAll(t, d, ms), model.EventA3)
	if len(a3) != 2 {
		t.Fatalf("expected two A3 events across two cycles, got %d", len(a3))
	}
}

// TestProcess_A5RequiresBothConditions walks a serving satellite degrading
// from -95 to -114 dBm: threshold1 (-110 minus hysteresis) is first crossed
// at the -113 sample, so the A5 confirms one time-to-trigger later, once.
func TestProcess_A5RequiresBothConditions(t *testing.T) {
	d := NewMeasurementEventDetector(testConfig())

	serving := []float64{-95, -97, -99, -101, -103, -105, -107, -109, -113, -114}
	var ms []PairMeasurement
	for i, s := range serving {
		ms = append(ms, pairMeas(time.Duration(i)*time.Minute, s, -90))
	}

	a5 := eventsOfType(processAll(t, d, ms), model.EventA5)
	if len(a5) != 1 {
		t.Fatalf("expected exactly one A5, got %d", len(a5))
	}
	if !a5[0].Timestamp.Equal(testEpoch.Add(9 * time.Minute)) {
		t.Errorf("A5 should confirm at the -114 sample, got %v", a5[0].Timestamp)
	}
	if a5[0].Snapshot.ServingRSRPDBm != -114 {
		t.Errorf("snapshot should capture the confirming sample, got %.1f", a5[0].Snapshot.ServingRSRPDBm)
	}
}

func TestProcess_A5GoodNeighborRequired(t *testing.T) {
	d := NewMeasurementEventDetector(testConfig())

	// Serving deep below threshold1 but neighbor below threshold2 + hysteresis.
	ms := []PairMeasurement{
		pairMeas(0, -120, -94),
		pairMeas(time.Minute, -120, -94),
		pairMeas(2*time.Minute, -120, -94),
	}
	if a5 := eventsOfType(processAll(t, d, ms), model.EventA5); len(a5) != 0 {
		t.Fatalf("A5 must not fire without a strong neighbor, got %d", len(a5))
	}
}

func TestProcess_D2FiresOnDistanceOrElevation(t *testing.T) {
	cases := []struct {
		name         string
		rangeKm      float64
		elevDeg      float64
		wantDistKm   float64
		wantShortDeg float64
	}{
		{"distance overshoot", 1600, 45, 100, 0},
		{"elevation undershoot", 800, 5, 0, 5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := NewMeasurementEventDetector(testConfig())
			mk := func(offset time.Duration) PairMeasurement {
				m := pairMeas(offset, -90, -98)
				m.ServingRangeKm = tc.rangeKm
				m.ServingElevDeg = tc.elevDeg
				return m
			}
			evs := processAll(t, d, []PairMeasurement{mk(0), mk(time.Minute), mk(2 * time.Minute)})
			d2 := eventsOfType(evs, model.EventD2)
			if len(d2) != 1 {
				t.Fatalf("expected exactly one D2, got %d", len(d2))
			}
			if !almostEqual(d2[0].DistanceOvershootKm, tc.wantDistKm, 1e-9) {
				t.Errorf("expected %.1f km overshoot, got %.2f", tc.wantDistKm, d2[0].DistanceOvershootKm)
			}
			if !almostEqual(d2[0].ElevationShortfallDeg, tc.wantShortDeg, 1e-9) {
				t.Errorf("expected %.1f° shortfall, got %.2f", tc.wantShortDeg, d2[0].ElevationShortfallDeg)
			}
			if d2[0].TriggerMarginDB != 0 {
				t.Errorf("geometric event must not report a dB margin, got %.2f", d2[0].TriggerMarginDB)
			}
		})
	}
}

func TestProcess_OutOfOrderResetsPair(t *testing.T) {
	d := NewMeasurementEventDetector(testConfig())

	if _, err := d.Process(pairMeas(time.Minute, -90, -84)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err := d.Process(pairMeas(0, -90, -84))
	var detErr *EventDetectorError
	if !errors.As(err, &detErr) {
		t.Fatalf("expected *EventDetectorError, got %v", err)
	}
	if detErr.ServingID != "sat-serving" || detErr.NeighborID != "sat-neighbor" {
		t.Errorf("error should name the pair, got %+v", detErr)
	}

	// The in-flight machine was dropped: the clock restarts from scratch.
	ms := []PairMeasurement{
		pairMeas(5*time.Minute, -90, -84),
		pairMeas(6*time.Minute, -90, -84),
	}
	a3 := eventsOfType(processAll(t, d, ms), model.EventA3)
	if len(a3) != 1 || !a3[0].Timestamp.Equal(testEpoch.Add(6*time.Minute)) {
		t.Fatalf("expected a fresh cycle confirming at t+6min, got %v", a3)
	}
}

func TestProcess_DuplicateTimestampIsOutOfOrder(t *testing.T) {
	d := NewMeasurementEventDetector(testConfig())
	m := pairMeas(0, -90, -84)
	if _, err := d.Process(m); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := d.Process(m); err == nil {
		t.Fatal("replaying the same timestamp must be rejected")
	}
}

func TestProcess_PairsAreIndependent(t *testing.T) {
	d := NewMeasurementEventDetector(testConfig())

	// Only the first pair's neighbor holds the A3 condition.
	for i := 0; i < 3; i++ {
		off := time.Duration(i) * time.Minute
		if _, err := d.Process(pairMeas(off, -90, -84)); err != nil {
			t.Fatal(err)
		}
		weak := pairMeas(off, -90, -96)
		weak.NeighborID = "sat-other"
		if _, err := d.Process(weak); err != nil {
			t.Fatal(err)
		}
	}

	evs, err := d.Process(pairMeas(3*time.Minute, -90, -84))
	if err != nil {
		t.Fatal(err)
	}
	for _, ev := range evs {
		if ev.NeighborID == "sat-other" {
			t.Errorf("quiet pair must not emit, got %s for %s", ev.Type, ev.NeighborID)
		}
	}
}
