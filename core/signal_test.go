package core

import (
	"errors"
	"testing"

	"github.com/signalsfoundry/handover-engine/model"
)

// TestCompute_Deterministic replays the same sample and expects bit-identical
// output. The engine is a pure function of geometry and RF configuration.
func TestCompute_Deterministic(t *testing.T) {
	e := NewSignalQualityEngine(testConfig())
	s := topoSample(0, 40, 800)

	first, err := e.Compute("sat-1", s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := e.Compute("sat-1", s)
		if err != nil {
			t.Fatalf("unexpected error on replay: %v", err)
		}
		if again != first {
			t.Fatalf("replay diverged: %+v vs %+v", again, first)
		}
	}
}

func TestCompute_ValuesStayInReportingRanges(t *testing.T) {
	e := NewSignalQualityEngine(testConfig())
	cases := []struct {
		elev, rangeKm float64
	}{
		{0.1, 200}, {5, 500}, {30, 1000}, {89, 400}, {10, 40000},
	}
	for _, tc := range cases {
		s := topoSample(0, tc.elev, tc.rangeKm)
		sig, err := e.Compute("sat-1", s)
		if err != nil {
			t.Fatalf("elev=%.1f range=%.0f: %v", tc.elev, tc.rangeKm, err)
		}
		if sig.RSRPDBm < model.RSRPMinDBm || sig.RSRPDBm > model.RSRPMaxDBm {
			t.Errorf("RSRP %.2f outside reporting range", sig.RSRPDBm)
		}
		if sig.RSRQDB < model.RSRQMinDB || sig.RSRQDB > model.RSRQMaxDB {
			t.Errorf("RSRQ %.2f outside reporting range", sig.RSRQDB)
		}
		if sig.SINRDB < model.SINRMinDB || sig.SINRDB > model.SINRMaxDB {
			t.Errorf("SINR %.2f outside reporting range", sig.SINRDB)
		}
	}
}

func TestCompute_RSRPFallsWithRange(t *testing.T) {
	e := NewSignalQualityEngine(testConfig())
	prev, err := e.Compute("sat-1", topoSample(0, 45, 400))
	if err != nil {
		t.Fatal(err)
	}
	for _, rangeKm := range []float64{600, 900, 1400, 2000} {
		sig, err := e.Compute("sat-1", topoSample(0, 45, rangeKm))
		if err != nil {
			t.Fatal(err)
		}
		if sig.RSRPDBm >= prev.RSRPDBm {
			t.Errorf("RSRP did not fall from %.2f to %.2f going to %.0f km",
				prev.RSRPDBm, sig.RSRPDBm, rangeKm)
		}
		prev = sig
	}
}

func TestAtmosphericLoss_NonIncreasingWithElevation(t *testing.T) {
	prev := atmosphericLossDB(0)
	for elev := 1.0; elev <= 90; elev++ {
		loss := atmosphericLossDB(elev)
		if loss > prev {
			t.Fatalf("loss rose from %.2f to %.2f at %.0f°", prev, loss, elev)
		}
		prev = loss
	}
	if atmosphericLossDB(-3) != atmosTable[len(atmosTable)-1].LossDB {
		t.Error("below-horizon elevation should use the bottom table row")
	}
}

func TestSignalGrade_RequiresAllThreeFloors(t *testing.T) {
	// RSRP alone at the A floor is not enough.
	if g := SignalGrade(-80, -16.5, 0); g != model.GradeD {
		t.Errorf("poor RSRQ should demote below A, got %s", g)
	}
	if g := SignalGrade(-79, -9, 14); g != model.GradeA {
		t.Errorf("all floors met should grade A, got %s", g)
	}
	if g := SignalGrade(-120, -19, -10); g != model.GradeF {
		t.Errorf("floors all missed should grade F, got %s", g)
	}
}

func TestCompute_NonPositiveRangeIsSignalQualityError(t *testing.T) {
	e := NewSignalQualityEngine(testConfig())
	_, err := e.Compute("sat-1", topoSample(0, 45, 0))
	var sqErr *SignalQualityError
	if !errors.As(err, &sqErr) {
		t.Fatalf("expected *SignalQualityError, got %v", err)
	}
	if sqErr.SatelliteID != "sat-1" {
		t.Errorf("error should name the satellite, got %q", sqErr.SatelliteID)
	}
}

// TestComputeSeries_SubstitutesWorstCase: a bad sample must not poison the
// series, it is replaced by floor values and the error surfaces once.
func TestComputeSeries_SubstitutesWorstCase(t *testing.T) {
	e := NewSignalQualityEngine(testConfig())
	samples := []model.SatellitePositionSample{
		topoSample(0, 45, 800),
		topoSample(1, 45, -1),
		topoSample(2, 45, 800),
	}

	series, err := e.ComputeSeries("sat-1", samples)
	if err == nil {
		t.Fatal("expected the bad sample's error to surface")
	}
	if len(series) != 3 {
		t.Fatalf("series must keep its length, got %d", len(series))
	}
	bad := series[1]
	if bad.RSRPDBm != model.RSRPMinDBm || bad.Grade != model.GradeF {
		t.Errorf("substituted sample should be worst case, got %+v", bad)
	}
	if series[0].Grade == model.GradeF || series[2].Grade == model.GradeF {
		t.Error("good samples should be unaffected by the substitution")
	}
}

func TestSignalScore_OrderingAndBounds(t *testing.T) {
	strong := model.SignalSample{RSRPDBm: -75, SINRDB: 18}
	weak := model.SignalSample{RSRPDBm: -115, SINRDB: -2}

	if SignalScore(strong) <= SignalScore(weak) {
		t.Error("stronger signal must score higher")
	}
	if s := SignalScore(model.SignalSample{RSRPDBm: model.RSRPMinDBm, SINRDB: model.SINRMinDB}); s != 0 {
		t.Errorf("floor sample should score 0, got %.4f", s)
	}
	if s := SignalScore(model.SignalSample{RSRPDBm: model.RSRPMaxDBm, SINRDB: model.SINRMaxDB}); s != 1 {
		t.Errorf("ceiling sample should score 1, got %.4f", s)
	}
}
