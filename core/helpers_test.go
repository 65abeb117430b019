package core

import (
	"time"

	"github.com/signalsfoundry/handover-engine/model"
)

var testEpoch = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

// testConfig returns a small but fully valid configuration used across the
// core tests. Thresholds are chosen so hand-built sample series stay easy
// to reason about.
func testConfig() *Config {
	return &Config{
		Constellations: map[string]ConstellationConfig{
			"starlink": {
				Name:             "starlink",
				MinElevationDeg:  5.0,
				ScoreBonus:       1.0,
				TargetVisibleMin: 10,
				TargetVisibleMax: 15,
			},
			"oneweb": {
				Name:             "oneweb",
				MinElevationDeg:  10.0,
				ScoreBonus:       0.8,
				TargetVisibleMin: 3,
				TargetVisibleMax: 6,
			},
		},
		Link: LinkBudgetConfig{
			MinRangeKm:          200,
			MaxRangeKm:          2000,
			MinWindowMinutes:    2,
			MinServiceMinutes:   2,
			MinFeasibilityScore: 0.1,
			InRangeFraction:     0.80,
			GradeTable: []GradeThreshold{
				{Grade: model.GradeA, MinScore: 0.80, MinMinutes: 30},
				{Grade: model.GradeB, MinScore: 0.65, MinMinutes: 20},
				{Grade: model.GradeC, MinScore: 0.50, MinMinutes: 10},
				{Grade: model.GradeD, MinScore: 0.30, MinMinutes: 5},
			},
		},
		RF: RFConfig{
			FrequencyGHz:      12.0,
			TxPowerDBm:        40.0,
			MaxAntennaGainDBi: 35.0,
			SystemLossDB:      3.0,
		},
		Events: EventConfig{
			A3OffsetDB:        3.0,
			A4ThresholdDBm:    -100.0,
			A5Threshold1DBm:   -110.0,
			A5Threshold2DBm:   -95.0,
			HysteresisDB:      2.0,
			TimeToTrigger:     time.Minute,
			D2DistanceKm:      1500,
			D2MinElevationDeg: 10,
		},
		Decision: DecisionConfig{
			HandoverMarginDB: 3.0,
			DebounceWindow:   5 * time.Minute,
			CandidateTTL:     10 * time.Minute,
			MaxCandidates:    3,
			SignalWeight:     0.7,
			RecencyWeight:    0.3,
		},
		Thresholds: ThresholdConfig{
			RecalibrationTicks: 2,
			ElevationStepDeg:   1.0,
			RSRPStepDB:         1.0,
		},
	}
}

// topoSample builds a topocentric sample at testEpoch + minute*offset.
func topoSample(minute int, elevDeg, rangeKm float64) model.SatellitePositionSample {
	return model.SatellitePositionSample{
		Timestamp:     testEpoch.Add(time.Duration(minute) * time.Minute),
		RangeKm:       rangeKm,
		ElevationDeg:  elevDeg,
		AzimuthDeg:    180,
		Constellation: "starlink",
	}
}
