// Package config loads the engine configuration for the CLI caller. The
// core never loads configuration itself; it receives a validated snapshot.
package config

import (
	"time"

	"github.com/signalsfoundry/handover-engine/core"
	"github.com/signalsfoundry/handover-engine/model"
)

// Default returns the documented baseline configuration. Every value here
// either mirrors a published operator/3GPP figure (cited inline) or is an
// evaluation-campaign default a deployment is expected to override.
func Default() *core.Config {
	return &core.Config{
		Constellations: map[string]core.ConstellationConfig{
			"starlink": {
				Name: "starlink",
				// Starlink gateway minimum elevation per FCC filing
				// SAT-MOD-20181108-00083.
				MinElevationDeg:  5.0,
				ScoreBonus:       1.0,
				TargetVisibleMin: 10,
				TargetVisibleMax: 15,
			},
			"oneweb": {
				Name: "oneweb",
				// OneWeb user-terminal minimum elevation per FCC filing
				// SAT-LOI-20160428-00041.
				MinElevationDeg:  10.0,
				ScoreBonus:       0.8,
				TargetVisibleMin: 3,
				TargetVisibleMax: 6,
			},
		},
		Link: core.LinkBudgetConfig{
			MinRangeKm:          300,
			MaxRangeKm:          2000,
			MinWindowMinutes:    2,
			MinServiceMinutes:   5,
			MinFeasibilityScore: 0.4,
			InRangeFraction:     0.80,
			GradeTable: []core.GradeThreshold{
				{Grade: model.GradeA, MinScore: 0.80, MinMinutes: 30},
				{Grade: model.GradeB, MinScore: 0.65, MinMinutes: 20},
				{Grade: model.GradeC, MinScore: 0.50, MinMinutes: 10},
				{Grade: model.GradeD, MinScore: 0.30, MinMinutes: 5},
			},
		},
		RF: core.RFConfig{
			// Ku-band downlink centre frequency.
			FrequencyGHz:      12.0,
			TxPowerDBm:        40.0,
			MaxAntennaGainDBi: 35.0,
			SystemLossDB:      3.0,
		},
		Events: core.EventConfig{
			A3OffsetDB:      3.0,
			A4ThresholdDBm:  -100.0,
			A5Threshold1DBm: -110.0,
			A5Threshold2DBm: -95.0,
			HysteresisDB:    2.0,
			// TS 38.331 caps timeToTrigger at 5.12 s for terrestrial
			// sampling; with minute-scale orbit sampling one full
			// sample interval is the meaningful minimum.
			TimeToTrigger:     time.Minute,
			D2DistanceKm:      1500,
			D2MinElevationDeg: 10,
		},
		Decision: core.DecisionConfig{
			HandoverMarginDB: 3.0,
			DebounceWindow:   5 * time.Minute,
			CandidateTTL:     10 * time.Minute,
			MaxCandidates:    8,
			SignalWeight:     0.7,
			RecencyWeight:    0.3,
		},
		Thresholds: core.ThresholdConfig{
			RecalibrationTicks: 10,
			ElevationStepDeg:   1.0,
			RSRPStepDB:         1.0,
		},
	}
}
