package core

import (
	"fmt"
	"time"

	"github.com/signalsfoundry/handover-engine/model"
)

// ConstellationConfig carries the per-constellation tuning knobs. The
// minimum elevation differs between operators (Starlink files 25° for user
// terminals but 5° for gateway feeder links; OneWeb uses 10°), so it is
// required per constellation rather than global.
type ConstellationConfig struct {
	Name            string  `koanf:"name"`
	MinElevationDeg float64 `koanf:"min_elevation_deg"`

	// ScoreBonus is the fixed constellation term of the feasibility
	// score, weighted at 15%. In [0,1].
	ScoreBonus float64 `koanf:"score_bonus"`

	// TargetVisibleMin/Max bound the visible-satellite count the
	// dynamic threshold controller steers toward.
	TargetVisibleMin int `koanf:"target_visible_min"`
	TargetVisibleMax int `koanf:"target_visible_max"`
}

// GradeThreshold is one row of the ordered feasibility grade table. The
// first row whose MinScore and MinMinutes are both met decides the grade.
type GradeThreshold struct {
	Grade      model.Grade `koanf:"grade"`
	MinScore   float64     `koanf:"min_score"`
	MinMinutes float64     `koanf:"min_minutes"`
}

// LinkBudgetConfig bounds the geometric link-budget filter.
type LinkBudgetConfig struct {
	MinRangeKm float64 `koanf:"min_range_km"`
	MaxRangeKm float64 `koanf:"max_range_km"`

	// MinWindowMinutes discards service windows shorter than this.
	MinWindowMinutes float64 `koanf:"min_window_minutes"`

	// MinServiceMinutes is the total service time a satellite must
	// accumulate across windows to count as feasible.
	MinServiceMinutes   float64 `koanf:"min_service_minutes"`
	MinFeasibilityScore float64 `koanf:"min_feasibility_score"`

	// InRangeFraction is the share of a window's samples that must fall
	// within [MinRangeKm, MaxRangeKm] for the window to survive the
	// link-budget check. Default 0.80.
	InRangeFraction float64 `koanf:"in_range_fraction"`

	GradeTable []GradeThreshold `koanf:"grade_table"`
}

// RFConfig parameterises the signal-quality model.
type RFConfig struct {
	FrequencyGHz      float64 `koanf:"frequency_ghz"`
	TxPowerDBm        float64 `koanf:"tx_power_dbm"`
	MaxAntennaGainDBi float64 `koanf:"max_antenna_gain_dbi"`
	SystemLossDB      float64 `koanf:"system_loss_db"`
}

// EventConfig carries the 3GPP measurement-event parameters
// (TS 38.331 §5.5.4; thresholds in dBm, offsets and hysteresis in dB).
type EventConfig struct {
	A3OffsetDB      float64 `koanf:"a3_offset_db"`
	A4ThresholdDBm  float64 `koanf:"a4_threshold_dbm"`
	A5Threshold1DBm float64 `koanf:"a5_threshold1_dbm"`
	A5Threshold2DBm float64 `koanf:"a5_threshold2_dbm"`
	HysteresisDB    float64 `koanf:"hysteresis_db"`

	TimeToTrigger time.Duration `koanf:"time_to_trigger"`

	// D2 envelope: the serving link is considered leaving service when
	// range exceeds D2DistanceKm or elevation drops below D2MinElevationDeg.
	D2DistanceKm      float64 `koanf:"d2_distance_km"`
	D2MinElevationDeg float64 `koanf:"d2_min_elevation_deg"`
}

// DecisionConfig tunes candidate management and the decision engine.
type DecisionConfig struct {
	// HandoverMarginDB is how far the top candidate must exceed the
	// serving satellite, sustained for DebounceWindow, before a
	// non-urgent handover is issued.
	HandoverMarginDB float64       `koanf:"handover_margin_db"`
	DebounceWindow   time.Duration `koanf:"debounce_window"`

	CandidateTTL  time.Duration `koanf:"candidate_ttl"`
	MaxCandidates int           `koanf:"max_candidates"`

	// Candidate rank = SignalWeight*signal_score + RecencyWeight*recency.
	SignalWeight  float64 `koanf:"signal_weight"`
	RecencyWeight float64 `koanf:"recency_weight"`
}

// ThresholdConfig drives the dynamic threshold controller.
type ThresholdConfig struct {
	// RecalibrationTicks is N: thresholds are recomputed every N
	// orchestration ticks and published at the epoch boundary.
	RecalibrationTicks int `koanf:"recalibration_ticks"`

	// Step sizes for one recalibration nudge.
	ElevationStepDeg float64 `koanf:"elevation_step_deg"`
	RSRPStepDB       float64 `koanf:"rsrp_step_db"`
}

// Config is the immutable configuration snapshot shared by every
// per-satellite pipeline in a batch. All fields are required unless a
// default is documented on the field.
type Config struct {
	Constellations map[string]ConstellationConfig `koanf:"constellations"`
	Link           LinkBudgetConfig               `koanf:"link"`
	RF             RFConfig                       `koanf:"rf"`
	Events         EventConfig                    `koanf:"events"`
	Decision       DecisionConfig                 `koanf:"decision"`
	Thresholds     ThresholdConfig                `koanf:"thresholds"`
}

// Constellation returns the config for the named constellation, or false
// if none is registered.
func (c *Config) Constellation(name string) (ConstellationConfig, bool) {
	cc, ok := c.Constellations[name]
	return cc, ok
}

// Validate fails fast on any required value that is absent and has no
// documented default. It is the only startup path allowed to be fatal.
func (c *Config) Validate() error {
	if len(c.Constellations) == 0 {
		return fmt.Errorf("%w: constellations", ErrMissingConfig)
	}
	for name, cc := range c.Constellations {
		if cc.MinElevationDeg <= 0 {
			return fmt.Errorf("%w: constellations[%s].min_elevation_deg", ErrMissingConfig, name)
		}
		if cc.ScoreBonus < 0 || cc.ScoreBonus > 1 {
			return fmt.Errorf("constellations[%s].score_bonus %v outside [0,1]", name, cc.ScoreBonus)
		}
		if cc.TargetVisibleMin > cc.TargetVisibleMax {
			return fmt.Errorf("constellations[%s]: target_visible_min %d > target_visible_max %d",
				name, cc.TargetVisibleMin, cc.TargetVisibleMax)
		}
	}
	if c.Link.MaxRangeKm <= 0 {
		return fmt.Errorf("%w: link.max_range_km", ErrMissingConfig)
	}
	if c.Link.MinRangeKm < 0 || c.Link.MinRangeKm >= c.Link.MaxRangeKm {
		return fmt.Errorf("link range bounds [%v, %v] invalid", c.Link.MinRangeKm, c.Link.MaxRangeKm)
	}
	if c.Link.MinWindowMinutes <= 0 {
		return fmt.Errorf("%w: link.min_window_minutes", ErrMissingConfig)
	}
	if c.Link.MinServiceMinutes <= 0 {
		return fmt.Errorf("%w: link.min_service_minutes", ErrMissingConfig)
	}
	if c.Link.MinFeasibilityScore <= 0 || c.Link.MinFeasibilityScore > 1 {
		return fmt.Errorf("%w: link.min_feasibility_score", ErrMissingConfig)
	}
	if c.Link.InRangeFraction == 0 {
		// Documented default: 80% of a window's samples must be in range
		// for the window to survive the link-budget check.
		c.Link.InRangeFraction = 0.80
	}
	if c.Link.InRangeFraction < 0 || c.Link.InRangeFraction > 1 {
		return fmt.Errorf("link.in_range_fraction %v outside [0,1]", c.Link.InRangeFraction)
	}
	if len(c.Link.GradeTable) == 0 {
		return fmt.Errorf("%w: link.grade_table", ErrMissingConfig)
	}
	if c.RF.FrequencyGHz <= 0 {
		return fmt.Errorf("%w: rf.frequency_ghz", ErrMissingConfig)
	}
	if c.RF.TxPowerDBm == 0 {
		return fmt.Errorf("%w: rf.tx_power_dbm", ErrMissingConfig)
	}
	if c.RF.MaxAntennaGainDBi <= 0 {
		return fmt.Errorf("%w: rf.max_antenna_gain_dbi", ErrMissingConfig)
	}
	if c.Events.HysteresisDB < 0 {
		return fmt.Errorf("events.hysteresis_db must be >= 0")
	}
	if c.Events.TimeToTrigger <= 0 {
		return fmt.Errorf("%w: events.time_to_trigger", ErrMissingConfig)
	}
	if c.Events.A4ThresholdDBm == 0 || c.Events.A5Threshold1DBm == 0 || c.Events.A5Threshold2DBm == 0 {
		return fmt.Errorf("%w: events a4/a5 thresholds", ErrMissingConfig)
	}
	if c.Events.D2DistanceKm <= 0 || c.Events.D2MinElevationDeg <= 0 {
		return fmt.Errorf("%w: events d2 envelope", ErrMissingConfig)
	}
	if c.Decision.DebounceWindow <= 0 {
		return fmt.Errorf("%w: decision.debounce_window", ErrMissingConfig)
	}
	if c.Decision.CandidateTTL <= 0 {
		return fmt.Errorf("%w: decision.candidate_ttl", ErrMissingConfig)
	}
	if c.Decision.MaxCandidates <= 0 {
		return fmt.Errorf("%w: decision.max_candidates", ErrMissingConfig)
	}
	if c.Decision.SignalWeight == 0 && c.Decision.RecencyWeight == 0 {
		// Documented default: 70/30 split between instantaneous signal
		// score and event recency, the ratio used for candidate
		// ranking throughout the evaluation campaign configs.
		c.Decision.SignalWeight, c.Decision.RecencyWeight = 0.7, 0.3
	}
	if c.Thresholds.RecalibrationTicks <= 0 {
		return fmt.Errorf("%w: thresholds.recalibration_ticks", ErrMissingConfig)
	}
	if c.Thresholds.ElevationStepDeg == 0 {
		// Documented default: 1° per epoch keeps recalibration gradual.
		c.Thresholds.ElevationStepDeg = 1.0
	}
	if c.Thresholds.RSRPStepDB == 0 {
		// Documented default: 1 dB per epoch, matching the elevation step.
		c.Thresholds.RSRPStepDB = 1.0
	}
	return nil
}
