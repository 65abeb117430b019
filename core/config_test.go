package core

import (
	"errors"
	"strings"
	"testing"
)

func TestValidate_AcceptsTestConfig(t *testing.T) {
	if err := testConfig().Validate(); err != nil {
		t.Fatalf("test config should validate: %v", err)
	}
}

// TestValidate_MissingRequiredFields drives one mutation per required field
// and expects each to fail wrapping ErrMissingConfig.
func TestValidate_MissingRequiredFields(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"no constellations", func(c *Config) { c.Constellations = nil }, "constellations"},
		{"zero min elevation", func(c *Config) {
			cc := c.Constellations["starlink"]
			cc.MinElevationDeg = 0
			c.Constellations["starlink"] = cc
		}, "min_elevation_deg"},
		{"zero max range", func(c *Config) { c.Link.MaxRangeKm = 0 }, "max_range_km"},
		{"zero min window", func(c *Config) { c.Link.MinWindowMinutes = 0 }, "min_window_minutes"},
		{"zero min service time", func(c *Config) { c.Link.MinServiceMinutes = 0 }, "min_service_minutes"},
		{"zero min score", func(c *Config) { c.Link.MinFeasibilityScore = 0 }, "min_feasibility_score"},
		{"empty grade table", func(c *Config) { c.Link.GradeTable = nil }, "grade_table"},
		{"zero frequency", func(c *Config) { c.RF.FrequencyGHz = 0 }, "frequency_ghz"},
		{"zero tx power", func(c *Config) { c.RF.TxPowerDBm = 0 }, "tx_power_dbm"},
		{"zero antenna gain", func(c *Config) { c.RF.MaxAntennaGainDBi = 0 }, "max_antenna_gain_dbi"},
		{"zero time to trigger", func(c *Config) { c.Events.TimeToTrigger = 0 }, "time_to_trigger"},
		{"zero a4 threshold", func(c *Config) { c.Events.A4ThresholdDBm = 0 }, "a4"},
		{"zero d2 envelope", func(c *Config) { c.Events.D2DistanceKm = 0 }, "d2"},
		{"zero debounce window", func(c *Config) { c.Decision.DebounceWindow = 0 }, "debounce_window"},
		{"zero candidate ttl", func(c *Config) { c.Decision.CandidateTTL = 0 }, "candidate_ttl"},
		{"zero max candidates", func(c *Config) { c.Decision.MaxCandidates = 0 }, "max_candidates"},
		{"zero recalibration ticks", func(c *Config) { c.Thresholds.RecalibrationTicks = 0 }, "recalibration_ticks"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation failure")
			}
			if !errors.Is(err, ErrMissingConfig) {
				t.Errorf("expected ErrMissingConfig, got %v", err)
			}
			if !strings.Contains(err.Error(), tc.field) {
				t.Errorf("error should name %q, got %v", tc.field, err)
			}
		})
	}
}

func TestValidate_RejectsInconsistentValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"min range above max", func(c *Config) { c.Link.MinRangeKm = 3000 }},
		{"score bonus above 1", func(c *Config) {
			cc := c.Constellations["starlink"]
			cc.ScoreBonus = 1.5
			c.Constellations["starlink"] = cc
		}},
		{"inverted visibility band", func(c *Config) {
			cc := c.Constellations["starlink"]
			cc.TargetVisibleMin, cc.TargetVisibleMax = 9, 3
			c.Constellations["starlink"] = cc
		}},
		{"negative hysteresis", func(c *Config) { c.Events.HysteresisDB = -1 }},
		{"retention fraction above 1", func(c *Config) { c.Link.InRangeFraction = 1.2 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation failure")
			}
		})
	}
}

// TestValidate_AppliesDocumentedDefaults: zero values with documented
// defaults are filled in rather than rejected.
func TestValidate_AppliesDocumentedDefaults(t *testing.T) {
	cfg := testConfig()
	cfg.Link.InRangeFraction = 0
	cfg.Decision.SignalWeight = 0
	cfg.Decision.RecencyWeight = 0
	cfg.Thresholds.ElevationStepDeg = 0
	cfg.Thresholds.RSRPStepDB = 0

	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should apply, got %v", err)
	}
	if cfg.Link.InRangeFraction != 0.80 {
		t.Errorf("retention default: got %v", cfg.Link.InRangeFraction)
	}
	if cfg.Decision.SignalWeight != 0.7 || cfg.Decision.RecencyWeight != 0.3 {
		t.Errorf("rank weight defaults: got %v/%v", cfg.Decision.SignalWeight, cfg.Decision.RecencyWeight)
	}
	if cfg.Thresholds.ElevationStepDeg != 1.0 || cfg.Thresholds.RSRPStepDB != 1.0 {
		t.Errorf("step defaults: got %v/%v", cfg.Thresholds.ElevationStepDeg, cfg.Thresholds.RSRPStepDB)
	}
}

func TestConstellation_Lookup(t *testing.T) {
	cfg := testConfig()
	if cc, ok := cfg.Constellation("oneweb"); !ok || cc.MinElevationDeg != 10 {
		t.Errorf("lookup failed: %+v ok=%v", cc, ok)
	}
	if _, ok := cfg.Constellation("kuiper"); ok {
		t.Error("unknown constellation should not resolve")
	}
}
