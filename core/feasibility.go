package core

import (
	"fmt"
	"time"

	"github.com/signalsfoundry/handover-engine/model"
)

// Feasibility score weights. Normalisation caps: 60 minutes of total
// service time, 10 windows, 45° mean max elevation.
const (
	scoreWeightServiceTime = 0.40
	scoreWeightWindowCount = 0.20
	scoreWeightElevation   = 0.25
	scoreWeightBonus       = 0.15

	scoreCapServiceMinutes = 60.0
	scoreCapWindowCount    = 10.0
	scoreCapMeanElevDeg    = 45.0
)

// LinkFeasibilityFilter turns topocentric sample series into service
// windows and a graded feasibility verdict.
type LinkFeasibilityFilter struct {
	cfg *Config
}

// NewLinkFeasibilityFilter wraps an already-validated configuration.
func NewLinkFeasibilityFilter(cfg *Config) *LinkFeasibilityFilter {
	return &LinkFeasibilityFilter{cfg: cfg}
}

// ApplyConstellationThreshold drops samples below the minimum elevation.
func (f *LinkFeasibilityFilter) ApplyConstellationThreshold(samples []model.SatellitePositionSample, minElevationDeg float64) []model.SatellitePositionSample {
	out := make([]model.SatellitePositionSample, 0, len(samples))
	for _, s := range samples {
		if s.ElevationDeg >= minElevationDeg {
			out = append(out, s)
		}
	}
	return out
}

// nominalStep infers the sampling cadence as the smallest positive gap
// between consecutive samples. Filtering only widens gaps, so the smallest
// surviving gap is the upstream cadence.
func nominalStep(samples []model.SatellitePositionSample) time.Duration {
	var step time.Duration
	for i := 1; i < len(samples); i++ {
		gap := samples[i].Timestamp.Sub(samples[i-1].Timestamp)
		if gap > 0 && (step == 0 || gap < step) {
			step = gap
		}
	}
	return step
}

// ComputeServiceWindows groups filtered samples into maximal contiguous
// windows and discards windows shorter than minWindowMinutes. A window
// breaks wherever the inter-sample gap exceeds 1.5x the inferred cadence.
// Each sample covers one cadence interval, so a window's duration is the
// first-to-last span plus one step.
func (f *LinkFeasibilityFilter) ComputeServiceWindows(satelliteID string, samples []model.SatellitePositionSample, minWindowMinutes float64) []model.ServiceWindow {
	if len(samples) == 0 {
		return nil
	}

	step := nominalStep(samples)
	if step == 0 {
		// Single sample or duplicate timestamps: assume one minute so a
		// lone sample still has a finite footprint.
		step = time.Minute
	}
	breakGap := step + step/2

	var windows []model.ServiceWindow
	start := 0
	for i := 1; i <= len(samples); i++ {
		if i < len(samples) && samples[i].Timestamp.Sub(samples[i-1].Timestamp) <= breakGap {
			continue
		}
		group := samples[start:i]
		if w, ok := buildWindow(satelliteID, group, step, minWindowMinutes); ok {
			windows = append(windows, w)
		}
		start = i
	}
	return windows
}

func buildWindow(satelliteID string, group []model.SatellitePositionSample, step time.Duration, minWindowMinutes float64) (model.ServiceWindow, bool) {
	if len(group) == 0 {
		return model.ServiceWindow{}, false
	}

	maxElev := group[0].ElevationDeg
	for _, s := range group[1:] {
		if s.ElevationDeg > maxElev {
			maxElev = s.ElevationDeg
		}
	}

	span := group[len(group)-1].Timestamp.Sub(group[0].Timestamp) + step
	duration := span.Minutes()
	if duration < minWindowMinutes {
		return model.ServiceWindow{}, false
	}

	samples := make([]model.SatellitePositionSample, len(group))
	copy(samples, group)

	return model.ServiceWindow{
		SatelliteID:     satelliteID,
		StartTime:       group[0].Timestamp,
		EndTime:         group[len(group)-1].Timestamp.Add(step),
		MaxElevationDeg: maxElev,
		DurationMinutes: duration,
		Samples:         samples,
	}, true
}

// ApplyLinkBudget keeps a window only if at least InRangeFraction of its
// samples fall inside [MinRangeKm, MaxRangeKm]. Surviving windows are
// rebuilt from the in-range samples, so start/end/duration reflect the
// retained samples' actual timestamps rather than a per-sample constant.
func (f *LinkFeasibilityFilter) ApplyLinkBudget(windows []model.ServiceWindow) []model.ServiceWindow {
	link := f.cfg.Link
	out := make([]model.ServiceWindow, 0, len(windows))
	for _, w := range windows {
		if len(w.Samples) == 0 {
			continue
		}
		retained := make([]model.SatellitePositionSample, 0, len(w.Samples))
		for _, s := range w.Samples {
			if s.RangeKm >= link.MinRangeKm && s.RangeKm <= link.MaxRangeKm {
				retained = append(retained, s)
			}
		}
		if float64(len(retained))/float64(len(w.Samples)) < link.InRangeFraction {
			continue
		}

		step := nominalStep(retained)
		if step == 0 {
			step = time.Minute
		}
		if rebuilt, ok := buildWindow(w.SatelliteID, retained, step, link.MinWindowMinutes); ok {
			out = append(out, rebuilt)
		}
	}
	return out
}

// ScoreFeasibility combines total service time, window count, mean
// per-window max elevation, and the constellation bonus into a [0,1] score.
func (f *LinkFeasibilityFilter) ScoreFeasibility(windows []model.ServiceWindow, cc ConstellationConfig) float64 {
	if len(windows) == 0 {
		return 0
	}

	var totalMinutes, elevSum float64
	for _, w := range windows {
		totalMinutes += w.DurationMinutes
		elevSum += w.MaxElevationDeg
	}
	meanMaxElev := elevSum / float64(len(windows))

	score := scoreWeightServiceTime*clamp(totalMinutes/scoreCapServiceMinutes, 0, 1) +
		scoreWeightWindowCount*clamp(float64(len(windows))/scoreCapWindowCount, 0, 1) +
		scoreWeightElevation*clamp(meanMaxElev/scoreCapMeanElevDeg, 0, 1) +
		scoreWeightBonus*cc.ScoreBonus
	return clamp(score, 0, 1)
}

// Grade walks the ordered threshold table and returns the first grade
// whose score and service-time floors are both met, else F.
func (f *LinkFeasibilityFilter) Grade(score, totalMinutes float64) model.Grade {
	for _, row := range f.cfg.Link.GradeTable {
		if score >= row.MinScore && totalMinutes >= row.MinMinutes {
			return row.Grade
		}
	}
	return model.GradeF
}

// Evaluate runs the whole feasibility chain for one satellite. Per-satellite
// failures never propagate: they produce an infeasible result carrying the
// reason, and the batch moves on.
func (f *LinkFeasibilityFilter) Evaluate(satelliteID, constellation string, samples []model.SatellitePositionSample, thresholds *ThresholdSnapshot) model.FeasibilityResult {
	cc, ok := f.cfg.Constellation(constellation)
	if !ok {
		return infeasible(satelliteID, constellation,
			(&FeasibilityError{SatelliteID: satelliteID, Err: fmt.Errorf("unknown constellation %q", constellation)}).Error())
	}

	minElev := cc.MinElevationDeg
	if thresholds != nil {
		if eff, ok := thresholds.MinElevationDeg(constellation); ok {
			minElev = eff
		}
	}

	filtered := f.ApplyConstellationThreshold(samples, minElev)
	windows := f.ComputeServiceWindows(satelliteID, filtered, f.cfg.Link.MinWindowMinutes)
	elevationOK := len(windows) > 0

	windows = f.ApplyLinkBudget(windows)
	linkBudgetOK := len(windows) > 0

	var totalMinutes float64
	for _, w := range windows {
		totalMinutes += w.DurationMinutes
	}

	score := f.ScoreFeasibility(windows, cc)
	grade := f.Grade(score, totalMinutes)

	checks := model.ConstraintChecks{
		ElevationOK:     elevationOK,
		LinkBudgetOK:    linkBudgetOK,
		ServiceTimeOK:   totalMinutes >= f.cfg.Link.MinServiceMinutes,
		WindowPresentOK: len(windows) > 0,
	}
	feasible := score >= f.cfg.Link.MinFeasibilityScore && checks.ServiceTimeOK && checks.WindowPresentOK

	reason := "all feasibility constraints satisfied"
	if !feasible {
		switch {
		case !elevationOK:
			reason = fmt.Sprintf("no window clears %.1f° elevation for at least %.1f min", minElev, f.cfg.Link.MinWindowMinutes)
		case !linkBudgetOK:
			reason = fmt.Sprintf("no window keeps %.0f%% of samples within [%.0f, %.0f] km",
				f.cfg.Link.InRangeFraction*100, f.cfg.Link.MinRangeKm, f.cfg.Link.MaxRangeKm)
		case !checks.ServiceTimeOK:
			reason = fmt.Sprintf("total service time %.1f min below minimum %.1f min", totalMinutes, f.cfg.Link.MinServiceMinutes)
		default:
			reason = fmt.Sprintf("feasibility score %.3f below minimum %.3f", score, f.cfg.Link.MinFeasibilityScore)
		}
	}

	return model.FeasibilityResult{
		SatelliteID:         satelliteID,
		Constellation:       constellation,
		IsFeasible:          feasible,
		FeasibilityScore:    score,
		QualityGrade:        grade,
		ServiceWindows:      windows,
		TotalServiceMinutes: totalMinutes,
		Checks:              checks,
		Reason:              reason,
	}
}

func infeasible(satelliteID, constellation, reason string) model.FeasibilityResult {
	return model.FeasibilityResult{
		SatelliteID:   satelliteID,
		Constellation: constellation,
		IsFeasible:    false,
		QualityGrade:  model.GradeF,
		Reason:        reason,
	}
}
