package model

import "time"

// ServiceWindow is a maximal contiguous interval during which a satellite
// clears the geometric and link-budget constraints. Windows for one
// satellite are time-ordered and non-overlapping, and each lasts at least
// the configured minimum duration.
type ServiceWindow struct {
	SatelliteID     string
	StartTime       time.Time
	EndTime         time.Time
	MaxElevationDeg float64
	DurationMinutes float64
	Samples         []SatellitePositionSample
}

// Grade is a coarse quality bucket for a satellite or a signal sample.
type Grade string

const (
	GradeA Grade = "A"
	GradeB Grade = "B"
	GradeC Grade = "C"
	GradeD Grade = "D"
	GradeF Grade = "F"
)

// ConstraintChecks records which named feasibility constraints passed.
type ConstraintChecks struct {
	ElevationOK     bool
	LinkBudgetOK    bool
	ServiceTimeOK   bool
	WindowPresentOK bool
}

// FeasibilityResult is the per-satellite outcome of one evaluation batch.
// It is created once per batch and never mutated afterward; a new batch
// produces a new result.
type FeasibilityResult struct {
	SatelliteID         string
	Constellation       string
	IsFeasible          bool
	FeasibilityScore    float64 // in [0,1]
	QualityGrade        Grade
	ServiceWindows      []ServiceWindow
	TotalServiceMinutes float64
	Checks              ConstraintChecks
	Reason              string
}
