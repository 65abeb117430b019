package core

import (
	"errors"
	"fmt"
)

// The per-stage error kinds. Every one of them is local to a single
// satellite or satellite pair: the batch orchestrator records the reason
// and keeps going. Only configuration validation at startup is fatal.

// GeometryError reports malformed upstream input: an empty series or
// non-monotonic timestamps. Fatal for that satellite only.
type GeometryError struct {
	SatelliteID string
	Reason      string
}

func (e *GeometryError) Error() string {
	return fmt.Sprintf("geometry: satellite %s: %s", e.SatelliteID, e.Reason)
}

// FeasibilityError marks a satellite infeasible without aborting the batch.
type FeasibilityError struct {
	SatelliteID string
	Err         error
}

func (e *FeasibilityError) Error() string {
	return fmt.Sprintf("feasibility: satellite %s: %v", e.SatelliteID, e.Err)
}

func (e *FeasibilityError) Unwrap() error { return e.Err }

// SignalQualityError degrades the affected samples to conservative
// worst-case values; the batch continues.
type SignalQualityError struct {
	SatelliteID string
	Err         error
}

func (e *SignalQualityError) Error() string {
	return fmt.Sprintf("signal quality: satellite %s: %v", e.SatelliteID, e.Err)
}

func (e *SignalQualityError) Unwrap() error { return e.Err }

// EventDetectorError resets the affected pair's state machine to Idle and
// drops the in-flight event.
type EventDetectorError struct {
	ServingID  string
	NeighborID string
	Err        error
}

func (e *EventDetectorError) Error() string {
	return fmt.Sprintf("event detector: pair %s/%s: %v", e.ServingID, e.NeighborID, e.Err)
}

func (e *EventDetectorError) Unwrap() error { return e.Err }

// ErrMissingConfig is wrapped by Validate() for any required field that has
// no documented default. It is the only error treated as fatal at startup.
var ErrMissingConfig = errors.New("missing required configuration value")
