package model

import "time"

// EventType is a 3GPP measurement event identifier (TS 38.331 §5.5.4).
type EventType string

const (
	EventA3 EventType = "A3" // neighbour becomes offset better than serving
	EventA4 EventType = "A4" // neighbour becomes better than threshold
	EventA5 EventType = "A5" // serving worse than threshold1, neighbour better than threshold2
	EventD2 EventType = "D2" // serving distance/elevation leaves the service envelope
)

// MeasurementSnapshot captures the measurements that satisfied an event
// condition at the moment it was confirmed.
type MeasurementSnapshot struct {
	ServingRSRPDBm  float64
	NeighborRSRPDBm float64
	ServingRangeKm  float64
	ServingElevDeg  float64
}

// MeasurementEvent is emitted by the event detector when a condition has
// held continuously for the configured time-to-trigger. At most one event
// is emitted per sustained condition.
type MeasurementEvent struct {
	ID         string // uuid
	Type       EventType
	Timestamp  time.Time
	ServingID  string
	NeighborID string
	Snapshot   MeasurementSnapshot

	// TriggerMarginDB is how far the RSRP condition cleared its threshold
	// at confirmation. Zero for D2, whose margins are geometric.
	TriggerMarginDB float64

	// D2 margins, each in its own unit. A limb that did not contribute to
	// the trigger reports zero.
	DistanceOvershootKm   float64
	ElevationShortfallDeg float64
}
