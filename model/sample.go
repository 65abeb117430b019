package model

import "time"

// PositionFrame indicates the reference frame of an upstream position sample.
type PositionFrame int

const (
	FrameGeodetic PositionFrame = iota // latitude/longitude/altitude on WGS84
	FrameECI                           // true-equator mean-equinox inertial, km
)

// Geodetic is a WGS84 position.
type Geodetic struct {
	LatDeg float64
	LonDeg float64
	AltKm  float64
}

// ECI is an inertial position in kilometres. The timestamp of the owning
// sample determines the GMST used to rotate it into ECEF.
type ECI struct {
	X, Y, Z float64
}

// Observer is the fixed ground observer all passes are evaluated against.
type Observer struct {
	Name string
	Geodetic
}

// PositionSample is one upstream orbit-propagation output for a satellite.
// Exactly one of Geodetic/ECI is meaningful, selected by Frame.
type PositionSample struct {
	Timestamp     time.Time
	Frame         PositionFrame
	Geodetic      Geodetic
	ECI           ECI
	Constellation string
}

// SatellitePositionSample is a topocentric sample produced by the geometry
// evaluator: the satellite as seen from the observer. Immutable once created.
type SatellitePositionSample struct {
	Timestamp     time.Time
	RangeKm       float64
	ElevationDeg  float64
	AzimuthDeg    float64
	Constellation string
}
