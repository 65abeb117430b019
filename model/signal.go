package model

import "time"

// 3GPP TS 36.133 reporting ranges for the derived signal metrics.
const (
	RSRPMinDBm = -140.0
	RSRPMaxDBm = -44.0
	RSRQMinDB  = -19.5
	RSRQMaxDB  = -3.0
	SINRMinDB  = -20.0
	SINRMaxDB  = 30.0
)

// SignalSample is the physics-derived signal quality at one instant. It is
// a deterministic function of geometry and the configured RF parameters.
type SignalSample struct {
	Timestamp    time.Time
	SatelliteID  string
	RSRPDBm      float64 // clamped to [RSRPMinDBm, RSRPMaxDBm]
	RSRQDB       float64 // clamped to [RSRQMinDB, RSRQMaxDB]
	SINRDB       float64 // clamped to [SINRMinDB, SINRMaxDB]
	PathLossDB   float64
	AtmosLossDB  float64
	AntennaGain  float64 // effective gain after elevation scaling, dBi
	ElevationDeg float64
	RangeKm      float64
	Grade        Grade
}
