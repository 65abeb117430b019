package core

import (
	"fmt"
	"math"
	"time"

	"github.com/signalsfoundry/handover-engine/model"
)

const speedOfLightMPerS = 2.99792458e8

// atmosRow is one step of the piecewise zenith-angle attenuation table,
// a coarse clear-sky reading of ITU-R P.618: attenuation falls as the
// slant path through the troposphere shortens with rising elevation.
type atmosRow struct {
	MinElevationDeg float64
	LossDB          float64
}

var atmosTable = []atmosRow{
	{45, 0.2},
	{30, 0.4},
	{20, 0.6},
	{10, 1.0},
	{5, 1.8},
	{0, 3.0},
}

// atmosphericLossDB returns the elevation-dependent atmospheric loss.
// Monotonically non-increasing in elevation by construction of the table.
func atmosphericLossDB(elevationDeg float64) float64 {
	for _, row := range atmosTable {
		if elevationDeg >= row.MinElevationDeg {
			return row.LossDB
		}
	}
	return atmosTable[len(atmosTable)-1].LossDB
}

// effectiveAntennaGainDBi scales the boresight gain by a beam-pointing
// factor that decays linearly toward the horizon: full gain at zenith,
// half gain at 0° elevation.
func effectiveAntennaGainDBi(maxGainDBi, elevationDeg float64) float64 {
	return maxGainDBi * (0.5 + 0.5*clamp(elevationDeg, 0, 90)/90)
}

// signalGradeRow holds the simultaneous floors all three metrics must
// clear for a grade to be assigned.
type signalGradeRow struct {
	Grade   model.Grade
	RSRPDBm float64
	RSRQDB  float64
	SINRDB  float64
}

var signalGradeTable = []signalGradeRow{
	{model.GradeA, -80, -10, 13},
	{model.GradeB, -90, -12, 10},
	{model.GradeC, -100, -14, 5},
	{model.GradeD, -110, -17, 0},
}

// SignalGrade returns the best grade whose RSRP, RSRQ and SINR floors are
// all met simultaneously, else F.
func SignalGrade(rsrpDBm, rsrqDB, sinrDB float64) model.Grade {
	for _, row := range signalGradeTable {
		if rsrpDBm >= row.RSRPDBm && rsrqDB >= row.RSRQDB && sinrDB >= row.SINRDB {
			return row.Grade
		}
	}
	return model.GradeF
}

// SignalQualityEngine derives RSRP/RSRQ/SINR from geometry. It is a pure
// function of (range, elevation, RF configuration): no randomness, no
// hidden state, so replaying a series always reproduces it exactly.
type SignalQualityEngine struct {
	cfg *Config
}

func NewSignalQualityEngine(cfg *Config) *SignalQualityEngine {
	return &SignalQualityEngine{cfg: cfg}
}

// Compute evaluates one topocentric sample. A non-positive range is a
// SignalQualityError; the caller substitutes WorstCaseSample and carries on.
func (e *SignalQualityEngine) Compute(satelliteID string, s model.SatellitePositionSample) (model.SignalSample, error) {
	if s.RangeKm <= 0 {
		return model.SignalSample{}, &SignalQualityError{
			SatelliteID: satelliteID,
			Err:         fmt.Errorf("non-positive range %.3f km at %s", s.RangeKm, s.Timestamp.UTC().Format(time.RFC3339)),
		}
	}

	rf := e.cfg.RF

	// Free-space path loss: 20*log10(4*pi*d*f/c), d in metres, f in Hz.
	dM := s.RangeKm * 1000
	fHz := rf.FrequencyGHz * 1e9
	pathLoss := 20 * math.Log10(4*math.Pi*dM*fHz/speedOfLightMPerS)

	atmosLoss := atmosphericLossDB(s.ElevationDeg)
	gain := effectiveAntennaGainDBi(rf.MaxAntennaGainDBi, s.ElevationDeg)

	rsrp := clamp(rf.TxPowerDBm+gain-pathLoss-atmosLoss-rf.SystemLossDB,
		model.RSRPMinDBm, model.RSRPMaxDBm)

	// RSRQ: affine map of the RSRP reporting range onto [-19.5, -3]
	// (TS 36.214 §5.1.3) with a small elevation correction for reduced
	// inter-beam interference at high elevation.
	rsrq := clamp(
		model.RSRQMinDB+
			(rsrp-model.RSRPMinDBm)*(model.RSRQMaxDB-model.RSRQMinDB)/(model.RSRPMaxDBm-model.RSRPMinDBm)+
			1.5*clamp(s.ElevationDeg, 0, 90)/90,
		model.RSRQMinDB, model.RSRQMaxDB)

	// SINR: affine map of the RSRP range onto [-20, 30] dB plus an
	// elevation bonus, reflecting that interference and multipath both
	// fall off away from the horizon.
	sinr := clamp(
		model.SINRMinDB+
			(rsrp-model.RSRPMinDBm)*(model.SINRMaxDB-model.SINRMinDB)/(model.RSRPMaxDBm-model.RSRPMinDBm)+
			2.0*clamp(s.ElevationDeg, 0, 90)/90,
		model.SINRMinDB, model.SINRMaxDB)

	return model.SignalSample{
		Timestamp:    s.Timestamp,
		SatelliteID:  satelliteID,
		RSRPDBm:      rsrp,
		RSRQDB:       rsrq,
		SINRDB:       sinr,
		PathLossDB:   pathLoss,
		AtmosLossDB:  atmosLoss,
		AntennaGain:  gain,
		ElevationDeg: s.ElevationDeg,
		RangeKm:      s.RangeKm,
		Grade:        SignalGrade(rsrp, rsrq, sinr),
	}, nil
}

// ComputeSeries evaluates a whole pass. Samples that fail are replaced by
// conservative worst-case values; the first error is returned alongside
// the series so the orchestrator can log it.
func (e *SignalQualityEngine) ComputeSeries(satelliteID string, samples []model.SatellitePositionSample) ([]model.SignalSample, error) {
	out := make([]model.SignalSample, 0, len(samples))
	var firstErr error
	for _, s := range samples {
		sig, err := e.Compute(satelliteID, s)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			sig = WorstCaseSample(satelliteID, s.Timestamp)
		}
		out = append(out, sig)
	}
	return out, firstErr
}

// WorstCaseSample is the conservative substitute for a sample whose
// signal computation failed: floor of every reporting range, grade F.
func WorstCaseSample(satelliteID string, ts time.Time) model.SignalSample {
	return model.SignalSample{
		Timestamp:   ts,
		SatelliteID: satelliteID,
		RSRPDBm:     model.RSRPMinDBm,
		RSRQDB:      model.RSRQMinDB,
		SINRDB:      model.SINRMinDB,
		Grade:       model.GradeF,
	}
}

// SignalScore collapses a sample to a [0,1] score for candidate ranking:
// equal parts normalised RSRP and SINR.
func SignalScore(s model.SignalSample) float64 {
	rsrp := (s.RSRPDBm - model.RSRPMinDBm) / (model.RSRPMaxDBm - model.RSRPMinDBm)
	sinr := (s.SINRDB - model.SINRMinDB) / (model.SINRMaxDB - model.SINRMinDB)
	return clamp(0.5*rsrp+0.5*sinr, 0, 1)
}
