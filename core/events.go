package core

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/signalsfoundry/handover-engine/model"
)

// fsmState is the per-(serving, neighbor, event-type) detector state.
type fsmState int

const (
	stateIdle fsmState = iota
	stateTriggering
	stateTriggered
)

type pairKey struct {
	serving  string
	neighbor string
	typ      model.EventType
}

type pairFSM struct {
	state fsmState
	since time.Time // condition start, valid in Triggering and Triggered
}

// PairMeasurement is one synchronized observation of a serving/neighbor
// pair, fed to the detector in strict timestamp order.
type PairMeasurement struct {
	Timestamp       time.Time
	ServingID       string
	NeighborID      string
	ServingRSRPDBm  float64
	NeighborRSRPDBm float64
	ServingRangeKm  float64
	ServingElevDeg  float64
}

// MeasurementEventDetector implements the A3/A4/A5/D2 measurement events
// with hysteresis and time-to-trigger. Per event type and pair it runs
// Idle -> Triggering(start) -> Triggered -> Idle: a condition must hold
// continuously for the configured time-to-trigger before the event is
// emitted, exactly once; the condition going false at any point returns
// the machine to Idle. Instantaneous crossings therefore never emit.
//
// Known limitation: the detector only sees the sampled series, so
// condition flapping faster than the sample interval aliases.
type MeasurementEventDetector struct {
	cfg *Config

	fsms     map[pairKey]*pairFSM
	lastSeen map[[2]string]time.Time
}

func NewMeasurementEventDetector(cfg *Config) *MeasurementEventDetector {
	return &MeasurementEventDetector{
		cfg:      cfg,
		fsms:     make(map[pairKey]*pairFSM),
		lastSeen: make(map[[2]string]time.Time),
	}
}

// conditionMargin returns whether an RSRP event condition holds for m, and
// by what dB margin. D2 is geometric and handled by d2Margins.
func (d *MeasurementEventDetector) conditionMargin(typ model.EventType, m PairMeasurement) (bool, float64) {
	ev := d.cfg.Events
	switch typ {
	case model.EventA3:
		margin := m.NeighborRSRPDBm - (m.ServingRSRPDBm + ev.A3OffsetDB + ev.HysteresisDB)
		return margin > 0, margin
	case model.EventA4:
		margin := m.NeighborRSRPDBm - (ev.A4ThresholdDBm + ev.HysteresisDB)
		return margin > 0, margin
	case model.EventA5:
		m1 := (ev.A5Threshold1DBm - ev.HysteresisDB) - m.ServingRSRPDBm
		m2 := m.NeighborRSRPDBm - (ev.A5Threshold2DBm + ev.HysteresisDB)
		if m1 > 0 && m2 > 0 {
			if m1 < m2 {
				return true, m1
			}
			return true, m2
		}
		return false, 0
	}
	return false, 0
}

// d2Margins reports whether the serving geometry has left the service
// envelope, with each limb's overshoot in its own unit (km, degrees). A
// limb that does not contribute reports zero.
func (d *MeasurementEventDetector) d2Margins(m PairMeasurement) (bool, float64, float64) {
	ev := d.cfg.Events
	distKm := m.ServingRangeKm - ev.D2DistanceKm
	elevDeg := ev.D2MinElevationDeg - m.ServingElevDeg
	if distKm <= 0 && elevDeg <= 0 {
		return false, 0, 0
	}
	return true, math.Max(distKm, 0), math.Max(elevDeg, 0)
}

var eventTypes = []model.EventType{model.EventA3, model.EventA4, model.EventA5, model.EventD2}

// Process advances every event-type machine for the measurement's pair and
// returns any events confirmed at this sample. Out-of-order input is an
// EventDetectorError: the pair's machines reset to Idle and the in-flight
// event is dropped.
func (d *MeasurementEventDetector) Process(m PairMeasurement) ([]model.MeasurementEvent, error) {
	pair := [2]string{m.ServingID, m.NeighborID}
	if last, ok := d.lastSeen[pair]; ok && !m.Timestamp.After(last) {
		d.ResetPair(m.ServingID, m.NeighborID)
		return nil, &EventDetectorError{
			ServingID:  m.ServingID,
			NeighborID: m.NeighborID,
			Err: fmt.Errorf("out-of-order sample %s (last %s)",
				m.Timestamp.UTC().Format(time.RFC3339), last.UTC().Format(time.RFC3339)),
		}
	}
	d.lastSeen[pair] = m.Timestamp

	var emitted []model.MeasurementEvent
	for _, typ := range eventTypes {
		key := pairKey{serving: m.ServingID, neighbor: m.NeighborID, typ: typ}
		fsm := d.fsms[key]
		if fsm == nil {
			fsm = &pairFSM{}
			d.fsms[key] = fsm
		}

		var (
			holds           bool
			margin          float64
			distKm, elevDeg float64
		)
		if typ == model.EventD2 {
			holds, distKm, elevDeg = d.d2Margins(m)
		} else {
			holds, margin = d.conditionMargin(typ, m)
		}
		if !holds {
			fsm.state = stateIdle
			continue
		}

		switch fsm.state {
		case stateIdle:
			fsm.state = stateTriggering
			fsm.since = m.Timestamp
		case stateTriggering:
			if m.Timestamp.Sub(fsm.since) >= d.cfg.Events.TimeToTrigger {
				fsm.state = stateTriggered
				emitted = append(emitted, model.MeasurementEvent{
					ID:         uuid.NewString(),
					Type:       typ,
					Timestamp:  m.Timestamp,
					ServingID:  m.ServingID,
					NeighborID: m.NeighborID,
					Snapshot: model.MeasurementSnapshot{
						ServingRSRPDBm:  m.ServingRSRPDBm,
						NeighborRSRPDBm: m.NeighborRSRPDBm,
						ServingRangeKm:  m.ServingRangeKm,
						ServingElevDeg:  m.ServingElevDeg,
					},
					TriggerMarginDB:       margin,
					DistanceOvershootKm:   distKm,
					ElevationShortfallDeg: elevDeg,
				})
			}
		case stateTriggered:
			// Already reported; stay silent while the condition holds.
		}
	}
	return emitted, nil
}

// ResetPair returns every event-type machine for the pair to Idle.
func (d *MeasurementEventDetector) ResetPair(servingID, neighborID string) {
	for _, typ := range eventTypes {
		delete(d.fsms, pairKey{serving: servingID, neighbor: neighborID, typ: typ})
	}
	delete(d.lastSeen, [2]string{servingID, neighborID})
}
