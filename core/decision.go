package core

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/signalsfoundry/handover-engine/model"
)

var gradeRank = map[model.Grade]int{
	model.GradeA: 5,
	model.GradeB: 4,
	model.GradeC: 3,
	model.GradeD: 2,
	model.GradeF: 1,
}

// gradeAtLeast reports whether a is no worse than b. Unknown grades rank
// lowest so an inconsistent input can never justify a handover.
func gradeAtLeast(a, b model.Grade) bool {
	return gradeRank[a] >= gradeRank[b]
}

// NeighborState is the decision engine's per-tick view of one neighbour.
type NeighborState struct {
	ID       string
	Feasible bool
	Grade    model.Grade
	Signal   model.SignalSample
}

// DecisionInput is everything one tick's decision is based on.
type DecisionInput struct {
	Timestamp       time.Time
	ServingID       string
	ServingFeasible bool
	ServingGrade    model.Grade
	ServingSignal   model.SignalSample
	Neighbors       map[string]NeighborState
	Candidates      []model.HandoverCandidate // ranked, from the candidate manager
	Events          []model.MeasurementEvent  // emitted this tick
}

// HandoverDecisionEngine turns candidates and events into one decision per
// tick. It never returns an error: any internal inconsistency defaults to
// Maintain, on the principle that the status quo beats an unverified
// handover. A satellite just handed over from is blacklisted as a target
// for the debounce window to suppress ping-pong.
type HandoverDecisionEngine struct {
	cfg *Config

	blacklist        map[string]time.Time // satellite id -> blacklisted until
	aboveMarginSince map[string]time.Time // candidate id -> margin first exceeded
}

func NewHandoverDecisionEngine(cfg *Config) *HandoverDecisionEngine {
	return &HandoverDecisionEngine{
		cfg:              cfg,
		blacklist:        make(map[string]time.Time),
		aboveMarginSince: make(map[string]time.Time),
	}
}

func (e *HandoverDecisionEngine) blacklisted(id string, now time.Time) bool {
	until, ok := e.blacklist[id]
	if !ok {
		return false
	}
	if now.Before(until) {
		return true
	}
	delete(e.blacklist, id)
	return false
}

// eligible reports whether the neighbour may be handed over to right now.
func (e *HandoverDecisionEngine) eligible(in DecisionInput, id string) (NeighborState, bool) {
	if id == "" || id == in.ServingID || e.blacklisted(id, in.Timestamp) {
		return NeighborState{}, false
	}
	n, ok := in.Neighbors[id]
	if !ok || !n.Feasible {
		return NeighborState{}, false
	}
	return n, true
}

// Decide evaluates one orchestration tick.
func (e *HandoverDecisionEngine) Decide(in DecisionInput) model.HandoverDecision {
	if in.ServingID == "" {
		return e.maintain(in, "no serving satellite", nil)
	}

	// Urgent path: serving infeasible, or an A5/D2 event names a feasible
	// candidate at least as good as the serving satellite.
	if !in.ServingFeasible {
		if target, ok := e.bestEligibleCandidate(in); ok {
			return e.handover(in, target, "serving satellite infeasible")
		}
		return e.maintain(in, "serving satellite infeasible but no eligible candidate", nil)
	}

	for _, ev := range in.Events {
		if ev.Type != model.EventA5 && ev.Type != model.EventD2 {
			continue
		}
		n, ok := e.eligible(in, ev.NeighborID)
		if !ok || !gradeAtLeast(n.Grade, in.ServingGrade) {
			continue
		}
		if cand, found := candidateByID(in.Candidates, ev.NeighborID); found {
			return e.handoverWithEvents(in, cand,
				fmt.Sprintf("urgent %s event on serving link", ev.Type),
				append(cand.SupportingEventIDs, ev.ID))
		}
	}

	// Sustained-margin path: the top candidate must exceed the serving
	// RSRP by the handover margin continuously for the debounce window.
	if target, since, ok := e.trackMargin(in); ok {
		if in.Timestamp.Sub(since) >= e.cfg.Decision.DebounceWindow {
			return e.handover(in, target, fmt.Sprintf(
				"candidate exceeded serving by %.1f dB for %s",
				e.cfg.Decision.HandoverMarginDB, e.cfg.Decision.DebounceWindow))
		}
	}

	return e.maintain(in, "serving satellite remains best option", nil)
}

// trackMargin updates the sustained-margin bookkeeping for the current top
// eligible candidate and reports when the margin has been held since.
func (e *HandoverDecisionEngine) trackMargin(in DecisionInput) (model.HandoverCandidate, time.Time, bool) {
	top, ok := e.topEligibleCandidate(in)
	if !ok {
		clear(e.aboveMarginSince)
		return model.HandoverCandidate{}, time.Time{}, false
	}

	n := in.Neighbors[top.SatelliteID]
	exceeds := n.Signal.RSRPDBm > in.ServingSignal.RSRPDBm+e.cfg.Decision.HandoverMarginDB
	if !exceeds {
		delete(e.aboveMarginSince, top.SatelliteID)
		return model.HandoverCandidate{}, time.Time{}, false
	}

	since, tracked := e.aboveMarginSince[top.SatelliteID]
	if !tracked {
		since = in.Timestamp
		e.aboveMarginSince[top.SatelliteID] = since
	}
	// Only the current top candidate accumulates debounce credit.
	for id := range e.aboveMarginSince {
		if id != top.SatelliteID {
			delete(e.aboveMarginSince, id)
		}
	}
	return top, since, true
}

func (e *HandoverDecisionEngine) topEligibleCandidate(in DecisionInput) (model.HandoverCandidate, bool) {
	for _, c := range in.Candidates {
		if _, ok := e.eligible(in, c.SatelliteID); ok {
			return c, true
		}
	}
	return model.HandoverCandidate{}, false
}

func (e *HandoverDecisionEngine) bestEligibleCandidate(in DecisionInput) (model.HandoverCandidate, bool) {
	return e.topEligibleCandidate(in)
}

func candidateByID(cands []model.HandoverCandidate, id string) (model.HandoverCandidate, bool) {
	for _, c := range cands {
		if c.SatelliteID == id {
			return c, true
		}
	}
	return model.HandoverCandidate{}, false
}

func (e *HandoverDecisionEngine) handover(in DecisionInput, target model.HandoverCandidate, reason string) model.HandoverDecision {
	return e.handoverWithEvents(in, target, reason, target.SupportingEventIDs)
}

func (e *HandoverDecisionEngine) handoverWithEvents(in DecisionInput, target model.HandoverCandidate, reason string, eventIDs []string) model.HandoverDecision {
	// The satellite we are leaving may not be re-targeted for the
	// debounce window.
	e.blacklist[in.ServingID] = in.Timestamp.Add(e.cfg.Decision.DebounceWindow)
	clear(e.aboveMarginSince)

	ids := make([]string, len(eventIDs))
	copy(ids, eventIDs)
	return model.HandoverDecision{
		ID:                 uuid.NewString(),
		Timestamp:          in.Timestamp,
		Action:             model.ActionHandoverTo,
		ServingID:          in.ServingID,
		TargetID:           target.SatelliteID,
		Reason:             reason,
		TriggeringEventIDs: ids,
	}
}

func (e *HandoverDecisionEngine) maintain(in DecisionInput, reason string, eventIDs []string) model.HandoverDecision {
	return model.HandoverDecision{
		ID:                 uuid.NewString(),
		Timestamp:          in.Timestamp,
		Action:             model.ActionMaintain,
		ServingID:          in.ServingID,
		Reason:             reason,
		TriggeringEventIDs: eventIDs,
	}
}
