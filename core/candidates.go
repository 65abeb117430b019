package core

import (
	"sort"
	"time"

	"github.com/signalsfoundry/handover-engine/model"
)

// candidateState is the manager-private mutable record behind a published
// HandoverCandidate.
type candidateState struct {
	satelliteID   string
	signalScore   float64
	grade         model.Grade
	eventIDs      []string
	lastEventTime time.Time
	expiryTime    time.Time
}

// maxSupportingEvents bounds the per-candidate event provenance list.
const maxSupportingEvents = 8

// HandoverCandidateManager owns the bounded, ranked candidate list for
// each serving satellite. A neighbour enters the list when a measurement
// event names it; it leaves on TTL expiry (no supporting event within
// CandidateTTL) or when capacity eviction drops the lowest rank.
type HandoverCandidateManager struct {
	cfg       *Config
	byServing map[string]map[string]*candidateState
}

func NewHandoverCandidateManager(cfg *Config) *HandoverCandidateManager {
	return &HandoverCandidateManager{
		cfg:       cfg,
		byServing: make(map[string]map[string]*candidateState),
	}
}

// Observe folds this tick's signal sample and emitted events for one
// neighbour into the candidate list. Without at least one supporting
// event, a neighbour never becomes a candidate; signal quality alone only
// refreshes an existing one.
func (m *HandoverCandidateManager) Observe(servingID, neighborID string, sig model.SignalSample, grade model.Grade, events []model.MeasurementEvent, now time.Time) {
	neighbors := m.byServing[servingID]
	cand, known := neighbors[neighborID]
	if !known && len(events) == 0 {
		return
	}

	if neighbors == nil {
		neighbors = make(map[string]*candidateState)
		m.byServing[servingID] = neighbors
	}
	if !known {
		cand = &candidateState{satelliteID: neighborID}
		neighbors[neighborID] = cand
	}

	cand.signalScore = SignalScore(sig)
	cand.grade = grade
	for _, ev := range events {
		cand.eventIDs = append(cand.eventIDs, ev.ID)
		if len(cand.eventIDs) > maxSupportingEvents {
			cand.eventIDs = cand.eventIDs[len(cand.eventIDs)-maxSupportingEvents:]
		}
		if ev.Timestamp.After(cand.lastEventTime) {
			cand.lastEventTime = ev.Timestamp
		}
	}
	if len(events) > 0 {
		cand.expiryTime = cand.lastEventTime.Add(m.cfg.Decision.CandidateTTL)
	}

	m.enforceCapacity(servingID, now)
}

// rankScore is the weighted combination of current signal score and event
// recency (1 at the moment of the last event, 0 at TTL age).
func (m *HandoverCandidateManager) rankScore(c *candidateState, now time.Time) float64 {
	ttl := m.cfg.Decision.CandidateTTL
	recency := 0.0
	if ttl > 0 && !c.lastEventTime.IsZero() {
		age := now.Sub(c.lastEventTime)
		recency = clamp(1-float64(age)/float64(ttl), 0, 1)
	}
	return m.cfg.Decision.SignalWeight*c.signalScore + m.cfg.Decision.RecencyWeight*recency
}

func (m *HandoverCandidateManager) enforceCapacity(servingID string, now time.Time) {
	neighbors := m.byServing[servingID]
	for len(neighbors) > m.cfg.Decision.MaxCandidates {
		var worstID string
		worstScore := 0.0
		first := true
		for id, c := range neighbors {
			score := m.rankScore(c, now)
			if first || score < worstScore {
				worstID, worstScore, first = id, score, false
			}
		}
		delete(neighbors, worstID)
	}
}

// Candidates prunes expired entries and returns the ranked list (rank 1 =
// best) for the serving satellite.
func (m *HandoverCandidateManager) Candidates(servingID string, now time.Time) []model.HandoverCandidate {
	neighbors := m.byServing[servingID]
	for id, c := range neighbors {
		if now.After(c.expiryTime) {
			delete(neighbors, id)
		}
	}
	if len(neighbors) == 0 {
		return nil
	}

	out := make([]model.HandoverCandidate, 0, len(neighbors))
	for _, c := range neighbors {
		ids := make([]string, len(c.eventIDs))
		copy(ids, c.eventIDs)
		out = append(out, model.HandoverCandidate{
			SatelliteID:        c.satelliteID,
			SignalScore:        m.rankScore(c, now),
			Grade:              c.grade,
			SupportingEventIDs: ids,
			LastEventTime:      c.lastEventTime,
			ExpiryTime:         c.expiryTime,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SignalScore != out[j].SignalScore {
			return out[i].SignalScore > out[j].SignalScore
		}
		return out[i].SatelliteID < out[j].SatelliteID
	})
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

// Remove drops one candidate, e.g. after it became the serving satellite.
func (m *HandoverCandidateManager) Remove(servingID, satelliteID string) {
	delete(m.byServing[servingID], satelliteID)
}

// Retire drops the entire bucket of a satellite that stopped serving. Its
// neighbour list does not transfer to the new serving satellite, and
// without retirement every past serving satellite would stay keyed here
// forever.
func (m *HandoverCandidateManager) Retire(servingID string) {
	delete(m.byServing, servingID)
}
