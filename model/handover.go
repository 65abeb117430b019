package model

import "time"

// HandoverCandidate is a ranked neighbour the decision engine may switch
// to. Candidates are owned exclusively by the candidate manager and are
// evicted on TTL expiry or capacity overflow.
type HandoverCandidate struct {
	SatelliteID        string
	Rank               int     // 1 = best
	SignalScore        float64 // weighted signal + recency score in [0,1]
	Grade              Grade
	SupportingEventIDs []string
	LastEventTime      time.Time
	ExpiryTime         time.Time
}

// HandoverAction is what the decision engine chose to do this tick.
type HandoverAction string

const (
	ActionMaintain   HandoverAction = "MAINTAIN"
	ActionHandoverTo HandoverAction = "HANDOVER_TO"
)

// HandoverDecision is emitted once per orchestration tick. Ownership
// transfers to the downstream persistence collaborator.
type HandoverDecision struct {
	ID                 string // uuid
	Timestamp          time.Time
	Action             HandoverAction
	ServingID          string
	TargetID           string // set only when Action == ActionHandoverTo
	Reason             string
	TriggeringEventIDs []string
}
