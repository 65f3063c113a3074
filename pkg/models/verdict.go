package models

import "time"

// VerdictReason explains a gatekeeper decision.
type VerdictReason string

const (
	ReasonHighEdge       VerdictReason = "high_edge"
	ReasonMovementSignal VerdictReason = "movement_signal"
	ReasonBelowThreshold VerdictReason = "below_threshold"
	ReasonDeduplicated   VerdictReason = "deduplicated"
)

// GatekeeperVerdict is the durable local decision for one candidate. It does
// not depend on whether the downstream analyzer call later succeeds.
type GatekeeperVerdict struct {
	CandidateID string        `json:"candidate_id"`
	CheapScore  float64       `json:"cheap_score"` // 0-1
	Forwarded   bool          `json:"forwarded"`
	Reason      VerdictReason `json:"reason"`
	DecidedAt   time.Time     `json:"decided_at"`
}
