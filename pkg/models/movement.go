package models

import "time"

// MovementKind classifies a line movement
type MovementKind string

const (
	// MovementSteam is rapid same-direction movement across multiple
	// independent providers inside a short window (synchronized sharp money).
	MovementSteam MovementKind = "steam"
	// MovementReverseLine is movement against the side receiving the majority
	// of tracked public bet volume.
	MovementReverseLine MovementKind = "reverse_line_movement"
	// MovementFreeze is one side's price failing to move while the opposite
	// side moves, often a liquidity or confidence signal.
	MovementFreeze MovementKind = "freeze"
	// MovementDrift is ordinary movement with no stronger classification.
	MovementDrift MovementKind = "drift"
)

// MovementEvent is emitted once per qualifying snapshot transition. Immutable.
type MovementEvent struct {
	Key           string       `json:"key"` // event:market:line:side
	Kind          MovementKind `json:"kind"`
	Magnitude     float64      `json:"magnitude"` // absolute implied-probability delta
	FromQuote     Quote        `json:"from_quote"`
	ToQuote       Quote        `json:"to_quote"`
	DetectedAt    time.Time    `json:"detected_at"`
	ProviderCount int          `json:"provider_count,omitempty"` // providers behind a steam move
	Degraded      bool         `json:"degraded,omitempty"`       // internal-error fallback, magnitude 0
}
