package models

import "time"

// ArbitrageLeg is one outcome of an arbitrage split: the best available price
// for that outcome and the fraction of a unit bankroll staked on it.
type ArbitrageLeg struct {
	Provider      string  `json:"provider"`
	Side          Side    `json:"side"`
	Line          *float64 `json:"line,omitempty"`
	PriceAmerican int     `json:"price_american"`
	Stake         float64 `json:"stake"` // fraction of unit bankroll, within [0,1]
}

// ArbitrageOpportunity is a risk-free split across providers for one market.
// Ephemeral: recomputed each evaluation cycle, owned by the caller.
// Invariant: leg stakes sum to 1 and the payout is equal whichever outcome hits.
type ArbitrageOpportunity struct {
	EventID          string         `json:"event_id"`
	MarketType       MarketType     `json:"market_type"`
	Legs             []ArbitrageLeg `json:"legs"`
	ProfitPercentage float64        `json:"profit_percentage"`
	DetectedAt       time.Time      `json:"detected_at"`
}

// EdgeResult is the outcome of comparing a model probability to the price
// a provider is offering.
type EdgeResult struct {
	Edge             float64 `json:"edge"` // modelProbability - impliedProbability
	ModelProbability float64 `json:"model_probability"`
	ImpliedProb      float64 `json:"implied_probability"`
	UnadjustedForVig bool    `json:"unadjusted_for_vig"` // no opposite side available for vig removal
}

// CandidateSource names which component produced a gatekeeper candidate.
type CandidateSource string

const (
	SourceMovement  CandidateSource = "movement"
	SourceEdge      CandidateSource = "edge"
	SourceArbitrage CandidateSource = "arbitrage"
)

// Candidate is a unit of work the gatekeeper decides whether to forward to the
// expensive external analyzer.
type Candidate struct {
	ID            string          `json:"id"`
	Key           string          `json:"key"`
	Source        CandidateSource `json:"source"`
	EdgePercent   float64         `json:"edge_percent"`
	Movement      *MovementEvent  `json:"movement,omitempty"`
	ProviderCount int             `json:"provider_count"`
	TimeToEvent   time.Duration   `json:"time_to_event"`
	DetectedAt    time.Time       `json:"detected_at"`
}
