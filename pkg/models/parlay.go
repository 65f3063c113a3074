package models

// ParlayLeg references a quote (or a caller-supplied probability override)
// inside a multi-leg wager.
type ParlayLeg struct {
	Quote       *Quote   `json:"quote,omitempty"`
	Probability *float64 `json:"probability,omitempty"` // override; wins over the quote's implied probability
}

// ParlayEvaluation combines per-leg probabilities into a multi-leg result.
// Legs are treated as independent: correlated legs (same-game parlays) will
// overstate the combined probability. That is a stated limitation of the
// model, not something the analyzer corrects for.
type ParlayEvaluation struct {
	Legs                []ParlayLeg `json:"legs"`
	Stake               float64     `json:"stake"`
	CombinedProbability float64     `json:"combined_probability"`
	DecimalPayout       float64     `json:"decimal_payout"`
	ExpectedValue       float64     `json:"expected_value"`
	TeaserPoints        float64     `json:"teaser_points,omitempty"`
}
