package models

import (
	"fmt"
	"time"
)

// MarketType classifies a betting market
type MarketType string

const (
	MarketMoneyline MarketType = "moneyline"
	MarketSpread    MarketType = "spread"
	MarketTotal     MarketType = "total"
)

// Side identifies one outcome of a market
type Side string

const (
	SideHome  Side = "home"
	SideAway  Side = "away"
	SideDraw  Side = "draw"
	SideOver  Side = "over"
	SideUnder Side = "under"
)

// Opposite returns the matching opposite side of a two-way market.
// Draw has no opposite and returns itself.
func (s Side) Opposite() Side {
	switch s {
	case SideHome:
		return SideAway
	case SideAway:
		return SideHome
	case SideOver:
		return SideUnder
	case SideUnder:
		return SideOver
	}
	return s
}

// Quote is one provider's current price for one side of one market of one event.
// PriceAmerican follows the American odds convention: non-zero and never inside
// the open interval (-100, 100).
type Quote struct {
	EventID       string     `json:"event_id"`
	MarketType    MarketType `json:"market_type"`
	Provider      string     `json:"provider"`
	Side          Side       `json:"side"`
	Line          *float64   `json:"line,omitempty"` // nil for moneyline
	PriceAmerican int        `json:"price_american"`
	ObservedAt    time.Time  `json:"observed_at"`
	Sequence      int64      `json:"sequence"`  // monotonic per provider-market
	StartsAt      time.Time  `json:"starts_at"` // event start; zero when the provider does not supply it
}

// Key returns the provider-scoped series key. The line participates in the key:
// a spread moving from -3 to -3.5 is a new market, not an update, so snapshots
// stay comparable for movement detection.
func (q Quote) Key() string {
	return fmt.Sprintf("%s:%s:%s:%s:%s", q.EventID, q.MarketType, lineToken(q.Line), q.Provider, q.Side)
}

// MarketSideKey identifies the same market side across all providers.
func (q Quote) MarketSideKey() string {
	return fmt.Sprintf("%s:%s:%s:%s", q.EventID, q.MarketType, lineToken(q.Line), q.Side)
}

// MarketKey identifies a market across providers and sides. Spread lines are
// complementary (-3.5 home / +3.5 away), so the token uses the absolute value.
func (q Quote) MarketKey() string {
	return fmt.Sprintf("%s:%s:%s", q.EventID, q.MarketType, absLineToken(q.Line))
}

// Validate checks the price invariant.
func (q Quote) Validate() error {
	if q.PriceAmerican == 0 {
		return fmt.Errorf("%w: price cannot be 0", ErrMalformedPayload)
	}
	if q.PriceAmerican > -100 && q.PriceAmerican < 100 {
		return fmt.Errorf("%w: American price %d inside (-100, 100)", ErrMalformedPayload, q.PriceAmerican)
	}
	if q.EventID == "" || q.Provider == "" {
		return fmt.Errorf("%w: missing event or provider", ErrMalformedPayload)
	}
	return nil
}

// Snapshot is the (previous, current) pair retained per quote key. Previous is
// nil until the second accepted quote for the key.
type Snapshot struct {
	Previous *Quote `json:"previous,omitempty"`
	Current  *Quote `json:"current"`
}

func lineToken(line *float64) string {
	if line == nil {
		return "ml"
	}
	return fmt.Sprintf("%.1f", *line)
}

func absLineToken(line *float64) string {
	if line == nil {
		return "ml"
	}
	v := *line
	if v < 0 {
		v = -v
	}
	return fmt.Sprintf("%.1f", v)
}
