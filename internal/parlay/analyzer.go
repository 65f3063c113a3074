// Package parlay combines per-leg probabilities into multi-leg evaluations.
// Legs are assumed independent: correlated legs (same-game parlays) overstate
// the combined probability, and that limitation is deliberate, not corrected.
package parlay

import (
	"fmt"
	"sort"

	"github.com/vigorish/oddscore/pkg/models"
	"github.com/vigorish/oddscore/pkg/oddsmath"
)

// CurvePoint maps a teaser line shift in points to the implied-probability
// gain for the teased side.
type CurvePoint struct {
	Points    float64
	ProbShift float64
}

// DefaultTeaserCurve approximates the probability value of teaser points from
// observed price/line relationships in US football and basketball markets.
// Roughly 3% per point near the middle, flattening further out.
var DefaultTeaserCurve = []CurvePoint{
	{0, 0},
	{1, 0.030},
	{2, 0.060},
	{3, 0.090},
	{4, 0.115},
	{5, 0.140},
	{6, 0.165},
	{7, 0.190},
	{10, 0.250},
}

// Analyzer evaluates parlays and teasers.
type Analyzer struct {
	curve []CurvePoint
}

// New creates an analyzer. A nil or empty curve falls back to the default.
func New(curve []CurvePoint) *Analyzer {
	if len(curve) == 0 {
		curve = DefaultTeaserCurve
	}
	sorted := make([]CurvePoint, len(curve))
	copy(sorted, curve)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Points < sorted[j].Points })
	return &Analyzer{curve: sorted}
}

// EvaluateParlay combines legs into a single evaluation.
//
// Combined probability is the product of per-leg probabilities (override when
// supplied, otherwise the quote's implied probability). Payout multiplies the
// quoted decimal price per leg when a quote is present, or fair odds (1/p)
// for override-only legs. EV = stake * (p * payout - 1).
func (a *Analyzer) EvaluateParlay(legs []models.ParlayLeg, stake float64) (*models.ParlayEvaluation, error) {
	if len(legs) == 0 {
		return nil, fmt.Errorf("parlay needs at least one leg")
	}
	if stake < 0 {
		return nil, fmt.Errorf("stake must not be negative")
	}

	combined := 1.0
	payout := 1.0

	for i, leg := range legs {
		p, err := legProbability(leg)
		if err != nil {
			return nil, fmt.Errorf("leg %d: %w", i, err)
		}
		combined *= p

		if leg.Quote != nil {
			dec, err := oddsmath.AmericanToDecimal(leg.Quote.PriceAmerican)
			if err != nil {
				return nil, fmt.Errorf("leg %d: %w", i, err)
			}
			payout *= dec
		} else {
			payout *= 1.0 / p
		}
	}

	return &models.ParlayEvaluation{
		Legs:                legs,
		Stake:               stake,
		CombinedProbability: combined,
		DecimalPayout:       payout,
		ExpectedValue:       stake * (combined*payout - 1.0),
	}, nil
}

// EvaluateTeaser shifts each spread/total leg's win probability by the curve
// value for the teaser points before recombining at fair odds. Moneyline legs
// cannot be teased.
func (a *Analyzer) EvaluateTeaser(legs []models.ParlayLeg, stake, points float64) (*models.ParlayEvaluation, error) {
	if len(legs) == 0 {
		return nil, fmt.Errorf("teaser needs at least one leg")
	}
	if points <= 0 {
		return nil, fmt.Errorf("teaser points must be positive")
	}

	shift := a.probShift(points)

	teased := make([]models.ParlayLeg, len(legs))
	for i, leg := range legs {
		if leg.Quote == nil {
			return nil, fmt.Errorf("leg %d: teaser legs need a quote", i)
		}
		switch leg.Quote.MarketType {
		case models.MarketSpread, models.MarketTotal:
		default:
			return nil, fmt.Errorf("leg %d: cannot tease a %s leg", i, leg.Quote.MarketType)
		}

		p, err := legProbability(leg)
		if err != nil {
			return nil, fmt.Errorf("leg %d: %w", i, err)
		}

		shifted := p + shift
		if shifted >= 1 {
			shifted = 0.99
		}

		q := *leg.Quote
		if q.Line != nil {
			// The teased line moves in the bettor's favor: up for a spread
			// taken (home/away both improve by +points), down for an over,
			// up for an under.
			moved := teasedLine(*q.Line, q.Side, points)
			q.Line = &moved
		}

		teased[i] = models.ParlayLeg{Quote: &q, Probability: &shifted}
	}

	eval, err := a.evaluateFair(teased, stake)
	if err != nil {
		return nil, err
	}
	eval.TeaserPoints = points
	return eval, nil
}

// evaluateFair recombines legs at fair odds regardless of quoted prices:
// teased lines no longer match the quoted price.
func (a *Analyzer) evaluateFair(legs []models.ParlayLeg, stake float64) (*models.ParlayEvaluation, error) {
	combined := 1.0
	payout := 1.0
	for i, leg := range legs {
		p, err := legProbability(leg)
		if err != nil {
			return nil, fmt.Errorf("leg %d: %w", i, err)
		}
		combined *= p
		payout *= 1.0 / p
	}

	return &models.ParlayEvaluation{
		Legs:                legs,
		Stake:               stake,
		CombinedProbability: combined,
		DecimalPayout:       payout,
		ExpectedValue:       stake * (combined*payout - 1.0),
	}, nil
}

// probShift interpolates the curve linearly; points beyond the last entry
// clamp to it.
func (a *Analyzer) probShift(points float64) float64 {
	curve := a.curve
	if points <= curve[0].Points {
		return curve[0].ProbShift
	}
	for i := 1; i < len(curve); i++ {
		if points <= curve[i].Points {
			lo, hi := curve[i-1], curve[i]
			frac := (points - lo.Points) / (hi.Points - lo.Points)
			return lo.ProbShift + frac*(hi.ProbShift-lo.ProbShift)
		}
	}
	return curve[len(curve)-1].ProbShift
}

func legProbability(leg models.ParlayLeg) (float64, error) {
	if leg.Probability != nil {
		p := *leg.Probability
		if p <= 0 || p >= 1 {
			return 0, fmt.Errorf("%w: probability %.4f outside (0,1)", models.ErrArithmeticDefect, p)
		}
		return p, nil
	}
	if leg.Quote == nil {
		return 0, fmt.Errorf("leg needs a quote or a probability override")
	}
	return oddsmath.AmericanToImplied(leg.Quote.PriceAmerican)
}

func teasedLine(line float64, side models.Side, points float64) float64 {
	switch side {
	case models.SideOver:
		return line - points
	case models.SideUnder:
		return line + points
	default:
		return line + points
	}
}
