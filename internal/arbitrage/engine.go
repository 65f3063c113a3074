// Package arbitrage computes risk-free splits across providers and
// statistical edge against model probabilities. Stake arithmetic runs on
// exact decimals so rounding can never surface a stake outside [0,1]; any
// result that still lands out of range is discarded as a defect.
package arbitrage

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/vigorish/oddscore/pkg/models"
	"github.com/vigorish/oddscore/pkg/oddsmath"
)

var (
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
)

// Engine finds arbitrage opportunities and computes edges.
type Engine struct {
	minProfitPercent float64
	logger           *logrus.Entry
}

// New creates an engine with a minimum profit filter (percent).
func New(minProfitPercent float64, logger *logrus.Entry) *Engine {
	return &Engine{minProfitPercent: minProfitPercent, logger: logger}
}

// FindArbitrage scans current quotes and returns every market where the best
// prices across providers sum to an implied probability below 1. Quotes may
// span multiple markets; they are grouped internally.
func (e *Engine) FindArbitrage(quotes []models.Quote) []models.ArbitrageOpportunity {
	markets := make(map[string][]models.Quote)
	for _, q := range quotes {
		mk := q.MarketKey()
		markets[mk] = append(markets[mk], q)
	}

	var out []models.ArbitrageOpportunity
	for _, marketQuotes := range markets {
		if opp := e.evaluateMarket(marketQuotes); opp != nil {
			out = append(out, *opp)
		}
	}
	return out
}

// evaluateMarket checks one market for an arbitrage split.
func (e *Engine) evaluateMarket(quotes []models.Quote) *models.ArbitrageOpportunity {
	if len(quotes) == 0 {
		return nil
	}

	// Best (highest-paying) quote per outcome across all providers.
	best := make(map[models.Side]models.Quote)
	for _, q := range quotes {
		cur, ok := best[q.Side]
		if !ok || betterPrice(q.PriceAmerican, cur.PriceAmerican) {
			best[q.Side] = q
		}
	}

	outcomes := outcomeSet(quotes[0].MarketType, best)
	if outcomes == nil {
		return nil
	}

	// An arbitrage needs prices from at least two books: one book's own
	// market always carries vig.
	providers := make(map[string]struct{})
	for _, side := range outcomes {
		providers[best[side].Provider] = struct{}{}
	}
	if len(providers) < 2 {
		return nil
	}

	sum := decimal.Zero
	probs := make([]decimal.Decimal, len(outcomes))
	for i, side := range outcomes {
		p, err := impliedDecimal(best[side].PriceAmerican)
		if err != nil {
			return nil
		}
		probs[i] = p
		sum = sum.Add(p)
	}

	if sum.GreaterThanOrEqual(one) {
		return nil
	}

	// Stake per outcome proportional to its implied probability; the last
	// stake closes the unit exactly so the sum is 1 by construction.
	opp := &models.ArbitrageOpportunity{
		EventID:    quotes[0].EventID,
		MarketType: quotes[0].MarketType,
		DetectedAt: time.Now().UTC(),
	}

	staked := decimal.Zero
	for i, side := range outcomes {
		var stake decimal.Decimal
		if i == len(outcomes)-1 {
			stake = one.Sub(staked)
		} else {
			stake = probs[i].Div(sum)
			staked = staked.Add(stake)
		}

		if stake.IsNegative() || stake.GreaterThan(one) {
			if e.logger != nil {
				e.logger.WithField("event_id", opp.EventID).
					Warnf("%v: stake %s outside [0,1], discarding", models.ErrArithmeticDefect, stake)
			}
			return nil
		}

		q := best[side]
		sf, _ := stake.Float64()
		opp.Legs = append(opp.Legs, models.ArbitrageLeg{
			Provider:      q.Provider,
			Side:          q.Side,
			Line:          q.Line,
			PriceAmerican: q.PriceAmerican,
			Stake:         sf,
		})
	}

	profit := one.Div(sum).Sub(one).Mul(hundred)
	opp.ProfitPercentage, _ = profit.Float64()
	if opp.ProfitPercentage < e.minProfitPercent {
		return nil
	}

	return opp
}

// ComputeEdge compares a model probability against a quote's implied
// probability. Vig is stripped by proportional normalization when the same
// provider quotes the opposite side; otherwise the edge is computed against
// the raw implied probability and flagged as unadjusted.
func (e *Engine) ComputeEdge(q models.Quote, modelProbability float64, market []models.Quote) (models.EdgeResult, error) {
	if modelProbability <= 0 || modelProbability >= 1 {
		return models.EdgeResult{}, fmt.Errorf("%w: model probability %.4f outside (0,1)",
			models.ErrArithmeticDefect, modelProbability)
	}

	implied, err := oddsmath.AmericanToImplied(q.PriceAmerican)
	if err != nil {
		return models.EdgeResult{}, err
	}

	result := models.EdgeResult{
		ModelProbability: modelProbability,
		ImpliedProb:      implied,
		UnadjustedForVig: true,
	}

	if opp := findOpposite(q, market); opp != nil {
		oppImplied, err := oddsmath.AmericanToImplied(opp.PriceAmerican)
		if err == nil {
			if fair, _, verr := oddsmath.RemoveVigMultiplicative(implied, oppImplied); verr == nil {
				result.ImpliedProb = fair
				result.UnadjustedForVig = false
			}
		}
	}

	result.Edge = modelProbability - result.ImpliedProb
	return result, nil
}

// findOpposite locates the same provider's opposite-side quote in the market.
func findOpposite(q models.Quote, market []models.Quote) *models.Quote {
	oppSide := q.Side.Opposite()
	if oppSide == q.Side {
		return nil
	}
	for i := range market {
		c := market[i]
		if c.Provider == q.Provider && c.Side == oppSide && c.EventID == q.EventID && c.MarketType == q.MarketType {
			return &market[i]
		}
	}
	return nil
}

// outcomeSet returns the full outcome list for a market, or nil when a side
// is missing and no split is possible. Moneylines with a draw quote become
// three-way markets.
func outcomeSet(mt models.MarketType, best map[models.Side]models.Quote) []models.Side {
	switch mt {
	case models.MarketMoneyline:
		if _, ok := best[models.SideHome]; !ok {
			return nil
		}
		if _, ok := best[models.SideAway]; !ok {
			return nil
		}
		if _, ok := best[models.SideDraw]; ok {
			return []models.Side{models.SideHome, models.SideAway, models.SideDraw}
		}
		return []models.Side{models.SideHome, models.SideAway}
	case models.MarketSpread:
		if _, ok := best[models.SideHome]; !ok {
			return nil
		}
		if _, ok := best[models.SideAway]; !ok {
			return nil
		}
		return []models.Side{models.SideHome, models.SideAway}
	case models.MarketTotal:
		if _, ok := best[models.SideOver]; !ok {
			return nil
		}
		if _, ok := best[models.SideUnder]; !ok {
			return nil
		}
		return []models.Side{models.SideOver, models.SideUnder}
	}
	return nil
}

// betterPrice reports whether a pays more than b for the same outcome.
// Higher American price always pays more: +150 beats +110, -105 beats -120.
func betterPrice(a, b int) bool {
	return a > b
}

// impliedDecimal converts an American price to implied probability on exact
// decimals: 100/(a+100) for positive prices, -a/(-a+100) for negative.
func impliedDecimal(american int) (decimal.Decimal, error) {
	if err := oddsmath.ValidateAmerican(american); err != nil {
		return decimal.Zero, err
	}

	a := decimal.NewFromInt(int64(american))
	if american > 0 {
		return hundred.DivRound(a.Add(hundred), 16), nil
	}
	abs := a.Neg()
	return abs.DivRound(abs.Add(hundred), 16), nil
}
