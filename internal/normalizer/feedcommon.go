package normalizer

import (
	"fmt"
	"time"

	"github.com/vigorish/oddscore/pkg/models"
	"github.com/vigorish/oddscore/pkg/oddsmath"
)

// feedSelection is a provider selection reduced to a side and decimal odds,
// shared by the decimal and fractional single-book adapters.
type feedSelection struct {
	side    string
	decimal float64
}

func buildFeedQuotes(provider, eventID, marketType string, line *float64, observedAt time.Time, sels []feedSelection) ([]models.Quote, error) {
	mt, ok := feedMarketType(marketType)
	if !ok {
		return nil, fmt.Errorf("unknown market type %q", marketType)
	}

	var quotes []models.Quote
	for _, sel := range sels {
		side, ok := feedSide(sel.side)
		if !ok {
			return nil, fmt.Errorf("unknown side %q", sel.side)
		}

		price, err := oddsmath.DecimalToAmerican(sel.decimal)
		if err != nil {
			return nil, fmt.Errorf("selection %s: %w", sel.side, err)
		}

		quotes = append(quotes, models.Quote{
			EventID:       eventID,
			MarketType:    mt,
			Provider:      provider,
			Side:          side,
			Line:          line,
			PriceAmerican: price,
			ObservedAt:    observedAt,
		})
	}

	return quotes, nil
}

func feedMarketType(t string) (models.MarketType, bool) {
	switch t {
	case "moneyline":
		return models.MarketMoneyline, true
	case "spread":
		return models.MarketSpread, true
	case "total":
		return models.MarketTotal, true
	}
	return "", false
}

func feedSide(s string) (models.Side, bool) {
	switch s {
	case "home":
		return models.SideHome, true
	case "away":
		return models.SideAway, true
	case "draw":
		return models.SideDraw, true
	case "over":
		return models.SideOver, true
	case "under":
		return models.SideUnder, true
	}
	return "", false
}
