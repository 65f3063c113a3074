package normalizer

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/vigorish/oddscore/pkg/models"
)

// OddsAPIAdapter parses the-odds-api v4 style payloads: a list of games, each
// carrying per-bookmaker markets with American-priced outcomes. Conversion is
// exact for this adapter since the native convention is already American.
// Each bookmaker inside the payload becomes its own provider on the quote.
type OddsAPIAdapter struct{}

// NewOddsAPIAdapter creates the adapter.
func NewOddsAPIAdapter() *OddsAPIAdapter {
	return &OddsAPIAdapter{}
}

// Name returns the adapter key used in provider configuration.
func (a *OddsAPIAdapter) Name() string { return "oddsapi" }

type oddsAPIGame struct {
	ID           string    `json:"id"`
	SportKey     string    `json:"sport_key"`
	CommenceTime time.Time `json:"commence_time"`
	HomeTeam     string    `json:"home_team"`
	AwayTeam     string    `json:"away_team"`
	Bookmakers []struct {
		Key     string `json:"key"`
		Markets []struct {
			Key        string    `json:"key"` // h2h, spreads, totals
			LastUpdate time.Time `json:"last_update"`
			Outcomes   []struct {
				Name  string   `json:"name"`
				Price int      `json:"price"`
				Point *float64 `json:"point,omitempty"`
			} `json:"outcomes"`
		} `json:"markets"`
	} `json:"bookmakers"`
}

// Parse converts a payload into quotes, dropping malformed games.
func (a *OddsAPIAdapter) Parse(provider string, payload []byte, receivedAt time.Time) ([]models.Quote, []error, error) {
	var games []oddsAPIGame
	if err := json.Unmarshal(payload, &games); err != nil {
		return nil, nil, fmt.Errorf("decoding payload: %w", err)
	}

	var quotes []models.Quote
	var soft []error

	for _, game := range games {
		gq, err := a.parseGame(game, receivedAt)
		if err != nil {
			soft = append(soft, fmt.Errorf("game %s: %w", game.ID, err))
			continue
		}
		quotes = append(quotes, gq...)
	}

	return quotes, soft, nil
}

func (a *OddsAPIAdapter) parseGame(game oddsAPIGame, receivedAt time.Time) ([]models.Quote, error) {
	if game.ID == "" {
		return nil, fmt.Errorf("missing game id")
	}
	if game.HomeTeam == "" || game.AwayTeam == "" {
		return nil, fmt.Errorf("missing team names")
	}

	var quotes []models.Quote
	for _, book := range game.Bookmakers {
		if book.Key == "" {
			continue
		}
		for _, market := range book.Markets {
			marketType, ok := oddsAPIMarketType(market.Key)
			if !ok {
				continue
			}

			observedAt := market.LastUpdate
			if observedAt.IsZero() {
				observedAt = receivedAt
			}

			for _, outcome := range market.Outcomes {
				side, ok := oddsAPISide(outcome.Name, game.HomeTeam, game.AwayTeam)
				if !ok {
					return nil, fmt.Errorf("unknown outcome %q", outcome.Name)
				}

				quotes = append(quotes, models.Quote{
					EventID:       game.ID,
					MarketType:    marketType,
					Provider:      book.Key,
					Side:          side,
					Line:          outcome.Point,
					PriceAmerican: outcome.Price,
					ObservedAt:    observedAt,
					StartsAt:      game.CommenceTime,
				})
			}
		}
	}

	return quotes, nil
}

func oddsAPIMarketType(key string) (models.MarketType, bool) {
	switch key {
	case "h2h":
		return models.MarketMoneyline, true
	case "spreads":
		return models.MarketSpread, true
	case "totals":
		return models.MarketTotal, true
	}
	return "", false
}

func oddsAPISide(name, home, away string) (models.Side, bool) {
	switch name {
	case home:
		return models.SideHome, true
	case away:
		return models.SideAway, true
	case "Draw":
		return models.SideDraw, true
	case "Over":
		return models.SideOver, true
	case "Under":
		return models.SideUnder, true
	}
	return "", false
}
