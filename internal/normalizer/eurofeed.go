package normalizer

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/vigorish/oddscore/pkg/models"
)

// EuroFeedAdapter parses single-book feeds quoting decimal odds. The decimal
// price is rounded to the nearest American integer: lossy but deterministic.
type EuroFeedAdapter struct{}

// NewEuroFeedAdapter creates the adapter.
func NewEuroFeedAdapter() *EuroFeedAdapter {
	return &EuroFeedAdapter{}
}

// Name returns the adapter key used in provider configuration.
func (a *EuroFeedAdapter) Name() string { return "eurofeed" }

type euroFeedPayload struct {
	Games []euroFeedGame `json:"games"`
}

type euroFeedGame struct {
	ID      string `json:"id"`
	Markets []struct {
		Type       string    `json:"type"` // moneyline, spread, total
		Line       *float64  `json:"line,omitempty"`
		UpdatedAt  time.Time `json:"updated_at"`
		Selections []struct {
			Side string  `json:"side"`
			Odds float64 `json:"odds"` // decimal
		} `json:"selections"`
	} `json:"markets"`
}

// Parse converts a payload into quotes, dropping malformed games.
func (a *EuroFeedAdapter) Parse(provider string, payload []byte, receivedAt time.Time) ([]models.Quote, []error, error) {
	var feed euroFeedPayload
	if err := json.Unmarshal(payload, &feed); err != nil {
		return nil, nil, fmt.Errorf("decoding payload: %w", err)
	}

	var quotes []models.Quote
	var soft []error

	for _, game := range feed.Games {
		gq, err := a.parseGame(provider, game, receivedAt)
		if err != nil {
			soft = append(soft, fmt.Errorf("game %s: %w", game.ID, err))
			continue
		}
		quotes = append(quotes, gq...)
	}

	return quotes, soft, nil
}

func (a *EuroFeedAdapter) parseGame(provider string, game euroFeedGame, receivedAt time.Time) ([]models.Quote, error) {
	if game.ID == "" {
		return nil, fmt.Errorf("missing game id")
	}

	var quotes []models.Quote
	for _, market := range game.Markets {
		observedAt := market.UpdatedAt
		if observedAt.IsZero() {
			observedAt = receivedAt
		}

		sels := make([]feedSelection, 0, len(market.Selections))
		for _, sel := range market.Selections {
			sels = append(sels, feedSelection{side: sel.Side, decimal: sel.Odds})
		}

		mq, err := buildFeedQuotes(provider, game.ID, market.Type, market.Line, observedAt, sels)
		if err != nil {
			return nil, err
		}
		quotes = append(quotes, mq...)
	}

	return quotes, nil
}
