package normalizer

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/vigorish/oddscore/pkg/models"
	"github.com/vigorish/oddscore/pkg/oddsmath"
)

// FracFeedAdapter parses single-book feeds quoting fractional odds ("5/2").
// Fractions convert through decimal and round to the nearest American
// integer, same deterministic rule as the decimal adapter.
type FracFeedAdapter struct{}

// NewFracFeedAdapter creates the adapter.
func NewFracFeedAdapter() *FracFeedAdapter {
	return &FracFeedAdapter{}
}

// Name returns the adapter key used in provider configuration.
func (a *FracFeedAdapter) Name() string { return "fracfeed" }

type fracFeedPayload struct {
	Games []fracFeedGame `json:"games"`
}

type fracFeedGame struct {
	ID      string `json:"id"`
	Markets []struct {
		Type       string    `json:"type"`
		Line       *float64  `json:"line,omitempty"`
		UpdatedAt  time.Time `json:"updated_at"`
		Selections []struct {
			Side string `json:"side"`
			Odds string `json:"odds"` // fractional, e.g. "5/2"
		} `json:"selections"`
	} `json:"markets"`
}

// Parse converts a payload into quotes, dropping malformed games.
func (a *FracFeedAdapter) Parse(provider string, payload []byte, receivedAt time.Time) ([]models.Quote, []error, error) {
	var feed fracFeedPayload
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

func (a *FracFeedAdapter) parseGame(provider string, game fracFeedGame, receivedAt time.Time) ([]models.Quote, error) {
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
			decimal, err := oddsmath.FractionalToDecimal(sel.Odds)
			if err != nil {
				return nil, fmt.Errorf("selection %s: %w", sel.Side, err)
			}
			sels = append(sels, feedSelection{side: sel.Side, decimal: decimal})
		}

		mq, err := buildFeedQuotes(provider, game.ID, market.Type, market.Line, observedAt, sels)
		if err != nil {
			return nil, err
		}
		quotes = append(quotes, mq...)
	}

	return quotes, nil
}
