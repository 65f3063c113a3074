// Package betshare consumes the optional public-bet-percentage feed over a
// websocket and holds the latest ratio per market side. The movement detector
// reads ratios through the BetShareSource interface; when the feed is down or
// has no data for a side, reverse-line-movement classification is skipped.
package betshare

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/vigorish/oddscore/pkg/models"
)

// update is one feed message: the fraction of public bets on a side.
type update struct {
	EventID    string            `json:"event_id"`
	MarketType models.MarketType `json:"market_type"`
	Side       models.Side       `json:"side"`
	Share      float64           `json:"share"` // 0-1
}

// Feed maintains the latest public-bet share per market side.
type Feed struct {
	url    string
	logger *logrus.Entry

	mu     sync.RWMutex
	shares map[string]float64
}

// New creates a feed client for the given websocket URL.
func New(url string, logger *logrus.Entry) *Feed {
	return &Feed{
		url:    url,
		logger: logger,
		shares: make(map[string]float64),
	}
}

// Run connects and consumes updates until the context is cancelled,
// reconnecting with backoff on any failure. A successful connection resets
// the backoff; only consecutive dial failures back off toward the cap.
func (f *Feed) Run(ctx context.Context) {
	backoff := time.Second

	for {
		if ctx.Err() != nil {
			return
		}

		connected, err := f.consume(ctx)
		if ctx.Err() != nil {
			return
		}
		if connected {
			backoff = time.Second
		}
		if err != nil && f.logger != nil {
			f.logger.WithError(err).Warn("bet-share feed disconnected, reconnecting")
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

// consume reads one connection to completion. The returned bool reports
// whether the dial succeeded.
func (f *Feed) consume(ctx context.Context) (bool, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return false, err
	}
	defer conn.Close()

	if f.logger != nil {
		f.logger.WithField("url", f.url).Info("bet-share feed connected")
	}

	// Unblock the read loop when the context ends. Scoped to this connection
	// so watchers do not pile up across reconnects.
	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-connCtx.Done()
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return true, err
		}

		var u update
		if err := json.Unmarshal(data, &u); err != nil {
			if f.logger != nil {
				f.logger.WithError(err).Debug("skipping malformed bet-share message")
			}
			continue
		}
		if u.Share < 0 || u.Share > 1 {
			continue
		}

		f.mu.Lock()
		f.shares[shareKey(u.EventID, u.MarketType, u.Side)] = u.Share
		f.mu.Unlock()
	}
}

// Share returns the latest ratio for a market side, and whether one exists.
func (f *Feed) Share(eventID string, market models.MarketType, side models.Side) (float64, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	v, ok := f.shares[shareKey(eventID, market, side)]
	return v, ok
}

func shareKey(eventID string, market models.MarketType, side models.Side) string {
	return eventID + ":" + string(market) + ":" + string(side)
}
