// Package movement classifies snapshot transitions into steam, reverse line
// movement, freeze, and drift events. Detection never fails the ingestion
// path: internal errors degrade to a zero-magnitude drift event.
package movement

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vigorish/oddscore/internal/store"
	"github.com/vigorish/oddscore/pkg/models"
	"github.com/vigorish/oddscore/pkg/oddsmath"
)

// BetShareSource supplies the public-bet-percentage ratio (0-1) for a market
// side. When no ratio is available, reverse-line-movement classification is
// skipped, never guessed.
type BetShareSource interface {
	Share(eventID string, market models.MarketType, side models.Side) (float64, bool)
}

// Config holds movement thresholds.
type Config struct {
	DeltaThreshold float64       // minimum implied-probability delta, default 0.005
	SteamProviders int           // minimum independent providers, default 3
	SteamWindow    time.Duration // default 5m
	FreezeDuration time.Duration // default 15m
}

// Detector compares successive snapshots per key and classifies movement.
type Detector struct {
	store  *store.Store
	cfg    Config
	shares BetShareSource // nil when the feed is unavailable
	logger *logrus.Entry

	mu        sync.Mutex
	moves     map[string][]move     // market-side key -> beyond-threshold moves
	lastMoved map[string]time.Time  // market-side key -> last beyond-threshold move
	firstSeen map[string]time.Time  // market-side key -> first observation
}

type move struct {
	provider string
	delta    float64
	at       time.Time
}

// New creates a detector over the given store. shares may be nil.
func New(s *store.Store, cfg Config, shares BetShareSource, logger *logrus.Entry) *Detector {
	return &Detector{
		store:     s,
		cfg:       cfg,
		shares:    shares,
		logger:    logger,
		moves:     make(map[string][]move),
		lastMoved: make(map[string]time.Time),
		firstSeen: make(map[string]time.Time),
	}
}

// Classify inspects the snapshot pair for a series key after an accepted
// quote and returns a movement event, or nil when the transition is noise.
func (d *Detector) Classify(key string) (event *models.MovementEvent) {
	prev, cur := d.store.Pair(key)
	if cur == nil {
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			if d.logger != nil {
				d.logger.WithField("key", key).Errorf("movement classification panic: %v", r)
			}
			event = d.degradedEvent(prev, cur)
		}
	}()

	msk := cur.MarketSideKey()
	now := cur.ObservedAt

	d.mu.Lock()
	if _, seen := d.firstSeen[msk]; !seen {
		d.firstSeen[msk] = now
	}
	d.mu.Unlock()

	if prev == nil {
		return nil
	}

	pPrev, err := oddsmath.AmericanToImplied(prev.PriceAmerican)
	if err != nil {
		return d.degradedEvent(prev, cur)
	}
	pCur, err := oddsmath.AmericanToImplied(cur.PriceAmerican)
	if err != nil {
		return d.degradedEvent(prev, cur)
	}

	delta := pCur - pPrev
	magnitude := delta
	if magnitude < 0 {
		magnitude = -magnitude
	}

	if magnitude < d.cfg.DeltaThreshold {
		return d.classifyQuiet(prev, cur, msk, magnitude, now)
	}

	d.recordMove(msk, move{provider: cur.Provider, delta: delta, at: now})

	base := models.MovementEvent{
		Key:        msk,
		Magnitude:  magnitude,
		FromQuote:  *prev,
		ToQuote:    *cur,
		DetectedAt: now,
	}

	if n := d.steamSupport(msk, delta, now); n >= d.cfg.SteamProviders {
		base.Kind = models.MovementSteam
		base.ProviderCount = n
		return &base
	}

	if d.shares != nil {
		share, ok := d.shares.Share(cur.EventID, cur.MarketType, cur.Side)
		// RLM: this side holds the majority of public bets yet its implied
		// probability moved down.
		if ok && share > 0.5 && delta < 0 {
			base.Kind = models.MovementReverseLine
			return &base
		}
	}

	base.Kind = models.MovementDrift
	return &base
}

// classifyQuiet handles a below-threshold transition: either a freeze (this
// side holding still while the opposite side moves) or nothing.
func (d *Detector) classifyQuiet(prev, cur *models.Quote, msk string, magnitude float64, now time.Time) *models.MovementEvent {
	d.mu.Lock()
	defer d.mu.Unlock()

	stillSince, ok := d.lastMoved[msk]
	if !ok {
		stillSince = d.firstSeen[msk]
	}
	if now.Sub(stillSince) < d.cfg.FreezeDuration {
		return nil
	}

	oppMoved, ok := d.lastMoved[oppositeSideKey(*cur)]
	if !ok || now.Sub(oppMoved) > d.cfg.FreezeDuration {
		return nil
	}

	return &models.MovementEvent{
		Key:        msk,
		Kind:       models.MovementFreeze,
		Magnitude:  magnitude,
		FromQuote:  *prev,
		ToQuote:    *cur,
		DetectedAt: now,
	}
}

// recordMove appends a beyond-threshold move and prunes history outside the
// longest lookback window.
func (d *Detector) recordMove(msk string, m move) {
	d.mu.Lock()
	defer d.mu.Unlock()

	lookback := d.cfg.SteamWindow
	if d.cfg.FreezeDuration > lookback {
		lookback = d.cfg.FreezeDuration
	}

	kept := d.moves[msk][:0]
	for _, old := range d.moves[msk] {
		if m.at.Sub(old.at) <= lookback {
			kept = append(kept, old)
		}
	}
	d.moves[msk] = append(kept, m)
	d.lastMoved[msk] = m.at
}

// steamSupport counts distinct providers that moved the same direction beyond
// threshold within the steam window.
func (d *Detector) steamSupport(msk string, delta float64, now time.Time) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	providers := make(map[string]struct{})
	for _, m := range d.moves[msk] {
		if now.Sub(m.at) > d.cfg.SteamWindow {
			continue
		}
		if (delta > 0) == (m.delta > 0) {
			providers[m.provider] = struct{}{}
		}
	}
	return len(providers)
}

func (d *Detector) degradedEvent(prev, cur *models.Quote) *models.MovementEvent {
	if cur == nil {
		return nil
	}
	ev := &models.MovementEvent{
		Key:        cur.MarketSideKey(),
		Kind:       models.MovementDrift,
		Magnitude:  0,
		ToQuote:    *cur,
		DetectedAt: cur.ObservedAt,
		Degraded:   true,
	}
	if prev != nil {
		ev.FromQuote = *prev
	}
	return ev
}

// oppositeSideKey builds the market-side key for the matching opposite side.
// Spread lines are complementary, so the sign flips with the side.
func oppositeSideKey(q models.Quote) string {
	opp := q
	opp.Side = q.Side.Opposite()
	if q.MarketType == models.MarketSpread && q.Line != nil {
		l := -*q.Line
		opp.Line = &l
	}
	return opp.MarketSideKey()
}
