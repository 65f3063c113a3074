// Package cycle orchestrates one evaluation pass: fetch, normalize, store,
// classify, detect opportunities, gate, forward. Every cycle completes with a
// best-effort report plus a list of soft failures; no error from the core
// propagates as an uncaught cycle failure.
package cycle

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/vigorish/oddscore/internal/analyzer"
	"github.com/vigorish/oddscore/internal/arbitrage"
	"github.com/vigorish/oddscore/internal/fetcher"
	"github.com/vigorish/oddscore/internal/gatekeeper"
	"github.com/vigorish/oddscore/internal/movement"
	"github.com/vigorish/oddscore/internal/normalizer"
	"github.com/vigorish/oddscore/internal/publisher"
	"github.com/vigorish/oddscore/internal/store"
	"github.com/vigorish/oddscore/internal/writer"
	"github.com/vigorish/oddscore/pkg/models"
	"github.com/vigorish/oddscore/pkg/oddsmath"
)

// Config holds cycle-level filters.
type Config struct {
	MinEdgePercent float64 // minimum consensus edge to raise a candidate
}

// Report summarizes one cycle.
type Report struct {
	QuotesAccepted int
	QuotesRejected int
	MovementEvents int
	Opportunities  int
	Candidates     int
	Forwarded      int
	SoftFailures   []string
	Duration       time.Duration
}

// Runner wires the pipeline together. The store handle is constructed once
// per process and injected; there is no hidden global state.
type Runner struct {
	cfg        Config
	fetcher    *fetcher.Fetcher
	normalizer *normalizer.Normalizer
	store      *store.Store
	detector   *movement.Detector
	engine     *arbitrage.Engine
	keeper     *gatekeeper.Gatekeeper

	// Optional collaborators; nil disables them.
	writer    *writer.PostgresWriter
	publisher *publisher.StreamPublisher
	analyzer  *analyzer.Client
	bucket    *gatekeeper.TokenBucket

	logger *logrus.Entry
}

// NewRunner creates a cycle runner.
func NewRunner(
	cfg Config,
	f *fetcher.Fetcher,
	n *normalizer.Normalizer,
	s *store.Store,
	d *movement.Detector,
	e *arbitrage.Engine,
	k *gatekeeper.Gatekeeper,
	logger *logrus.Entry,
) *Runner {
	return &Runner{
		cfg:        cfg,
		fetcher:    f,
		normalizer: n,
		store:      s,
		detector:   d,
		engine:     e,
		keeper:     k,
		logger:     logger,
	}
}

// WithWriter attaches quote/movement persistence.
func (r *Runner) WithWriter(w *writer.PostgresWriter) *Runner {
	r.writer = w
	return r
}

// WithPublisher attaches the forwarded-candidate stream.
func (r *Runner) WithPublisher(p *publisher.StreamPublisher) *Runner {
	r.publisher = p
	return r
}

// WithAnalyzer attaches the external analyzer client and its rate limiter.
func (r *Runner) WithAnalyzer(c *analyzer.Client, bucket *gatekeeper.TokenBucket) *Runner {
	r.analyzer = c
	r.bucket = bucket
	return r
}

// Run executes one evaluation cycle.
func (r *Runner) Run(ctx context.Context) Report {
	start := time.Now()
	report := Report{}

	updatedKeys := make(map[string]models.Quote)   // series key -> accepted quote
	updatedMarkets := make(map[string]struct{})

	// Fetch and ingest. A failed provider degrades only itself.
	for _, result := range r.fetcher.FetchAll(ctx) {
		if result.Err != nil {
			report.soft(fmt.Sprintf("fetch %s: %v", result.Provider.Name, result.Err))
			continue
		}

		quotes, err := r.normalizer.Normalize(result.Provider.Name, result.Provider.Adapter, result.Payload)
		if err != nil {
			report.soft(fmt.Sprintf("normalize %s: %v", result.Provider.Name, err))
			continue
		}

		for _, q := range quotes {
			applied, _ := r.store.Accept(q)
			if !applied {
				report.QuotesRejected++
				continue
			}
			report.QuotesAccepted++
			updatedKeys[q.Key()] = q
			updatedMarkets[q.MarketKey()] = struct{}{}

			if r.writer != nil {
				if err := r.writer.WriteQuote(ctx, q); err != nil {
					report.soft(fmt.Sprintf("persist quote %s: %v", q.Key(), err))
				}
			}
		}
	}

	var candidates []models.Candidate

	// Movement classification over the updated keys.
	for key, q := range updatedKeys {
		ev := r.detector.Classify(key)
		if ev == nil {
			continue
		}
		report.MovementEvents++

		if r.writer != nil {
			if err := r.writer.WriteMovementEvent(ctx, *ev); err != nil {
				report.soft(fmt.Sprintf("persist movement %s: %v", ev.Key, err))
			}
		}

		if ev.Degraded {
			continue
		}

		candidates = append(candidates, models.Candidate{
			ID:            uuid.NewString(),
			Key:           ev.Key,
			Source:        models.SourceMovement,
			Movement:      ev,
			ProviderCount: max(ev.ProviderCount, 1),
			TimeToEvent:   timeToEvent(q),
			DetectedAt:    ev.DetectedAt,
		})
	}

	// Arbitrage and consensus edge over the updated markets.
	for marketKey := range updatedMarkets {
		marketQuotes := r.store.MarketQuotes(marketKey)
		if len(marketQuotes) < 2 {
			continue
		}

		for _, opp := range r.engine.FindArbitrage(marketQuotes) {
			report.Opportunities++
			candidates = append(candidates, models.Candidate{
				ID:            uuid.NewString(),
				Key:           marketKey,
				Source:        models.SourceArbitrage,
				EdgePercent:   opp.ProfitPercentage,
				ProviderCount: len(opp.Legs),
				TimeToEvent:   timeToEvent(marketQuotes[0]),
				DetectedAt:    opp.DetectedAt,
			})
		}

		candidates = append(candidates, r.edgeCandidates(marketKey, marketQuotes)...)
	}

	report.Candidates = len(candidates)

	// Gate and forward.
	verdicts := r.keeper.Admit(ctx, candidates)
	byID := make(map[string]models.Candidate, len(candidates))
	for _, c := range candidates {
		byID[c.ID] = c
	}

	for _, v := range verdicts {
		if !v.Forwarded {
			continue
		}
		report.Forwarded++
		c := byID[v.CandidateID]

		if r.publisher != nil {
			if err := r.publisher.PublishForwarded(ctx, c, v); err != nil {
				report.soft(fmt.Sprintf("publish %s: %v", c.Key, err))
			}
		}

		if r.analyzer != nil {
			allowed := true
			if r.bucket != nil {
				ok, err := r.bucket.Allow(ctx)
				if err != nil {
					report.soft(fmt.Sprintf("rate limiter: %v", err))
					ok = false
				}
				allowed = ok
			}
			if allowed {
				if err := r.analyzer.Analyze(ctx, c); err != nil {
					// The verdict stands; only the call failed.
					report.soft(fmt.Sprintf("analyzer %s: %v", c.Key, err))
				}
			}
		}
	}

	report.Duration = time.Since(start)

	if r.logger != nil {
		r.logger.WithFields(logrus.Fields{
			"accepted":   report.QuotesAccepted,
			"rejected":   report.QuotesRejected,
			"movements":  report.MovementEvents,
			"candidates": report.Candidates,
			"forwarded":  report.Forwarded,
			"soft_fails": len(report.SoftFailures),
			"duration":   report.Duration.String(),
		}).Info("cycle complete")
	}

	return report
}

// edgeCandidates computes consensus edge per side: each provider quoting both
// sides contributes its vig-removed probability, the average is the fair
// probability, and the best price on each side is compared against it.
func (r *Runner) edgeCandidates(marketKey string, marketQuotes []models.Quote) []models.Candidate {
	bySide := make(map[models.Side][]models.Quote)
	for _, q := range marketQuotes {
		bySide[q.Side] = append(bySide[q.Side], q)
	}

	var out []models.Candidate
	for side, quotes := range bySide {
		consensus, ok := consensusProbability(side, bySide)
		if !ok {
			continue
		}

		for _, q := range quotes {
			res, err := r.engine.ComputeEdge(q, consensus, marketQuotes)
			if err != nil {
				continue
			}
			edgePct := res.Edge * 100
			if edgePct < r.cfg.MinEdgePercent {
				continue
			}

			out = append(out, models.Candidate{
				ID:            uuid.NewString(),
				Key:           q.MarketSideKey(),
				Source:        models.SourceEdge,
				EdgePercent:   edgePct,
				ProviderCount: len(quotes),
				TimeToEvent:   timeToEvent(q),
				DetectedAt:    q.ObservedAt,
			})
		}
	}
	return out
}

// consensusProbability averages the vig-removed probability for one side
// across every provider that prices both sides of the market.
func consensusProbability(side models.Side, bySide map[models.Side][]models.Quote) (float64, bool) {
	oppQuotes := bySide[side.Opposite()]
	if side.Opposite() == side || len(oppQuotes) == 0 {
		return 0, false
	}

	oppByProvider := make(map[string]models.Quote, len(oppQuotes))
	for _, q := range oppQuotes {
		oppByProvider[q.Provider] = q
	}

	sum := 0.0
	n := 0
	for _, q := range bySide[side] {
		opp, ok := oppByProvider[q.Provider]
		if !ok {
			continue
		}
		p, err := oddsmath.AmericanToImplied(q.PriceAmerican)
		if err != nil {
			continue
		}
		po, err := oddsmath.AmericanToImplied(opp.PriceAmerican)
		if err != nil {
			continue
		}
		fair, _, err := oddsmath.RemoveVigMultiplicative(p, po)
		if err != nil {
			continue
		}
		sum += fair
		n++
	}

	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

func timeToEvent(q models.Quote) time.Duration {
	if q.StartsAt.IsZero() {
		return 0
	}
	tte := time.Until(q.StartsAt)
	if tte < 0 {
		return 0
	}
	return tte
}

func (rep *Report) soft(msg string) {
	rep.SoftFailures = append(rep.SoftFailures, msg)
}
