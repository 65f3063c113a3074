// Package gatekeeper is the admission-control layer in front of the expensive
// external analyzer: cheap, local, deterministic scoring with an explicit
// per-cycle quota and a cooldown window per key.
package gatekeeper

import (
	"context"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vigorish/oddscore/pkg/models"
)

// CooldownStore remembers which keys were forwarded recently. A key inside
// the cooldown window is deduplicated regardless of score, capping external
// call volume deterministically.
type CooldownStore interface {
	SeenRecently(ctx context.Context, key string) (bool, error)
	MarkForwarded(ctx context.Context, key string) error
}

// Config holds scoring weights and admission limits.
type Config struct {
	Threshold       float64 // minimum cheap score to forward
	QuotaPerCycle   int     // hard cap on forwarded candidates per cycle
	EdgeWeight      float64
	MovementWeight  float64
	AgreementWeight float64
	ProximityWeight float64
}

// Normalization caps: a signal at or beyond the cap contributes its full
// weight.
const (
	edgeCapPercent    = 10.0
	magnitudeCap      = 0.05
	agreementCap      = 5
	proximityHorizon  = 24 * time.Hour
)

// Movement kinds are not equally informative.
var kindWeights = map[models.MovementKind]float64{
	models.MovementSteam:       1.0,
	models.MovementReverseLine: 0.9,
	models.MovementFreeze:      0.6,
	models.MovementDrift:       0.3,
}

// Gatekeeper scores and admits candidates.
type Gatekeeper struct {
	cfg      Config
	cooldown CooldownStore
	logger   *logrus.Entry
}

// New creates a gatekeeper.
func New(cfg Config, cooldown CooldownStore, logger *logrus.Entry) *Gatekeeper {
	return &Gatekeeper{cfg: cfg, cooldown: cooldown, logger: logger}
}

// Score computes the cheap score in [0,1]: a weighted sum of normalized local
// signals. No I/O, no model calls.
func (g *Gatekeeper) Score(c models.Candidate) float64 {
	total := g.cfg.EdgeWeight + g.cfg.MovementWeight + g.cfg.AgreementWeight + g.cfg.ProximityWeight
	if total <= 0 {
		return 0
	}

	edge := clamp01(abs(c.EdgePercent) / edgeCapPercent)

	movement := 0.0
	if c.Movement != nil {
		movement = clamp01(c.Movement.Magnitude/magnitudeCap) * kindWeights[c.Movement.Kind]
	}

	agreement := clamp01(float64(c.ProviderCount) / agreementCap)

	proximity := 0.0
	if c.TimeToEvent > 0 {
		proximity = clamp01(1.0 - float64(c.TimeToEvent)/float64(proximityHorizon))
	}

	score := (g.cfg.EdgeWeight*edge +
		g.cfg.MovementWeight*movement +
		g.cfg.AgreementWeight*agreement +
		g.cfg.ProximityWeight*proximity) / total

	return clamp01(score)
}

// Admit decides the fate of every candidate in one evaluation cycle.
//
// Keys inside the cooldown window are deduplicated regardless of score. The
// rest are ranked by score (ties broken by earliest DetectedAt, then ID) and
// exactly the highest-scoring subset up to the quota passes on to the
// threshold check: under a burst the gatekeeper degrades by admitting fewer,
// never by dropping the threshold.
func (g *Gatekeeper) Admit(ctx context.Context, candidates []models.Candidate) []models.GatekeeperVerdict {
	now := time.Now().UTC()
	verdicts := make([]models.GatekeeperVerdict, 0, len(candidates))

	type scored struct {
		c     models.Candidate
		score float64
	}
	var eligible []scored

	for _, c := range candidates {
		score := g.Score(c)

		seen, err := g.cooldown.SeenRecently(ctx, c.Key)
		if err != nil {
			// Cooldown store trouble must not admit extra load: treat the
			// key as seen and log.
			if g.logger != nil {
				g.logger.WithError(err).WithField("key", c.Key).Warn("cooldown check failed")
			}
			seen = true
		}
		if seen {
			verdicts = append(verdicts, models.GatekeeperVerdict{
				CandidateID: c.ID,
				CheapScore:  score,
				Forwarded:   false,
				Reason:      models.ReasonDeduplicated,
				DecidedAt:   now,
			})
			continue
		}

		eligible = append(eligible, scored{c: c, score: score})
	}

	sort.Slice(eligible, func(i, j int) bool {
		if eligible[i].score != eligible[j].score {
			return eligible[i].score > eligible[j].score
		}
		if !eligible[i].c.DetectedAt.Equal(eligible[j].c.DetectedAt) {
			return eligible[i].c.DetectedAt.Before(eligible[j].c.DetectedAt)
		}
		return eligible[i].c.ID < eligible[j].c.ID
	})

	for rank, s := range eligible {
		v := models.GatekeeperVerdict{
			CandidateID: s.c.ID,
			CheapScore:  s.score,
			DecidedAt:   now,
		}

		if rank >= g.cfg.QuotaPerCycle || s.score < g.cfg.Threshold {
			v.Forwarded = false
			v.Reason = models.ReasonBelowThreshold
			verdicts = append(verdicts, v)
			continue
		}

		v.Forwarded = true
		v.Reason = forwardReason(s.c)
		if err := g.cooldown.MarkForwarded(ctx, s.c.Key); err != nil && g.logger != nil {
			g.logger.WithError(err).WithField("key", s.c.Key).Warn("failed to mark cooldown")
		}
		verdicts = append(verdicts, v)
	}

	return verdicts
}

func forwardReason(c models.Candidate) models.VerdictReason {
	if c.Source == models.SourceMovement {
		return models.ReasonMovementSignal
	}
	return models.ReasonHighEdge
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
