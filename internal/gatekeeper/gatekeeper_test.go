package gatekeeper_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/vigorish/oddscore/internal/gatekeeper"
	"github.com/vigorish/oddscore/pkg/models"
)

func edgeOnlyConfig(threshold float64, quota int) gatekeeper.Config {
	return gatekeeper.Config{
		Threshold:     threshold,
		QuotaPerCycle: quota,
		EdgeWeight:    1.0,
	}
}

func TestScoreStaysInUnitInterval(t *testing.T) {
	g := gatekeeper.New(gatekeeper.Config{
		Threshold:       0.35,
		QuotaPerCycle:   20,
		EdgeWeight:      1,
		MovementWeight:  1,
		AgreementWeight: 1,
		ProximityWeight: 1,
	}, gatekeeper.NewMemoryCooldown(time.Hour), nil)

	candidates := []models.Candidate{
		{},
		{EdgePercent: 500, ProviderCount: 100, TimeToEvent: time.Minute},
		{EdgePercent: -50},
		{Movement: &models.MovementEvent{Kind: models.MovementSteam, Magnitude: 3.0}},
		{TimeToEvent: 100 * 24 * time.Hour},
	}

	for i, c := range candidates {
		score := g.Score(c)
		if score < 0 || score > 1 {
			t.Errorf("candidate %d: score %f outside [0,1]", i, score)
		}
	}
}

func TestScoreZeroWeights(t *testing.T) {
	g := gatekeeper.New(gatekeeper.Config{QuotaPerCycle: 20}, gatekeeper.NewMemoryCooldown(time.Hour), nil)

	if score := g.Score(models.Candidate{EdgePercent: 10}); score != 0 {
		t.Errorf("score = %f with zero weights, want 0", score)
	}
}

func TestScoreRanksStrongerSignalsHigher(t *testing.T) {
	g := gatekeeper.New(gatekeeper.Config{
		QuotaPerCycle:  20,
		EdgeWeight:     1,
		MovementWeight: 1,
	}, gatekeeper.NewMemoryCooldown(time.Hour), nil)

	steam := models.Candidate{Movement: &models.MovementEvent{Kind: models.MovementSteam, Magnitude: 0.05}}
	drift := models.Candidate{Movement: &models.MovementEvent{Kind: models.MovementDrift, Magnitude: 0.05}}

	if g.Score(steam) <= g.Score(drift) {
		t.Errorf("steam score %f should exceed drift score %f at equal magnitude",
			g.Score(steam), g.Score(drift))
	}
}

// A burst of 100 candidates against a quota of 20 forwards exactly the 20
// highest scorers.
func TestAdmitQuota(t *testing.T) {
	g := gatekeeper.New(edgeOnlyConfig(0, 20), gatekeeper.NewMemoryCooldown(time.Hour), nil)
	base := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

	candidates := make([]models.Candidate, 100)
	for i := range candidates {
		candidates[i] = models.Candidate{
			ID:          fmt.Sprintf("cand-%03d", i),
			Key:         fmt.Sprintf("key-%03d", i),
			Source:      models.SourceEdge,
			EdgePercent: float64(i) * 0.1,
			DetectedAt:  base,
		}
	}

	verdicts := g.Admit(context.Background(), candidates)
	if len(verdicts) != 100 {
		t.Fatalf("got %d verdicts, want 100", len(verdicts))
	}

	forwarded := make(map[string]bool)
	for _, v := range verdicts {
		if v.Forwarded {
			forwarded[v.CandidateID] = true
		}
	}

	if len(forwarded) != 20 {
		t.Fatalf("forwarded %d candidates, want exactly 20", len(forwarded))
	}
	for i := 80; i < 100; i++ {
		id := fmt.Sprintf("cand-%03d", i)
		if !forwarded[id] {
			t.Errorf("top candidate %s was not forwarded", id)
		}
	}
}

func TestAdmitTieBreaksByDetectedAt(t *testing.T) {
	g := gatekeeper.New(edgeOnlyConfig(0, 1), gatekeeper.NewMemoryCooldown(time.Hour), nil)
	base := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

	candidates := []models.Candidate{
		{ID: "later", Key: "key-a", EdgePercent: 5, DetectedAt: base.Add(time.Minute)},
		{ID: "earlier", Key: "key-b", EdgePercent: 5, DetectedAt: base},
	}

	verdicts := g.Admit(context.Background(), candidates)

	for _, v := range verdicts {
		switch v.CandidateID {
		case "earlier":
			if !v.Forwarded {
				t.Error("earlier candidate should win the tie")
			}
		case "later":
			if v.Forwarded {
				t.Error("later candidate should lose the tie")
			}
		}
	}
}

func TestAdmitThreshold(t *testing.T) {
	g := gatekeeper.New(edgeOnlyConfig(0.5, 20), gatekeeper.NewMemoryCooldown(time.Hour), nil)

	candidates := []models.Candidate{
		{ID: "strong", Key: "key-a", EdgePercent: 8, DetectedAt: time.Now()}, // score 0.8
		{ID: "weak", Key: "key-b", EdgePercent: 2, DetectedAt: time.Now()},   // score 0.2
	}

	verdicts := g.Admit(context.Background(), candidates)

	for _, v := range verdicts {
		switch v.CandidateID {
		case "strong":
			if !v.Forwarded {
				t.Errorf("strong candidate not forwarded: %+v", v)
			}
		case "weak":
			if v.Forwarded {
				t.Error("weak candidate forwarded below threshold")
			}
			if v.Reason != models.ReasonBelowThreshold {
				t.Errorf("weak reason = %s, want below_threshold", v.Reason)
			}
		}
	}
}

// The quota never relaxes the threshold: spare capacity does not admit weak
// candidates.
func TestAdmitQuotaDoesNotOverrideThreshold(t *testing.T) {
	g := gatekeeper.New(edgeOnlyConfig(0.5, 20), gatekeeper.NewMemoryCooldown(time.Hour), nil)

	candidates := []models.Candidate{
		{ID: "weak", Key: "key-a", EdgePercent: 1, DetectedAt: time.Now()},
	}

	verdicts := g.Admit(context.Background(), candidates)
	if len(verdicts) != 1 || verdicts[0].Forwarded {
		t.Errorf("verdicts = %+v, want single non-forwarded verdict", verdicts)
	}
}

// A key forwarded in one cycle is deduplicated in the next, regardless of how
// well it scores.
func TestAdmitCooldownDedup(t *testing.T) {
	cooldown := gatekeeper.NewMemoryCooldown(time.Hour)
	g := gatekeeper.New(edgeOnlyConfig(0, 20), cooldown, nil)
	ctx := context.Background()

	first := g.Admit(ctx, []models.Candidate{
		{ID: "c1", Key: "game-1:moneyline:ml:home", EdgePercent: 9, DetectedAt: time.Now()},
	})
	if len(first) != 1 || !first[0].Forwarded {
		t.Fatalf("first cycle verdict = %+v, want forwarded", first)
	}

	second := g.Admit(ctx, []models.Candidate{
		{ID: "c2", Key: "game-1:moneyline:ml:home", EdgePercent: 9, DetectedAt: time.Now()},
	})
	if len(second) != 1 {
		t.Fatalf("got %d verdicts, want 1", len(second))
	}
	if second[0].Forwarded {
		t.Error("repeat key inside the cooldown window was forwarded")
	}
	if second[0].Reason != models.ReasonDeduplicated {
		t.Errorf("reason = %s, want deduplicated", second[0].Reason)
	}
}

// A deduplicated key does not consume quota that a fresh key could use.
func TestAdmitDedupFreesQuota(t *testing.T) {
	cooldown := gatekeeper.NewMemoryCooldown(time.Hour)
	g := gatekeeper.New(edgeOnlyConfig(0, 1), cooldown, nil)
	ctx := context.Background()

	g.Admit(ctx, []models.Candidate{
		{ID: "c1", Key: "key-a", EdgePercent: 9, DetectedAt: time.Now()},
	})

	verdicts := g.Admit(ctx, []models.Candidate{
		{ID: "c2", Key: "key-a", EdgePercent: 9, DetectedAt: time.Now()},
		{ID: "c3", Key: "key-b", EdgePercent: 3, DetectedAt: time.Now()},
	})

	for _, v := range verdicts {
		switch v.CandidateID {
		case "c2":
			if v.Forwarded {
				t.Error("deduplicated candidate was forwarded")
			}
		case "c3":
			if !v.Forwarded {
				t.Error("fresh candidate should take the quota slot")
			}
		}
	}
}

func TestAdmitForwardReasons(t *testing.T) {
	g := gatekeeper.New(gatekeeper.Config{
		QuotaPerCycle:  20,
		EdgeWeight:     1,
		MovementWeight: 1,
	}, gatekeeper.NewMemoryCooldown(time.Hour), nil)

	candidates := []models.Candidate{
		{
			ID:     "mv",
			Key:    "key-a",
			Source: models.SourceMovement,
			Movement: &models.MovementEvent{
				Kind:      models.MovementSteam,
				Magnitude: 0.05,
			},
			DetectedAt: time.Now(),
		},
		{
			ID:          "arb",
			Key:         "key-b",
			Source:      models.SourceArbitrage,
			EdgePercent: 10,
			DetectedAt:  time.Now(),
		},
	}

	verdicts := g.Admit(context.Background(), candidates)

	for _, v := range verdicts {
		switch v.CandidateID {
		case "mv":
			if v.Reason != models.ReasonMovementSignal {
				t.Errorf("movement reason = %s, want movement_signal", v.Reason)
			}
		case "arb":
			if v.Reason != models.ReasonHighEdge {
				t.Errorf("arbitrage reason = %s, want high_edge", v.Reason)
			}
		}
	}
}

type failingCooldown struct{}

func (failingCooldown) SeenRecently(context.Context, string) (bool, error) {
	return false, fmt.Errorf("connection refused")
}
func (failingCooldown) MarkForwarded(context.Context, string) error { return nil }

// Cooldown store trouble must fail closed: no extra load reaches the analyzer.
func TestAdmitCooldownFailureFailsClosed(t *testing.T) {
	g := gatekeeper.New(edgeOnlyConfig(0, 20), failingCooldown{}, nil)

	verdicts := g.Admit(context.Background(), []models.Candidate{
		{ID: "c1", Key: "key-a", EdgePercent: 9, DetectedAt: time.Now()},
	})

	if len(verdicts) != 1 {
		t.Fatalf("got %d verdicts, want 1", len(verdicts))
	}
	if verdicts[0].Forwarded {
		t.Error("candidate forwarded despite cooldown store failure")
	}
	if verdicts[0].Reason != models.ReasonDeduplicated {
		t.Errorf("reason = %s, want deduplicated", verdicts[0].Reason)
	}
}
