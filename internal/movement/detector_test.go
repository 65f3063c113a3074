package movement_test

import (
	"testing"
	"time"

	"github.com/vigorish/oddscore/internal/movement"
	"github.com/vigorish/oddscore/internal/store"
	"github.com/vigorish/oddscore/pkg/models"
)

var testConfig = movement.Config{
	DeltaThreshold: 0.005,
	SteamProviders: 3,
	SteamWindow:    5 * time.Minute,
	FreezeDuration: 15 * time.Minute,
}

type staticShares map[string]float64

func (s staticShares) Share(eventID string, market models.MarketType, side models.Side) (float64, bool) {
	v, ok := s[string(side)]
	return v, ok
}

func quote(provider string, side models.Side, price int, at time.Time, seq int64) models.Quote {
	return models.Quote{
		EventID:       "game-1",
		MarketType:    models.MarketMoneyline,
		Provider:      provider,
		Side:          side,
		PriceAmerican: price,
		ObservedAt:    at,
		Sequence:      seq,
	}
}

// ingest accepts a quote and classifies its series, the same order the cycle
// runs in.
func ingest(t *testing.T, s *store.Store, d *movement.Detector, q models.Quote) *models.MovementEvent {
	t.Helper()
	if applied, _ := s.Accept(q); !applied {
		t.Fatalf("quote %s rejected", q.Key())
	}
	return d.Classify(q.Key())
}

func TestClassifyFirstObservationIsSilent(t *testing.T) {
	s := store.New(nil)
	d := movement.New(s, testConfig, nil, nil)
	t0 := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

	if ev := ingest(t, s, d, quote("bookA", models.SideHome, -110, t0, 1)); ev != nil {
		t.Errorf("first observation produced event %+v, want nil", ev)
	}
}

func TestClassifyBelowThresholdIsNoise(t *testing.T) {
	s := store.New(nil)
	d := movement.New(s, testConfig, nil, nil)
	t0 := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

	ingest(t, s, d, quote("bookA", models.SideHome, -110, t0, 1))

	// -110 -> -111 is a ~0.2pp implied move, under the 0.5pp threshold.
	if ev := ingest(t, s, d, quote("bookA", models.SideHome, -111, t0.Add(time.Minute), 2)); ev != nil {
		t.Errorf("sub-threshold move produced event %+v, want nil", ev)
	}
}

func TestClassifyDrift(t *testing.T) {
	s := store.New(nil)
	d := movement.New(s, testConfig, nil, nil)
	t0 := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

	ingest(t, s, d, quote("bookA", models.SideHome, -110, t0, 1))

	ev := ingest(t, s, d, quote("bookA", models.SideHome, -120, t0.Add(time.Minute), 2))
	if ev == nil {
		t.Fatal("expected a movement event")
	}
	if ev.Kind != models.MovementDrift {
		t.Errorf("kind = %s, want drift", ev.Kind)
	}
	if ev.Magnitude < 0.02 || ev.Magnitude > 0.025 {
		t.Errorf("magnitude = %f, want ~0.0216", ev.Magnitude)
	}
	if ev.FromQuote.PriceAmerican != -110 || ev.ToQuote.PriceAmerican != -120 {
		t.Errorf("transition = %d -> %d, want -110 -> -120", ev.FromQuote.PriceAmerican, ev.ToQuote.PriceAmerican)
	}
}

// Three providers moving the same side the same direction inside the window is
// steam; the first two alone are drift.
func TestClassifySteam(t *testing.T) {
	s := store.New(nil)
	d := movement.New(s, testConfig, nil, nil)
	t0 := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

	providers := []string{"bookA", "bookB", "bookC"}
	for i, p := range providers {
		ingest(t, s, d, quote(p, models.SideHome, -110, t0, int64(i+1)))
	}

	t1 := t0.Add(time.Minute)
	for i, p := range providers[:2] {
		ev := ingest(t, s, d, quote(p, models.SideHome, -120, t1, int64(i+10)))
		if ev == nil || ev.Kind != models.MovementDrift {
			t.Fatalf("provider %s: got %+v, want drift before support builds", p, ev)
		}
	}

	ev := ingest(t, s, d, quote("bookC", models.SideHome, -120, t1, 12))
	if ev == nil {
		t.Fatal("expected a movement event")
	}
	if ev.Kind != models.MovementSteam {
		t.Errorf("kind = %s, want steam", ev.Kind)
	}
	if ev.ProviderCount != 3 {
		t.Errorf("provider count = %d, want 3", ev.ProviderCount)
	}
}

// A move outside the steam window no longer counts as support.
func TestClassifySteamWindowExpires(t *testing.T) {
	s := store.New(nil)
	d := movement.New(s, testConfig, nil, nil)
	t0 := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

	providers := []string{"bookA", "bookB", "bookC"}
	for i, p := range providers {
		ingest(t, s, d, quote(p, models.SideHome, -110, t0, int64(i+1)))
	}

	// bookA moves early, the other two much later.
	ingest(t, s, d, quote("bookA", models.SideHome, -120, t0.Add(time.Minute), 10))

	t2 := t0.Add(10 * time.Minute)
	ingest(t, s, d, quote("bookB", models.SideHome, -120, t2, 11))
	ev := ingest(t, s, d, quote("bookC", models.SideHome, -120, t2.Add(time.Second), 12))
	if ev == nil {
		t.Fatal("expected a movement event")
	}
	if ev.Kind == models.MovementSteam {
		t.Errorf("kind = steam with only 2 in-window providers, want drift")
	}
}

func TestClassifyReverseLineMovement(t *testing.T) {
	s := store.New(nil)
	shares := staticShares{"home": 0.65}
	d := movement.New(s, testConfig, shares, nil)
	t0 := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

	ingest(t, s, d, quote("bookA", models.SideHome, -120, t0, 1))

	// The public majority is on home, yet home's implied probability fell.
	ev := ingest(t, s, d, quote("bookA", models.SideHome, -110, t0.Add(time.Minute), 2))
	if ev == nil {
		t.Fatal("expected a movement event")
	}
	if ev.Kind != models.MovementReverseLine {
		t.Errorf("kind = %s, want reverse_line_movement", ev.Kind)
	}
}

func TestClassifyRLMRequiresShareFeed(t *testing.T) {
	s := store.New(nil)
	d := movement.New(s, testConfig, nil, nil)
	t0 := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

	ingest(t, s, d, quote("bookA", models.SideHome, -120, t0, 1))

	ev := ingest(t, s, d, quote("bookA", models.SideHome, -110, t0.Add(time.Minute), 2))
	if ev == nil {
		t.Fatal("expected a movement event")
	}
	if ev.Kind != models.MovementDrift {
		t.Errorf("kind = %s, want drift when no share feed is available", ev.Kind)
	}
}

func TestClassifyRLMRequiresMajorityAgainstMove(t *testing.T) {
	s := store.New(nil)
	shares := staticShares{"home": 0.40}
	d := movement.New(s, testConfig, shares, nil)
	t0 := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

	ingest(t, s, d, quote("bookA", models.SideHome, -120, t0, 1))

	ev := ingest(t, s, d, quote("bookA", models.SideHome, -110, t0.Add(time.Minute), 2))
	if ev == nil {
		t.Fatal("expected a movement event")
	}
	if ev.Kind != models.MovementDrift {
		t.Errorf("kind = %s, want drift when the public is on the other side", ev.Kind)
	}
}

// A side holding still past the freeze duration while the opposite side moves
// is a freeze.
func TestClassifyFreeze(t *testing.T) {
	s := store.New(nil)
	d := movement.New(s, testConfig, nil, nil)
	t0 := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

	ingest(t, s, d, quote("bookA", models.SideHome, -110, t0, 1))
	ingest(t, s, d, quote("bookA", models.SideAway, -110, t0, 1))

	// Away moves after 16 minutes; home has not moved since first seen.
	t1 := t0.Add(16 * time.Minute)
	if ev := ingest(t, s, d, quote("bookA", models.SideAway, -130, t1, 2)); ev == nil {
		t.Fatal("setup: away move produced no event")
	}

	t2 := t0.Add(17 * time.Minute)
	ev := ingest(t, s, d, quote("bookA", models.SideHome, -111, t2, 2))
	if ev == nil {
		t.Fatal("expected a freeze event")
	}
	if ev.Kind != models.MovementFreeze {
		t.Errorf("kind = %s, want freeze", ev.Kind)
	}
}

func TestClassifyNoFreezeWhenOppositeQuiet(t *testing.T) {
	s := store.New(nil)
	d := movement.New(s, testConfig, nil, nil)
	t0 := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

	ingest(t, s, d, quote("bookA", models.SideHome, -110, t0, 1))
	ingest(t, s, d, quote("bookA", models.SideAway, -110, t0, 1))

	// Both sides still for 17 minutes: stillness alone is not a freeze.
	t1 := t0.Add(17 * time.Minute)
	if ev := ingest(t, s, d, quote("bookA", models.SideHome, -111, t1, 2)); ev != nil {
		t.Errorf("got event %+v, want nil when the opposite side never moved", ev)
	}
}

// Steam on one side and a freeze on the other are independent signals on the
// same market; both emit.
func TestClassifySteamAndFreezeBothEmit(t *testing.T) {
	s := store.New(nil)
	d := movement.New(s, testConfig, nil, nil)
	t0 := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

	providers := []string{"bookA", "bookB", "bookC"}
	for i, p := range providers {
		ingest(t, s, d, quote(p, models.SideHome, -110, t0, int64(i+1)))
	}
	ingest(t, s, d, quote("bookA", models.SideAway, -110, t0, 1))

	// Home steams across three books after a long quiet stretch.
	t1 := t0.Add(16 * time.Minute)
	for i, p := range providers[:2] {
		ingest(t, s, d, quote(p, models.SideHome, -120, t1, int64(i+10)))
	}
	steam := ingest(t, s, d, quote("bookC", models.SideHome, -120, t1, 12))
	if steam == nil || steam.Kind != models.MovementSteam {
		t.Fatalf("home event = %+v, want steam", steam)
	}

	// Away holds still through it: frozen against the steaming side.
	freeze := ingest(t, s, d, quote("bookA", models.SideAway, -111, t0.Add(17*time.Minute), 2))
	if freeze == nil {
		t.Fatal("expected a freeze event on the quiet side")
	}
	if freeze.Kind != models.MovementFreeze {
		t.Errorf("away event kind = %s, want freeze", freeze.Kind)
	}
}

// An internal classification error never fails the ingestion path: it degrades
// to a zero-magnitude drift event carrying the diagnostic flag.
func TestClassifyDegradesOnCorruptSnapshot(t *testing.T) {
	s := store.New(nil)
	d := movement.New(s, testConfig, nil, nil)
	t0 := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

	// The store does not re-validate prices, so a corrupt quote can reach a
	// snapshot through a buggy adapter.
	bad := quote("bookA", models.SideHome, 50, t0, 1)
	if applied, _ := s.Accept(bad); !applied {
		t.Fatal("setup: corrupt quote rejected before classification")
	}

	ev := ingest(t, s, d, quote("bookA", models.SideHome, -110, t0.Add(time.Minute), 2))
	if ev == nil {
		t.Fatal("expected a degraded event, got nil")
	}
	if !ev.Degraded {
		t.Error("event not flagged as degraded")
	}
	if ev.Kind != models.MovementDrift {
		t.Errorf("kind = %s, want drift", ev.Kind)
	}
	if ev.Magnitude != 0 {
		t.Errorf("magnitude = %f, want 0", ev.Magnitude)
	}
	if ev.ToQuote.PriceAmerican != -110 {
		t.Errorf("degraded event lost the current quote: %+v", ev.ToQuote)
	}
}

// Identical payload replayed into the store is rejected as stale, so
// classification state never double-counts a provider.
func TestClassifyIdempotentReplay(t *testing.T) {
	s := store.New(nil)
	d := movement.New(s, testConfig, nil, nil)
	t0 := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

	q1 := quote("bookA", models.SideHome, -110, t0, 1)
	q2 := quote("bookA", models.SideHome, -120, t0.Add(time.Minute), 2)
	ingest(t, s, d, q1)
	ingest(t, s, d, q2)

	if applied, _ := s.Accept(q2); applied {
		t.Fatal("replayed quote should be rejected as stale")
	}
}
