package callerid

import (
	"math/rand"
	"testing"
	"time"
)

var selectionNow = time.Date(2026, 1, 7, 15, 0, 0, 0, time.UTC)

func activeNumber(id, areaCode string) Number {
	return Number{
		ID:              id,
		PoolID:          "pool-1",
		PhoneNumber:     "+1" + areaCode + "5550100",
		AreaCode:        areaCode,
		Status:          StatusActive,
		ReputationScore: 100,
		ReputationLevel: ReputationExcellent,
	}
}

func TestExtractAreaCode(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"+15551234567", "555", true},
		{"15551234567", "555", true},
		{"5551234567", "555", true},
		{"(555) 123-4567", "555", true},
		{"00115551234567", "555", true}, // last 10 digits
		{"123", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, ok := ExtractAreaCode(tc.in)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("ExtractAreaCode(%q) = (%q, %v), want (%q, %v)", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestEligibleCandidatesSkipsUnavailableStatuses(t *testing.T) {
	past := selectionNow.Add(-time.Minute)
	future := selectionNow.Add(time.Minute)

	numbers := []Number{
		{ID: "a", Status: StatusActive},
		{ID: "b", Status: StatusFlagged},
		{ID: "c", Status: StatusBlocked},
		{ID: "d", Status: StatusInactive},
		{ID: "e", Status: StatusCoolingDown, CooldownUntil: &future},
		{ID: "f", Status: StatusCoolingDown, CooldownUntil: &past},
		{ID: "g", Status: StatusCoolingDown}, // no deadline recorded
	}

	got := eligibleCandidates(numbers, selectionNow)
	want := map[string]bool{"a": true, "f": true}
	if len(got) != len(want) {
		t.Fatalf("got %d candidates, want %d", len(got), len(want))
	}
	for _, n := range got {
		if !want[n.ID] {
			t.Fatalf("unexpected candidate %q", n.ID)
		}
	}
}

func TestPickLeastRecentlyUsedPrefersNeverUsed(t *testing.T) {
	old := selectionNow.Add(-2 * time.Hour)
	recent := selectionNow.Add(-5 * time.Minute)

	a := activeNumber("a", "212")
	a.LastUsedAt = &recent
	b := activeNumber("b", "212")
	b.LastUsedAt = &old
	c := activeNumber("c", "212") // never used

	if got := pickLeastRecentlyUsed([]Number{a, b, c}); got.ID != "c" {
		t.Fatalf("picked %q, want never-used c", got.ID)
	}
	if got := pickLeastRecentlyUsed([]Number{a, b}); got.ID != "b" {
		t.Fatalf("picked %q, want oldest b", got.ID)
	}
}

func TestPickWeightedRespectsReputationRatio(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	heavy := activeNumber("heavy", "212")
	heavy.ReputationScore = 90
	light := activeNumber("light", "212")
	light.ReputationScore = 10

	const draws = 10000
	counts := map[string]int{}
	for i := 0; i < draws; i++ {
		counts[pickWeighted([]Number{heavy, light}, rng).ID]++
	}

	heavyShare := float64(counts["heavy"]) / draws
	if heavyShare < 0.85 || heavyShare > 0.95 {
		t.Fatalf("heavy share = %.3f, want around 0.90", heavyShare)
	}
	if counts["light"] == 0 {
		t.Fatalf("light candidate never drawn")
	}
}

func TestPickWeightedZeroReputationFallsBackToUniform(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	a := activeNumber("a", "212")
	a.ReputationScore = 0
	b := activeNumber("b", "212")
	b.ReputationScore = 0

	counts := map[string]int{}
	for i := 0; i < 1000; i++ {
		counts[pickWeighted([]Number{a, b}, rng).ID]++
	}
	if counts["a"] == 0 || counts["b"] == 0 {
		t.Fatalf("uniform fallback skipped a candidate: %v", counts)
	}
}

func TestApplyDailyCapRetriesUnderCap(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	capped := activeNumber("capped", "212")
	capped.CallsToday = 50
	fresh := activeNumber("fresh", "212")
	fresh.CallsToday = 3

	got := applyDailyCap(capped, []Number{capped, fresh}, 50, RotationLeastRecentlyUsed, rng)
	if got.ID != "fresh" {
		t.Fatalf("picked %q, want under-cap fresh", got.ID)
	}
}

func TestApplyDailyCapAllAtCapFallsBackToLeastUsed(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	a := activeNumber("a", "212")
	a.CallsToday = 60
	b := activeNumber("b", "212")
	b.CallsToday = 55

	got := applyDailyCap(a, []Number{a, b}, 50, RotationRandom, rng)
	if got.ID != "b" {
		t.Fatalf("picked %q, want least-used b", got.ID)
	}
}

func TestApplyDailyCapZeroMeansNoCap(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	busy := activeNumber("busy", "212")
	busy.CallsToday = 10000

	if got := applyDailyCap(busy, []Number{busy}, 0, RotationRandom, rng); got.ID != "busy" {
		t.Fatalf("cap of zero must not reject, got %q", got.ID)
	}
}
