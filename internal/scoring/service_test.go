package scoring

import (
	"context"
	"testing"
	"time"

	"dialer-platform/internal/leads"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newTestService(now time.Time) (*Service, *MemoryRepo) {
	repo := NewMemoryRepo()
	svc := NewService(repo)
	svc.clock = fixedClock(now)
	return svc, repo
}

func TestScoreLead_SeedsDefaultModel(t *testing.T) {
	svc, repo := newTestService(wedAfternoon)

	res, err := svc.ScoreLead(context.Background(), leads.LeadData{ID: "l1", OrganizationID: "org1", CampaignID: "c1"})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if res.OverallScore < 0 || res.OverallScore > 100 {
		t.Fatalf("score out of bounds: %d", res.OverallScore)
	}

	m, ok, err := repo.GetActiveModel(context.Background(), DefaultScope())
	if err != nil || !ok {
		t.Fatalf("expected seeded default model, ok=%v err=%v", ok, err)
	}
	if m.LeadsScored != 1 {
		t.Fatalf("expected leads_scored=1, got %d", m.LeadsScored)
	}

	stored, err := repo.GetScore(context.Background(), "l1")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if stored.ExpiresAt != wedAfternoon.Add(DefaultScoreTTL) {
		t.Fatalf("expected 24h expiry, got %v", stored.ExpiresAt)
	}
}

func TestScoreLead_IdempotentAtFixedClock(t *testing.T) {
	svc, repo := newTestService(wedAfternoon)
	lead := leads.LeadData{
		ID: "l1", OrganizationID: "org1", CampaignID: "c1",
		Dispositions: []leads.Disposition{{Code: leads.DispositionCallback}},
	}

	first, err := svc.ScoreLead(context.Background(), lead)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	second, err := svc.ScoreLead(context.Background(), lead)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if first.OverallScore != second.OverallScore {
		t.Fatalf("expected identical scores, got %d then %d", first.OverallScore, second.OverallScore)
	}

	// One live score row, overwritten not versioned.
	rows, err := repo.ListScores(context.Background(), ScoreQuery{CampaignID: "c1", Limit: 10, NotExpiredAt: wedAfternoon})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected exactly one score row, got %d", len(rows))
	}
}

func TestScoreLead_PrefersOrganizationModel(t *testing.T) {
	svc, repo := newTestService(wedAfternoon)

	org := NewDefaultModel()
	org.ID = "m-org"
	org.Name = "org override"
	org.Version = "v2"
	org.Scope = OrganizationScope("org1")
	org.IsActive = true
	if err := repo.CreateModel(context.Background(), org); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	if _, err := svc.ScoreLead(context.Background(), leads.LeadData{ID: "l1", OrganizationID: "org1"}); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	stored, err := repo.GetScore(context.Background(), "l1")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if stored.ModelVersion != "v2" {
		t.Fatalf("expected org model to be applied, got version %q", stored.ModelVersion)
	}
}

func TestScoreLeads_BatchUsesOneModel(t *testing.T) {
	svc, repo := newTestService(wedAfternoon)

	batch := []leads.LeadData{
		{ID: "l1", OrganizationID: "org1", CampaignID: "c1"},
		{ID: "l2", OrganizationID: "org1", CampaignID: "c1", DialAttempts: 8},
	}
	out, err := svc.ScoreLeads(context.Background(), "org1", batch)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 results, got %d", len(out))
	}

	m, ok, _ := repo.GetActiveModel(context.Background(), DefaultScope())
	if !ok || m.LeadsScored != 2 {
		t.Fatalf("expected one model with leads_scored=2")
	}
}

func TestActivateModel_SingleActivePerScope(t *testing.T) {
	svc, repo := newTestService(wedAfternoon)
	ctx := context.Background()

	mk := func(id string, scope ModelScope, active bool) {
		m := NewDefaultModel()
		m.ID = id
		m.Name = id
		m.Scope = scope
		m.IsActive = active
		if err := repo.CreateModel(ctx, m); err != nil {
			t.Fatalf("create %s: %v", id, err)
		}
	}
	mk("d1", DefaultScope(), true)
	mk("d2", DefaultScope(), false)
	mk("o1", OrganizationScope("org1"), true)
	mk("o2", OrganizationScope("org1"), false)

	for _, id := range []string{"d2", "o2", "d1", "o2"} {
		if _, err := svc.ActivateModel(ctx, id); err != nil {
			t.Fatalf("activate %s: %v", id, err)
		}
		assertSingleActive(t, repo, DefaultScope())
		assertSingleActive(t, repo, OrganizationScope("org1"))
	}

	// Activating in one scope must not disturb the other.
	m, _ := repo.GetModel(ctx, "o2")
	if !m.IsActive {
		t.Fatalf("expected o2 active after last activation")
	}
	m, _ = repo.GetModel(ctx, "d1")
	if !m.IsActive {
		t.Fatalf("expected d1 still active in default scope")
	}
}

func assertSingleActive(t *testing.T, repo *MemoryRepo, scope ModelScope) {
	t.Helper()
	var active int
	for id := range repo.models {
		m, _ := repo.GetModel(context.Background(), id)
		if m.Scope == scope && m.IsActive {
			active++
		}
	}
	if active > 1 {
		t.Fatalf("scope %v has %d active models", scope, active)
	}
}

func TestActivateModel_UnknownIDIsNotFound(t *testing.T) {
	svc, _ := newTestService(wedAfternoon)
	if _, err := svc.ActivateModel(context.Background(), "missing"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetPriorityQueue_OrdersAndExcludesExpired(t *testing.T) {
	svc, repo := newTestService(wedAfternoon)
	ctx := context.Background()

	put := func(leadID string, score int, expires time.Time) {
		if err := repo.UpsertScore(ctx, LeadScore{
			LeadID: leadID, CampaignID: "c1", OrganizationID: "org1",
			OverallScore: score, ScoredAt: wedAfternoon, ExpiresAt: expires,
		}); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}
	fresh := wedAfternoon.Add(time.Hour)
	put("low", 20, fresh)
	put("mid", 55, fresh)
	put("high", 90, fresh)
	put("stale", 99, wedAfternoon.Add(-time.Minute))

	out, err := svc.GetPriorityQueue(ctx, PriorityQueueRequest{CampaignID: "c1", MinScore: 30, Limit: 10})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(out))
	}
	if out[0].LeadID != "high" || out[1].LeadID != "mid" {
		t.Fatalf("unexpected order: %s, %s", out[0].LeadID, out[1].LeadID)
	}

	// Lead-id restriction.
	out, err = svc.GetPriorityQueue(ctx, PriorityQueueRequest{CampaignID: "c1", LeadIDs: []string{"mid"}, Limit: 10})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(out) != 1 || out[0].LeadID != "mid" {
		t.Fatalf("expected only mid, got %v", out)
	}
}

func TestGetBestTimeToCall_GoodSlotNow(t *testing.T) {
	// Wednesday 15:00 UTC; stored slot matches exactly.
	svc, repo := newTestService(wedAfternoon)
	ctx := context.Background()

	err := repo.UpsertScore(ctx, LeadScore{
		LeadID: "l1", CampaignID: "c1", OrganizationID: "org1",
		BestTimeSlots: []TimeSlot{{DayOfWeek: 3, Hour: 15, Probability: 0.9}},
		Features:      LeadFeatures{Timezone: "UTC"},
		ExpiresAt:     wedAfternoon.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	res, err := svc.GetBestTimeToCall(ctx, "l1")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !res.IsGoodTimeNow {
		t.Fatalf("expected good time now")
	}
}

func TestGetBestTimeToCall_NearestDayThenHour(t *testing.T) {
	svc, repo := newTestService(wedAfternoon)
	ctx := context.Background()

	// Now is Wednesday (day 3) 15:00 UTC. Later today beats tomorrow
	// morning even though tomorrow's slot has the smaller hour.
	err := repo.UpsertScore(ctx, LeadScore{
		LeadID: "l1", CampaignID: "c1", OrganizationID: "org1",
		BestTimeSlots: []TimeSlot{
			{DayOfWeek: 4, Hour: 9, Probability: 0.95},
			{DayOfWeek: 3, Hour: 18, Probability: 0.8},
		},
		Features:  LeadFeatures{Timezone: "UTC"},
		ExpiresAt: wedAfternoon.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	res, err := svc.GetBestTimeToCall(ctx, "l1")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if res.IsGoodTimeNow {
		t.Fatalf("expected not a good time now")
	}
	if res.NextSlot == nil || res.NextSlot.DayOfWeek != 3 || res.NextSlot.Hour != 18 {
		t.Fatalf("expected today 18:00 slot, got %+v", res.NextSlot)
	}
	want := time.Date(2026, 1, 7, 18, 0, 0, 0, time.UTC)
	if res.NextBestTime == nil || !res.NextBestTime.Equal(want) {
		t.Fatalf("expected %v, got %v", want, res.NextBestTime)
	}
}

func TestGetBestTimeToCall_WrapsToNextWeek(t *testing.T) {
	svc, repo := newTestService(wedAfternoon)
	ctx := context.Background()

	// Only slot is Tuesday (day 2), which already passed this week.
	err := repo.UpsertScore(ctx, LeadScore{
		LeadID: "l1", CampaignID: "c1", OrganizationID: "org1",
		BestTimeSlots: []TimeSlot{{DayOfWeek: 2, Hour: 10, Probability: 0.9}},
		Features:      LeadFeatures{Timezone: "UTC"},
		ExpiresAt:     wedAfternoon.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	res, err := svc.GetBestTimeToCall(ctx, "l1")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	want := time.Date(2026, 1, 13, 10, 0, 0, 0, time.UTC) // next Tuesday
	if res.NextBestTime == nil || !res.NextBestTime.Equal(want) {
		t.Fatalf("expected %v, got %v", want, res.NextBestTime)
	}
}
