package callerid

import (
	"context"
	"errors"
	"testing"
)

func TestCreatePoolDuplicateName(t *testing.T) {
	svc, _ := newTestService(t)
	seedPool(t, svc, nil)

	_, err := svc.CreatePool(context.Background(), CreatePoolRequest{
		OrganizationID:   "org-1",
		Name:             "outbound",
		RotationStrategy: RotationRandom,
	})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}

	// Same name in a different organization is fine.
	if _, err := svc.CreatePool(context.Background(), CreatePoolRequest{
		OrganizationID:   "org-2",
		Name:             "outbound",
		RotationStrategy: RotationRandom,
	}); err != nil {
		t.Fatalf("cross-org duplicate: %v", err)
	}
}

func TestCreatePoolRejectsUnknownStrategy(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.CreatePool(context.Background(), CreatePoolRequest{
		OrganizationID:   "org-1",
		Name:             "outbound",
		RotationStrategy: "fancy",
	})
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("err = %v, want ErrInvalidArgument", err)
	}
}

func TestImportNumbersPartialFailure(t *testing.T) {
	svc, _ := newTestService(t)
	pool := seedPool(t, svc, nil)
	ctx := context.Background()

	res, err := svc.ImportNumbers(ctx, pool.ID, []string{
		"+12125550100",
		"123",          // too short to classify
		"+12125550100", // duplicate of the first
		"+13105550199",
	})
	if err != nil {
		t.Fatalf("ImportNumbers: %v", err)
	}
	if res.Imported != 2 {
		t.Fatalf("imported %d, want 2 (failures: %v)", res.Imported, res.Failures)
	}
	if len(res.Failures) != 2 {
		t.Fatalf("got %d failures, want 2: %v", len(res.Failures), res.Failures)
	}

	numbers, err := svc.repo.ListNumbersByPool(ctx, pool.ID)
	if err != nil {
		t.Fatalf("ListNumbersByPool: %v", err)
	}
	for _, n := range numbers {
		if n.Status != StatusActive {
			t.Fatalf("imported number status = %q, want active", n.Status)
		}
		if n.ReputationScore != 100 || n.ReputationLevel != ReputationExcellent {
			t.Fatalf("imported reputation = (%d, %q), want (100, excellent)", n.ReputationScore, n.ReputationLevel)
		}
		if n.AreaCode != "212" && n.AreaCode != "310" {
			t.Fatalf("unexpected area code %q", n.AreaCode)
		}
	}
}

func TestImportNumbersUnknownPool(t *testing.T) {
	svc, _ := newTestService(t)
	if _, err := svc.ImportNumbers(context.Background(), "nope", []string{"+12125550100"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestSelectCallerIDInactivePoolYieldsNothing(t *testing.T) {
	svc, _ := newTestService(t)
	pool := seedPool(t, svc, nil)
	seedNumber(t, svc, pool.ID, "+12125550100")

	if _, err := svc.SetPoolActive(context.Background(), pool.ID, false); err != nil {
		t.Fatalf("SetPoolActive: %v", err)
	}
	n, err := svc.SelectCallerIDForLead(context.Background(), SelectionRequest{PoolID: pool.ID, LeadPhone: "+12125559999"})
	if err != nil {
		t.Fatalf("SelectCallerIDForLead: %v", err)
	}
	if n != nil {
		t.Fatalf("got %+v, want nil from inactive pool", n)
	}
}

func TestSelectCallerIDEmptyPoolYieldsNothing(t *testing.T) {
	svc, _ := newTestService(t)
	pool := seedPool(t, svc, nil)

	n, err := svc.SelectCallerIDForLead(context.Background(), SelectionRequest{PoolID: pool.ID, LeadPhone: "+12125559999"})
	if err != nil {
		t.Fatalf("SelectCallerIDForLead: %v", err)
	}
	if n != nil {
		t.Fatalf("got %+v, want nil from empty pool", n)
	}
}

func TestSelectCallerIDSkipsFlaggedNumbers(t *testing.T) {
	svc, _ := newTestService(t)
	pool := seedPool(t, svc, nil)
	bad := seedNumber(t, svc, pool.ID, "+12125550100")
	good := seedNumber(t, svc, pool.ID, "+12125550101")

	ctx := context.Background()
	if _, err := svc.FlagNumber(ctx, bad.ID, "carrier", ""); err != nil {
		t.Fatalf("FlagNumber: %v", err)
	}

	for i := 0; i < 20; i++ {
		n, err := svc.SelectCallerIDForLead(ctx, SelectionRequest{PoolID: pool.ID, LeadPhone: "+12125559999"})
		if err != nil {
			t.Fatalf("SelectCallerIDForLead: %v", err)
		}
		if n == nil {
			t.Fatalf("no number selected")
		}
		if n.ID != good.ID {
			t.Fatalf("selected flagged number %q", n.ID)
		}
	}
}

func TestSelectCallerIDLocalPresence(t *testing.T) {
	svc, _ := newTestService(t)
	pool := seedPool(t, svc, func(req *CreatePoolRequest) {
		req.LocalPresenceEnabled = true
		req.RotationStrategy = RotationRandom
	})
	seedNumber(t, svc, pool.ID, "+12125550100") // 212
	local := seedNumber(t, svc, pool.ID, "+13105550101")

	ctx := context.Background()
	for i := 0; i < 20; i++ {
		n, err := svc.SelectCallerIDForLead(ctx, SelectionRequest{PoolID: pool.ID, LeadPhone: "+13105559999"})
		if err != nil {
			t.Fatalf("SelectCallerIDForLead: %v", err)
		}
		if n == nil || n.ID != local.ID {
			t.Fatalf("selected %+v, want local 310 match", n)
		}
	}

	// No area-code match falls back to the whole pool rather than failing.
	n, err := svc.SelectCallerIDForLead(ctx, SelectionRequest{PoolID: pool.ID, LeadPhone: "+19075559999"})
	if err != nil {
		t.Fatalf("SelectCallerIDForLead: %v", err)
	}
	if n == nil {
		t.Fatalf("no number selected on fallback")
	}
}

func TestRecordCallStartAndResult(t *testing.T) {
	svc, repo := newTestService(t)
	pool := seedPool(t, svc, nil)
	n := seedNumber(t, svc, pool.ID, "+12125550100")
	ctx := context.Background()

	log, err := svc.RecordCallStart(ctx, n.ID, "+13105559999", "camp-1")
	if err != nil {
		t.Fatalf("RecordCallStart: %v", err)
	}
	if log.DestinationAreaCode != "310" {
		t.Fatalf("destination area code = %q, want 310", log.DestinationAreaCode)
	}

	started, err := repo.GetNumber(ctx, n.ID)
	if err != nil {
		t.Fatalf("GetNumber: %v", err)
	}
	if started.CallsToday != 1 || started.TotalCalls != 1 {
		t.Fatalf("counters = (%d, %d), want (1, 1)", started.CallsToday, started.TotalCalls)
	}
	if started.LastUsedAt == nil || !started.LastUsedAt.Equal(reputationNow) {
		t.Fatalf("last used at = %v, want %v", started.LastUsedAt, reputationNow)
	}

	closed, err := svc.RecordCallResult(ctx, log.ID, CallResultAnswered, 95)
	if err != nil {
		t.Fatalf("RecordCallResult: %v", err)
	}
	if !closed.WasAnswered || closed.CallDurationSeconds != 95 || closed.CompletedAt == nil {
		t.Fatalf("closed log = %+v, want answered 95s with completion time", closed)
	}

	after, err := repo.GetNumber(ctx, n.ID)
	if err != nil {
		t.Fatalf("GetNumber: %v", err)
	}
	if after.AnsweredCalls != 1 {
		t.Fatalf("answered calls = %d, want 1", after.AnsweredCalls)
	}

	events, err := svc.ListReputationEvents(ctx, n.ID, 10)
	if err != nil {
		t.Fatalf("ListReputationEvents: %v", err)
	}
	if len(events) != 1 || events[0].EventType != EventCallAnswered || events[0].ScoreChange != 1 {
		t.Fatalf("events = %+v, want one call_answered +1", events)
	}

	// Close-once: a second completion conflicts.
	if _, err := svc.RecordCallResult(ctx, log.ID, CallResultNoAnswer, 0); !errors.Is(err, ErrConflict) {
		t.Fatalf("second close err = %v, want ErrConflict", err)
	}
}

func TestRecordCallResultUnansweredDoesNotCredit(t *testing.T) {
	svc, repo := newTestService(t)
	pool := seedPool(t, svc, nil)
	n := seedNumber(t, svc, pool.ID, "+12125550100")
	ctx := context.Background()

	log, err := svc.RecordCallStart(ctx, n.ID, "+13105559999", "")
	if err != nil {
		t.Fatalf("RecordCallStart: %v", err)
	}
	if _, err := svc.RecordCallResult(ctx, log.ID, CallResultVoicemail, 20); err != nil {
		t.Fatalf("RecordCallResult: %v", err)
	}

	after, err := repo.GetNumber(ctx, n.ID)
	if err != nil {
		t.Fatalf("GetNumber: %v", err)
	}
	if after.AnsweredCalls != 0 {
		t.Fatalf("answered calls = %d, want 0", after.AnsweredCalls)
	}
	events, err := svc.ListReputationEvents(ctx, n.ID, 10)
	if err != nil {
		t.Fatalf("ListReputationEvents: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("events = %+v, want none", events)
	}
}

func TestResetDailyCounters(t *testing.T) {
	svc, repo := newTestService(t)
	pool := seedPool(t, svc, nil)
	n := seedNumber(t, svc, pool.ID, "+12125550100")
	ctx := context.Background()

	if _, err := svc.RecordCallStart(ctx, n.ID, "+13105559999", ""); err != nil {
		t.Fatalf("RecordCallStart: %v", err)
	}

	reset, err := svc.ResetDailyCounters(ctx)
	if err != nil {
		t.Fatalf("ResetDailyCounters: %v", err)
	}
	if reset != 1 {
		t.Fatalf("reset %d rows, want 1", reset)
	}

	after, err := repo.GetNumber(ctx, n.ID)
	if err != nil {
		t.Fatalf("GetNumber: %v", err)
	}
	if after.CallsToday != 0 {
		t.Fatalf("calls today = %d, want 0", after.CallsToday)
	}
	if after.TotalCalls != 1 {
		t.Fatalf("total calls = %d, want untouched 1", after.TotalCalls)
	}

	// Running it again is a no-op.
	if reset, err := svc.ResetDailyCounters(ctx); err != nil || reset != 0 {
		t.Fatalf("second reset = (%d, %v), want (0, nil)", reset, err)
	}
}

func TestPoolStats(t *testing.T) {
	svc, _ := newTestService(t)
	pool := seedPool(t, svc, nil)
	a := seedNumber(t, svc, pool.ID, "+12125550100")
	seedNumber(t, svc, pool.ID, "+13105550101")
	ctx := context.Background()

	log, err := svc.RecordCallStart(ctx, a.ID, "+13105559999", "")
	if err != nil {
		t.Fatalf("RecordCallStart: %v", err)
	}
	if _, err := svc.RecordCallResult(ctx, log.ID, CallResultAnswered, 60); err != nil {
		t.Fatalf("RecordCallResult: %v", err)
	}

	stats, err := svc.GetPoolStats(ctx, pool.ID)
	if err != nil {
		t.Fatalf("GetPoolStats: %v", err)
	}
	if stats.TotalNumbers != 2 || stats.ByStatus[StatusActive] != 2 {
		t.Fatalf("stats = %+v, want 2 active numbers", stats)
	}
	if stats.AreaCodes["212"] != 1 || stats.AreaCodes["310"] != 1 {
		t.Fatalf("area codes = %v", stats.AreaCodes)
	}
	if stats.TotalCalls != 1 || stats.AnsweredCalls != 1 || stats.AnswerRate != 1.0 {
		t.Fatalf("call stats = %+v", stats)
	}
	if stats.AverageReputation != 100 {
		t.Fatalf("average reputation = %v, want 100", stats.AverageReputation)
	}
}
