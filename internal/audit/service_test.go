package audit

import (
	"context"
	"testing"
)

func TestService_AppendRequiresOrganizationAndType(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	if err := svc.Append(context.Background(), Event{Type: EventTypeAdminAction}); err == nil {
		t.Fatalf("expected error")
	}
	if err := svc.Append(context.Background(), Event{OrganizationID: "org"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestService_AppendsImmutableEvents(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	if err := svc.LogAdminAction(context.Background(), "org", "u", "super_admin", "1.2.3.4", "did something", "{}"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	evs := repo.Events()
	if len(evs) != 1 {
		t.Fatalf("expected 1 event")
	}
	if evs[0].IPAddress != "1.2.3.4" {
		t.Fatalf("expected ip captured")
	}
	if evs[0].Type != EventTypeAdminAction {
		t.Fatalf("expected admin_action")
	}
}

func TestService_DomainEventHelpers(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()

	if err := svc.LogNumberFlagged(ctx, "org", "pool-1", "num-1", "carrier-analytics", "{}"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if err := svc.LogNumberUnblocked(ctx, "org", "u", "admin", "1.2.3.4", "pool-1", "num-1", "{}"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if err := svc.LogModelActivated(ctx, "org", "u", "admin", "1.2.3.4", "model-2", "{}"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	evs := repo.Events()
	if len(evs) != 3 {
		t.Fatalf("expected 3 events, got %d", len(evs))
	}
	if evs[0].Type != EventTypeNumberFlagged || evs[0].NumberID != "num-1" {
		t.Fatalf("flag event = %+v", evs[0])
	}
	if evs[1].Type != EventTypeNumberUnblocked || evs[1].ActorRole != "admin" {
		t.Fatalf("unblock event = %+v", evs[1])
	}
	if evs[2].Type != EventTypeModelActivated || evs[2].ModelID != "model-2" {
		t.Fatalf("activate event = %+v", evs[2])
	}
}

func TestMemoryRepo_EventsForOrganization(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()

	if err := svc.LogAdminAction(ctx, "org-a", "u1", "owner", "1.2.3.4", "reset", "{}"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if err := svc.LogAdminAction(ctx, "org-b", "u2", "owner", "1.2.3.4", "reset", "{}"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	evs := repo.EventsForOrganization("org-a")
	if len(evs) != 1 || evs[0].OrganizationID != "org-a" {
		t.Fatalf("org-a events = %+v", evs)
	}
	if got := repo.EventsForOrganization("org-c"); len(got) != 0 {
		t.Fatalf("expected no events for org-c, got %d", len(got))
	}
}
