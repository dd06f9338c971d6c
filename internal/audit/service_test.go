package audit

import (
	"context"
	"errors"
	"testing"

	"outbound-dialer/internal/auth"
)

func TestService_AppendRequiresAccountAndType(t *testing.T) {
	svc := NewService(NewMemoryRepo())

	if err := svc.Append(context.Background(), Event{Type: EventCampaignStarted}); !errors.Is(err, ErrInvalidEvent) {
		t.Fatalf("expected ErrInvalidEvent, got %v", err)
	}
	if err := svc.Append(context.Background(), Event{AccountID: "a"}); !errors.Is(err, ErrInvalidEvent) {
		t.Fatalf("expected ErrInvalidEvent, got %v", err)
	}
}

func TestService_RecordCapturesActorAndIP(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	ctx := auth.WithIdentity(context.Background(), "u1", "acct", "owner")
	ctx = WithClientIP(ctx, "1.2.3.4")
	svc.Record(ctx, EventCampaignStarted, "acct", "c1", "started")

	evs := repo.Events()
	if len(evs) != 1 {
		t.Fatalf("expected 1 event, got %d", len(evs))
	}
	e := evs[0]
	if e.ID == "" || e.CreatedAt.IsZero() {
		t.Fatalf("expected id and created_at to be filled")
	}
	if e.ActorUserID != "u1" || e.ActorRole != "owner" || e.IPAddress != "1.2.3.4" {
		t.Fatalf("unexpected actor capture: %+v", e)
	}
	if e.CampaignID != "c1" || e.Type != EventCampaignStarted {
		t.Fatalf("unexpected event: %+v", e)
	}
}

func TestService_RecordSwallowsFailures(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	// Missing account: rejected and logged, never panics.
	svc.Record(context.Background(), EventCampaignAborted, "", "c1", "boom")
	if len(repo.Events()) != 0 {
		t.Fatalf("expected no events")
	}

	var nilSvc *Service
	nilSvc.Record(context.Background(), EventCampaignAborted, "a", "c1", "boom")
}

func TestMemoryRepo_OfType(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()
	svc.Record(ctx, EventCampaignStarted, "a", "c1", "")
	svc.Record(ctx, EventCampaignCompleted, "a", "c1", "")
	svc.Record(ctx, EventCampaignStarted, "a", "c2", "")

	if got := len(repo.OfType(EventCampaignStarted)); got != 2 {
		t.Fatalf("expected 2 started events, got %d", got)
	}
}
