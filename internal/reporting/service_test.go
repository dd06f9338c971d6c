package reporting

import (
	"context"
	"errors"
	"testing"
	"time"

	"outbound-dialer/internal/campaigns"
)

func seed(t *testing.T) *campaigns.MemoryStore {
	t.Helper()
	store := campaigns.NewMemoryStore()
	ctx := context.Background()
	if err := store.CreateCampaign(ctx, campaigns.Campaign{
		ID: "camp", OwnerID: "acct", Title: "Q3 outreach", Status: campaigns.StatusCompleted, Progress: 100, HasRun: true,
	}, nil); err != nil {
		t.Fatalf("seed campaign: %v", err)
	}

	analyzed := time.Unix(1700000000, 0).UTC()
	logs := []struct {
		callID, reason, sentiment string
		duration                  float64
	}{
		{"c1", "agent_hangup", "Positive", 60},
		{"c2", "user_hangup", "Neutral", 30},
		{"c3", "dial_no_answer", "", 0},
		{"c4", "", "", 0},
	}
	for _, l := range logs {
		if err := store.InsertCallLog(ctx, campaigns.CallLog{CampaignID: "camp", CallID: l.callID}); err != nil {
			t.Fatalf("insert log: %v", err)
		}
	}
	stored, err := store.ListCallLogs(ctx, "camp")
	if err != nil {
		t.Fatalf("list logs: %v", err)
	}
	for _, s := range stored {
		for _, l := range logs {
			if s.CallID != l.callID || l.reason == "" {
				continue
			}
			err := store.UpdateCallLogDetails(ctx, s.ID, campaigns.CallLogEnrichment{
				DisconnectionReason: l.reason,
				UserSentiment:       l.sentiment,
				DurationSeconds:     l.duration,
				AnalyzedAt:          analyzed,
			})
			if err != nil {
				t.Fatalf("enrich log: %v", err)
			}
		}
	}
	return store
}

func TestReporting_CampaignSummary(t *testing.T) {
	svc := NewService(seed(t))

	out, err := svc.CampaignSummary(context.Background(), "acct", "camp")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if out.TotalCalls != 4 || out.HitCalls != 2 || out.UnansweredCalls != 2 {
		t.Fatalf("unexpected counts: %+v", out)
	}
	if out.HitRate != 50 {
		t.Fatalf("expected hit rate 50, got %v", out.HitRate)
	}
	if out.AverageDurationSeconds != 22.5 {
		t.Fatalf("expected average 22.5, got %v", out.AverageDurationSeconds)
	}
	if out.AnalyzedCalls != 3 {
		t.Fatalf("expected 3 analyzed calls, got %d", out.AnalyzedCalls)
	}
	if out.DisconnectionReasons[UnknownLabel] != 1 || out.DisconnectionReasons["dial_no_answer"] != 1 {
		t.Fatalf("unexpected reasons: %v", out.DisconnectionReasons)
	}
	if out.Sentiments[UnknownLabel] != 2 || out.Sentiments["Positive"] != 1 {
		t.Fatalf("unexpected sentiments: %v", out.Sentiments)
	}
	if out.Status != campaigns.StatusCompleted || out.Progress != 100 || out.Title != "Q3 outreach" {
		t.Fatalf("campaign fields not copied: %+v", out)
	}
}

func TestReporting_OwnerIsolation(t *testing.T) {
	svc := NewService(seed(t))

	_, err := svc.CampaignSummary(context.Background(), "other", "camp")
	if !errors.Is(err, campaigns.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestReporting_NoCallsHasZeroRates(t *testing.T) {
	out := Summarize(nil)
	if out.TotalCalls != 0 || out.HitRate != 0 || out.AverageDurationSeconds != 0 {
		t.Fatalf("unexpected summary: %+v", out)
	}
	if out.DisconnectionReasons == nil || out.Sentiments == nil {
		t.Fatalf("breakdowns must be non-nil for JSON")
	}
}

func TestReporting_RejectsEmptyIDs(t *testing.T) {
	svc := NewService(campaigns.NewMemoryStore())
	if _, err := svc.CampaignSummary(context.Background(), "", "camp"); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected invalid request, got %v", err)
	}
}
