package campaigns

import (
	"context"
	"testing"

	"outbound-dialer/internal/audit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedialCandidates_OnlyUnreached(t *testing.T) {
	contacts := []Contact{{ID: "A"}, {ID: "B"}, {ID: "C"}}
	logs := []CallLog{
		{ContactID: "A", DisconnectionReason: "agent_hangup"},
		{ContactID: "B", DisconnectionReason: "dial_busy"},
		{ContactID: "C", DisconnectionReason: "user_hangup"},
	}

	got := RedialCandidates(contacts, logs)
	require.Len(t, got, 1)
	assert.Equal(t, "B", got[0].ID)
}

func TestRedialCandidates_AnyReachedLogWins(t *testing.T) {
	contacts := []Contact{{ID: "A"}, {ID: "B"}}
	logs := []CallLog{
		{ContactID: "A", DisconnectionReason: "dial_no_answer"},
		{ContactID: "A", DisconnectionReason: "call_transfer"},
		{ContactID: "B", DisconnectionReason: ""},
	}

	got := RedialCandidates(contacts, logs)
	require.Len(t, got, 1)
	assert.Equal(t, "B", got[0].ID, "an uncalled or unknown outcome is a candidate")
}

func newTestService(t *testing.T) (*Service, *MemoryStore, *audit.MemoryRepo) {
	t.Helper()
	store := NewMemoryStore()
	repo := audit.NewMemoryRepo()
	return NewService(store, audit.NewService(repo)), store, repo
}

func TestService_CreateRedial(t *testing.T) {
	svc, store, auditRepo := newTestService(t)
	ctx := context.Background()
	src, contacts := seedCampaign(t, store, Campaign{
		Title:             "Spring",
		AgentID:           "agent-1",
		OutboundNumber:    "+15550000",
		LocalTouchEnabled: true,
		Status:            StatusCompleted,
		HasRun:            true,
		Progress:          100,
	}, "1", "2", "3")
	store.contacts[contacts[1].ID] = func() Contact {
		c := contacts[1]
		c.DynamicVariables = map[string]string{"plan": "gold"}
		return c
	}()

	for i, reason := range []string{"agent_hangup", "dial_busy", "user_hangup"} {
		require.NoError(t, store.SetContactCallID(ctx, contacts[i].ID, "call-"+contacts[i].PhoneNumber))
		require.NoError(t, store.InsertCallLog(ctx, CallLog{
			CampaignID:          src.ID,
			ContactID:           contacts[i].ID,
			CallID:              "call-" + contacts[i].PhoneNumber,
			DisconnectionReason: reason,
		}))
	}

	c, fresh, err := svc.CreateRedial(ctx, "acct-1", src.ID)
	require.NoError(t, err)
	assert.NotEqual(t, src.ID, c.ID)
	assert.Equal(t, "Spring (Redial)", c.Title)
	assert.Equal(t, StatusScheduled, c.Status)
	assert.Equal(t, 0, c.Progress)
	assert.False(t, c.HasRun)
	assert.True(t, c.LocalTouchEnabled)
	assert.Equal(t, "agent-1", c.AgentID)

	require.Len(t, fresh, 1)
	assert.Equal(t, "2", fresh[0].PhoneNumber)
	assert.Equal(t, "n2", fresh[0].FirstName)
	assert.Equal(t, map[string]string{"plan": "gold"}, fresh[0].DynamicVariables)
	assert.Empty(t, fresh[0].CallID)
	assert.NotEqual(t, contacts[1].ID, fresh[0].ID)

	assert.Len(t, auditRepo.OfType(audit.EventRedialCreated), 1)
}

func TestService_CreateRedialPreconditions(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	_, _, err := svc.CreateRedial(ctx, "acct-1", "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	seedCampaign(t, store, Campaign{ID: "running", Status: StatusInProgress, HasRun: true}, "1")
	_, _, err = svc.CreateRedial(ctx, "acct-1", "running")
	assert.ErrorIs(t, err, ErrNotFinished)

	seedCampaign(t, store, Campaign{ID: "fresh", Status: StatusScheduled}, "1")
	_, _, err = svc.CreateRedial(ctx, "acct-1", "fresh")
	assert.ErrorIs(t, err, ErrNotFinished)

	_, contacts := seedCampaign(t, store, Campaign{ID: "done", Status: StatusCompleted, HasRun: true}, "1")
	require.NoError(t, store.InsertCallLog(ctx, CallLog{CampaignID: "done", ContactID: contacts[0].ID, CallID: "x", DisconnectionReason: "user_hangup"}))
	_, _, err = svc.CreateRedial(ctx, "acct-1", "done")
	assert.ErrorIs(t, err, ErrNothingToRedial)
}

func TestService_UpdateStatus(t *testing.T) {
	svc, store, auditRepo := newTestService(t)
	ctx := context.Background()
	seedCampaign(t, store, Campaign{ID: "s", Status: StatusScheduled}, "1")
	seedCampaign(t, store, Campaign{ID: "r", Status: StatusInProgress, HasRun: true}, "1")
	seedCampaign(t, store, Campaign{ID: "done", Status: StatusCompleted, HasRun: true}, "1")

	_, err := svc.UpdateStatus(ctx, "acct-1", "s", Status("Running"))
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = svc.UpdateStatus(ctx, "acct-1", "s", StatusInProgress)
	assert.ErrorIs(t, err, ErrNotStarted)

	_, err = svc.UpdateStatus(ctx, "acct-1", "done", StatusPaused)
	assert.ErrorIs(t, err, ErrCompleted)

	_, err = svc.UpdateStatus(ctx, "acct-2", "r", StatusPaused)
	assert.ErrorIs(t, err, ErrNotFound)

	c, err := svc.UpdateStatus(ctx, "acct-1", "r", StatusPaused)
	require.NoError(t, err)
	assert.Equal(t, StatusPaused, c.Status)
	assert.Len(t, auditRepo.OfType(audit.EventCampaignStatusChanged), 1)
}
