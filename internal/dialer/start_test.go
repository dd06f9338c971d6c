package dialer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"outbound-dialer/internal/audit"
	"outbound-dialer/internal/campaigns"
	"outbound-dialer/internal/config"
	"outbound-dialer/internal/credits"
	"outbound-dialer/internal/jobs"
	"outbound-dialer/internal/telephony"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGovernor_AvailableSlots(t *testing.T) {
	g := Governor{Fallback: 10}
	cases := []struct {
		name string
		st   telephony.ConcurrencyStatus
		err  error
		want int
	}{
		{"free", telephony.ConcurrencyStatus{CurrentConcurrency: 3, ConcurrencyLimit: 20}, nil, 17},
		{"full", telephony.ConcurrencyStatus{CurrentConcurrency: 20, ConcurrencyLimit: 20}, nil, 0},
		{"over", telephony.ConcurrencyStatus{CurrentConcurrency: 25, ConcurrencyLimit: 20}, nil, 0},
		{"unavailable", telephony.ConcurrencyStatus{}, telephony.ErrUnavailable, 10},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, g.AvailableSlots(tc.st, tc.err))
		})
	}
}

func TestStart_Success(t *testing.T) {
	h := newHarness(t, 10, phones(3))

	res, err := h.orch.Start(context.Background(), testAccount, testCampaign)
	require.NoError(t, err)
	assert.Equal(t, StartResult{CampaignID: testCampaign, EligibleContacts: 3}, res)

	c := h.campaign(t)
	assert.True(t, c.HasRun)
	assert.Equal(t, campaigns.StatusInProgress, c.Status)

	reqs := h.launcher.requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, jobs.RunRequest{CampaignID: testCampaign, AccountID: testAccount}, reqs[0])
	assert.Len(t, h.audit.OfType(audit.EventCampaignStarted), 1)
}

func TestStart_PreconditionOrder(t *testing.T) {
	t.Run("not found", func(t *testing.T) {
		h := newHarness(t, 10, phones(1))
		_, err := h.orch.Start(context.Background(), "someone-else", testCampaign)
		assert.ErrorIs(t, err, ErrCampaignNotFound)
	})

	t.Run("no credentials before already run", func(t *testing.T) {
		h := newHarness(t, 10, phones(1))
		h.markStarted(t)
		h.ledger.Seed(testAccount, 10, "")
		_, err := h.orch.Start(context.Background(), testAccount, testCampaign)
		assert.ErrorIs(t, err, ErrNoCredentials)
	})

	t.Run("already run", func(t *testing.T) {
		h := newHarness(t, 10, phones(1))
		h.markStarted(t)
		_, err := h.orch.Start(context.Background(), testAccount, testCampaign)
		assert.ErrorIs(t, err, ErrAlreadyRun)
	})

	t.Run("no eligible contacts before credits", func(t *testing.T) {
		h := newHarness(t, 0, phones(2))
		for i, c := range h.contacts {
			require.NoError(t, h.store.SetContactCallID(context.Background(), c.ID, "prior-"+string(rune('a'+i))))
		}
		_, err := h.orch.Start(context.Background(), testAccount, testCampaign)
		assert.ErrorIs(t, err, ErrNoEligibleContacts)
	})

	t.Run("credit shortfall", func(t *testing.T) {
		h := newHarness(t, 2, phones(3))
		_, err := h.orch.Start(context.Background(), testAccount, testCampaign)
		require.ErrorIs(t, err, credits.ErrInsufficientCredits)

		var short *CreditShortfallError
		require.ErrorAs(t, err, &short)
		assert.Equal(t, int64(2), short.Balance)
		assert.Equal(t, int64(3), short.Required)
		assert.Equal(t, "https://billing.example.com/buy?account=acct-1", short.PurchaseLink)

		c := h.campaign(t)
		assert.False(t, c.HasRun, "a rejected start leaves the campaign untouched")
		assert.Empty(t, h.launcher.requests())
	})
}

func TestStart_ConcurrentStartsExactlyOneWins(t *testing.T) {
	h := newHarness(t, 10, phones(2))

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.orch.Start(context.Background(), testAccount, testCampaign)
			if err == nil {
				wins.Add(1)
				return
			}
			assert.ErrorIs(t, err, ErrAlreadyRun)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	assert.Len(t, h.launcher.requests(), 1)
}

func TestStart_LaunchFailureKeepsInProgress(t *testing.T) {
	h := newHarness(t, 10, phones(1))
	h.launcher.err = errors.New("broker down")

	_, err := h.orch.Start(context.Background(), testAccount, testCampaign)
	require.Error(t, err)

	c := h.campaign(t)
	assert.True(t, c.HasRun)
	assert.Equal(t, campaigns.StatusInProgress, c.Status)
}

func TestRecover(t *testing.T) {
	h := newHarness(t, 10, phones(2))
	h.markStarted(t)
	ctx := context.Background()

	require.NoError(t, h.store.CreateCampaign(ctx, campaigns.Campaign{
		ID: "done-but-paused", OwnerID: testAccount, Status: campaigns.StatusPaused, HasRun: true,
	}, []campaigns.Contact{{PhoneNumber: "+1", CallID: "old-call"}}))
	require.NoError(t, h.store.CreateCampaign(ctx, campaigns.Campaign{
		ID: "paused-for-credits", OwnerID: testAccount, Status: campaigns.StatusPaused, HasRun: true,
	}, []campaigns.Contact{{PhoneNumber: "+3"}}))
	require.NoError(t, h.store.CreateCampaign(ctx, campaigns.Campaign{
		ID: "never-started", OwnerID: testAccount, Status: campaigns.StatusScheduled,
	}, []campaigns.Contact{{PhoneNumber: "+2"}}))

	n, err := h.orch.Recover(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	reqs := h.launcher.requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, jobs.RunRequest{CampaignID: testCampaign, AccountID: testAccount, Resume: true}, reqs[0])

	done, err := h.store.GetCampaign(ctx, testAccount, "done-but-paused")
	require.NoError(t, err)
	assert.Equal(t, campaigns.StatusCompleted, done.Status)
	assert.Equal(t, 100, done.Progress)

	paused, err := h.store.GetCampaign(ctx, testAccount, "paused-for-credits")
	require.NoError(t, err)
	assert.Equal(t, campaigns.StatusPaused, paused.Status, "a paused campaign waits for an operator resume")

	untouched, err := h.store.GetCampaign(ctx, testAccount, "never-started")
	require.NoError(t, err)
	assert.Equal(t, campaigns.StatusScheduled, untouched.Status)

	assert.Len(t, h.audit.OfType(audit.EventCampaignResumed), 1)
}

func TestResume_IgnoresActiveRun(t *testing.T) {
	h := newHarness(t, 10, phones(1))
	h.launcher.err = jobs.ErrAlreadyRunning
	require.NoError(t, h.orch.Resume(context.Background(), testAccount, testCampaign))
}

func TestStart_InlineLauncherEndToEnd(t *testing.T) {
	h := newHarness(t, 10, phones(4))
	inline := jobs.NewInlineLauncher(context.Background(), h.orch, nil)
	h.orch.UseLauncher(inline)

	_, err := h.orch.Start(context.Background(), testAccount, testCampaign)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return h.campaign(t).Status == campaigns.StatusCompleted
	}, 3*time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, inline.Shutdown(ctx))

	assert.Equal(t, 4, h.provider.totalDials())
	assert.Equal(t, int64(6), h.balance(t))
	assert.Equal(t, 100, h.campaign(t).Progress)
}

func TestNew_RequiresDependencies(t *testing.T) {
	_, err := New(Options{Tuning: config.StaticTuning(fastTuning())})
	assert.Error(t, err)
}
