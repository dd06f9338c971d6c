package campaigns

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedCampaign(t *testing.T, s *MemoryStore, c Campaign, phones ...string) (Campaign, []Contact) {
	t.Helper()
	if c.ID == "" {
		c.ID = "camp-1"
	}
	if c.OwnerID == "" {
		c.OwnerID = "acct-1"
	}
	contacts := make([]Contact, 0, len(phones))
	for _, p := range phones {
		contacts = append(contacts, Contact{PhoneNumber: p, FirstName: "n" + p})
	}
	require.NoError(t, s.CreateCampaign(context.Background(), c, contacts))
	got, err := s.ListContacts(context.Background(), c.ID)
	require.NoError(t, err)
	stored, err := s.GetCampaign(context.Background(), c.OwnerID, c.ID)
	require.NoError(t, err)
	return stored, got
}

func TestMemoryStore_OwnerScoping(t *testing.T) {
	s := NewMemoryStore()
	seedCampaign(t, s, Campaign{Title: "t"})

	_, err := s.GetCampaign(context.Background(), "other", "camp-1")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetStatus(context.Background(), "other", "camp-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_ContactsAreFIFO(t *testing.T) {
	s := NewMemoryStore()
	_, contacts := seedCampaign(t, s, Campaign{}, "1", "2", "3", "4")

	require.Len(t, contacts, 4)
	for i, want := range []string{"1", "2", "3", "4"} {
		assert.Equal(t, want, contacts[i].PhoneNumber)
	}
}

func TestMemoryStore_MarkStartedFlipsOnce(t *testing.T) {
	s := NewMemoryStore()
	seedCampaign(t, s, Campaign{}, "1")

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.MarkStarted(context.Background(), "acct-1", "camp-1"); err == nil {
				wins.Add(1)
			} else {
				assert.ErrorIs(t, err, ErrAlreadyRun)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())

	c, err := s.GetCampaign(context.Background(), "acct-1", "camp-1")
	require.NoError(t, err)
	assert.True(t, c.HasRun)
	assert.Equal(t, StatusInProgress, c.Status)
}

func TestMemoryStore_SetStatusRefusesLeavingCompleted(t *testing.T) {
	s := NewMemoryStore()
	seedCampaign(t, s, Campaign{Status: StatusCompleted})

	_, err := s.SetStatus(context.Background(), "acct-1", "camp-1", StatusPaused)
	assert.ErrorIs(t, err, ErrCompleted)

	c, err := s.SetStatus(context.Background(), "acct-1", "camp-1", StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, c.Status)
}

func TestMemoryStore_SetContactCallIDOnlyOnce(t *testing.T) {
	s := NewMemoryStore()
	_, contacts := seedCampaign(t, s, Campaign{}, "1")
	id := contacts[0].ID

	require.NoError(t, s.SetContactCallID(context.Background(), id, "call-a"))
	require.NoError(t, s.SetContactCallID(context.Background(), id, "call-a"))
	assert.ErrorIs(t, s.SetContactCallID(context.Background(), id, "call-b"), ErrContactAlreadyCall)
	assert.ErrorIs(t, s.SetContactCallID(context.Background(), "missing", "x"), ErrContactNotFound)

	ct, err := s.GetContact(context.Background(), id)
	require.NoError(t, err)
	assert.False(t, ct.Eligible())
}

func TestMemoryStore_InsertCallLogIsIdempotent(t *testing.T) {
	s := NewMemoryStore()
	l := CallLog{CampaignID: "camp-1", ContactID: "c1", CallID: "call-1"}

	require.NoError(t, s.InsertCallLog(context.Background(), l))
	require.NoError(t, s.InsertCallLog(context.Background(), l))

	logs, err := s.ListCallLogs(context.Background(), "camp-1")
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}

func TestMemoryStore_UpdateCallLogDetails(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.InsertCallLog(context.Background(), CallLog{ID: "l1", CampaignID: "camp-1", CallID: "call-1"}))

	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, s.UpdateCallLogDetails(context.Background(), "l1", CallLogEnrichment{
		DisconnectionReason: "user_hangup",
		DurationSeconds:     12.5,
		AnalyzedAt:          at,
	}))
	logs, err := s.ListCallLogs(context.Background(), "camp-1")
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "user_hangup", logs[0].DisconnectionReason)
	require.NotNil(t, logs[0].AnalyzedAt)
	assert.Equal(t, at, *logs[0].AnalyzedAt)

	assert.ErrorIs(t, s.UpdateCallLogDetails(context.Background(), "nope", CallLogEnrichment{}), ErrCallLogNotFound)
}

func TestMemoryStore_ListRecoverable(t *testing.T) {
	s := NewMemoryStore()
	seedCampaign(t, s, Campaign{ID: "a", Status: StatusInProgress, HasRun: true})
	seedCampaign(t, s, Campaign{ID: "b", Status: StatusPaused, HasRun: true})
	seedCampaign(t, s, Campaign{ID: "c", Status: StatusInProgress})
	seedCampaign(t, s, Campaign{ID: "d", Status: StatusCompleted, HasRun: true})

	got, err := s.ListRecoverable(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "b", got[1].ID)
}

func TestProgress(t *testing.T) {
	assert.Equal(t, 0, Progress(0, 0))
	assert.Equal(t, 60, Progress(3, 5))
	assert.Equal(t, 33, Progress(1, 3))
	assert.Equal(t, 67, Progress(2, 3))
	assert.Equal(t, 100, Progress(7, 5))
}

func TestParseStatus(t *testing.T) {
	st, err := ParseStatus("In Progress")
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, st)

	_, err = ParseStatus("in progress")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}
