package campaigns

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store for tests and local development.
// It enforces owner scoping on campaign reads like the Postgres store.
type MemoryStore struct {
	mu sync.Mutex

	campaigns map[string]Campaign
	contacts  map[string]Contact
	logs      map[string]CallLog
	logByCall map[string]string

	clock func() time.Time
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		campaigns: map[string]Campaign{},
		contacts:  map[string]Contact{},
		logs:      map[string]CallLog{},
		logByCall: map[string]string{},
		clock:     time.Now,
	}
}

func (s *MemoryStore) GetCampaign(ctx context.Context, ownerID, id string) (Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.campaigns[id]
	if !ok || c.OwnerID != ownerID {
		return Campaign{}, ErrNotFound
	}
	return c, nil
}

func (s *MemoryStore) GetStatus(ctx context.Context, ownerID, id string) (Status, error) {
	c, err := s.GetCampaign(ctx, ownerID, id)
	if err != nil {
		return "", err
	}
	return c.Status, nil
}

func (s *MemoryStore) MarkStarted(ctx context.Context, ownerID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.campaigns[id]
	if !ok || c.OwnerID != ownerID {
		return ErrNotFound
	}
	if c.HasRun {
		return ErrAlreadyRun
	}
	c.HasRun = true
	c.Status = StatusInProgress
	c.UpdatedAt = s.clock().UTC()
	s.campaigns[id] = c
	return nil
}

func (s *MemoryStore) SetStatus(ctx context.Context, ownerID, id string, status Status) (Campaign, error) {
	if !status.Valid() {
		return Campaign{}, ErrInvalidArgument
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.campaigns[id]
	if !ok || c.OwnerID != ownerID {
		return Campaign{}, ErrNotFound
	}
	if c.Status == StatusCompleted && status != StatusCompleted {
		return Campaign{}, ErrCompleted
	}
	c.Status = status
	c.UpdatedAt = s.clock().UTC()
	s.campaigns[id] = c
	return c, nil
}

func (s *MemoryStore) UpdateRunState(ctx context.Context, ownerID, id string, st RunState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.campaigns[id]
	if !ok || c.OwnerID != ownerID {
		return ErrNotFound
	}
	if st.Status != nil {
		c.Status = *st.Status
	}
	if st.Progress != nil {
		c.Progress = *st.Progress
	}
	c.UpdatedAt = s.clock().UTC()
	s.campaigns[id] = c
	return nil
}

func (s *MemoryStore) ListRecoverable(ctx context.Context) ([]Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Campaign, 0)
	for _, c := range s.campaigns {
		if c.HasRun && (c.Status == StatusInProgress || c.Status == StatusPaused) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) CreateCampaign(ctx context.Context, c Campaign, contacts []Contact) error {
	if c.OwnerID == "" {
		return ErrInvalidArgument
	}
	now := s.clock().UTC()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Status == "" {
		c.Status = StatusScheduled
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.campaigns[c.ID]; exists {
		return ErrInvalidArgument
	}
	s.campaigns[c.ID] = c
	for i, ct := range contacts {
		if ct.ID == "" {
			ct.ID = uuid.NewString()
		}
		ct.CampaignID = c.ID
		if ct.CreatedAt.IsZero() {
			// Keep insertion order stable for contacts created in one call.
			ct.CreatedAt = now.Add(time.Duration(i) * time.Microsecond)
		}
		ct.DynamicVariables = cloneVars(ct.DynamicVariables)
		s.contacts[ct.ID] = ct
	}
	return nil
}

func (s *MemoryStore) ListContacts(ctx context.Context, campaignID string) ([]Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Contact, 0)
	for _, ct := range s.contacts {
		if ct.CampaignID == campaignID {
			ct.DynamicVariables = cloneVars(ct.DynamicVariables)
			out = append(out, ct)
		}
	}
	SortContacts(out)
	return out, nil
}

func (s *MemoryStore) GetContact(ctx context.Context, contactID string) (Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ct, ok := s.contacts[contactID]
	if !ok {
		return Contact{}, ErrContactNotFound
	}
	ct.DynamicVariables = cloneVars(ct.DynamicVariables)
	return ct, nil
}

func (s *MemoryStore) SetContactCallID(ctx context.Context, contactID, callID string) error {
	if callID == "" {
		return ErrInvalidArgument
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ct, ok := s.contacts[contactID]
	if !ok {
		return ErrContactNotFound
	}
	if ct.CallID != "" {
		if ct.CallID == callID {
			return nil
		}
		return ErrContactAlreadyCall
	}
	ct.CallID = callID
	s.contacts[contactID] = ct
	return nil
}

func (s *MemoryStore) InsertCallLog(ctx context.Context, l CallLog) error {
	if l.CallID == "" || l.CampaignID == "" {
		return ErrInvalidArgument
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.logByCall[l.CallID]; dup {
		return nil
	}
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = s.clock().UTC()
	}
	s.logs[l.ID] = l
	s.logByCall[l.CallID] = l.ID
	return nil
}

func (s *MemoryStore) ListCallLogs(ctx context.Context, campaignID string) ([]CallLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]CallLog, 0)
	for _, l := range s.logs {
		if l.CampaignID == campaignID {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) UpdateCallLogDetails(ctx context.Context, logID string, d CallLogEnrichment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.logs[logID]
	if !ok {
		return ErrCallLogNotFound
	}
	applyEnrichment(&l, d)
	s.logs[logID] = l
	return nil
}

// SortContacts orders contacts FIFO by created time, then id.
func SortContacts(cs []Contact) {
	sort.SliceStable(cs, func(i, j int) bool {
		if !cs[i].CreatedAt.Equal(cs[j].CreatedAt) {
			return cs[i].CreatedAt.Before(cs[j].CreatedAt)
		}
		return cs[i].ID < cs[j].ID
	})
}

func applyEnrichment(l *CallLog, d CallLogEnrichment) {
	l.DisconnectionReason = d.DisconnectionReason
	l.Transcript = d.Transcript
	l.Summary = d.Summary
	l.RecordingURL = d.RecordingURL
	l.StartTime = d.StartTime
	l.EndTime = d.EndTime
	l.DurationSeconds = d.DurationSeconds
	l.UserSentiment = d.UserSentiment
	l.Direction = d.Direction
	at := d.AnalyzedAt
	l.AnalyzedAt = &at
}

func cloneVars(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
