package campaigns

import (
	"context"
	"fmt"

	"outbound-dialer/internal/audit"
	"outbound-dialer/pkg/logger"

	"github.com/google/uuid"
)

// Service holds the operator-facing campaign operations that are not part of a run.
type Service struct {
	store Store
	audit *audit.Service
}

func NewService(store Store, auditSvc *audit.Service) *Service {
	return &Service{store: store, audit: auditSvc}
}

func (s *Service) Get(ctx context.Context, accountID, campaignID string) (Campaign, error) {
	if accountID == "" || campaignID == "" {
		return Campaign{}, ErrInvalidArgument
	}
	return s.store.GetCampaign(ctx, accountID, campaignID)
}

// UpdateStatus sets an operator-chosen status.
//
// Rules:
// - A Completed campaign never leaves Completed (ErrCompleted).
// - In Progress is only reachable for a campaign that has been started (ErrNotStarted).
func (s *Service) UpdateStatus(ctx context.Context, accountID, campaignID string, status Status) (Campaign, error) {
	if !status.Valid() {
		return Campaign{}, fmt.Errorf("%w: unknown status %q", ErrInvalidArgument, status)
	}
	cur, err := s.store.GetCampaign(ctx, accountID, campaignID)
	if err != nil {
		return Campaign{}, err
	}
	if cur.Status == StatusCompleted && status != StatusCompleted {
		return Campaign{}, ErrCompleted
	}
	if status == StatusInProgress && !cur.HasRun {
		return Campaign{}, ErrNotStarted
	}

	out, err := s.store.SetStatus(ctx, accountID, campaignID, status)
	if err != nil {
		return Campaign{}, err
	}
	s.audit.Record(ctx, audit.EventCampaignStatusChanged, accountID, campaignID,
		fmt.Sprintf("%s -> %s", cur.Status, status))
	return out, nil
}

// CreateRedial copies every unreached contact of a finished campaign into a new Scheduled campaign.
func (s *Service) CreateRedial(ctx context.Context, accountID, campaignID string) (Campaign, []Contact, error) {
	src, err := s.store.GetCampaign(ctx, accountID, campaignID)
	if err != nil {
		return Campaign{}, nil, err
	}
	if !src.HasRun || src.Status == StatusInProgress {
		return Campaign{}, nil, ErrNotFinished
	}

	contacts, err := s.store.ListContacts(ctx, campaignID)
	if err != nil {
		return Campaign{}, nil, err
	}
	logs, err := s.store.ListCallLogs(ctx, campaignID)
	if err != nil {
		return Campaign{}, nil, err
	}
	candidates := RedialCandidates(contacts, logs)
	if len(candidates) == 0 {
		return Campaign{}, nil, ErrNothingToRedial
	}

	c, fresh := redialFrom(src, candidates)
	c.ID = uuid.NewString()
	for i := range fresh {
		fresh[i].ID = uuid.NewString()
		fresh[i].CampaignID = c.ID
	}
	if err := s.store.CreateCampaign(ctx, c, fresh); err != nil {
		return Campaign{}, nil, err
	}

	created, err := s.store.GetCampaign(ctx, accountID, c.ID)
	if err != nil {
		return Campaign{}, nil, err
	}
	stored, err := s.store.ListContacts(ctx, c.ID)
	if err != nil {
		return Campaign{}, nil, err
	}

	logger.From(ctx).Info("redial campaign created",
		"source_campaign_id", campaignID, "campaign_id", c.ID, "contacts", len(stored))
	s.audit.Record(ctx, audit.EventRedialCreated, accountID, c.ID,
		fmt.Sprintf("redial of %s with %d contacts", campaignID, len(stored)))
	return created, stored, nil
}
