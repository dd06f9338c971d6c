package reporting

import (
	"context"
	"errors"

	"outbound-dialer/internal/campaigns"
)

var ErrInvalidRequest = errors.New("reporting: invalid request")

// Repository is the read-only view analytics needs.
//
// IMPORTANT:
// - GetCampaign must enforce owner scoping; call logs are read only after it succeeds.
type Repository interface {
	GetCampaign(ctx context.Context, ownerID, id string) (campaigns.Campaign, error)
	ListCallLogs(ctx context.Context, campaignID string) ([]campaigns.CallLog, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service { return &Service{repo: repo} }

func (s *Service) CampaignSummary(ctx context.Context, accountID, campaignID string) (CampaignSummary, error) {
	if accountID == "" || campaignID == "" {
		return CampaignSummary{}, ErrInvalidRequest
	}
	if s.repo == nil {
		return CampaignSummary{}, errors.New("reporting: repository not configured")
	}

	c, err := s.repo.GetCampaign(ctx, accountID, campaignID)
	if err != nil {
		return CampaignSummary{}, err
	}
	logs, err := s.repo.ListCallLogs(ctx, campaignID)
	if err != nil {
		return CampaignSummary{}, err
	}

	out := Summarize(logs)
	out.CampaignID = c.ID
	out.Title = c.Title
	out.Status = c.Status
	out.Progress = c.Progress
	return out, nil
}

// Summarize computes the call metrics of a set of logs.
func Summarize(logs []campaigns.CallLog) CampaignSummary {
	out := CampaignSummary{
		DisconnectionReasons: map[string]int{},
		Sentiments:           map[string]int{},
	}
	var totalDuration float64
	for _, l := range logs {
		out.TotalCalls++
		totalDuration += l.DurationSeconds
		if campaigns.IsReached(l) {
			out.HitCalls++
		}
		if l.AnalyzedAt != nil {
			out.AnalyzedCalls++
		}
		out.DisconnectionReasons[labelOrUnknown(l.DisconnectionReason)]++
		out.Sentiments[labelOrUnknown(l.UserSentiment)]++
	}
	out.UnansweredCalls = out.TotalCalls - out.HitCalls
	if out.TotalCalls > 0 {
		out.HitRate = float64(out.HitCalls) / float64(out.TotalCalls) * 100
		out.AverageDurationSeconds = totalDuration / float64(out.TotalCalls)
	}
	return out
}

func labelOrUnknown(v string) string {
	if v == "" {
		return UnknownLabel
	}
	return v
}
