package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"outbound-dialer/internal/audit"
	"outbound-dialer/internal/campaigns"
	"outbound-dialer/internal/config"
	"outbound-dialer/internal/credits"
	"outbound-dialer/internal/telephony"
	"outbound-dialer/pkg/logger"

	"golang.org/x/sync/errgroup"
)

var ErrNoCredentials = errors.New("no telephony api key configured for account")

// Store is the campaign persistence analysis reads and writes.
type Store interface {
	GetCampaign(ctx context.Context, ownerID, id string) (campaigns.Campaign, error)
	ListCallLogs(ctx context.Context, campaignID string) ([]campaigns.CallLog, error)
	UpdateCallLogDetails(ctx context.Context, logID string, d campaigns.CallLogEnrichment) error
}

// KeySource resolves an account's telephony API key.
type KeySource interface {
	TelephonyAPIKey(ctx context.Context, accountID string) (string, error)
}

// Service pulls post-call details from the provider onto stored call logs.
type Service struct {
	store   Store
	keys    KeySource
	clients telephony.ClientFactory
	tuning  config.TuningSource
	audit   *audit.Service
	now     func() time.Time
}

func NewService(store Store, keys KeySource, clients telephony.ClientFactory, tuning config.TuningSource, auditSvc *audit.Service) *Service {
	if tuning == nil {
		tuning = config.StaticTuning(config.DefaultTuning())
	}
	return &Service{store: store, keys: keys, clients: clients, tuning: tuning, audit: auditSvc, now: time.Now}
}

// Analyze enriches every call log of a campaign and returns the refreshed logs.
// A log the provider cannot return is skipped; the rest still succeed.
func (s *Service) Analyze(ctx context.Context, accountID, campaignID string) ([]campaigns.CallLog, error) {
	ctx = logger.ForCampaign(ctx, accountID, campaignID)
	log := logger.From(ctx)

	if _, err := s.store.GetCampaign(ctx, accountID, campaignID); err != nil {
		return nil, err
	}
	apiKey, err := s.keys.TelephonyAPIKey(ctx, accountID)
	if err != nil {
		if errors.Is(err, credits.ErrNoAPIKey) {
			return nil, ErrNoCredentials
		}
		return nil, fmt.Errorf("load api key: %w", err)
	}
	client := s.clients(apiKey)

	logs, err := s.store.ListCallLogs(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("list call logs: %w", err)
	}

	var (
		g       errgroup.Group
		updated atomic.Int32
	)
	g.SetLimit(s.tuning.Current().AnalyzeConcurrency)
	for _, l := range logs {
		if l.CallID == "" {
			continue
		}
		g.Go(func() error {
			d, err := client.GetCall(ctx, l.CallID)
			if err != nil {
				log.Warn("fetch call details failed", "call_id", l.CallID, "err", err)
				return nil
			}
			if err := s.store.UpdateCallLogDetails(ctx, l.ID, enrichment(d, s.now())); err != nil {
				log.Error("update call log failed", "call_id", l.CallID, "err", err)
				return nil
			}
			updated.Add(1)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out, err := s.store.ListCallLogs(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("list call logs: %w", err)
	}
	log.Info("call logs analyzed", "logs", len(logs), "updated", updated.Load())
	s.audit.Record(ctx, audit.EventCallLogsAnalyzed, accountID, campaignID,
		fmt.Sprintf("%d of %d call logs updated", updated.Load(), len(logs)))
	return out, nil
}

func enrichment(d telephony.CallDetails, now time.Time) campaigns.CallLogEnrichment {
	e := campaigns.CallLogEnrichment{
		DisconnectionReason: d.DisconnectionReason,
		Transcript:          d.Transcript,
		Summary:             d.Summary,
		RecordingURL:        d.RecordingURL,
		DurationSeconds:     d.DurationSeconds,
		UserSentiment:       d.UserSentiment,
		Direction:           d.Direction,
		AnalyzedAt:          now.UTC(),
	}
	if !d.StartedAt.IsZero() {
		t := d.StartedAt
		e.StartTime = &t
	}
	if !d.EndedAt.IsZero() {
		t := d.EndedAt
		e.EndTime = &t
	}
	return e
}
