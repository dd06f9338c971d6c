package audit

import (
	"context"
	"errors"
	"time"

	"outbound-dialer/internal/auth"
	"outbound-dialer/pkg/logger"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
// It is append-only: no Update/Delete methods exist.
type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service records campaign lifecycle events.
//
// Audit is internal-only. Callers use Record, which never fails the caller.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s == nil || s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.AccountID == "" || e.Type == "" {
		return ErrInvalidEvent
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	return s.repo.Append(ctx, e)
}

// Record appends a campaign event, filling actor and IP from ctx when present.
// Failures are logged and swallowed.
func (s *Service) Record(ctx context.Context, typ EventType, accountID, campaignID, message string) {
	if s == nil {
		return
	}
	e := Event{
		AccountID:  accountID,
		Type:       typ,
		CampaignID: campaignID,
		Message:    message,
		IPAddress:  ClientIPFromContext(ctx),
	}
	if uid, err := auth.UserID(ctx); err == nil {
		e.ActorUserID = uid
	}
	if role, err := auth.Role(ctx); err == nil {
		e.ActorRole = role
	}
	if err := s.Append(ctx, e); err != nil {
		logger.From(ctx).Warn("audit append failed", "type", string(typ), "campaign_id", campaignID, "err", err)
	}
}
