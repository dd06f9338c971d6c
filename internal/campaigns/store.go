package campaigns

import (
	"context"
	"errors"
)

var (
	ErrNotFound           = errors.New("campaign not found")
	ErrContactNotFound    = errors.New("contact not found")
	ErrCallLogNotFound    = errors.New("call log not found")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrAlreadyRun         = errors.New("campaign has already been run")
	ErrCompleted          = errors.New("campaign is completed")
	ErrNotStarted         = errors.New("campaign has not been started")
	ErrNotFinished        = errors.New("campaign is still in progress")
	ErrNothingToRedial    = errors.New("no contacts to redial")
	ErrContactAlreadyCall = errors.New("contact already has a call id")
)

// Store is the campaign persistence contract.
//
// Rules:
// - Campaign reads and writes are scoped by ownerID.
// - Contacts are returned in FIFO order (created_at, id).
// - InsertCallLog treats a duplicate call id as success.
type Store interface {
	GetCampaign(ctx context.Context, ownerID, id string) (Campaign, error)
	GetStatus(ctx context.Context, ownerID, id string) (Status, error)

	// MarkStarted sets status In Progress and has_run true only when has_run is false.
	MarkStarted(ctx context.Context, ownerID, id string) error
	SetStatus(ctx context.Context, ownerID, id string, status Status) (Campaign, error)
	UpdateRunState(ctx context.Context, ownerID, id string, st RunState) error
	ListRecoverable(ctx context.Context) ([]Campaign, error)

	// CreateCampaign inserts a campaign with its contacts atomically.
	CreateCampaign(ctx context.Context, c Campaign, contacts []Contact) error

	ListContacts(ctx context.Context, campaignID string) ([]Contact, error)
	GetContact(ctx context.Context, contactID string) (Contact, error)
	// SetContactCallID writes callID only when the contact has none yet.
	SetContactCallID(ctx context.Context, contactID, callID string) error

	InsertCallLog(ctx context.Context, l CallLog) error
	ListCallLogs(ctx context.Context, campaignID string) ([]CallLog, error)
	UpdateCallLogDetails(ctx context.Context, logID string, d CallLogEnrichment) error
}
