package dialer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"outbound-dialer/internal/audit"
	"outbound-dialer/internal/campaigns"
	"outbound-dialer/internal/config"
	"outbound-dialer/internal/credits"
	"outbound-dialer/internal/jobs"
	"outbound-dialer/internal/telephony"
	"outbound-dialer/pkg/logger"
)

// Store is the campaign persistence the dialer needs.
type Store interface {
	GetCampaign(ctx context.Context, ownerID, id string) (campaigns.Campaign, error)
	GetStatus(ctx context.Context, ownerID, id string) (campaigns.Status, error)
	MarkStarted(ctx context.Context, ownerID, id string) error
	UpdateRunState(ctx context.Context, ownerID, id string, st campaigns.RunState) error
	ListRecoverable(ctx context.Context) ([]campaigns.Campaign, error)

	ListContacts(ctx context.Context, campaignID string) ([]campaigns.Contact, error)
	GetContact(ctx context.Context, contactID string) (campaigns.Contact, error)
	SetContactCallID(ctx context.Context, contactID, callID string) error
	InsertCallLog(ctx context.Context, l campaigns.CallLog) error
}

// Options wires an Orchestrator. Leaser, Limiter, Audit and Launcher are optional.
type Options struct {
	Store    Store
	Credits  credits.Ledger
	Clients  telephony.ClientFactory
	Tuning   config.TuningSource
	Launcher jobs.Launcher

	Leaser  Leaser
	Limiter InflightLimiter
	Audit   *audit.Service

	// PurchaseURLTemplate builds the link returned with a credit shortfall.
	PurchaseURLTemplate string
	Logger              *slog.Logger
}

// Orchestrator validates campaign starts and drives detached runs.
type Orchestrator struct {
	store    Store
	credits  credits.Ledger
	clients  telephony.ClientFactory
	tuning   config.TuningSource
	launcher jobs.Launcher

	leaser  Leaser
	limiter InflightLimiter
	audit   *audit.Service

	purchaseURL string
	log         *slog.Logger
}

var _ jobs.Runner = (*Orchestrator)(nil)

func New(opts Options) (*Orchestrator, error) {
	if opts.Store == nil || opts.Credits == nil || opts.Clients == nil {
		return nil, errors.New("dialer: store, credits and client factory are required")
	}
	if opts.Tuning == nil {
		opts.Tuning = config.StaticTuning(config.DefaultTuning())
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Orchestrator{
		store:       opts.Store,
		credits:     opts.Credits,
		clients:     opts.Clients,
		tuning:      opts.Tuning,
		launcher:    opts.Launcher,
		leaser:      opts.Leaser,
		limiter:     opts.Limiter,
		audit:       opts.Audit,
		purchaseURL: opts.PurchaseURLTemplate,
		log:         opts.Logger,
	}, nil
}

// UseLauncher sets the launcher after construction, for launchers that run this orchestrator.
func (o *Orchestrator) UseLauncher(l jobs.Launcher) { o.launcher = l }

// StartResult acknowledges an accepted start.
type StartResult struct {
	CampaignID       string `json:"campaignId"`
	EligibleContacts int    `json:"eligibleContacts"`
}

// Start checks preconditions, marks the campaign started, and hands off a run.
//
// Precondition order: campaign exists, credentials exist, not run before,
// eligible contacts exist, balance covers every eligible contact.
func (o *Orchestrator) Start(ctx context.Context, accountID, campaignID string) (StartResult, error) {
	ctx = logger.ForCampaign(ctx, accountID, campaignID)
	log := logger.From(ctx)

	c, err := o.store.GetCampaign(ctx, accountID, campaignID)
	if err != nil {
		if errors.Is(err, campaigns.ErrNotFound) {
			return StartResult{}, ErrCampaignNotFound
		}
		return StartResult{}, fmt.Errorf("load campaign: %w", err)
	}
	if _, err := o.credits.TelephonyAPIKey(ctx, accountID); err != nil {
		if errors.Is(err, credits.ErrNoAPIKey) {
			return StartResult{}, ErrNoCredentials
		}
		return StartResult{}, fmt.Errorf("load api key: %w", err)
	}
	if c.HasRun {
		return StartResult{}, ErrAlreadyRun
	}

	contacts, err := o.store.ListContacts(ctx, campaignID)
	if err != nil {
		return StartResult{}, fmt.Errorf("load contacts: %w", err)
	}
	eligible := len(eligibleContacts(contacts))
	if eligible == 0 {
		return StartResult{}, ErrNoEligibleContacts
	}

	balance, err := o.balance(ctx, accountID)
	if err != nil {
		return StartResult{}, fmt.Errorf("load balance: %w", err)
	}
	if balance < int64(eligible) {
		return StartResult{}, &CreditShortfallError{
			Balance:      balance,
			Required:     int64(eligible),
			PurchaseLink: credits.PurchaseLink(o.purchaseURL, accountID),
		}
	}

	if err := o.store.MarkStarted(ctx, accountID, campaignID); err != nil {
		if errors.Is(err, campaigns.ErrAlreadyRun) {
			return StartResult{}, ErrAlreadyRun
		}
		if errors.Is(err, campaigns.ErrNotFound) {
			return StartResult{}, ErrCampaignNotFound
		}
		return StartResult{}, fmt.Errorf("mark started: %w", err)
	}
	o.audit.Record(ctx, audit.EventCampaignStarted, accountID, campaignID,
		fmt.Sprintf("started with %d eligible contacts", eligible))

	if o.launcher == nil {
		return StartResult{}, errors.New("dialer: launcher not configured")
	}
	if err := o.launcher.Launch(ctx, jobs.RunRequest{CampaignID: campaignID, AccountID: accountID}); err != nil {
		// Status stays In Progress; recovery re-attaches a run.
		log.Error("launch campaign run failed", "err", err)
		return StartResult{}, fmt.Errorf("launch run: %w", err)
	}

	log.Info("campaign started", "eligible_contacts", eligible, "balance", balance)
	return StartResult{CampaignID: campaignID, EligibleContacts: eligible}, nil
}

// Resume ensures a run is attached to a started campaign. An active run is left alone.
func (o *Orchestrator) Resume(ctx context.Context, accountID, campaignID string) error {
	if o.launcher == nil {
		return errors.New("dialer: launcher not configured")
	}
	err := o.launcher.Launch(ctx, jobs.RunRequest{CampaignID: campaignID, AccountID: accountID, Resume: true})
	if errors.Is(err, jobs.ErrAlreadyRunning) {
		return nil
	}
	return err
}

// Recover re-attaches runs to started campaigns left In Progress and completes
// started campaigns, In Progress or Paused, with nothing left to dial.
// Paused campaigns get a run again through Resume when their status changes.
// It returns the number of runs launched.
func (o *Orchestrator) Recover(ctx context.Context) (int, error) {
	list, err := o.store.ListRecoverable(ctx)
	if err != nil {
		return 0, fmt.Errorf("list recoverable campaigns: %w", err)
	}

	launched := 0
	var errs []error
	for _, c := range list {
		cctx := logger.ForCampaign(ctx, c.OwnerID, c.ID)
		log := logger.From(cctx)

		contacts, err := o.store.ListContacts(cctx, c.ID)
		if err != nil {
			errs = append(errs, fmt.Errorf("campaign %s: %w", c.ID, err))
			continue
		}
		if len(eligibleContacts(contacts)) == 0 {
			if err := o.complete(cctx, c.OwnerID, c.ID); err != nil {
				errs = append(errs, fmt.Errorf("campaign %s: %w", c.ID, err))
			}
			continue
		}
		if c.Status != campaigns.StatusInProgress {
			log.Debug("paused campaign left for resume", "status", string(c.Status))
			continue
		}
		if o.launcher == nil {
			return launched, errors.New("dialer: launcher not configured")
		}
		err = o.launcher.Launch(cctx, jobs.RunRequest{CampaignID: c.ID, AccountID: c.OwnerID, Resume: true})
		if errors.Is(err, jobs.ErrAlreadyRunning) {
			continue
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("campaign %s: %w", c.ID, err))
			continue
		}
		launched++
		log.Info("campaign run recovered", "status", string(c.Status))
		o.audit.Record(cctx, audit.EventCampaignResumed, c.OwnerID, c.ID, "run re-attached after restart")
	}
	return launched, errors.Join(errs...)
}

func (o *Orchestrator) balance(ctx context.Context, accountID string) (int64, error) {
	b, err := o.credits.Balance(ctx, accountID)
	if errors.Is(err, credits.ErrNotFound) {
		return 0, nil
	}
	return b, err
}

func (o *Orchestrator) complete(ctx context.Context, accountID, campaignID string) error {
	status, progress := campaigns.StatusCompleted, 100
	if err := o.store.UpdateRunState(ctx, accountID, campaignID, campaigns.RunState{Status: &status, Progress: &progress}); err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}
	logger.From(ctx).Info("campaign completed")
	o.audit.Record(ctx, audit.EventCampaignCompleted, accountID, campaignID, "all contacts dialed")
	return nil
}

func eligibleContacts(all []campaigns.Contact) []campaigns.Contact {
	out := make([]campaigns.Contact, 0, len(all))
	for _, c := range all {
		if c.Eligible() {
			out = append(out, c)
		}
	}
	return out
}
