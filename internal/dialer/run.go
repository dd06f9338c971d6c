package dialer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"outbound-dialer/internal/audit"
	"outbound-dialer/internal/campaigns"
	"outbound-dialer/internal/config"
	"outbound-dialer/internal/credits"
	"outbound-dialer/internal/jobs"
	"outbound-dialer/internal/telephony"
	"outbound-dialer/pkg/logger"
	"outbound-dialer/pkg/utils"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

var errLeaseLost = errors.New("run lease lost")

// run is the state of one detached campaign run.
type run struct {
	o      *Orchestrator
	req    jobs.RunRequest
	camp   campaigns.Campaign
	client telephony.Client

	leaseToken string

	total  int
	called atomic.Int64

	// creditMu guards pending and serializes the balance check against settlement.
	// creditFreed is signalled whenever a reservation is settled or handed back.
	creditMu    sync.Mutex
	creditFreed *sync.Cond
	pending     int64

	progressMu sync.Mutex
}

// Run dials every eligible contact of a started campaign, batch by batch.
//
// It returns nil when the campaign completes, pauses for credits, or is owned
// by another run; ctx.Err() on shutdown; and an error when persistence fails.
// No error path changes the campaign status.
func (o *Orchestrator) Run(ctx context.Context, req jobs.RunRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	ctx = logger.ForCampaign(ctx, req.AccountID, req.CampaignID)
	log := logger.From(ctx)

	r := &run{o: o, req: req}
	r.creditFreed = sync.NewCond(&r.creditMu)
	if o.leaser != nil {
		r.leaseToken = uuid.NewString()
		ok, err := o.leaser.Acquire(ctx, runLeaseKey(req.CampaignID), r.leaseToken, o.tuning.Current().LeaseTTL)
		if err != nil {
			return fmt.Errorf("acquire run lease: %w", err)
		}
		if !ok {
			log.Info("campaign run owned by another worker, skipping")
			return nil
		}
		defer func() {
			rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
			defer cancel()
			if err := o.leaser.Release(rctx, runLeaseKey(req.CampaignID), r.leaseToken); err != nil {
				log.Warn("release run lease failed", "err", err)
			}
		}()
	}

	camp, err := o.store.GetCampaign(ctx, req.AccountID, req.CampaignID)
	if err != nil {
		return r.abort(ctx, "load campaign", err)
	}
	r.camp = camp

	apiKey, err := o.credits.TelephonyAPIKey(ctx, req.AccountID)
	if err != nil {
		return r.abort(ctx, "load api key", err)
	}
	r.client = o.clients(apiKey)

	contacts, err := o.store.ListContacts(ctx, req.CampaignID)
	if err != nil {
		return r.abort(ctx, "load contacts", err)
	}
	// Contacts called before this run count toward progress, so a resumed run
	// continues from where the last one stopped.
	queue := eligibleContacts(contacts)
	r.total = len(contacts)
	r.called.Store(int64(len(contacts) - len(queue)))
	log.Info("campaign run loaded", "queue", len(queue), "total", r.total, "resume", req.Resume)

	return r.loop(ctx, queue)
}

func (r *run) loop(ctx context.Context, queue []campaigns.Contact) error {
	log := logger.From(ctx)
	batchNo := 0

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		t := r.o.tuning.Current()

		if err := r.renewLease(ctx, t); err != nil {
			if errors.Is(err, errLeaseLost) {
				log.Warn("run lease taken over, stopping")
				return nil
			}
			log.Warn("renew run lease failed", "err", err)
		}

		status, err := r.o.store.GetStatus(ctx, r.req.AccountID, r.req.CampaignID)
		if err != nil {
			return r.abort(ctx, "read status", err)
		}
		switch status {
		case campaigns.StatusPaused:
			if err := r.waitWhilePaused(ctx); err != nil {
				if errors.Is(err, errLeaseLost) {
					log.Warn("run lease taken over while paused, stopping")
					return nil
				}
				return err
			}
			continue
		case campaigns.StatusCompleted:
			log.Info("campaign completed by operator, stopping run")
			return nil
		}

		cs, serr := r.client.ConcurrencyStatus(ctx)
		if serr != nil {
			log.Warn("concurrency status unavailable, using fallback", "fallback", t.FallbackSlots, "err", serr)
		}
		slots := Governor{Fallback: t.FallbackSlots}.AvailableSlots(cs, serr)
		if slots <= 0 {
			log.Debug("no free provider slots, waiting", "wait", t.SlotWait.String())
			if err := utils.Sleep(ctx, t.SlotWait); err != nil {
				return err
			}
			continue
		}

		n := min(slots, len(queue))
		batch := queue[:n]
		queue = queue[n:]
		batchNo++

		insufficient, fatal := r.dispatch(logger.With(ctx, log.With("batch", batchNo)), batch, t.LocalConcurrency)
		if insufficient {
			return r.pauseForCredits(ctx)
		}
		if fatal != nil {
			return r.abort(ctx, "dispatch batch", fatal)
		}

		if len(queue) > 0 {
			if err := utils.Sleep(ctx, t.BatchDelay); err != nil {
				return err
			}
		}
	}

	if err := r.o.complete(context.WithoutCancel(ctx), r.req.AccountID, r.req.CampaignID); err != nil {
		return r.abort(ctx, "complete", err)
	}
	return nil
}

// dispatch runs one batch and waits for every attempt to settle.
func (r *run) dispatch(ctx context.Context, batch []campaigns.Contact, limit int) (insufficient bool, fatal error) {
	var (
		g  errgroup.Group
		mu sync.Mutex
	)
	g.SetLimit(limit)
	for _, ct := range batch {
		g.Go(func() error {
			err := r.attempt(ctx, ct)
			if err == nil {
				return nil
			}
			mu.Lock()
			defer mu.Unlock()
			if errors.Is(err, credits.ErrInsufficientCredits) {
				insufficient = true
			} else if fatal == nil {
				fatal = err
			}
			return nil
		})
	}
	_ = g.Wait()
	return insufficient, fatal
}

// attempt dials one contact at most once.
// It returns nil for a placed, skipped or failed call, credits.ErrInsufficientCredits
// when the account ran dry, and any other error for a persistence failure.
func (r *run) attempt(ctx context.Context, ct campaigns.Contact) error {
	log := logger.From(ctx).With("contact_id", ct.ID)

	if r.o.limiter != nil {
		release, err := r.o.limiter.Acquire(ctx, r.req.AccountID)
		switch {
		case err != nil && ctx.Err() != nil:
			return nil
		case err != nil:
			log.Warn("account inflight cap unavailable, dialing uncapped", "err", err)
		default:
			defer release()
		}
	}

	if err := r.reserve(ctx); err != nil {
		return err
	}
	reserved := true
	defer func() {
		if reserved {
			r.unreserve()
		}
	}()

	cur, err := r.o.store.GetContact(ctx, ct.ID)
	if err != nil {
		return fmt.Errorf("read contact %s: %w", ct.ID, err)
	}
	if !cur.Eligible() {
		log.Debug("contact already called, skipping", "call_id", cur.CallID)
		return nil
	}

	h, err := r.client.PlaceCall(ctx, telephony.PlaceCallRequest{
		FromNumber:  r.camp.FromNumber(),
		ToNumber:    cur.PhoneNumber,
		AgentID:     r.camp.AgentID,
		DisplayName: cur.FirstName,
		Variables:   cur.DynamicVariables,
	})
	if err != nil {
		log.Warn("call placement failed", "to", cur.PhoneNumber, "err", err)
		return nil
	}

	// The call is live: finish bookkeeping even if shutdown has begun.
	wctx := context.WithoutCancel(ctx)
	log = log.With("call_id", h.CallID)

	decErr := r.settle(wctx, h.CallID)
	reserved = false
	if decErr != nil && !errors.Is(decErr, credits.ErrInsufficientCredits) {
		if err := r.o.store.SetContactCallID(wctx, cur.ID, h.CallID); err != nil {
			log.Error("record call id failed", "err", err)
		}
		return fmt.Errorf("decrement credit: %w", decErr)
	}

	if err := r.o.store.SetContactCallID(wctx, cur.ID, h.CallID); err != nil {
		if !errors.Is(err, campaigns.ErrContactAlreadyCall) {
			return fmt.Errorf("record call id: %w", err)
		}
		log.Error("contact was dialed by another run", "err", err)
	}

	if err := r.o.store.InsertCallLog(wctx, campaigns.CallLog{
		CampaignID:  r.req.CampaignID,
		ContactID:   cur.ID,
		PhoneNumber: cur.PhoneNumber,
		FirstName:   cur.FirstName,
		CallID:      h.CallID,
	}); err != nil {
		log.Error("insert call log failed", "err", err)
	}

	r.called.Add(1)
	r.writeProgress(wctx)

	if decErr != nil {
		log.Warn("credits exhausted by a concurrent debit after the call was placed")
		return decErr
	}
	log.Info("call placed")
	return nil
}

// reserve claims one credit for an in-flight attempt. It fails only when the
// balance is spent; while every remaining credit is claimed by attempts still
// in flight it waits, since a failed placement hands its credit back.
func (r *run) reserve(ctx context.Context) error {
	r.creditMu.Lock()
	defer r.creditMu.Unlock()
	for {
		balance, err := r.o.balance(ctx, r.req.AccountID)
		if err != nil {
			return fmt.Errorf("read balance: %w", err)
		}
		if balance <= 0 {
			return credits.ErrInsufficientCredits
		}
		if balance-r.pending > 0 {
			r.pending++
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		// pending > 0 here, so an unreserve or settle will wake us.
		r.creditFreed.Wait()
	}
}

func (r *run) unreserve() {
	r.creditMu.Lock()
	r.pending--
	r.creditFreed.Broadcast()
	r.creditMu.Unlock()
}

// settle turns a reservation into a ledger debit for callID.
func (r *run) settle(ctx context.Context, callID string) error {
	r.creditMu.Lock()
	defer r.creditMu.Unlock()
	defer func() {
		r.pending--
		r.creditFreed.Broadcast()
	}()
	_, err := r.o.credits.Decrement(ctx, r.req.AccountID, credits.CallIdempotencyKey(callID), callID)
	return err
}

func (r *run) progress() int {
	return campaigns.Progress(int(r.called.Load()), r.total)
}

// writeProgress persists the current progress; failures are logged only.
func (r *run) writeProgress(ctx context.Context) {
	r.progressMu.Lock()
	defer r.progressMu.Unlock()
	p := r.progress()
	if err := r.o.store.UpdateRunState(ctx, r.req.AccountID, r.req.CampaignID, campaigns.RunState{Progress: &p}); err != nil {
		logger.From(ctx).Error("write progress failed", "progress", p, "err", err)
	}
}

// waitWhilePaused polls until the status leaves Paused, keeping the run lease alive.
func (r *run) waitWhilePaused(ctx context.Context) error {
	log := logger.From(ctx)
	log.Info("campaign paused, waiting")
	for {
		t := r.o.tuning.Current()
		if err := utils.Sleep(ctx, t.PausePoll); err != nil {
			return err
		}
		if err := r.renewLease(ctx, t); err != nil {
			if errors.Is(err, errLeaseLost) {
				return err
			}
			log.Warn("renew run lease failed", "err", err)
		}
		status, err := r.o.store.GetStatus(ctx, r.req.AccountID, r.req.CampaignID)
		if err != nil {
			return r.abort(ctx, "poll paused status", err)
		}
		if status != campaigns.StatusPaused {
			log.Info("campaign resumed", "status", string(status))
			return nil
		}
	}
}

func (r *run) pauseForCredits(ctx context.Context) error {
	wctx := context.WithoutCancel(ctx)
	status, p := campaigns.StatusPaused, r.progress()
	if err := r.o.store.UpdateRunState(wctx, r.req.AccountID, r.req.CampaignID, campaigns.RunState{Status: &status, Progress: &p}); err != nil {
		return r.abort(ctx, "pause for credits", err)
	}
	logger.From(ctx).Warn("campaign paused: insufficient credits", "progress", p)
	r.o.audit.Record(wctx, audit.EventCampaignPausedCredits, r.req.AccountID, r.req.CampaignID,
		fmt.Sprintf("paused at %d%% for insufficient credits", p))
	return nil
}

// abort ends the run on a persistence failure, leaving the status unchanged for recovery.
func (r *run) abort(ctx context.Context, op string, err error) error {
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return err
	}
	logger.From(ctx).Error("campaign run aborted", "op", op, "err", err)
	r.o.audit.Record(context.WithoutCancel(ctx), audit.EventCampaignAborted, r.req.AccountID, r.req.CampaignID,
		fmt.Sprintf("%s: %v", op, err))
	return fmt.Errorf("%s: %w", op, err)
}

func (r *run) renewLease(ctx context.Context, t config.DialerTuning) error {
	if r.o.leaser == nil {
		return nil
	}
	ok, err := r.o.leaser.Acquire(ctx, runLeaseKey(r.req.CampaignID), r.leaseToken, t.LeaseTTL)
	if err != nil {
		return err
	}
	if !ok {
		return errLeaseLost
	}
	return nil
}
