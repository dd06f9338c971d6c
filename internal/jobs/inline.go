package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"outbound-dialer/pkg/logger"
)

// InlineLauncher runs each campaign in a supervised goroutine of this process.
//
// Rules:
// - At most one active run per campaign (ErrAlreadyRunning).
// - A panicking run is recovered and logged; it never takes the process down.
// - Runs use the launcher's lifetime context, not the caller's request context.
type InlineLauncher struct {
	runner Runner
	log    *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	active  map[string]struct{}
	closing bool
}

func NewInlineLauncher(parent context.Context, runner Runner, log *slog.Logger) *InlineLauncher {
	if log == nil {
		log = slog.Default()
	}
	ctx, cancel := context.WithCancel(parent)
	return &InlineLauncher{
		runner: runner,
		log:    log,
		ctx:    ctx,
		cancel: cancel,
		active: map[string]struct{}{},
	}
}

func (l *InlineLauncher) Launch(_ context.Context, req RunRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	l.mu.Lock()
	if l.closing {
		l.mu.Unlock()
		return ErrShuttingDown
	}
	if _, busy := l.active[req.CampaignID]; busy {
		l.mu.Unlock()
		return ErrAlreadyRunning
	}
	l.active[req.CampaignID] = struct{}{}
	l.wg.Add(1)
	l.mu.Unlock()

	go l.supervise(req)
	return nil
}

func (l *InlineLauncher) supervise(req RunRequest) {
	log := l.log.With("campaign_id", req.CampaignID, "account_id", req.AccountID)
	defer l.wg.Done()
	defer func() {
		l.mu.Lock()
		delete(l.active, req.CampaignID)
		l.mu.Unlock()
	}()
	defer func() {
		if p := recover(); p != nil {
			log.Error("campaign run panicked", "panic", fmt.Sprint(p), "stack", string(debug.Stack()))
		}
	}()

	ctx := logger.With(l.ctx, log)
	log.Info("campaign run started", "resume", req.Resume)
	if err := l.runner.Run(ctx, req); err != nil {
		log.Error("campaign run ended with error", "err", err)
		return
	}
	log.Info("campaign run finished")
}

// Active reports whether a run for campaignID is in flight here.
func (l *InlineLauncher) Active(campaignID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.active[campaignID]
	return ok
}

// Wait blocks until every launched run has returned on its own.
func (l *InlineLauncher) Wait() { l.wg.Wait() }

// Shutdown cancels every run and waits until they return or ctx is done.
// Cancelled runs leave their campaign status as-is for recovery.
func (l *InlineLauncher) Shutdown(ctx context.Context) error {
	l.mu.Lock()
	l.closing = true
	l.mu.Unlock()
	l.cancel()

	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
