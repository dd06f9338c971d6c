package jobs

import (
	"context"
	"errors"
)

// RunRequest asks for one detached campaign run.
type RunRequest struct {
	CampaignID string `json:"campaignId"`
	AccountID  string `json:"accountId"`
	// Resume marks a run re-attached after a restart or an operator resume.
	Resume bool `json:"resume"`
}

func (r RunRequest) Validate() error {
	if r.CampaignID == "" || r.AccountID == "" {
		return ErrInvalidRequest
	}
	return nil
}

// Runner executes a run to completion. It returns when the run ends or ctx is done.
type Runner interface {
	Run(ctx context.Context, req RunRequest) error
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, req RunRequest) error

func (f RunnerFunc) Run(ctx context.Context, req RunRequest) error { return f(ctx, req) }

// Launcher hands a run off without waiting for it.
type Launcher interface {
	Launch(ctx context.Context, req RunRequest) error
}

var (
	ErrInvalidRequest = errors.New("jobs: campaign id and account id are required")
	ErrAlreadyRunning = errors.New("jobs: campaign run already active")
	ErrShuttingDown   = errors.New("jobs: launcher is shutting down")
)
