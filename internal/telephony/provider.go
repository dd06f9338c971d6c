package telephony

import (
	"context"
	"errors"
	"time"
)

// Client is the provider-agnostic interface the dialer and reconciliation use.
//
// Rules:
// - No provider HTTP calls outside telephony adapters.
// - A Client is bound to one account's credentials; construct one per account.
type Client interface {
	// ConcurrencyStatus makes a single bounded attempt. Failures wrap ErrUnavailable.
	ConcurrencyStatus(ctx context.Context) (ConcurrencyStatus, error)

	// PlaceCall starts one outbound call, retrying transient failures.
	// Exhausted retries wrap ErrCallFailed.
	PlaceCall(ctx context.Context, req PlaceCallRequest) (CallHandle, error)

	// GetCall fetches post-call details for reconciliation. Single attempt.
	GetCall(ctx context.Context, callID string) (CallDetails, error)
}

// ClientFactory builds a Client for an account's API key.
type ClientFactory func(apiKey string) Client

var (
	ErrUnavailable = errors.New("telephony: concurrency status unavailable")
	ErrCallFailed  = errors.New("telephony: call placement failed")
	ErrNotFound    = errors.New("telephony: call not found")
)

// ConcurrencyStatus is the provider's live concurrency view.
type ConcurrencyStatus struct {
	CurrentConcurrency int `json:"current_concurrency"`
	ConcurrencyLimit   int `json:"concurrency_limit"`
}

// PlaceCallRequest describes one outbound call.
type PlaceCallRequest struct {
	// FromNumber is empty when the provider should choose the caller ID (local touch).
	FromNumber string
	ToNumber   string
	AgentID    string

	DisplayName string
	Variables   map[string]string
}

// CallHandle identifies a placed call at the provider.
type CallHandle struct {
	CallID string `json:"call_id"`
}

// CallDetails is the provider's post-call record.
type CallDetails struct {
	CallID              string
	DisconnectionReason string
	Transcript          string
	Summary             string
	RecordingURL        string
	StartedAt           time.Time
	EndedAt             time.Time
	DurationSeconds     float64
	UserSentiment       string
	Direction           string
}
