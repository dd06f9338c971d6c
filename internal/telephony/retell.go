package telephony

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"outbound-dialer/pkg/logger"
	"outbound-dialer/pkg/utils"
)

const (
	DefaultBaseURL = "https://api.retellai.com"

	pathConcurrency = "/get-concurrency"
	pathCreateCall  = "/v2/create-phone-call"
	pathGetCall     = "/v2/get-call/"

	maxErrorBody = 512
)

// RetellOptions configures a RetellClient. Zero durations fall back to defaults.
type RetellOptions struct {
	BaseURL    string
	HTTPClient *http.Client

	// Timeout bounds each individual HTTP request.
	Timeout time.Duration
	// MaxRetries is the number of additional PlaceCall attempts after the first.
	MaxRetries int
	// BackoffBase is the first retry delay; each later retry doubles it.
	BackoffBase time.Duration
}

func (o RetellOptions) withDefaults() RetellOptions {
	out := o
	if out.BaseURL == "" {
		out.BaseURL = DefaultBaseURL
	}
	out.BaseURL = strings.TrimRight(out.BaseURL, "/")
	if out.HTTPClient == nil {
		out.HTTPClient = http.DefaultClient
	}
	if out.Timeout <= 0 {
		out.Timeout = 10 * time.Second
	}
	if out.MaxRetries < 0 {
		out.MaxRetries = 0
	}
	if out.BackoffBase <= 0 {
		out.BackoffBase = time.Second
	}
	return out
}

// RetellClient talks to the Retell REST API with a bearer API key.
type RetellClient struct {
	apiKey string
	opts   RetellOptions
}

var _ Client = (*RetellClient)(nil)

func NewRetellClient(apiKey string, opts RetellOptions) *RetellClient {
	return &RetellClient{apiKey: apiKey, opts: opts.withDefaults()}
}

// NewRetellFactory returns a ClientFactory sharing opts across accounts.
func NewRetellFactory(opts RetellOptions) ClientFactory {
	return func(apiKey string) Client { return NewRetellClient(apiKey, opts) }
}

// StatusError is a non-2xx provider response.
type StatusError struct {
	Op   string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("telephony: %s returned %d: %s", e.Op, e.Code, e.Body)
}

func (c *RetellClient) ConcurrencyStatus(ctx context.Context) (ConcurrencyStatus, error) {
	var out ConcurrencyStatus
	if err := c.do(ctx, "get-concurrency", http.MethodGet, pathConcurrency, nil, &out); err != nil {
		return ConcurrencyStatus{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return out, nil
}

type createCallBody struct {
	FromNumber      string            `json:"from_number,omitempty"`
	ToNumber        string            `json:"to_number"`
	OverrideAgentID string            `json:"override_agent_id"`
	DynamicVars     map[string]string `json:"retell_llm_dynamic_variables"`
}

func (c *RetellClient) PlaceCall(ctx context.Context, req PlaceCallRequest) (CallHandle, error) {
	body := createCallBody{
		FromNumber:      strings.TrimSpace(req.FromNumber),
		ToNumber:        toE164(req.ToNumber),
		OverrideAgentID: req.AgentID,
		DynamicVars:     dynamicVariables(req.DisplayName, req.Variables),
	}

	log := logger.From(ctx)
	var lastErr error
	for attempt := 0; ; attempt++ {
		h, err := c.placeOnce(ctx, body)
		if err == nil {
			return h, nil
		}
		lastErr = err
		if attempt >= c.opts.MaxRetries || ctx.Err() != nil {
			break
		}
		delay := c.opts.BackoffBase << attempt
		log.Warn("place call failed, retrying", "to", body.ToNumber, "attempt", attempt+1, "delay", delay.String(), "err", err)
		if err := utils.Sleep(ctx, delay); err != nil {
			break
		}
	}
	return CallHandle{}, fmt.Errorf("%w: %w", ErrCallFailed, lastErr)
}

func (c *RetellClient) placeOnce(ctx context.Context, body createCallBody) (CallHandle, error) {
	var h CallHandle
	if err := c.do(ctx, "create-phone-call", http.MethodPost, pathCreateCall, body, &h); err != nil {
		return CallHandle{}, err
	}
	if h.CallID == "" {
		return CallHandle{}, fmt.Errorf("telephony: create-phone-call returned no call_id")
	}
	return h, nil
}

type getCallResponse struct {
	CallID              string `json:"call_id"`
	DisconnectionReason string `json:"disconnection_reason"`
	Transcript          string `json:"transcript"`
	RecordingURL        string `json:"recording_url"`
	StartTimestamp      int64  `json:"start_timestamp"`
	EndTimestamp        int64  `json:"end_timestamp"`
	Direction           string `json:"direction"`
	CallAnalysis        *struct {
		CallSummary   string `json:"call_summary"`
		UserSentiment string `json:"user_sentiment"`
	} `json:"call_analysis"`
}

func (c *RetellClient) GetCall(ctx context.Context, callID string) (CallDetails, error) {
	if callID == "" {
		return CallDetails{}, fmt.Errorf("telephony: call id required")
	}
	var raw getCallResponse
	if err := c.do(ctx, "get-call", http.MethodGet, pathGetCall+url.PathEscape(callID), nil, &raw); err != nil {
		return CallDetails{}, err
	}

	out := CallDetails{
		CallID:              callID,
		DisconnectionReason: raw.DisconnectionReason,
		Transcript:          raw.Transcript,
		RecordingURL:        raw.RecordingURL,
		Direction:           raw.Direction,
	}
	if raw.CallAnalysis != nil {
		out.Summary = raw.CallAnalysis.CallSummary
		out.UserSentiment = raw.CallAnalysis.UserSentiment
	}
	if raw.StartTimestamp > 0 {
		out.StartedAt = time.UnixMilli(raw.StartTimestamp).UTC()
	}
	if raw.EndTimestamp > 0 {
		out.EndedAt = time.UnixMilli(raw.EndTimestamp).UTC()
	}
	if raw.StartTimestamp > 0 && raw.EndTimestamp >= raw.StartTimestamp {
		out.DurationSeconds = float64(raw.EndTimestamp-raw.StartTimestamp) / 1000.0
	}
	return out, nil
}

func (c *RetellClient) do(ctx context.Context, op, method, path string, in, out any) error {
	reqCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("telephony: encode %s: %w", op, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(reqCtx, method, c.opts.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("telephony: build %s: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.opts.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("telephony: %s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound && op == "get-call" {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Op: op, Code: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("telephony: decode %s: %w", op, err)
	}
	return nil
}

// toE164 prefixes "+" to bare digit strings.
func toE164(number string) string {
	n := strings.TrimSpace(number)
	if n == "" || strings.HasPrefix(n, "+") {
		return n
	}
	return "+" + n
}

// dynamicVariables seeds "name" with the display name; contact variables override it.
func dynamicVariables(displayName string, vars map[string]string) map[string]string {
	out := make(map[string]string, len(vars)+1)
	out["name"] = displayName
	for k, v := range vars {
		out[k] = v
	}
	return out
}
