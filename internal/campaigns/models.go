package campaigns

import (
	"fmt"
	"math"
	"time"
)

// Status is the campaign lifecycle status. Values are stored and sent verbatim.
type Status string

const (
	StatusScheduled  Status = "Scheduled"
	StatusInProgress Status = "In Progress"
	StatusPaused     Status = "Paused"
	StatusCompleted  Status = "Completed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusScheduled, StatusInProgress, StatusPaused, StatusCompleted:
		return true
	default:
		return false
	}
}

// ParseStatus validates a wire status string.
func ParseStatus(v string) (Status, error) {
	s := Status(v)
	if !s.Valid() {
		return "", fmt.Errorf("%w: unknown status %q", ErrInvalidArgument, v)
	}
	return s, nil
}

// Campaign pairs a contact list with routing parameters and a lifecycle status.
//
// Invariant: HasRun flips false -> true once, at the first successful start, and never reverts.
type Campaign struct {
	ID          string `json:"id" db:"id"`
	OwnerID     string `json:"ownerId" db:"owner_id"`
	Title       string `json:"title" db:"title"`
	Description string `json:"description" db:"description"`

	AgentID           string `json:"agentProfileId" db:"agent_profile_id"`
	OutboundNumber    string `json:"outboundNumber,omitempty" db:"outbound_number"`
	LocalTouchEnabled bool   `json:"localTouchEnabled" db:"local_touch_enabled"`

	Status   Status `json:"status" db:"status"`
	Progress int    `json:"progress" db:"progress"`
	HasRun   bool   `json:"hasRun" db:"has_run"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// FromNumber is the caller ID to dial from; empty lets the provider route (local touch).
func (c Campaign) FromNumber() string {
	if c.LocalTouchEnabled {
		return ""
	}
	return c.OutboundNumber
}

// Contact is one dial target of a campaign.
// A non-empty CallID means a call was placed and the contact is never dialed again.
type Contact struct {
	ID               string            `json:"id" db:"id"`
	CampaignID       string            `json:"campaignId" db:"campaign_id"`
	PhoneNumber      string            `json:"phoneNumber" db:"phone_number"`
	FirstName        string            `json:"firstName" db:"first_name"`
	DynamicVariables map[string]string `json:"dynamicVariables,omitempty" db:"dynamic_variables"`
	CallID           string            `json:"callId,omitempty" db:"call_id"`
	CreatedAt        time.Time         `json:"createdAt" db:"created_at"`
}

func (c Contact) Eligible() bool { return c.CallID == "" }

// CallLog records one placed call. Enrichment fields are filled by call-log analysis.
type CallLog struct {
	ID          string `json:"id" db:"id"`
	CampaignID  string `json:"campaignId" db:"campaign_id"`
	ContactID   string `json:"contactId" db:"contact_id"`
	PhoneNumber string `json:"phoneNumber" db:"phone_number"`
	FirstName   string `json:"firstName" db:"first_name"`
	CallID      string `json:"callId" db:"call_id"`

	DisconnectionReason string     `json:"disconnection_reason,omitempty" db:"disconnection_reason"`
	Transcript          string     `json:"call_transcript,omitempty" db:"transcript"`
	Summary             string     `json:"call_summary,omitempty" db:"summary"`
	RecordingURL        string     `json:"call_recording,omitempty" db:"recording_url"`
	StartTime           *time.Time `json:"start_time,omitempty" db:"start_time"`
	EndTime             *time.Time `json:"end_time,omitempty" db:"end_time"`
	DurationSeconds     float64    `json:"call_duration" db:"duration_seconds"`
	UserSentiment       string     `json:"user_sentiment,omitempty" db:"user_sentiment"`
	Direction           string     `json:"call_direction,omitempty" db:"direction"`
	AnalyzedAt          *time.Time `json:"analyzedAt,omitempty" db:"analyzed_at"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// CallLogEnrichment carries provider post-call details onto an existing log.
type CallLogEnrichment struct {
	DisconnectionReason string
	Transcript          string
	Summary             string
	RecordingURL        string
	StartTime           *time.Time
	EndTime             *time.Time
	DurationSeconds     float64
	UserSentiment       string
	Direction           string
	AnalyzedAt          time.Time
}

// RunState is a partial update written by the dialer. Nil fields are left unchanged.
type RunState struct {
	Status   *Status
	Progress *int
}

// Progress returns round(called/total*100), clamped to 0..100.
func Progress(called, total int) int {
	if total <= 0 {
		return 0
	}
	p := int(math.Round(float64(called) / float64(total) * 100))
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
