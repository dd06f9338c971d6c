package audit

import "time"

// Event is an immutable, append-only audit log record.
//
// Invariants:
// - Events are never updated or deleted.
// - account_id is required for tenancy isolation.
// - actor and ip capture are best-effort; audit failures never block a run.
type Event struct {
	ID        string    `json:"id" db:"id"`
	AccountID string    `json:"account_id" db:"account_id"`
	Type      EventType `json:"type" db:"type"`

	// ActorUserID is empty for events raised by a detached run or recovery.
	ActorUserID string `json:"actor_user_id,omitempty" db:"actor_user_id"`
	ActorRole   string `json:"actor_role,omitempty" db:"actor_role"`
	IPAddress   string `json:"ip_address,omitempty" db:"ip_address"`

	CampaignID string `json:"campaign_id,omitempty" db:"campaign_id"`

	Message  string `json:"message,omitempty" db:"message"`
	Metadata string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventCampaignStarted       EventType = "campaign_started"
	EventCampaignStatusChanged EventType = "campaign_status_changed"
	EventCampaignPausedCredits EventType = "campaign_paused_credits"
	EventCampaignCompleted     EventType = "campaign_completed"
	EventCampaignAborted       EventType = "campaign_aborted"
	EventCampaignResumed       EventType = "campaign_resumed_after_restart"
	EventRedialCreated         EventType = "redial_created"
	EventCallLogsAnalyzed      EventType = "call_logs_analyzed"
)
