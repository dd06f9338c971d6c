package reporting

import "outbound-dialer/internal/campaigns"

// UnknownLabel buckets calls with no disconnection reason or sentiment yet.
const UnknownLabel = "Unknown"

// CampaignSummary aggregates a campaign's call logs for the analytics view.
// Enrichment-derived fields are only as fresh as the last call-log analysis.
type CampaignSummary struct {
	CampaignID string           `json:"campaignId"`
	Title      string           `json:"title"`
	Status     campaigns.Status `json:"status"`
	Progress   int              `json:"progress"`

	TotalCalls      int `json:"totalCalls"`
	HitCalls        int `json:"hitCalls"`
	UnansweredCalls int `json:"unansweredCalls"`
	AnalyzedCalls   int `json:"analyzedCalls"`

	// HitRate is a percentage, 0 when no calls were placed.
	HitRate                float64 `json:"hitRate"`
	AverageDurationSeconds float64 `json:"averageDurationSeconds"`

	DisconnectionReasons map[string]int `json:"disconnectionReasons"`
	Sentiments           map[string]int `json:"sentiments"`
}
