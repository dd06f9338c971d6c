package httpapi

import (
	"context"
	"errors"
	"net/http"

	"outbound-dialer/internal/audit"
	"outbound-dialer/internal/auth"
	"outbound-dialer/internal/campaigns"
	"outbound-dialer/internal/credits"
	"outbound-dialer/internal/dialer"
	"outbound-dialer/internal/rbac"
	"outbound-dialer/internal/reporting"
	"outbound-dialer/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Dialer starts campaigns and re-attaches runs.
type Dialer interface {
	Start(ctx context.Context, accountID, campaignID string) (dialer.StartResult, error)
	Resume(ctx context.Context, accountID, campaignID string) error
}

// Campaigns is the operator-facing campaign service.
type Campaigns interface {
	Get(ctx context.Context, accountID, campaignID string) (campaigns.Campaign, error)
	UpdateStatus(ctx context.Context, accountID, campaignID string, status campaigns.Status) (campaigns.Campaign, error)
	CreateRedial(ctx context.Context, accountID, campaignID string) (campaigns.Campaign, []campaigns.Contact, error)
}

// Analyzer enriches call logs from the provider.
type Analyzer interface {
	Analyze(ctx context.Context, accountID, campaignID string) ([]campaigns.CallLog, error)
}

// Reports computes campaign analytics.
type Reports interface {
	CampaignSummary(ctx context.Context, accountID, campaignID string) (reporting.CampaignSummary, error)
}

// Balances reads credit balances.
type Balances interface {
	Balance(ctx context.Context, accountID string) (int64, error)
}

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Dialer    Dialer
	Campaigns Campaigns
	Analyzer  Analyzer
	Reports   Reports
	Balances  Balances
}

// --- Campaign control ---

type startRequest struct {
	CampaignID string `json:"campaignId" binding:"required"`
	AccountID  string `json:"accountId" binding:"required"`
}

// StartCampaign validates preconditions and hands off a detached run.
// The response returns before any call is placed; clients poll GetCampaign.
func (h Handlers) StartCampaign(c *gin.Context) {
	var req startRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "campaignId and accountId required"})
		return
	}
	accountID, ok := actingAccount(c, req.AccountID)
	if !ok {
		return
	}

	res, err := h.Dialer.Start(requestContext(c), accountID, req.CampaignID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":          true,
		"message":          "Bulk dialing started successfully",
		"campaignId":       res.CampaignID,
		"eligibleContacts": res.EligibleContacts,
	})
}

type statusRequest struct {
	CampaignID string `json:"campaignId" binding:"required"`
	Status     string `json:"status" binding:"required"`
	AccountID  string `json:"accountId"`
}

// UpdateStatus applies an operator status. Moving a started campaign back to
// In Progress makes sure a run is attached to it.
func (h Handlers) UpdateStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid campaign ID or status"})
		return
	}
	status, err := campaigns.ParseStatus(req.Status)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid campaign ID or status"})
		return
	}
	accountID, ok := actingAccount(c, req.AccountID)
	if !ok {
		return
	}

	ctx := requestContext(c)
	out, err := h.Campaigns.UpdateStatus(ctx, accountID, req.CampaignID, status)
	if err != nil {
		writeError(c, err)
		return
	}
	if status == campaigns.StatusInProgress {
		if err := h.Dialer.Resume(ctx, accountID, req.CampaignID); err != nil {
			// The status is written; recovery attaches a run if this launch was lost.
			logger.FromGin(c).Error("resume campaign run failed", "campaign_id", req.CampaignID, "err", err)
		}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Campaign status updated", "data": out})
}

type analyzeRequest struct {
	CampaignID string `json:"campaignId" binding:"required"`
	AccountID  string `json:"accountId" binding:"required"`
}

func (h Handlers) AnalyzeCallLogs(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "campaignId and accountId required"})
		return
	}
	accountID, ok := actingAccount(c, req.AccountID)
	if !ok {
		return
	}
	logs, err := h.Analyzer.Analyze(requestContext(c), accountID, req.CampaignID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "callLogs": logs})
}

// --- Campaign reads ---

func (h Handlers) GetCampaign(c *gin.Context) {
	accountID, ok := actingAccount(c, c.Query("accountId"))
	if !ok {
		return
	}
	out, err := h.Campaigns.Get(requestContext(c), accountID, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h Handlers) CampaignAnalytics(c *gin.Context) {
	accountID, ok := actingAccount(c, c.Query("accountId"))
	if !ok {
		return
	}
	out, err := h.Reports.CampaignSummary(requestContext(c), accountID, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h Handlers) CreateRedial(c *gin.Context) {
	accountID, ok := actingAccount(c, c.Query("accountId"))
	if !ok {
		return
	}
	camp, contacts, err := h.Campaigns.CreateRedial(requestContext(c), accountID, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"campaign": camp, "contacts": contacts})
}

// --- Credits ---

func (h Handlers) GetCredits(c *gin.Context) {
	accountID, ok := actingAccount(c, c.Query("accountId"))
	if !ok {
		return
	}
	bal, err := h.Balances.Balance(requestContext(c), accountID)
	if err != nil && !errors.Is(err, credits.ErrNotFound) {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"accountId": accountID, "balance": bal})
}

// actingAccount resolves the account a request operates on.
// An empty requested account means the caller's own; crossing accounts needs super_admin.
func actingAccount(c *gin.Context, requested string) (string, bool) {
	ctx := c.Request.Context()
	tokenAccount, _ := auth.AccountID(ctx)
	role, _ := auth.Role(ctx)
	if requested == "" {
		requested = tokenAccount
	}
	if !rbac.CanActFor(role, tokenAccount, requested) {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return "", false
	}
	return requested, true
}

// requestContext carries the client IP for audit events.
func requestContext(c *gin.Context) context.Context {
	return audit.WithClientIP(c.Request.Context(), c.ClientIP())
}
