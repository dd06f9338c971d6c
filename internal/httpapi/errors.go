package httpapi

import (
	"errors"
	"net/http"

	"outbound-dialer/internal/campaigns"
	"outbound-dialer/internal/dialer"
	"outbound-dialer/internal/reconcile"
	"outbound-dialer/internal/reporting"
	"outbound-dialer/pkg/logger"

	"github.com/gin-gonic/gin"
)

// writeError maps service errors onto status codes. Unknown errors are logged and hidden.
func writeError(c *gin.Context, err error) {
	var short *dialer.CreditShortfallError
	switch {
	case errors.As(err, &short):
		c.AbortWithStatusJSON(http.StatusPaymentRequired, gin.H{
			"error":        "Insufficient dialing credits",
			"balance":      short.Balance,
			"required":     short.Required,
			"purchaseLink": short.PurchaseLink,
		})
	case errors.Is(err, dialer.ErrCampaignNotFound), errors.Is(err, campaigns.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Campaign not found"})
	case errors.Is(err, dialer.ErrNoCredentials), errors.Is(err, reconcile.ErrNoCredentials):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Telephony API key not found for account"})
	case errors.Is(err, dialer.ErrAlreadyRun):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "This campaign has already been run and cannot be run again."})
	case errors.Is(err, dialer.ErrNoEligibleContacts):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "No contacts to call for this campaign"})
	case errors.Is(err, campaigns.ErrInvalidArgument), errors.Is(err, reporting.ErrInvalidRequest):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, campaigns.ErrCompleted),
		errors.Is(err, campaigns.ErrNotStarted),
		errors.Is(err, campaigns.ErrNotFinished),
		errors.Is(err, campaigns.ErrNothingToRedial):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		logger.FromGin(c).Error("request failed", "path", c.FullPath(), "err", err)
		_ = c.Error(err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
