package main

import (
	"net/http"
	"time"

	"outbound-dialer/internal/app"
	"outbound-dialer/internal/campaigns"
	"outbound-dialer/internal/httpapi"
	"outbound-dialer/internal/reconcile"
	"outbound-dialer/internal/reporting"
	"outbound-dialer/pkg/utils"

	"github.com/gin-gonic/gin"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, a *app.App, authMW gin.HandlerFunc) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		if err := utils.HealthCheck(c.Request.Context(), a.DB, 2*time.Second); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": "database unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	h := httpapi.Handlers{
		Dialer:    a.Dialer,
		Campaigns: campaigns.NewService(a.Campaigns, a.Audit),
		Analyzer:  reconcile.NewService(a.Campaigns, a.Ledger, a.Clients, a.Tuning, a.Audit),
		Reports:   reporting.NewService(a.Campaigns),
		Balances:  a.Ledger,
	}

	// protected API group
	v1 := r.Group("/v1")
	v1.Use(authMW)
	h.Register(v1)
}
