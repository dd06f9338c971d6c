package httpapi

import (
	"outbound-dialer/internal/rbac"

	"github.com/gin-gonic/gin"
)

// Register mounts the campaign and credit routes on an authenticated /v1 group.
func (h Handlers) Register(v1 *gin.RouterGroup) {
	v1.Use(rbac.RequireAccount())

	control := rbac.RequireAnyRole(rbac.CampaignControl...)
	read := rbac.RequireAnyRole(rbac.CampaignRead...)

	camps := v1.Group("/campaigns")
	{
		camps.POST("/start", control, h.StartCampaign)
		camps.POST("/status", control, h.UpdateStatus)
		camps.POST("/analyze", read, h.AnalyzeCallLogs)
		camps.GET("/:id", read, h.GetCampaign)
		camps.GET("/:id/analytics", read, h.CampaignAnalytics)
		camps.POST("/:id/redial", control, h.CreateRedial)
	}

	v1.GET("/credits", read, h.GetCredits)
}
