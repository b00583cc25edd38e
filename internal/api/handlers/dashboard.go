package handlers

import (
	"net/http"

	"compliance-tracker/internal/services"

	"github.com/gin-gonic/gin"
)

type DashboardHandler struct {
	dashboardService *services.DashboardService
}

func NewDashboardHandler(dashboardService *services.DashboardService) *DashboardHandler {
	return &DashboardHandler{
		dashboardService: dashboardService,
	}
}

// GetSummary returns license and remittance figures for the caller's scope
func (h *DashboardHandler) GetSummary(c *gin.Context) {
	summary, err := h.dashboardService.Summary(c.Request.Context(), actor(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

// GetExpiries returns license expiry counts for the next six months
func (h *DashboardHandler) GetExpiries(c *gin.Context) {
	months, err := h.dashboardService.MonthlyExpiries(c.Request.Context(), actor(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"months": months})
}
