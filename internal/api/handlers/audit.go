package handlers

import (
	"net/http"

	"compliance-tracker/internal/services"

	"github.com/gin-gonic/gin"
)

type AuditHandler struct {
	auditService *services.AuditService
}

func NewAuditHandler(auditService *services.AuditService) *AuditHandler {
	return &AuditHandler{
		auditService: auditService,
	}
}

// GetAuditLogs returns audit rows newest first, filtered by user_id, action
// and entity_type and capped by limit
func (h *AuditHandler) GetAuditLogs(c *gin.Context) {
	logs, err := h.auditService.List(c.Request.Context(), actor(c), services.AuditFilter{
		UserID:     queryUint(c, "user_id"),
		Action:     c.Query("action"),
		EntityType: c.Query("entity_type"),
		Limit:      queryInt(c, "limit"),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"logs": logs})
}
