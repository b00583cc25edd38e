package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"compliance-tracker/internal/models"
	"compliance-tracker/internal/services"

	"github.com/gin-gonic/gin"
)

type ReportHandler struct {
	reportService *services.ReportService
}

func NewReportHandler(reportService *services.ReportService) *ReportHandler {
	return &ReportHandler{
		reportService: reportService,
	}
}

// ExportLicenses renders licenses in scope. The format comes from the
// route (licenses.pdf or licenses.csv); filters match GET /licenses.
func (h *ReportHandler) ExportLicenses(format string) gin.HandlerFunc {
	return func(c *gin.Context) {
		export, err := h.reportService.ExportLicenses(c.Request.Context(), actor(c), services.LicenseFilter{
			CompanyID:   queryUint(c, "company_id"),
			LicenseType: c.Query("license_type"),
			Status:      models.LicenseStatus(c.Query("status")),
		}, format)
		if err != nil {
			respondError(c, err)
			return
		}
		sendExport(c, export)
	}
}

// ExportRemittances renders remittances in scope; filters match GET /remittances.
func (h *ReportHandler) ExportRemittances(format string) gin.HandlerFunc {
	return func(c *gin.Context) {
		export, err := h.reportService.ExportRemittances(c.Request.Context(), actor(c), services.RemittanceFilter{
			CompanyID:      queryUint(c, "company_id"),
			RemittanceType: c.Query("remittance_type"),
			Status:         models.RemittanceStatus(c.Query("status")),
			Year:           queryInt(c, "year"),
		}, format)
		if err != nil {
			respondError(c, err)
			return
		}
		sendExport(c, export)
	}
}

func sendExport(c *gin.Context, export *services.Export) {
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, export.Filename))
	c.Header("X-Record-Count", strconv.Itoa(export.Records))
	c.Data(http.StatusOK, export.ContentType, export.Data)
}
