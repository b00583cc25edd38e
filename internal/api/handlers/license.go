package handlers

import (
	"net/http"

	"compliance-tracker/internal/models"
	"compliance-tracker/internal/services"

	"github.com/gin-gonic/gin"
)

type LicenseHandler struct {
	licenseService *services.LicenseService
}

func NewLicenseHandler(licenseService *services.LicenseService) *LicenseHandler {
	return &LicenseHandler{
		licenseService: licenseService,
	}
}

// LicenseRequest binds from JSON or from a multipart form carrying an
// optional "document" file.
type LicenseRequest struct {
	CompanyID   uint   `json:"company_id" form:"company_id"`
	LicenseType string `json:"license_type" form:"license_type"`
	IssuingBody string `json:"issuing_body" form:"issuing_body"`
	IssueDate   string `json:"issue_date" form:"issue_date"`
	ExpiryDate  string `json:"expiry_date" form:"expiry_date"`
	Notes       string `json:"notes" form:"notes"`
}

func (h *LicenseHandler) bindInput(c *gin.Context) (services.LicenseInput, bool) {
	var req LicenseRequest
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, err)
		return services.LicenseInput{}, false
	}

	issue, err := parseDate("issue_date", req.IssueDate)
	if err != nil {
		respondError(c, err)
		return services.LicenseInput{}, false
	}
	expiry, err := parseDate("expiry_date", req.ExpiryDate)
	if err != nil {
		respondError(c, err)
		return services.LicenseInput{}, false
	}

	return services.LicenseInput{
		CompanyID:   req.CompanyID,
		LicenseType: req.LicenseType,
		IssuingBody: req.IssuingBody,
		IssueDate:   issue,
		ExpiryDate:  expiry,
		Notes:       req.Notes,
		Document:    formFile(c, "document"),
	}, true
}

// GetLicenses lists licenses in scope, filtered by company_id, license_type and status
func (h *LicenseHandler) GetLicenses(c *gin.Context) {
	licenses, err := h.licenseService.List(c.Request.Context(), actor(c), services.LicenseFilter{
		CompanyID:   queryUint(c, "company_id"),
		LicenseType: c.Query("license_type"),
		Status:      models.LicenseStatus(c.Query("status")),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"licenses": licenses})
}

func (h *LicenseHandler) GetLicenseTypes(c *gin.Context) {
	types, err := h.licenseService.Types(c.Request.Context(), actor(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"types": types})
}

func (h *LicenseHandler) GetLicense(c *gin.Context) {
	id, ok := parseID(c, "id", "license")
	if !ok {
		return
	}

	license, err := h.licenseService.Get(c.Request.Context(), actor(c), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"license":        license,
		"days_to_expiry": license.DaysUntilExpiry(h.licenseService.Today()),
	})
}

func (h *LicenseHandler) CreateLicense(c *gin.Context) {
	in, ok := h.bindInput(c)
	if !ok {
		return
	}

	result, err := h.licenseService.Create(c.Request.Context(), actor(c), in)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

func (h *LicenseHandler) UpdateLicense(c *gin.Context) {
	id, ok := parseID(c, "id", "license")
	if !ok {
		return
	}

	in, ok := h.bindInput(c)
	if !ok {
		return
	}

	result, err := h.licenseService.Update(c.Request.Context(), actor(c), id, in)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *LicenseHandler) DeleteLicense(c *gin.Context) {
	id, ok := parseID(c, "id", "license")
	if !ok {
		return
	}

	if err := h.licenseService.Delete(c.Request.Context(), actor(c), id); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "License deleted successfully"})
}

// DownloadDocument serves the stored license document
func (h *LicenseHandler) DownloadDocument(c *gin.Context) {
	id, ok := parseID(c, "id", "license")
	if !ok {
		return
	}

	path, name, err := h.licenseService.Document(c.Request.Context(), actor(c), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.FileAttachment(path, name)
}
