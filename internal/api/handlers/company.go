package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"compliance-tracker/internal/services"

	"github.com/gin-gonic/gin"
)

type CompanyHandler struct {
	companyService *services.CompanyService
	archiveService *services.ArchiveService
}

func NewCompanyHandler(companyService *services.CompanyService, archiveService *services.ArchiveService) *CompanyHandler {
	return &CompanyHandler{
		companyService: companyService,
		archiveService: archiveService,
	}
}

type CompanyRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

// GetCompanies lists the companies visible to the caller
func (h *CompanyHandler) GetCompanies(c *gin.Context) {
	companies, err := h.companyService.List(c.Request.Context(), actor(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"companies": companies})
}

// GetCompany returns a company with its statistics
func (h *CompanyHandler) GetCompany(c *gin.Context) {
	id, ok := parseID(c, "id", "company")
	if !ok {
		return
	}

	detail, err := h.companyService.Get(c.Request.Context(), actor(c), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, detail)
}

func (h *CompanyHandler) CreateCompany(c *gin.Context) {
	var req CompanyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	company, err := h.companyService.Create(c.Request.Context(), actor(c), services.CompanyInput{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, company)
}

func (h *CompanyHandler) UpdateCompany(c *gin.Context) {
	id, ok := parseID(c, "id", "company")
	if !ok {
		return
	}

	var req CompanyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	company, err := h.companyService.Update(c.Request.Context(), actor(c), id, services.CompanyInput{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, company)
}

// DeleteCompany deletes a company with its licenses and remittances
func (h *CompanyHandler) DeleteCompany(c *gin.Context) {
	id, ok := parseID(c, "id", "company")
	if !ok {
		return
	}

	if err := h.companyService.Delete(c.Request.Context(), actor(c), id); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Company deleted successfully"})
}

// DownloadArchive sends every stored document of the company as a tar.gz
func (h *CompanyHandler) DownloadArchive(c *gin.Context) {
	id, ok := parseID(c, "id", "company")
	if !ok {
		return
	}

	var buf bytes.Buffer
	name, written, err := h.archiveService.WriteCompanyArchive(c.Request.Context(), actor(c), id, &buf)
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	c.Header("X-Document-Count", strconv.Itoa(written))
	c.Data(http.StatusOK, "application/gzip", buf.Bytes())
}
