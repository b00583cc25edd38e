package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"compliance-tracker/internal/models"
	"compliance-tracker/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type RemittanceHandler struct {
	remittanceService *services.RemittanceService
}

func NewRemittanceHandler(remittanceService *services.RemittanceService) *RemittanceHandler {
	return &RemittanceHandler{
		remittanceService: remittanceService,
	}
}

// RemittanceRequest binds from JSON or from a multipart form carrying an
// optional "proof" file. Amount accepts a JSON number or a numeric string.
type RemittanceRequest struct {
	CompanyID      uint        `json:"company_id" form:"company_id"`
	RemittanceType string      `json:"remittance_type" form:"remittance_type"`
	Month          int         `json:"month" form:"month"`
	Year           int         `json:"year" form:"year"`
	Amount         json.Number `json:"amount" form:"amount"`
	Status         string      `json:"status" form:"status"`
	Notes          string      `json:"notes" form:"notes"`
}

func (h *RemittanceHandler) bindInput(c *gin.Context) (services.RemittanceInput, bool) {
	var req RemittanceRequest
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, err)
		return services.RemittanceInput{}, false
	}

	var amount decimal.NullDecimal
	if raw := strings.TrimSpace(req.Amount.String()); raw != "" {
		d, err := decimal.NewFromString(raw)
		if err != nil {
			respondError(c, &services.ValidationError{Field: "amount", Message: "must be a number"})
			return services.RemittanceInput{}, false
		}
		amount = decimal.NewNullDecimal(d)
	}

	return services.RemittanceInput{
		CompanyID:      req.CompanyID,
		RemittanceType: req.RemittanceType,
		Month:          req.Month,
		Year:           req.Year,
		Amount:         amount,
		Status:         models.RemittanceStatus(req.Status),
		Notes:          req.Notes,
		Proof:          formFile(c, "proof"),
	}, true
}

// GetRemittances lists remittances in scope, filtered by company_id,
// remittance_type, status and year
func (h *RemittanceHandler) GetRemittances(c *gin.Context) {
	remittances, err := h.remittanceService.List(c.Request.Context(), actor(c), services.RemittanceFilter{
		CompanyID:      queryUint(c, "company_id"),
		RemittanceType: c.Query("remittance_type"),
		Status:         models.RemittanceStatus(c.Query("status")),
		Year:           queryInt(c, "year"),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"remittances": remittances})
}

func (h *RemittanceHandler) GetOptions(c *gin.Context) {
	opts, err := h.remittanceService.Options(c.Request.Context(), actor(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, opts)
}

func (h *RemittanceHandler) GetRemittance(c *gin.Context) {
	id, ok := parseID(c, "id", "remittance")
	if !ok {
		return
	}

	remittance, err := h.remittanceService.Get(c.Request.Context(), actor(c), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, remittance)
}

func (h *RemittanceHandler) CreateRemittance(c *gin.Context) {
	in, ok := h.bindInput(c)
	if !ok {
		return
	}

	result, err := h.remittanceService.Create(c.Request.Context(), actor(c), in)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

func (h *RemittanceHandler) UpdateRemittance(c *gin.Context) {
	id, ok := parseID(c, "id", "remittance")
	if !ok {
		return
	}

	in, ok := h.bindInput(c)
	if !ok {
		return
	}

	result, err := h.remittanceService.Update(c.Request.Context(), actor(c), id, in)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *RemittanceHandler) DeleteRemittance(c *gin.Context) {
	id, ok := parseID(c, "id", "remittance")
	if !ok {
		return
	}

	if err := h.remittanceService.Delete(c.Request.Context(), actor(c), id); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Remittance deleted successfully"})
}

// DownloadProof serves the stored proof of payment
func (h *RemittanceHandler) DownloadProof(c *gin.Context) {
	id, ok := parseID(c, "id", "remittance")
	if !ok {
		return
	}

	path, name, err := h.remittanceService.Proof(c.Request.Context(), actor(c), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.FileAttachment(path, name)
}
