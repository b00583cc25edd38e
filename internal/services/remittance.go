package services

import (
	"context"
	"fmt"
	"mime/multipart"
	"path/filepath"
	"sort"
	"strings"

	"compliance-tracker/internal/models"
	"compliance-tracker/internal/policy"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var ErrRemittanceDeleteAdminOnly = fmt.Errorf("only administrators can delete remittances: %w", ErrAccessDenied)

type RemittanceService struct {
	db      *gorm.DB
	storage *DocumentStorage
	audit   *AuditRecorder
}

func NewRemittanceService(db *gorm.DB, storage *DocumentStorage, audit *AuditRecorder) *RemittanceService {
	return &RemittanceService{db: db, storage: storage, audit: audit}
}

type RemittanceFilter struct {
	CompanyID      uint
	RemittanceType string
	Status         models.RemittanceStatus
	Year           int
}

type RemittanceInput struct {
	CompanyID      uint
	RemittanceType string
	Month          int
	Year           int
	Amount         decimal.NullDecimal
	Status         models.RemittanceStatus
	Notes          string
	Proof          *multipart.FileHeader
}

type RemittanceResult struct {
	Remittance *models.Remittance `json:"remittance"`
	Warning    string             `json:"warning,omitempty"`
}

// RemittanceOptions lists the values offered by the remittance filters
type RemittanceOptions struct {
	Types    []string                  `json:"types"`
	Years    []int                     `json:"years"`
	Statuses []models.RemittanceStatus `json:"statuses"`
}

// List returns remittances in the actor's scope, newest period first
func (s *RemittanceService) List(ctx context.Context, actor Actor, f RemittanceFilter) ([]models.Remittance, error) {
	if err := actor.require(policy.ViewOwnCompanyData); err != nil {
		return nil, err
	}

	var remittances []models.Remittance
	err := s.db.WithContext(ctx).
		Scopes(actor.Scope().Apply("company_id"), remittanceFilters(f)).
		Preload("Company").
		Order("year DESC").Order("month DESC").Order("id DESC").
		Find(&remittances).Error
	if err != nil {
		return nil, persistence(err)
	}
	return remittances, nil
}

func remittanceFilters(f RemittanceFilter) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if f.CompanyID != 0 {
			db = db.Where("company_id = ?", f.CompanyID)
		}
		if f.RemittanceType != "" {
			db = db.Where("remittance_type = ?", f.RemittanceType)
		}
		if f.Status != "" {
			db = db.Where("status = ?", f.Status)
		}
		if f.Year != 0 {
			db = db.Where("year = ?", f.Year)
		}
		return db
	}
}

// Options returns the common remittance types merged with those in use, and
// the years present in scope, newest first.
func (s *RemittanceService) Options(ctx context.Context, actor Actor) (*RemittanceOptions, error) {
	if err := actor.require(policy.ViewOwnCompanyData); err != nil {
		return nil, err
	}
	scope := actor.Scope()
	db := s.db.WithContext(ctx)

	var used []string
	if err := db.Model(&models.Remittance{}).Scopes(scope.Apply("company_id")).Distinct().Pluck("remittance_type", &used).Error; err != nil {
		return nil, persistence(err)
	}
	var years []int
	if err := db.Model(&models.Remittance{}).Scopes(scope.Apply("company_id")).Distinct().Order("year DESC").Pluck("year", &years).Error; err != nil {
		return nil, persistence(err)
	}

	seen := make(map[string]bool)
	types := make([]string, 0, len(models.RemittanceTypes)+len(used))
	for _, t := range append(append([]string{}, models.RemittanceTypes...), used...) {
		if !seen[t] {
			seen[t] = true
			types = append(types, t)
		}
	}
	sort.Strings(types)

	return &RemittanceOptions{
		Types:    types,
		Years:    years,
		Statuses: []models.RemittanceStatus{models.RemittancePending, models.RemittanceSubmitted, models.RemittanceVerified},
	}, nil
}

// Get returns one remittance and records the view
func (s *RemittanceService) Get(ctx context.Context, actor Actor, id uint) (*models.Remittance, error) {
	remittance, err := s.visible(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, AuditEntry{
		Actor:      actor,
		Action:     models.ActionViewed,
		EntityType: models.EntityRemittance,
		EntityID:   remittance.ID,
		Details:    fmt.Sprintf("Viewed remittance %s", remittance.RemittanceType),
	})
	return remittance, nil
}

func (s *RemittanceService) visible(ctx context.Context, actor Actor, id uint) (*models.Remittance, error) {
	if err := actor.require(policy.ViewOwnCompanyData); err != nil {
		return nil, err
	}
	var remittance models.Remittance
	if err := s.db.WithContext(ctx).Preload("Company").First(&remittance, id).Error; err != nil {
		return nil, lookupErr(err, ErrRemittanceNotFound)
	}
	if !actor.Scope().Allows(remittance.CompanyID) {
		return nil, ErrAccessDenied
	}
	return &remittance, nil
}

func (s *RemittanceService) Create(ctx context.Context, actor Actor, in RemittanceInput) (*RemittanceResult, error) {
	if err := actor.require(policy.EditRecords); err != nil {
		return nil, err
	}
	if err := validateRemittance(&in); err != nil {
		return nil, err
	}

	remittance := &models.Remittance{
		CompanyID:      in.CompanyID,
		RemittanceType: in.RemittanceType,
		Month:          in.Month,
		Year:           in.Year,
		Amount:         in.Amount,
		Status:         in.Status,
		Notes:          in.Notes,
		CreatedBy:      actor.id(),
	}

	result := &RemittanceResult{Remittance: remittance}
	var stored string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureCompanyExists(tx, in.CompanyID); err != nil {
			return err
		}
		ref, warning, err := attachDocument(s.storage, in.Proof, CategoryRemittances)
		if err != nil {
			return err
		}
		stored = ref
		remittance.ProofPath, result.Warning = ref, warning
		return tx.Create(remittance).Error
	})
	if err != nil {
		discardDocument(s.storage, stored)
		return nil, txErr(err)
	}

	s.audit.Record(ctx, AuditEntry{
		Actor:      actor,
		Action:     models.ActionCreated,
		EntityType: models.EntityRemittance,
		EntityID:   remittance.ID,
		Details:    fmt.Sprintf("Created remittance %s for %s", remittance.RemittanceType, remittance.Period),
	})
	return result, nil
}

// Update replaces every editable field; the period follows month and year.
func (s *RemittanceService) Update(ctx context.Context, actor Actor, id uint, in RemittanceInput) (*RemittanceResult, error) {
	if err := actor.require(policy.EditRecords); err != nil {
		return nil, err
	}
	if err := validateRemittance(&in); err != nil {
		return nil, err
	}

	result := &RemittanceResult{}
	var stored string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var remittance models.Remittance
		if err := tx.First(&remittance, id).Error; err != nil {
			return lookupErr(err, ErrRemittanceNotFound)
		}
		if err := ensureCompanyExists(tx, in.CompanyID); err != nil {
			return err
		}

		remittance.CompanyID = in.CompanyID
		remittance.RemittanceType = in.RemittanceType
		remittance.Month = in.Month
		remittance.Year = in.Year
		remittance.Amount = in.Amount
		remittance.Status = in.Status
		remittance.Notes = in.Notes

		ref, warning, err := attachDocument(s.storage, in.Proof, CategoryRemittances)
		if err != nil {
			return err
		}
		stored = ref
		if ref != "" {
			remittance.ProofPath = ref
		}
		result.Warning = warning

		if err := tx.Save(&remittance).Error; err != nil {
			return err
		}
		result.Remittance = &remittance
		return nil
	})
	if err != nil {
		discardDocument(s.storage, stored)
		return nil, txErr(err)
	}

	s.audit.Record(ctx, AuditEntry{
		Actor:      actor,
		Action:     models.ActionUpdated,
		EntityType: models.EntityRemittance,
		EntityID:   result.Remittance.ID,
		Details:    fmt.Sprintf("Updated remittance %s", result.Remittance.RemittanceType),
	})
	return result, nil
}

// Delete is admin only. Compliance officers reach this call through the
// HTTP layer and are refused here.
func (s *RemittanceService) Delete(ctx context.Context, actor Actor, id uint) error {
	if !actor.Can(policy.DeleteRemittance) {
		return ErrRemittanceDeleteAdminOnly
	}

	var remittanceType string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var remittance models.Remittance
		if err := tx.First(&remittance, id).Error; err != nil {
			return lookupErr(err, ErrRemittanceNotFound)
		}
		remittanceType = remittance.RemittanceType
		return tx.Delete(&remittance).Error
	})
	if err != nil {
		return txErr(err)
	}

	s.audit.Record(ctx, AuditEntry{
		Actor:      actor,
		Action:     models.ActionDeleted,
		EntityType: models.EntityRemittance,
		EntityID:   id,
		Details:    fmt.Sprintf("Deleted remittance %s", remittanceType),
	})
	return nil
}

// Proof resolves the stored proof of payment of a visible remittance
func (s *RemittanceService) Proof(ctx context.Context, actor Actor, id uint) (string, string, error) {
	remittance, err := s.visible(ctx, actor, id)
	if err != nil {
		return "", "", err
	}
	path, err := s.storage.Path(remittance.ProofPath)
	if err != nil {
		return "", "", err
	}
	return path, filepath.Base(path), nil
}

func validateRemittance(in *RemittanceInput) error {
	in.RemittanceType = strings.TrimSpace(in.RemittanceType)
	in.Notes = strings.TrimSpace(in.Notes)
	if in.Status == "" {
		in.Status = models.RemittancePending
	}

	switch {
	case in.CompanyID == 0:
		return invalid("company_id", "is required")
	case in.RemittanceType == "":
		return invalid("remittance_type", "is required")
	case in.Month < 1 || in.Month > 12:
		return invalid("month", "must be between 1 and 12")
	case in.Year < 1900 || in.Year > 9999:
		return invalid("year", "must be a four digit year")
	case !in.Status.Valid():
		return invalid("status", "must be one of pending/submitted/verified")
	case in.Amount.Valid && in.Amount.Decimal.IsNegative():
		return invalid("amount", "must not be negative")
	}

	if in.Amount.Valid {
		in.Amount.Decimal = in.Amount.Decimal.Round(2)
	}
	return nil
}
