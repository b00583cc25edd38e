package services

import (
	"context"
	"fmt"
	"strings"

	"compliance-tracker/internal/models"
	"compliance-tracker/internal/policy"

	"gorm.io/gorm"
)

type CompanyService struct {
	db       *gorm.DB
	licenses *LicenseService
	audit    *AuditRecorder
}

func NewCompanyService(db *gorm.DB, licenses *LicenseService, audit *AuditRecorder) *CompanyService {
	return &CompanyService{db: db, licenses: licenses, audit: audit}
}

type CompanyInput struct {
	Name        string
	Description string
}

type CompanyStats struct {
	TotalLicenses    int64 `json:"total_licenses"`
	ActiveLicenses   int64 `json:"active_licenses"`
	ExpiredLicenses  int64 `json:"expired_licenses"`
	TotalRemittances int64 `json:"total_remittances"`
}

type CompanyDetail struct {
	Company models.Company `json:"company"`
	Stats   CompanyStats   `json:"stats"`
}

// List returns the companies visible to actor, by name
func (s *CompanyService) List(ctx context.Context, actor Actor) ([]models.Company, error) {
	if err := actor.require(policy.ViewOwnCompanyData); err != nil {
		return nil, err
	}

	var companies []models.Company
	err := s.db.WithContext(ctx).
		Scopes(actor.Scope().Apply("id")).
		Order("name ASC").
		Find(&companies).Error
	if err != nil {
		return nil, persistence(err)
	}
	return companies, nil
}

// Get returns a company with license and remittance statistics, refreshing
// license statuses first.
func (s *CompanyService) Get(ctx context.Context, actor Actor, id uint) (*CompanyDetail, error) {
	company, err := s.find(s.db.WithContext(ctx), id)
	if err != nil {
		return nil, err
	}
	if !actor.Scope().Allows(company.ID) {
		return nil, ErrAccessDenied
	}

	only := policy.Scope{CompanyID: &company.ID}
	if _, err := s.licenses.RefreshStatuses(ctx, only); err != nil {
		return nil, err
	}

	detail := &CompanyDetail{Company: *company}
	db := s.db.WithContext(ctx)
	counts := []struct {
		dst   *int64
		query *gorm.DB
	}{
		{&detail.Stats.TotalLicenses, db.Model(&models.License{}).Where("company_id = ?", id)},
		{&detail.Stats.ActiveLicenses, db.Model(&models.License{}).Where("company_id = ? AND status = ?", id, models.LicenseActive)},
		{&detail.Stats.ExpiredLicenses, db.Model(&models.License{}).Where("company_id = ? AND status = ?", id, models.LicenseExpired)},
		{&detail.Stats.TotalRemittances, db.Model(&models.Remittance{}).Where("company_id = ?", id)},
	}
	for _, c := range counts {
		if err := c.query.Count(c.dst).Error; err != nil {
			return nil, persistence(err)
		}
	}
	return detail, nil
}

func (s *CompanyService) find(tx *gorm.DB, id uint) (*models.Company, error) {
	var company models.Company
	if err := tx.First(&company, id).Error; err != nil {
		return nil, lookupErr(err, ErrCompanyNotFound)
	}
	return &company, nil
}

func (s *CompanyService) Create(ctx context.Context, actor Actor, in CompanyInput) (*models.Company, error) {
	if err := actor.require(policy.EditRecords); err != nil {
		return nil, err
	}

	company := &models.Company{
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		CreatedBy:   actor.id(),
	}
	if company.Name == "" {
		return nil, invalid("name", "company name is required")
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureCompanyNameFree(tx, company.Name, 0); err != nil {
			return err
		}
		return tx.Create(company).Error
	})
	if err != nil {
		return nil, txErr(err)
	}

	s.audit.Record(ctx, AuditEntry{
		Actor:      actor,
		Action:     models.ActionCreated,
		EntityType: models.EntityCompany,
		EntityID:   company.ID,
		Details:    fmt.Sprintf("Created company %s", company.Name),
	})
	return company, nil
}

func (s *CompanyService) Update(ctx context.Context, actor Actor, id uint, in CompanyInput) (*models.Company, error) {
	if err := actor.require(policy.EditRecords); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, invalid("name", "company name is required")
	}

	var company *models.Company
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if company, err = s.find(tx, id); err != nil {
			return err
		}
		if name != company.Name {
			if err := ensureCompanyNameFree(tx, name, company.ID); err != nil {
				return err
			}
		}
		company.Name = name
		company.Description = strings.TrimSpace(in.Description)
		return tx.Save(company).Error
	})
	if err != nil {
		return nil, txErr(err)
	}

	s.audit.Record(ctx, AuditEntry{
		Actor:      actor,
		Action:     models.ActionUpdated,
		EntityType: models.EntityCompany,
		EntityID:   company.ID,
		Details:    fmt.Sprintf("Updated company %s", company.Name),
	})
	return company, nil
}

// Delete removes a company together with its licenses and remittances in
// one transaction. A company that still has client users is refused.
func (s *CompanyService) Delete(ctx context.Context, actor Actor, id uint) error {
	if err := actor.require(policy.DeleteCompany); err != nil {
		return err
	}

	var name string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		company, err := s.find(tx, id)
		if err != nil {
			return err
		}
		name = company.Name

		var clients int64
		if err := tx.Model(&models.User{}).Where("company_id = ?", id).Count(&clients).Error; err != nil {
			return err
		}
		if clients > 0 {
			return ErrCompanyInUse
		}

		if err := tx.Where("company_id = ?", id).Delete(&models.License{}).Error; err != nil {
			return err
		}
		if err := tx.Where("company_id = ?", id).Delete(&models.Remittance{}).Error; err != nil {
			return err
		}
		return tx.Delete(company).Error
	})
	if err != nil {
		return txErr(err)
	}

	s.audit.Record(ctx, AuditEntry{
		Actor:      actor,
		Action:     models.ActionDeleted,
		EntityType: models.EntityCompany,
		EntityID:   id,
		Details:    fmt.Sprintf("Deleted company %s", name),
	})
	return nil
}

func ensureCompanyNameFree(tx *gorm.DB, name string, exceptID uint) error {
	var count int64
	q := tx.Model(&models.Company{}).Where("name = ?", name)
	if exceptID != 0 {
		q = q.Where("id <> ?", exceptID)
	}
	if err := q.Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return ErrCompanyExists
	}
	return nil
}
