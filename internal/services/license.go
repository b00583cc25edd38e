package services

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"compliance-tracker/internal/metrics"
	"compliance-tracker/internal/models"
	"compliance-tracker/internal/policy"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

type LicenseService struct {
	db      *gorm.DB
	storage *DocumentStorage
	audit   *AuditRecorder
	metrics *metrics.Metrics
	now     Clock
}

func NewLicenseService(db *gorm.DB, storage *DocumentStorage, audit *AuditRecorder, m *metrics.Metrics, clock Clock) *LicenseService {
	return &LicenseService{db: db, storage: storage, audit: audit, metrics: m, now: systemClock(clock)}
}

type LicenseFilter struct {
	CompanyID   uint
	LicenseType string
	Status      models.LicenseStatus
}

type LicenseInput struct {
	CompanyID   uint
	LicenseType string
	IssuingBody string
	IssueDate   time.Time
	ExpiryDate  time.Time
	Notes       string
	Document    *multipart.FileHeader
}

// LicenseResult is a saved license. Warning is set when an attached
// document was refused and the license was saved without it.
type LicenseResult struct {
	License *models.License `json:"license"`
	Warning string          `json:"warning,omitempty"`
}

// Today is the calendar date status decisions are made against
func (s *LicenseService) Today() time.Time {
	return models.DateOf(s.now())
}

// RefreshStatuses recomputes the status of every license in scope and
// persists the ones that changed. Running it twice on the same day is a no-op.
func (s *LicenseService) RefreshStatuses(ctx context.Context, scope policy.Scope) (int, error) {
	today := s.Today()

	var licenses []models.License
	err := s.db.WithContext(ctx).
		Select("id", "expiry_date", "status").
		Scopes(scope.Apply("company_id")).
		Find(&licenses).Error
	if err != nil {
		return 0, persistence(err)
	}

	changed := 0
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range licenses {
			l := &licenses[i]
			if !l.RefreshStatus(today) {
				continue
			}
			if err := tx.Model(&models.License{}).Where("id = ?", l.ID).Update("status", l.Status).Error; err != nil {
				return err
			}
			changed++
			s.metrics.IncLicenseStatusChange(string(l.Status))
		}
		return nil
	})
	if err != nil {
		return 0, persistence(err)
	}

	if changed > 0 {
		log.Debug().Int("changed", changed).Time("today", today).Msg("refreshed license statuses")
	}
	return changed, nil
}

// List returns licenses in the actor's scope ordered by expiry. Statuses
// are refreshed first so the status filter sees current values.
func (s *LicenseService) List(ctx context.Context, actor Actor, f LicenseFilter) ([]models.License, error) {
	if err := actor.require(policy.ViewOwnCompanyData); err != nil {
		return nil, err
	}

	scope := actor.Scope()
	if _, err := s.RefreshStatuses(ctx, scope); err != nil {
		return nil, err
	}

	q := s.db.WithContext(ctx).Scopes(scope.Apply("company_id"), licenseFilters(f))

	var licenses []models.License
	if err := q.Preload("Company").Order("expiry_date ASC").Order("id ASC").Find(&licenses).Error; err != nil {
		return nil, persistence(err)
	}
	return licenses, nil
}

func licenseFilters(f LicenseFilter) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if f.CompanyID != 0 {
			db = db.Where("company_id = ?", f.CompanyID)
		}
		if f.LicenseType != "" {
			db = db.Where("license_type = ?", f.LicenseType)
		}
		if f.Status != "" {
			db = db.Where("status = ?", f.Status)
		}
		return db
	}
}

// Types returns the distinct license types present in scope
func (s *LicenseService) Types(ctx context.Context, actor Actor) ([]string, error) {
	if err := actor.require(policy.ViewOwnCompanyData); err != nil {
		return nil, err
	}

	var types []string
	err := s.db.WithContext(ctx).Model(&models.License{}).
		Scopes(actor.Scope().Apply("company_id")).
		Distinct().
		Order("license_type").
		Pluck("license_type", &types).Error
	if err != nil {
		return nil, persistence(err)
	}
	return types, nil
}

// Get returns one license with a current status and records the view.
func (s *LicenseService) Get(ctx context.Context, actor Actor, id uint) (*models.License, error) {
	license, err := s.visible(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	if license.RefreshStatus(s.Today()) {
		if err := s.db.WithContext(ctx).Model(&models.License{}).Where("id = ?", license.ID).Update("status", license.Status).Error; err != nil {
			return nil, persistence(err)
		}
		s.metrics.IncLicenseStatusChange(string(license.Status))
	}

	s.audit.Record(ctx, AuditEntry{
		Actor:      actor,
		Action:     models.ActionViewed,
		EntityType: models.EntityLicense,
		EntityID:   license.ID,
		Details:    fmt.Sprintf("Viewed license %s", license.LicenseType),
	})
	return license, nil
}

// visible loads a license and checks it against the actor's scope.
func (s *LicenseService) visible(ctx context.Context, actor Actor, id uint) (*models.License, error) {
	if err := actor.require(policy.ViewOwnCompanyData); err != nil {
		return nil, err
	}
	var license models.License
	if err := s.db.WithContext(ctx).Preload("Company").First(&license, id).Error; err != nil {
		return nil, lookupErr(err, ErrLicenseNotFound)
	}
	if !actor.Scope().Allows(license.CompanyID) {
		return nil, ErrAccessDenied
	}
	return &license, nil
}

func (s *LicenseService) Create(ctx context.Context, actor Actor, in LicenseInput) (*LicenseResult, error) {
	if err := actor.require(policy.EditRecords); err != nil {
		return nil, err
	}
	if err := validateLicense(&in); err != nil {
		return nil, err
	}

	license := &models.License{
		CompanyID:   in.CompanyID,
		LicenseType: in.LicenseType,
		IssuingBody: in.IssuingBody,
		IssueDate:   models.DateOf(in.IssueDate),
		ExpiryDate:  models.DateOf(in.ExpiryDate),
		Notes:       in.Notes,
		CreatedBy:   actor.id(),
	}
	license.RefreshStatus(s.Today())

	result := &LicenseResult{License: license}
	var stored string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureCompanyExists(tx, in.CompanyID); err != nil {
			return err
		}
		ref, warning, err := attachDocument(s.storage, in.Document, CategoryLicenses)
		if err != nil {
			return err
		}
		stored = ref
		license.DocumentPath, result.Warning = ref, warning
		return tx.Create(license).Error
	})
	if err != nil {
		discardDocument(s.storage, stored)
		return nil, txErr(err)
	}

	s.audit.Record(ctx, AuditEntry{
		Actor:      actor,
		Action:     models.ActionCreated,
		EntityType: models.EntityLicense,
		EntityID:   license.ID,
		Details:    fmt.Sprintf("Created license %s for company %d", license.LicenseType, license.CompanyID),
	})
	return result, nil
}

// Update replaces every editable field. The stored document is kept unless
// a new one is accepted.
func (s *LicenseService) Update(ctx context.Context, actor Actor, id uint, in LicenseInput) (*LicenseResult, error) {
	if err := actor.require(policy.EditRecords); err != nil {
		return nil, err
	}
	if err := validateLicense(&in); err != nil {
		return nil, err
	}

	result := &LicenseResult{}
	var stored string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var license models.License
		if err := tx.First(&license, id).Error; err != nil {
			return lookupErr(err, ErrLicenseNotFound)
		}
		if err := ensureCompanyExists(tx, in.CompanyID); err != nil {
			return err
		}

		license.CompanyID = in.CompanyID
		license.LicenseType = in.LicenseType
		license.IssuingBody = in.IssuingBody
		license.IssueDate = models.DateOf(in.IssueDate)
		license.ExpiryDate = models.DateOf(in.ExpiryDate)
		license.Notes = in.Notes
		license.RefreshStatus(s.Today())

		ref, warning, err := attachDocument(s.storage, in.Document, CategoryLicenses)
		if err != nil {
			return err
		}
		stored = ref
		if ref != "" {
			license.DocumentPath = ref
		}
		result.Warning = warning

		if err := tx.Save(&license).Error; err != nil {
			return err
		}
		result.License = &license
		return nil
	})
	if err != nil {
		discardDocument(s.storage, stored)
		return nil, txErr(err)
	}

	s.audit.Record(ctx, AuditEntry{
		Actor:      actor,
		Action:     models.ActionUpdated,
		EntityType: models.EntityLicense,
		EntityID:   result.License.ID,
		Details:    fmt.Sprintf("Updated license %s", result.License.LicenseType),
	})
	return result, nil
}

func (s *LicenseService) Delete(ctx context.Context, actor Actor, id uint) error {
	if err := actor.require(policy.DeleteLicense); err != nil {
		return err
	}

	var licenseType string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var license models.License
		if err := tx.First(&license, id).Error; err != nil {
			return lookupErr(err, ErrLicenseNotFound)
		}
		licenseType = license.LicenseType
		return tx.Delete(&license).Error
	})
	if err != nil {
		return txErr(err)
	}

	s.audit.Record(ctx, AuditEntry{
		Actor:      actor,
		Action:     models.ActionDeleted,
		EntityType: models.EntityLicense,
		EntityID:   id,
		Details:    fmt.Sprintf("Deleted license %s", licenseType),
	})
	return nil
}

// Document resolves the stored document of a visible license to a path on
// disk and a download name.
func (s *LicenseService) Document(ctx context.Context, actor Actor, id uint) (string, string, error) {
	license, err := s.visible(ctx, actor, id)
	if err != nil {
		return "", "", err
	}
	path, err := s.storage.Path(license.DocumentPath)
	if err != nil {
		return "", "", err
	}
	return path, filepath.Base(path), nil
}

// attachDocument stores an optional upload. A rejected file yields a
// warning instead of an error so the record can still be saved.
func attachDocument(storage *DocumentStorage, fh *multipart.FileHeader, category string) (string, string, error) {
	if fh == nil || fh.Filename == "" {
		return "", "", nil
	}
	if storage == nil {
		return "", "document storage is not configured; saved without document", nil
	}
	ref, err := storage.Save(fh, category)
	if errors.Is(err, ErrUploadRejected) {
		log.Warn().Err(err).Str("filename", fh.Filename).Msg("upload rejected")
		return "", err.Error() + "; saved without document", nil
	}
	if err != nil {
		return "", "", err
	}
	return ref, "", nil
}

// discardDocument removes a file stored by a transaction that did not commit
func discardDocument(storage *DocumentStorage, ref string) {
	if ref == "" {
		return
	}
	if err := storage.Remove(ref); err != nil {
		log.Warn().Err(err).Str("ref", ref).Msg("failed to remove orphaned upload")
	}
}

func validateLicense(in *LicenseInput) error {
	in.LicenseType = strings.TrimSpace(in.LicenseType)
	in.IssuingBody = strings.TrimSpace(in.IssuingBody)
	in.Notes = strings.TrimSpace(in.Notes)

	switch {
	case in.CompanyID == 0:
		return invalid("company_id", "is required")
	case in.LicenseType == "":
		return invalid("license_type", "is required")
	case in.IssuingBody == "":
		return invalid("issuing_body", "is required")
	case in.IssueDate.IsZero():
		return invalid("issue_date", "is required")
	case in.ExpiryDate.IsZero():
		return invalid("expiry_date", "is required")
	case models.DateOf(in.ExpiryDate).Before(models.DateOf(in.IssueDate)):
		return invalid("expiry_date", "must not be before the issue date")
	}
	return nil
}

func ensureCompanyExists(tx *gorm.DB, id uint) error {
	var count int64
	if err := tx.Model(&models.Company{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return invalid("company_id", "company does not exist")
	}
	return nil
}
