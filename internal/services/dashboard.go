package services

import (
	"context"
	"time"

	"compliance-tracker/internal/models"
	"compliance-tracker/internal/policy"

	"gorm.io/gorm"
)

const (
	upcomingExpiryLimit = 10
	recentActivityLimit = 10
	expiryChartMonths   = 6
)

type DashboardService struct {
	db       *gorm.DB
	licenses *LicenseService
	audit    *AuditService
}

func NewDashboardService(db *gorm.DB, licenses *LicenseService, audit *AuditService) *DashboardService {
	return &DashboardService{db: db, licenses: licenses, audit: audit}
}

type LicenseCounts struct {
	Total          int64 `json:"total"`
	Active         int64 `json:"active"`
	PendingRenewal int64 `json:"pending_renewal"`
	Expired        int64 `json:"expired"`
}

type RemittanceCounts struct {
	Total     int64 `json:"total"`
	Pending   int64 `json:"pending"`
	Submitted int64 `json:"submitted"`
	Verified  int64 `json:"verified"`
}

type UpcomingExpiry struct {
	License       models.License `json:"license"`
	DaysRemaining int            `json:"days_remaining"`
}

type Dashboard struct {
	Today            string            `json:"today"`
	Licenses         LicenseCounts     `json:"licenses"`
	Remittances      RemittanceCounts  `json:"remittances"`
	UpcomingExpiries []UpcomingExpiry  `json:"upcoming_expiries"`
	RecentActivity   []models.AuditLog `json:"recent_activity"`
}

type MonthlyExpiry struct {
	Month string `json:"month"` // YYYY-MM
	Label string `json:"label"` // Jan 2006
	Count int64  `json:"count"`
}

type statusCount struct {
	Status string
	Count  int64
}

// Summary refreshes license statuses in the actor's scope and returns the
// dashboard figures.
func (s *DashboardService) Summary(ctx context.Context, actor Actor) (*Dashboard, error) {
	if err := actor.require(policy.ViewOwnCompanyData); err != nil {
		return nil, err
	}

	scope := actor.Scope()
	if _, err := s.licenses.RefreshStatuses(ctx, scope); err != nil {
		return nil, err
	}

	today := s.licenses.Today()
	d := &Dashboard{Today: today.Format("2006-01-02")}
	db := s.db.WithContext(ctx)

	var licenseRows []statusCount
	if err := db.Model(&models.License{}).Scopes(scope.Apply("company_id")).
		Select("status, count(*) as count").Group("status").Scan(&licenseRows).Error; err != nil {
		return nil, persistence(err)
	}
	for _, r := range licenseRows {
		d.Licenses.Total += r.Count
		switch models.LicenseStatus(r.Status) {
		case models.LicenseActive:
			d.Licenses.Active = r.Count
		case models.LicensePendingRenewal:
			d.Licenses.PendingRenewal = r.Count
		case models.LicenseExpired:
			d.Licenses.Expired = r.Count
		}
	}

	var remittanceRows []statusCount
	if err := db.Model(&models.Remittance{}).Scopes(scope.Apply("company_id")).
		Select("status, count(*) as count").Group("status").Scan(&remittanceRows).Error; err != nil {
		return nil, persistence(err)
	}
	for _, r := range remittanceRows {
		d.Remittances.Total += r.Count
		switch models.RemittanceStatus(r.Status) {
		case models.RemittancePending:
			d.Remittances.Pending = r.Count
		case models.RemittanceSubmitted:
			d.Remittances.Submitted = r.Count
		case models.RemittanceVerified:
			d.Remittances.Verified = r.Count
		}
	}

	var upcoming []models.License
	horizon := today.AddDate(0, 0, models.RenewalWindowDays)
	if err := db.Scopes(scope.Apply("company_id")).
		Where("expiry_date >= ? AND expiry_date <= ?", today, horizon).
		Preload("Company").
		Order("expiry_date ASC").Order("id ASC").
		Limit(upcomingExpiryLimit).
		Find(&upcoming).Error; err != nil {
		return nil, persistence(err)
	}
	d.UpcomingExpiries = make([]UpcomingExpiry, 0, len(upcoming))
	for _, l := range upcoming {
		d.UpcomingExpiries = append(d.UpcomingExpiries, UpcomingExpiry{License: l, DaysRemaining: l.DaysUntilExpiry(today)})
	}

	recent, err := s.audit.Recent(ctx, scope, recentActivityLimit)
	if err != nil {
		return nil, err
	}
	d.RecentActivity = recent

	return d, nil
}

// MonthlyExpiries counts licenses expiring in the current and the next five
// calendar months.
func (s *DashboardService) MonthlyExpiries(ctx context.Context, actor Actor) ([]MonthlyExpiry, error) {
	if err := actor.require(policy.ViewOwnCompanyData); err != nil {
		return nil, err
	}

	scope := actor.Scope()
	today := s.licenses.Today()
	first := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)

	out := make([]MonthlyExpiry, 0, expiryChartMonths)
	for i := 0; i < expiryChartMonths; i++ {
		start := first.AddDate(0, i, 0)
		end := start.AddDate(0, 1, 0)

		var count int64
		err := s.db.WithContext(ctx).Model(&models.License{}).
			Scopes(scope.Apply("company_id")).
			Where("expiry_date >= ? AND expiry_date < ?", start, end).
			Count(&count).Error
		if err != nil {
			return nil, persistence(err)
		}
		out = append(out, MonthlyExpiry{
			Month: start.Format("2006-01"),
			Label: start.Format("Jan 2006"),
			Count: count,
		})
	}
	return out, nil
}
