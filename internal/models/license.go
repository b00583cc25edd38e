package models

import "time"

type LicenseStatus string

const (
	LicenseActive         LicenseStatus = "active"
	LicensePendingRenewal LicenseStatus = "pending_renewal"
	LicenseExpired        LicenseStatus = "expired"
)

// RenewalWindowDays is how close to expiry a license turns pending_renewal.
const RenewalWindowDays = 30

func (s LicenseStatus) Valid() bool {
	switch s {
	case LicenseActive, LicensePendingRenewal, LicenseExpired:
		return true
	}
	return false
}

type License struct {
	ID           uint          `json:"id" gorm:"primaryKey"`
	CompanyID    uint          `json:"company_id" gorm:"not null;index"`
	Company      *Company      `json:"company,omitempty" gorm:"constraint:OnDelete:CASCADE"`
	LicenseType  string        `json:"license_type" gorm:"type:varchar(100);not null;index"`
	IssuingBody  string        `json:"issuing_body" gorm:"type:varchar(100);not null"`
	IssueDate    time.Time     `json:"issue_date" gorm:"type:date;not null"`
	ExpiryDate   time.Time     `json:"expiry_date" gorm:"type:date;not null;index"`
	Status       LicenseStatus `json:"status" gorm:"type:varchar(20);not null;index"`
	DocumentPath string        `json:"document_path,omitempty" gorm:"type:varchar(500)"`
	Notes        string        `json:"notes" gorm:"type:text"`
	CreatedBy    uint          `json:"created_by" gorm:"not null"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// DateOf truncates t to its calendar date, expressed as UTC midnight.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysUntil returns the number of calendar days from today to expiry,
// negative once expiry has passed.
func DaysUntil(expiry, today time.Time) int {
	return int(DateOf(expiry).Sub(DateOf(today)).Hours() / 24)
}

// DeriveStatus maps an expiry date to a license status relative to today.
func DeriveStatus(expiry, today time.Time) LicenseStatus {
	days := DaysUntil(expiry, today)
	switch {
	case days < 0:
		return LicenseExpired
	case days <= RenewalWindowDays:
		return LicensePendingRenewal
	default:
		return LicenseActive
	}
}

// RefreshStatus recomputes Status and reports whether it changed.
func (l *License) RefreshStatus(today time.Time) bool {
	status := DeriveStatus(l.ExpiryDate, today)
	if status == l.Status {
		return false
	}
	l.Status = status
	return true
}

func (l *License) DaysUntilExpiry(today time.Time) int {
	return DaysUntil(l.ExpiryDate, today)
}
