package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type RemittanceStatus string

const (
	RemittancePending   RemittanceStatus = "pending"
	RemittanceSubmitted RemittanceStatus = "submitted"
	RemittanceVerified  RemittanceStatus = "verified"
)

func (s RemittanceStatus) Valid() bool {
	switch s {
	case RemittancePending, RemittanceSubmitted, RemittanceVerified:
		return true
	}
	return false
}

// Common remittance types offered to the UI; the column accepts any code.
var RemittanceTypes = []string{"PAYE", "PENCOM", "NHF", "NSITF", "ITF"}

type Remittance struct {
	ID             uint                `json:"id" gorm:"primaryKey"`
	CompanyID      uint                `json:"company_id" gorm:"not null;index"`
	Company        *Company            `json:"company,omitempty" gorm:"constraint:OnDelete:CASCADE"`
	RemittanceType string              `json:"remittance_type" gorm:"type:varchar(50);not null;index"`
	Month          int                 `json:"month" gorm:"not null"`
	Year           int                 `json:"year" gorm:"not null;index"`
	Period         string              `json:"period" gorm:"type:varchar(20);not null;index"`
	Amount         decimal.NullDecimal `json:"amount" gorm:"type:decimal(15,2)"`
	Status         RemittanceStatus    `json:"status" gorm:"type:varchar(20);not null;index"`
	ProofPath      string              `json:"proof_path,omitempty" gorm:"type:varchar(500)"`
	Notes          string              `json:"notes" gorm:"type:text"`
	CreatedBy      uint                `json:"created_by" gorm:"not null"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
}

// Period formats a remittance period as zero-padded "YYYY-MM".
func Period(year, month int) string {
	return fmt.Sprintf("%04d-%02d", year, month)
}

// BeforeSave keeps Period in step with Month and Year on every insert and update.
func (r *Remittance) BeforeSave(tx *gorm.DB) error {
	r.Period = Period(r.Year, r.Month)
	return nil
}
