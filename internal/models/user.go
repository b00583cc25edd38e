package models

import (
	"time"
)

type Role string

const (
	RoleClient            Role = "client"
	RoleComplianceOfficer Role = "compliance_officer"
	RoleAdmin             Role = "admin"
)

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	return r.rank() > 0
}

// AtLeast reports whether r is as privileged as other.
// Roles are ordered client < compliance_officer < admin.
func (r Role) AtLeast(other Role) bool {
	return r.Valid() && r.rank() >= other.rank()
}

func (r Role) rank() int {
	switch r {
	case RoleClient:
		return 1
	case RoleComplianceOfficer:
		return 2
	case RoleAdmin:
		return 3
	}
	return 0
}

type User struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	Email        string    `json:"email" gorm:"type:varchar(120);uniqueIndex;not null"`
	PasswordHash string    `json:"-" gorm:"type:varchar(255);not null"`
	Role         Role      `json:"role" gorm:"type:varchar(20);not null"`
	CompanyID    *uint     `json:"company_id" gorm:"index"`
	Company      *Company  `json:"company,omitempty" gorm:"foreignKey:CompanyID"`
	IsActive     bool      `json:"is_active" gorm:"not null"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

func (u *User) IsClient() bool {
	return u.Role == RoleClient
}

type Session struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UserID    uint      `json:"user_id" gorm:"not null;index"`
	Token     string    `json:"-" gorm:"type:varchar(500);uniqueIndex;not null"`
	ExpiresAt time.Time `json:"expires_at" gorm:"not null;index"`
	CreatedAt time.Time `json:"created_at"`
	User      User      `json:"user,omitempty" gorm:"foreignKey:UserID"`
}

// Audit actions
const (
	ActionLogin    = "login"
	ActionLogout   = "logout"
	ActionCreated  = "created"
	ActionUpdated  = "updated"
	ActionDeleted  = "deleted"
	ActionViewed   = "viewed"
	ActionExported = "exported"
)

// Audited entity types
const (
	EntityUser       = "user"
	EntityCompany    = "company"
	EntityLicense    = "license"
	EntityRemittance = "remittance"
)

// AuditLog rows are append-only. UserID and EntityID are plain values so a
// row outlives the user or entity it mentions.
type AuditLog struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	UserID     uint      `json:"user_id" gorm:"not null;index"`
	UserEmail  string    `json:"user_email" gorm:"type:varchar(120)"`
	Action     string    `json:"action" gorm:"type:varchar(50);not null;index"`
	EntityType string    `json:"entity_type" gorm:"type:varchar(50);not null;index"`
	EntityID   uint      `json:"entity_id" gorm:"not null"`
	Details    string    `json:"details" gorm:"type:text"`
	IPAddress  string    `json:"ip_address" gorm:"type:varchar(50)"`
	UserAgent  string    `json:"user_agent" gorm:"type:varchar(500)"`
	CreatedAt  time.Time `json:"timestamp" gorm:"index"`
}
