// Package policy decides which role may perform which action and which
// companies' rows an actor may see. Handlers and services consult it before
// touching the domain model.
package policy

import (
	"compliance-tracker/internal/models"

	"gorm.io/gorm"
)

type Action string

const (
	ViewOwnCompanyData Action = "view_own_company_data"
	ViewAllCompanies   Action = "view_all_companies"
	EditRecords        Action = "edit_records" // create/edit companies, licenses, remittances
	DeleteCompany      Action = "delete_company"
	DeleteLicense      Action = "delete_license"
	DeleteRemittance   Action = "delete_remittance"
	ManageUsers        Action = "manage_users"
	ViewAuditLog       Action = "view_audit_log"
	ExportDocuments    Action = "export_documents"
)

var minimumRole = map[Action]models.Role{
	ViewOwnCompanyData: models.RoleClient,
	ViewAllCompanies:   models.RoleComplianceOfficer,
	EditRecords:        models.RoleComplianceOfficer,
	DeleteCompany:      models.RoleAdmin,
	DeleteLicense:      models.RoleAdmin,
	DeleteRemittance:   models.RoleAdmin,
	ManageUsers:        models.RoleAdmin,
	ViewAuditLog:       models.RoleComplianceOfficer,
	ExportDocuments:    models.RoleComplianceOfficer,
}

// entryOverrides lists actions whose HTTP entry point admits a lower role
// than the action itself. Compliance officers can reach remittance deletion
// and are refused by the service. Kept as is pending product confirmation.
var entryOverrides = map[Action]models.Role{
	DeleteRemittance: models.RoleComplianceOfficer,
}

// Can reports whether role may perform action. Unknown roles and actions are denied.
func Can(role models.Role, action Action) bool {
	min, ok := minimumRole[action]
	if !ok {
		return false
	}
	return role.AtLeast(min)
}

// CanEnter reports whether role passes the routing-layer gate for action.
func CanEnter(role models.Role, action Action) bool {
	if min, ok := entryOverrides[action]; ok {
		return role.AtLeast(min)
	}
	return Can(role, action)
}

// Scope is the set of companies an actor may see. A nil CompanyID means unrestricted.
type Scope struct {
	CompanyID *uint
}

// ScopeFor restricts a client to the single company on their account. A
// client without a company sees nothing.
func ScopeFor(user *models.User) Scope {
	if user == nil {
		none := uint(0)
		return Scope{CompanyID: &none}
	}
	if !user.IsClient() {
		return Scope{}
	}
	id := uint(0)
	if user.CompanyID != nil {
		id = *user.CompanyID
	}
	return Scope{CompanyID: &id}
}

func (s Scope) Restricted() bool {
	return s.CompanyID != nil
}

// Allows reports whether a row owned by companyID is visible.
func (s Scope) Allows(companyID uint) bool {
	return s.CompanyID == nil || (*s.CompanyID != 0 && *s.CompanyID == companyID)
}

// Apply returns a gorm scope filtering column (a company id column) to the
// visible set.
func (s Scope) Apply(column string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if s.CompanyID == nil {
			return db
		}
		return db.Where(column+" = ?", *s.CompanyID)
	}
}
