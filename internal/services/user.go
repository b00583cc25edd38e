package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"compliance-tracker/internal/models"
	"compliance-tracker/internal/policy"

	"gorm.io/gorm"
)

type UserService struct {
	db    *gorm.DB
	auth  *AuthService
	audit *AuditRecorder
}

func NewUserService(db *gorm.DB, auth *AuthService, audit *AuditRecorder) *UserService {
	return &UserService{db: db, auth: auth, audit: audit}
}

type CreateUserInput struct {
	Email     string
	Password  string
	Role      models.Role
	CompanyID *uint
	IsActive  *bool
}

// UpdateUserInput carries optional changes; nil fields are left alone.
// CompanyID is applied whenever the resulting role is client.
type UpdateUserInput struct {
	Email     *string
	Password  *string
	Role      *models.Role
	CompanyID *uint
	IsActive  *bool
}

// List returns all users, newest first
func (s *UserService) List(ctx context.Context, actor Actor) ([]models.User, error) {
	if err := actor.require(policy.ManageUsers); err != nil {
		return nil, err
	}

	var users []models.User
	if err := s.db.WithContext(ctx).Preload("Company").Order("created_at DESC").Order("id DESC").Find(&users).Error; err != nil {
		return nil, persistence(err)
	}
	return users, nil
}

// Get returns a specific user by ID
func (s *UserService) Get(ctx context.Context, actor Actor, id uint) (*models.User, error) {
	if err := actor.require(policy.ManageUsers); err != nil {
		return nil, err
	}
	return s.find(s.db.WithContext(ctx), id)
}

func (s *UserService) find(tx *gorm.DB, id uint) (*models.User, error) {
	var user models.User
	if err := tx.Preload("Company").First(&user, id).Error; err != nil {
		return nil, lookupErr(err, ErrUserNotFound)
	}
	return &user, nil
}

// Create adds a user. Client users must name an existing company; the
// company reference of any other role is dropped.
func (s *UserService) Create(ctx context.Context, actor Actor, in CreateUserInput) (*models.User, error) {
	if err := actor.require(policy.ManageUsers); err != nil {
		return nil, err
	}

	email := NormalizeEmail(in.Email)
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if !in.Role.Valid() {
		return nil, invalid("role", "invalid role selected")
	}
	if err := validatePassword(in.Password); err != nil {
		return nil, err
	}

	hash, err := s.auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Email:        email,
		PasswordHash: hash,
		Role:         in.Role,
		IsActive:     in.IsActive == nil || *in.IsActive,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureEmailFree(tx, email, 0); err != nil {
			return err
		}
		companyID, err := resolveUserCompany(tx, user.Role, in.CompanyID)
		if err != nil {
			return err
		}
		user.CompanyID = companyID
		return tx.Create(user).Error
	})
	if err != nil {
		return nil, txErr(err)
	}

	s.audit.Record(ctx, AuditEntry{
		Actor:      actor,
		Action:     models.ActionCreated,
		EntityType: models.EntityUser,
		EntityID:   user.ID,
		Details:    fmt.Sprintf("Created user %s with role %s", user.Email, user.Role),
	})
	return s.find(s.db.WithContext(ctx), user.ID)
}

// Update edits a user. Demoting or deactivating the last active admin is
// refused, and deactivation ends the user's sessions.
func (s *UserService) Update(ctx context.Context, actor Actor, id uint, in UpdateUserInput) (*models.User, error) {
	if err := actor.require(policy.ManageUsers); err != nil {
		return nil, err
	}

	var user *models.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		user, err = s.find(tx, id)
		if err != nil {
			return err
		}
		wasAdmin := user.IsAdmin() && user.IsActive

		if in.Email != nil {
			email := NormalizeEmail(*in.Email)
			if err := validateEmail(email); err != nil {
				return err
			}
			if email != user.Email {
				if err := ensureEmailFree(tx, email, user.ID); err != nil {
					return err
				}
			}
			user.Email = email
		}

		if in.Role != nil {
			if !in.Role.Valid() {
				return invalid("role", "invalid role selected")
			}
			user.Role = *in.Role
		}

		if in.IsActive != nil {
			if !*in.IsActive && user.ID == actor.id() {
				return invalid("is_active", "you cannot deactivate your own account")
			}
			user.IsActive = *in.IsActive
		}

		requested := in.CompanyID
		if requested == nil {
			requested = user.CompanyID
		}
		companyID, err := resolveUserCompany(tx, user.Role, requested)
		if err != nil {
			return err
		}
		user.CompanyID = companyID
		user.Company = nil

		if in.Password != nil && *in.Password != "" {
			if err := validatePassword(*in.Password); err != nil {
				return err
			}
			hash, err := s.auth.HashPassword(*in.Password)
			if err != nil {
				return err
			}
			user.PasswordHash = hash
		}

		if wasAdmin && !(user.IsAdmin() && user.IsActive) {
			if err := ensureAnotherAdmin(tx, user.ID); err != nil {
				return err
			}
		}

		if err := tx.Save(user).Error; err != nil {
			return err
		}

		if !user.IsActive {
			return tx.Where("user_id = ?", user.ID).Delete(&models.Session{}).Error
		}
		return nil
	})
	if err != nil {
		return nil, txErr(err)
	}

	s.audit.Record(ctx, AuditEntry{
		Actor:      actor,
		Action:     models.ActionUpdated,
		EntityType: models.EntityUser,
		EntityID:   user.ID,
		Details:    fmt.Sprintf("Updated user %s", user.Email),
	})
	return s.find(s.db.WithContext(ctx), user.ID)
}

// Delete removes a user and their sessions. Nobody can delete their own
// account, and the last admin cannot be removed.
func (s *UserService) Delete(ctx context.Context, actor Actor, id uint) error {
	if err := actor.require(policy.ManageUsers); err != nil {
		return err
	}
	if id == actor.id() {
		return ErrSelfDelete
	}

	var email string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := s.find(tx, id)
		if err != nil {
			return err
		}
		email = user.Email

		if user.IsAdmin() && user.IsActive {
			if err := ensureAnotherAdmin(tx, user.ID); err != nil {
				return err
			}
		}

		if err := tx.Where("user_id = ?", user.ID).Delete(&models.Session{}).Error; err != nil {
			return err
		}
		return tx.Delete(user).Error
	})
	if err != nil {
		return txErr(err)
	}

	s.audit.Record(ctx, AuditEntry{
		Actor:      actor,
		Action:     models.ActionDeleted,
		EntityType: models.EntityUser,
		EntityID:   id,
		Details:    fmt.Sprintf("Deleted user %s", email),
	})
	return nil
}

func validateEmail(email string) error {
	if email == "" {
		return invalid("email", "is required")
	}
	at := strings.Index(email, "@")
	if at < 1 || at == len(email)-1 || strings.ContainsAny(email, " \t") {
		return invalid("email", "is not a valid address")
	}
	return nil
}

func ensureEmailFree(tx *gorm.DB, email string, exceptID uint) error {
	var count int64
	q := tx.Model(&models.User{}).Where("email = ?", email)
	if exceptID != 0 {
		q = q.Where("id <> ?", exceptID)
	}
	if err := q.Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return ErrUserExists
	}
	return nil
}

// resolveUserCompany enforces that exactly client users carry a company.
func resolveUserCompany(tx *gorm.DB, role models.Role, companyID *uint) (*uint, error) {
	if role != models.RoleClient {
		return nil, nil
	}
	if companyID == nil || *companyID == 0 {
		return nil, invalid("company_id", "client users must be assigned to a company")
	}

	var company models.Company
	if err := tx.Select("id").First(&company, *companyID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, invalid("company_id", "company does not exist")
		}
		return nil, err
	}
	id := company.ID
	return &id, nil
}

func ensureAnotherAdmin(tx *gorm.DB, exceptID uint) error {
	var count int64
	err := tx.Model(&models.User{}).
		Where("role = ? AND is_active = ? AND id <> ?", models.RoleAdmin, true, exceptID).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrLastAdmin
	}
	return nil
}
