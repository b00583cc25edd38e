package services

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var (
	ErrValidation     = errors.New("validation failed")
	ErrNotFound       = errors.New("not found")
	ErrAccessDenied   = errors.New("access denied")
	ErrPersistence    = errors.New("persistence error")
	ErrUploadRejected = errors.New("upload rejected")
	ErrConflict       = errors.New("conflict")

	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountDisabled    = errors.New("account has been deactivated")
	ErrInvalidToken       = errors.New("invalid or expired token")

	ErrUserNotFound       = fmt.Errorf("user %w", ErrNotFound)
	ErrCompanyNotFound    = fmt.Errorf("company %w", ErrNotFound)
	ErrLicenseNotFound    = fmt.Errorf("license %w", ErrNotFound)
	ErrRemittanceNotFound = fmt.Errorf("remittance %w", ErrNotFound)
	ErrDocumentNotFound   = fmt.Errorf("document %w", ErrNotFound)

	ErrUserExists    = fmt.Errorf("a user with this email already exists: %w", ErrConflict)
	ErrCompanyExists = fmt.Errorf("a company with this name already exists: %w", ErrConflict)
	ErrLastAdmin     = fmt.Errorf("cannot remove the last admin user: %w", ErrConflict)
	ErrCompanyInUse  = fmt.Errorf("company still has client users assigned: %w", ErrConflict)

	ErrSelfDelete = fmt.Errorf("you cannot delete your own account: %w", ErrAccessDenied)
)

// ValidationError is a user-correctable problem with a single input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

func persistence(err error) error {
	return fmt.Errorf("%w: %w", ErrPersistence, err)
}

// lookupErr maps a gorm lookup failure to notFound or a persistence error.
func lookupErr(err, notFound error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound
	}
	return persistence(err)
}

// txErr passes domain errors through and wraps everything else as a
// persistence failure.
func txErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrValidation), errors.Is(err, ErrNotFound),
		errors.Is(err, ErrAccessDenied), errors.Is(err, ErrConflict),
		errors.Is(err, ErrPersistence):
		return err
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %w", ErrConflict, err)
	}
	return persistence(err)
}
