package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"compliance-tracker/internal/config"
	"compliance-tracker/internal/metrics"
	"compliance-tracker/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const devSecret = "compliance-tracker-dev-secret-change-in-production"

type AuthService struct {
	db      *gorm.DB
	cfg     *config.Config
	audit   *AuditRecorder
	metrics *metrics.Metrics
	now     Clock
}

func NewAuthService(db *gorm.DB, cfg *config.Config, audit *AuditRecorder, m *metrics.Metrics, clock Clock) *AuthService {
	return &AuthService{db: db, cfg: cfg, audit: audit, metrics: m, now: systemClock(clock)}
}

// Claims carried by a session token
type Claims struct {
	UserID uint        `json:"user_id"`
	Email  string      `json:"email"`
	Role   models.Role `json:"role"`
	jwt.RegisteredClaims
}

type LoginResult struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *models.User `json:"user"`
}

// NormalizeEmail lower-cases and trims an address for storage and lookup
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// HashPassword hashes a password using bcrypt
func (s *AuthService) HashPassword(password string) (string, error) {
	cost := s.cfg.Security.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	return string(bytes), err
}

// VerifyPassword verifies a password against a hash
func (s *AuthService) VerifyPassword(hashedPassword, password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
	return err == nil
}

// Authenticate verifies credentials and returns the user. A deactivated
// account is refused with ErrAccountDisabled even when the password matches.
func (s *AuthService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", NormalizeEmail(email)).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, persistence(err)
	}

	if !s.VerifyPassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}

	if !user.IsActive {
		return nil, ErrAccountDisabled
	}

	return &user, nil
}

// Login authenticates, issues a token and persists it as a session.
func (s *AuthService) Login(ctx context.Context, email, password, ip, userAgent string) (*LoginResult, error) {
	user, err := s.Authenticate(ctx, email, password)
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		s.metrics.IncLogin("invalid")
		return nil, err
	case errors.Is(err, ErrAccountDisabled):
		s.metrics.IncLogin("disabled")
		return nil, err
	case err != nil:
		return nil, err
	}

	token, expiresAt, err := s.GenerateToken(user)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	if err := s.CreateSession(ctx, user.ID, token, expiresAt); err != nil {
		return nil, persistence(err)
	}

	s.metrics.IncLogin("success")
	s.audit.Record(ctx, AuditEntry{
		Actor:      Actor{User: user, IP: ip, UserAgent: userAgent},
		Action:     models.ActionLogin,
		EntityType: models.EntityUser,
		EntityID:   user.ID,
		Details:    fmt.Sprintf("User %s logged in", user.Email),
	})

	return &LoginResult{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

// Logout destroys the session behind token.
func (s *AuthService) Logout(ctx context.Context, actor Actor, token string) error {
	if err := s.DeleteSession(ctx, token); err != nil {
		return persistence(err)
	}
	s.audit.Record(ctx, AuditEntry{
		Actor:      actor,
		Action:     models.ActionLogout,
		EntityType: models.EntityUser,
		EntityID:   actor.id(),
		Details:    fmt.Sprintf("User %s logged out", actor.email()),
	})
	return nil
}

func (s *AuthService) secret() []byte {
	if s.cfg.JWT.Secret == "" {
		return []byte(devSecret)
	}
	return []byte(s.cfg.JWT.Secret)
}

func (s *AuthService) sessionLifetime() time.Duration {
	d, err := time.ParseDuration(s.cfg.JWT.ExpiresIn)
	if err != nil || d <= 0 {
		return 24 * time.Hour
	}
	return d
}

// GenerateToken signs an HS256 token for user
func (s *AuthService) GenerateToken(user *models.User) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.sessionLifetime())

	claims := Claims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.cfg.JWT.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret())
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// ParseToken verifies the signature and expiry of a token
func (s *AuthService) ParseToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret(), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// CreateSession creates a new session record
func (s *AuthService) CreateSession(ctx context.Context, userID uint, token string, expiresAt time.Time) error {
	session := &models.Session{
		UserID:    userID,
		Token:     token,
		ExpiresAt: expiresAt,
	}
	return s.db.WithContext(ctx).Create(session).Error
}

// GetSession resolves a bearer token to a live session of an active user.
func (s *AuthService) GetSession(ctx context.Context, token string) (*models.Session, error) {
	if _, err := s.ParseToken(token); err != nil {
		return nil, err
	}

	var session models.Session
	err := s.db.WithContext(ctx).
		Where("token = ? AND expires_at > ?", token, s.now()).
		Preload("User").
		First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, persistence(err)
	}

	if !session.User.IsActive {
		return nil, ErrAccountDisabled
	}
	return &session, nil
}

// DeleteSession deletes a session
func (s *AuthService) DeleteSession(ctx context.Context, token string) error {
	return s.db.WithContext(ctx).Where("token = ?", token).Delete(&models.Session{}).Error
}

// DeleteExpiredSessions removes expired sessions
func (s *AuthService) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).Where("expires_at < ?", s.now()).Delete(&models.Session{})
	return res.RowsAffected, res.Error
}

// ChangePassword replaces the actor's own password after checking the current one.
func (s *AuthService) ChangePassword(ctx context.Context, actor Actor, current, next string) error {
	if actor.User == nil {
		return ErrAccessDenied
	}
	if err := validatePassword(next); err != nil {
		return err
	}

	var user models.User
	if err := s.db.WithContext(ctx).First(&user, actor.User.ID).Error; err != nil {
		return lookupErr(err, ErrUserNotFound)
	}
	if !s.VerifyPassword(user.PasswordHash, current) {
		return invalid("current_password", "current password is incorrect")
	}

	hash, err := s.HashPassword(next)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Model(&user).Update("password_hash", hash).Error; err != nil {
		return persistence(err)
	}

	s.audit.Record(ctx, AuditEntry{
		Actor:      actor,
		Action:     models.ActionUpdated,
		EntityType: models.EntityUser,
		EntityID:   user.ID,
		Details:    fmt.Sprintf("Changed password for %s", user.Email),
	})
	return nil
}

// CreateDefaultUser creates the bootstrap admin when no user exists yet
func (s *AuthService) CreateDefaultUser(ctx context.Context) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Count(&count).Error; err != nil {
		return persistence(err)
	}
	if count > 0 {
		return nil
	}

	def := s.cfg.DefaultUser
	if def.Email == "" || def.Password == "" {
		log.Warn().Msg("user table is empty and no default user is configured")
		return nil
	}

	role := models.Role(def.Role)
	if role == "" {
		role = models.RoleAdmin
	}
	if !role.Valid() {
		return invalid("role", fmt.Sprintf("unknown role %q", def.Role))
	}
	if role == models.RoleClient {
		return invalid("role", "the default user cannot be a client")
	}

	hash, err := s.HashPassword(def.Password)
	if err != nil {
		return err
	}

	user := &models.User{
		Email:        NormalizeEmail(def.Email),
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
	}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return persistence(err)
	}

	log.Info().Str("email", user.Email).Str("role", string(user.Role)).Msg("created default user")
	return nil
}

const (
	minPasswordLength = 8
	// bcrypt refuses longer inputs
	maxPasswordBytes = 72
)

func validatePassword(p string) error {
	if len(p) < minPasswordLength {
		return invalid("password", fmt.Sprintf("must be at least %d characters", minPasswordLength))
	}
	if len(p) > maxPasswordBytes {
		return invalid("password", fmt.Sprintf("must be at most %d bytes", maxPasswordBytes))
	}
	return nil
}
