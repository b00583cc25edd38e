package services

import (
	"context"
	"unicode/utf8"

	"compliance-tracker/internal/metrics"
	"compliance-tracker/internal/models"
	"compliance-tracker/internal/policy"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// AuditStore persists audit rows. It never updates or deletes them.
type AuditStore interface {
	Append(ctx context.Context, entry *models.AuditLog) error
}

type GormAuditStore struct {
	db *gorm.DB
}

// NewGormAuditStore writes through a fresh session so an audit row never
// joins a caller's transaction.
func NewGormAuditStore(db *gorm.DB) *GormAuditStore {
	return &GormAuditStore{db: db.Session(&gorm.Session{NewDB: true})}
}

func (s *GormAuditStore) Append(ctx context.Context, entry *models.AuditLog) error {
	return s.db.WithContext(ctx).Create(entry).Error
}

// AuditEntry describes one action to record.
type AuditEntry struct {
	Actor      Actor
	Action     string
	EntityType string
	EntityID   uint
	Details    string
}

// AuditRecorder appends audit rows on a best-effort basis. Callers record
// after their own transaction has committed; a failed write is logged and
// counted but never returned.
type AuditRecorder struct {
	store   AuditStore
	metrics *metrics.Metrics
	now     Clock
}

func NewAuditRecorder(store AuditStore, m *metrics.Metrics, clock Clock) *AuditRecorder {
	return &AuditRecorder{store: store, metrics: m, now: systemClock(clock)}
}

func (r *AuditRecorder) Record(ctx context.Context, e AuditEntry) {
	if r == nil || r.store == nil {
		return
	}

	row := &models.AuditLog{
		UserID:     e.Actor.id(),
		Action:     e.Action,
		EntityType: e.EntityType,
		EntityID:   e.EntityID,
		Details:    e.Details,
		IPAddress:  e.Actor.IP,
		UserAgent:  truncate(e.Actor.UserAgent, 500),
		CreatedAt:  r.now().UTC(),
	}
	if e.Actor.User != nil {
		row.UserEmail = e.Actor.User.Email
	}

	if err := r.store.Append(ctx, row); err != nil {
		r.metrics.IncAuditWriteFailure()
		log.Error().
			Err(err).
			Uint("user_id", row.UserID).
			Str("action", row.Action).
			Str("entity_type", row.EntityType).
			Uint("entity_id", row.EntityID).
			Msg("failed to write audit log")
	}
}

// truncate cuts s to at most n bytes without splitting a rune
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 500
)

type AuditFilter struct {
	UserID     uint
	Action     string
	EntityType string
	Limit      int
}

type AuditService struct {
	db *gorm.DB
}

func NewAuditService(db *gorm.DB) *AuditService {
	return &AuditService{db: db}
}

// List returns audit rows newest first.
func (s *AuditService) List(ctx context.Context, actor Actor, f AuditFilter) ([]models.AuditLog, error) {
	if err := actor.require(policy.ViewAuditLog); err != nil {
		return nil, err
	}

	limit := f.Limit
	if limit <= 0 {
		limit = defaultAuditLimit
	}
	if limit > maxAuditLimit {
		limit = maxAuditLimit
	}

	q := s.db.WithContext(ctx).Model(&models.AuditLog{})
	if f.UserID != 0 {
		q = q.Where("user_id = ?", f.UserID)
	}
	if f.Action != "" {
		q = q.Where("action = ?", f.Action)
	}
	if f.EntityType != "" {
		q = q.Where("entity_type = ?", f.EntityType)
	}

	var logs []models.AuditLog
	if err := q.Order("created_at DESC").Order("id DESC").Limit(limit).Find(&logs).Error; err != nil {
		return nil, persistence(err)
	}
	return logs, nil
}

// Recent returns the newest audit rows visible in scope. A restricted scope
// only sees rows about its own company's licenses and remittances.
func (s *AuditService) Recent(ctx context.Context, scope policy.Scope, limit int) ([]models.AuditLog, error) {
	q := s.db.WithContext(ctx).Model(&models.AuditLog{})
	if scope.Restricted() {
		companyID := *scope.CompanyID
		licenseIDs := s.db.Model(&models.License{}).Select("id").Where("company_id = ?", companyID)
		remittanceIDs := s.db.Model(&models.Remittance{}).Select("id").Where("company_id = ?", companyID)
		q = q.Where(
			s.db.Where("entity_type = ? AND entity_id IN (?)", models.EntityLicense, licenseIDs).
				Or("entity_type = ? AND entity_id IN (?)", models.EntityRemittance, remittanceIDs),
		)
	}

	var logs []models.AuditLog
	if err := q.Order("created_at DESC").Order("id DESC").Limit(limit).Find(&logs).Error; err != nil {
		return nil, persistence(err)
	}
	return logs, nil
}

