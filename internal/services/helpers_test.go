package services

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"mime/multipart"
	"path/filepath"
	"testing"
	"time"

	"compliance-tracker/internal/config"
	"compliance-tracker/internal/metrics"
	"compliance-tracker/internal/migrations"
	"compliance-tracker/internal/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type testEnv struct {
	db      *gorm.DB
	cfg     *config.Config
	metrics *metrics.Metrics
	now     time.Time

	auditStore  AuditStore
	audit       *AuditRecorder
	storage     *DocumentStorage
	auth        *AuthService
	users       *UserService
	companies   *CompanyService
	licenses    *LicenseService
	remittances *RemittanceService
	dashboard   *DashboardService
	auditLogs   *AuditService
	reports     *ReportService
	archive     *ArchiveService
}

// setupTestDB opens a migrated sqlite database in a temp dir
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "compliance_test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, migrations.Run(db))

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func newTestEnv(t *testing.T) *testEnv {
	return newTestEnvWithStore(t, nil)
}

// newTestEnvWithStore builds every service on a fresh database. A nil
// store writes audit rows to the database.
func newTestEnvWithStore(t *testing.T, store AuditStore) *testEnv {
	t.Helper()

	e := &testEnv{
		db: setupTestDB(t),
		cfg: &config.Config{
			JWT: config.JWTConfig{
				Secret:    "test-secret-key-for-testing-only",
				ExpiresIn: "24h",
				Issuer:    "compliance-tracker-test",
			},
			Security: config.SecurityConfig{BcryptCost: bcrypt.MinCost},
			Uploads: config.UploadsConfig{
				Dir:               t.TempDir(),
				MaxSize:           1024,
				AllowedExtensions: []string{"pdf", "png", "jpg", "jpeg", "gif"},
			},
		},
		metrics: metrics.New(prometheus.NewRegistry()),
		now:     time.Date(2024, time.June, 1, 10, 0, 0, 0, time.UTC),
	}

	clock := func() time.Time { return e.now }

	if store == nil {
		store = NewGormAuditStore(e.db)
	}
	e.auditStore = store
	e.audit = NewAuditRecorder(store, e.metrics, clock)
	e.storage = NewDocumentStorage(e.cfg.Uploads, e.metrics)
	e.auth = NewAuthService(e.db, e.cfg, e.audit, e.metrics, clock)
	e.users = NewUserService(e.db, e.auth, e.audit)
	e.licenses = NewLicenseService(e.db, e.storage, e.audit, e.metrics, clock)
	e.companies = NewCompanyService(e.db, e.licenses, e.audit)
	e.remittances = NewRemittanceService(e.db, e.storage, e.audit)
	e.auditLogs = NewAuditService(e.db)
	e.dashboard = NewDashboardService(e.db, e.licenses, e.auditLogs)
	e.reports = NewReportService(e.licenses, e.remittances, e.audit, clock)
	e.archive = NewArchiveService(e.db, e.storage, e.audit, clock)
	return e
}

func (e *testEnv) setToday(y int, m time.Month, d int) {
	e.now = time.Date(y, m, d, 10, 0, 0, 0, time.UTC)
}

func (e *testEnv) createUser(t *testing.T, email string, role models.Role, companyID *uint) *models.User {
	t.Helper()
	hash, err := e.auth.HashPassword("password123")
	require.NoError(t, err)

	user := &models.User{
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		CompanyID:    companyID,
		IsActive:     true,
	}
	require.NoError(t, e.db.Create(user).Error)
	return user
}

func (e *testEnv) createCompany(t *testing.T, name string) *models.Company {
	t.Helper()
	company := &models.Company{Name: name, CreatedBy: 1}
	require.NoError(t, e.db.Create(company).Error)
	return company
}

func (e *testEnv) createLicense(t *testing.T, companyID uint, licenseType string, expiry time.Time) *models.License {
	t.Helper()
	license := &models.License{
		CompanyID:   companyID,
		LicenseType: licenseType,
		IssuingBody: "Regulator",
		IssueDate:   expiry.AddDate(-1, 0, 0),
		ExpiryDate:  expiry,
		Status:      models.LicenseActive,
		CreatedBy:   1,
	}
	require.NoError(t, e.db.Create(license).Error)
	return license
}

func (e *testEnv) createRemittance(t *testing.T, companyID uint, remittanceType string, year, month int) *models.Remittance {
	t.Helper()
	r := &models.Remittance{
		CompanyID:      companyID,
		RemittanceType: remittanceType,
		Month:          month,
		Year:           year,
		Status:         models.RemittancePending,
		CreatedBy:      1,
	}
	require.NoError(t, e.db.Create(r).Error)
	return r
}

func (e *testEnv) auditCount(t *testing.T, action, entityType string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Model(&models.AuditLog{}).
		Where("action = ? AND entity_type = ?", action, entityType).Count(&n).Error)
	return n
}

func actorOf(u *models.User) Actor {
	return Actor{User: u, IP: "127.0.0.1", UserAgent: "go-test"}
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func uintPtr(v uint) *uint { return &v }

func boolPtr(v bool) *bool { return &v }

// fileHeader builds a multipart file header as a handler would receive it
func fileHeader(t *testing.T, filename string, content []byte) *multipart.FileHeader {
	t.Helper()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("document", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	form, err := multipart.NewReader(&body, w.Boundary()).ReadForm(1 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { form.RemoveAll() })

	files := form.File["document"]
	require.Len(t, files, 1)
	return files[0]
}

var bg = context.Background()

var errInjected = errors.New("injected failure")

// failCreates makes every insert into table fail from now on
func failCreates(t *testing.T, db *gorm.DB, table string) {
	t.Helper()
	require.NoError(t, db.Callback().Create().Before("gorm:create").
		Register("test:fail_create_"+table, failOnTable(table)))
}

// failUpdates makes every Save or Update of a row in table fail
func failUpdates(t *testing.T, db *gorm.DB, table string) {
	t.Helper()
	require.NoError(t, db.Callback().Update().Before("gorm:update").
		Register("test:fail_update_"+table, failOnTable(table)))
}

// failDeletes makes every delete from table fail
func failDeletes(t *testing.T, db *gorm.DB, table string) {
	t.Helper()
	require.NoError(t, db.Callback().Delete().Before("gorm:delete").
		Register("test:fail_delete_"+table, failOnTable(table)))
}

func failOnTable(table string) func(*gorm.DB) {
	return func(tx *gorm.DB) {
		if tx.Statement.Table == table {
			tx.AddError(errInjected)
		}
	}
}

// storedFiles counts the files under the upload root
func (e *testEnv) storedFiles(t *testing.T) int {
	t.Helper()
	n := 0
	err := filepath.WalkDir(e.cfg.Uploads.Dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			n++
		}
		return nil
	})
	require.NoError(t, err)
	return n
}
