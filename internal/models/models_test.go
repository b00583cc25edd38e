package models

import (
	"path/filepath"
	"testing"
	"time"

	"compliance-tracker/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestDeriveStatus(t *testing.T) {
	today := date(2024, time.June, 1)

	tests := []struct {
		name   string
		expiry time.Time
		want   LicenseStatus
	}{
		{"yesterday", today.AddDate(0, 0, -1), LicenseExpired},
		{"long ago", date(2020, time.January, 1), LicenseExpired},
		{"today", today, LicensePendingRenewal},
		{"in 14 days", date(2024, time.June, 15), LicensePendingRenewal},
		{"in 30 days", today.AddDate(0, 0, 30), LicensePendingRenewal},
		{"in 31 days", today.AddDate(0, 0, 31), LicenseActive},
		{"next year", date(2025, time.June, 1), LicenseActive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveStatus(tt.expiry, today))
		})
	}
}

func TestDeriveStatusIgnoresTimeOfDay(t *testing.T) {
	lagos := time.FixedZone("WAT", 3600)
	lateToday := time.Date(2024, time.June, 1, 23, 59, 0, 0, lagos)

	assert.Equal(t, LicensePendingRenewal, DeriveStatus(date(2024, time.June, 1), lateToday))
	assert.Equal(t, LicenseExpired, DeriveStatus(date(2024, time.May, 31), lateToday))
	assert.Equal(t, 14, DaysUntil(date(2024, time.June, 15), lateToday))
}

func TestLicenseRefreshStatus(t *testing.T) {
	l := &License{ExpiryDate: date(2024, time.June, 15), Status: LicenseActive}

	assert.True(t, l.RefreshStatus(date(2024, time.June, 1)))
	assert.Equal(t, LicensePendingRenewal, l.Status)

	// idempotent
	assert.False(t, l.RefreshStatus(date(2024, time.June, 1)))

	assert.True(t, l.RefreshStatus(date(2024, time.July, 1)))
	assert.Equal(t, LicenseExpired, l.Status)
	assert.Equal(t, -16, l.DaysUntilExpiry(date(2024, time.July, 1)))
}

func TestPeriod(t *testing.T) {
	assert.Equal(t, "2024-03", Period(2024, 3))
	assert.Equal(t, "2024-12", Period(2024, 12))
	assert.Equal(t, "0999-01", Period(999, 1))
}

func TestRemittanceBeforeSave(t *testing.T) {
	r := &Remittance{Month: 3, Year: 2024, Period: "stale"}
	require.NoError(t, r.BeforeSave(nil))
	assert.Equal(t, "2024-03", r.Period)

	r.Month, r.Year = 11, 2023
	require.NoError(t, r.BeforeSave(nil))
	assert.Equal(t, "2023-11", r.Period)
}

func TestRoleOrdering(t *testing.T) {
	assert.True(t, RoleAdmin.AtLeast(RoleComplianceOfficer))
	assert.True(t, RoleComplianceOfficer.AtLeast(RoleComplianceOfficer))
	assert.True(t, RoleComplianceOfficer.AtLeast(RoleClient))
	assert.False(t, RoleClient.AtLeast(RoleComplianceOfficer))
	assert.False(t, Role("auditor").AtLeast(RoleClient))
	assert.False(t, Role("").Valid())
}

func TestStatusValid(t *testing.T) {
	assert.True(t, RemittanceVerified.Valid())
	assert.False(t, RemittanceStatus("paid").Valid())
	assert.True(t, LicenseExpired.Valid())
	assert.False(t, LicenseStatus("revoked").Valid())
}

func TestMySQLDSN(t *testing.T) {
	dsn := MySQLDSN(config.MySQLConfig{
		Host:     "db.internal",
		Port:     3306,
		Username: "app",
		Password: "secret",
		Database: "compliance",
		Charset:  "utf8mb4",
	})

	assert.Contains(t, dsn, "app:secret@tcp(db.internal:3306)/compliance")
	assert.Contains(t, dsn, "parseTime=true")
	assert.Contains(t, dsn, "charset=utf8mb4")
}

func TestOpenSQLite(t *testing.T) {
	cfg := &config.Config{
		Database: config.DatabaseConfig{
			Type:   "sqlite",
			SQLite: config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "open.db")},
		},
	}

	db, err := Open(cfg)
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.NoError(t, sqlDB.Ping())
	sqlDB.Close()

	_, err = Open(&config.Config{Database: config.DatabaseConfig{Type: "oracle"}})
	assert.Error(t, err)
}
