package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"compliance-tracker/internal/models"
	"compliance-tracker/internal/policy"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockAuditStore struct {
	mock.Mock
}

func (m *mockAuditStore) Append(ctx context.Context, entry *models.AuditLog) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func TestAuditFailureDoesNotFailOperation(t *testing.T) {
	store := new(mockAuditStore)
	store.On("Append", mock.Anything, mock.AnythingOfType("*models.AuditLog")).Return(errors.New("disk full"))

	e := newTestEnvWithStore(t, store)
	officer := e.createUser(t, "officer@example.com", models.RoleComplianceOfficer, nil)

	company, err := e.companies.Create(bg, actorOf(officer), CompanyInput{Name: "Acme"})
	require.NoError(t, err)
	assert.NotZero(t, company.ID)

	var stored models.Company
	require.NoError(t, e.db.First(&stored, company.ID).Error)

	store.AssertNumberOfCalls(t, "Append", 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.AuditWriteFailures))
}

func TestAuditRecorderFillsRow(t *testing.T) {
	store := new(mockAuditStore)
	store.On("Append", mock.Anything, mock.MatchedBy(func(row *models.AuditLog) bool {
		return row.UserID == 7 &&
			row.UserEmail == "who@example.com" &&
			row.Action == models.ActionUpdated &&
			row.EntityID == 3 &&
			len(row.UserAgent) == 500 &&
			row.CreatedAt.Equal(time.Date(2024, time.June, 1, 10, 0, 0, 0, time.UTC))
	})).Return(nil).Once()

	e := newTestEnvWithStore(t, store)
	e.audit.Record(bg, AuditEntry{
		Actor: Actor{
			User:      &models.User{ID: 7, Email: "who@example.com"},
			IP:        "10.0.0.9",
			UserAgent: strings.Repeat("a", 600),
		},
		Action:     models.ActionUpdated,
		EntityType: models.EntityLicense,
		EntityID:   3,
	})

	store.AssertExpectations(t)
	assert.Zero(t, testutil.ToFloat64(e.metrics.AuditWriteFailures))
}

func TestTruncateKeepsRunes(t *testing.T) {
	// "é" is two bytes, so a 5 byte cut would land inside the third rune
	ua := strings.Repeat("é", 300)
	got := truncate(ua, 5)
	assert.Equal(t, "éé", got)
	assert.True(t, utf8.ValidString(got))

	got = truncate("ab"+ua, 500)
	assert.True(t, utf8.ValidString(got))
	assert.Len(t, got, 500)
	assert.Equal(t, "abc", truncate("abc", 500))
}

func TestAuditList(t *testing.T) {
	e := newTestEnv(t)
	admin := e.createUser(t, "admin@example.com", models.RoleAdmin, nil)
	officer := e.createUser(t, "officer@example.com", models.RoleComplianceOfficer, nil)

	for i := 0; i < 60; i++ {
		e.now = e.now.Add(time.Minute)
		e.audit.Record(bg, AuditEntry{Actor: actorOf(officer), Action: models.ActionViewed, EntityType: models.EntityLicense, EntityID: uint(i + 1)})
	}
	e.audit.Record(bg, AuditEntry{Actor: actorOf(admin), Action: models.ActionCreated, EntityType: models.EntityCompany, EntityID: 1})

	_, err := e.auditLogs.List(bg, actorOf(officer), AuditFilter{})
	assert.ErrorIs(t, err, ErrAccessDenied)

	logs, err := e.auditLogs.List(bg, actorOf(admin), AuditFilter{})
	require.NoError(t, err)
	assert.Len(t, logs, defaultAuditLimit)

	logs, err = e.auditLogs.List(bg, actorOf(admin), AuditFilter{UserID: officer.ID, Limit: 5})
	require.NoError(t, err)
	require.Len(t, logs, 5)
	assert.Equal(t, uint(60), logs[0].EntityID, "newest first")

	logs, err = e.auditLogs.List(bg, actorOf(admin), AuditFilter{Action: models.ActionCreated, EntityType: models.EntityCompany})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "admin@example.com", logs[0].UserEmail)

	logs, err = e.auditLogs.List(bg, actorOf(admin), AuditFilter{Limit: 10000})
	require.NoError(t, err)
	assert.Len(t, logs, 61)
}

func TestAuditRecentScope(t *testing.T) {
	e := newTestEnv(t)
	officer := e.createUser(t, "officer@example.com", models.RoleComplianceOfficer, nil)
	acme := e.createCompany(t, "Acme")
	globex := e.createCompany(t, "Globex")
	mine := e.createLicense(t, acme.ID, "A", date(2025, time.January, 1))
	theirs := e.createLicense(t, globex.ID, "A", date(2025, time.January, 1))
	remit := e.createRemittance(t, acme.ID, "PAYE", 2024, 1)

	record := func(entityType string, id uint) {
		e.audit.Record(bg, AuditEntry{Actor: actorOf(officer), Action: models.ActionUpdated, EntityType: entityType, EntityID: id})
	}
	record(models.EntityLicense, mine.ID)
	record(models.EntityLicense, theirs.ID)
	record(models.EntityRemittance, remit.ID)
	record(models.EntityCompany, acme.ID)
	record(models.EntityUser, officer.ID)

	logs, err := e.auditLogs.Recent(bg, policy.Scope{CompanyID: &acme.ID}, 10)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	for _, l := range logs {
		switch l.EntityType {
		case models.EntityLicense:
			assert.Equal(t, mine.ID, l.EntityID)
		case models.EntityRemittance:
			assert.Equal(t, remit.ID, l.EntityID)
		default:
			t.Errorf("unexpected entity type %s", l.EntityType)
		}
	}

	all, err := e.auditLogs.Recent(bg, policy.Scope{}, 3)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	none := uint(0)
	empty, err := e.auditLogs.Recent(bg, policy.Scope{CompanyID: &none}, 10)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
