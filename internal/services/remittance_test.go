package services

import (
	"testing"

	"compliance-tracker/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemittancePeriodFollowsEdits(t *testing.T) {
	e := newTestEnv(t)
	officer := e.createUser(t, "officer@example.com", models.RoleComplianceOfficer, nil)
	acme := e.createCompany(t, "Acme")

	res, err := e.remittances.Create(bg, actorOf(officer), RemittanceInput{
		CompanyID:      acme.ID,
		RemittanceType: " PAYE ",
		Month:          3,
		Year:           2024,
		Amount:         decimal.NewNullDecimal(decimal.RequireFromString("1500.005")),
	})
	require.NoError(t, err)
	assert.Equal(t, "2024-03", res.Remittance.Period)
	assert.Equal(t, "PAYE", res.Remittance.RemittanceType)
	assert.Equal(t, models.RemittancePending, res.Remittance.Status)
	assert.Equal(t, "1500.01", res.Remittance.Amount.Decimal.StringFixed(2))

	updated, err := e.remittances.Update(bg, actorOf(officer), res.Remittance.ID, RemittanceInput{
		CompanyID:      acme.ID,
		RemittanceType: "PAYE",
		Month:          11,
		Year:           2023,
		Status:         models.RemittanceSubmitted,
	})
	require.NoError(t, err)
	assert.Equal(t, "2023-11", updated.Remittance.Period)
	assert.False(t, updated.Remittance.Amount.Valid, "amount cleared")

	var stored models.Remittance
	require.NoError(t, e.db.First(&stored, res.Remittance.ID).Error)
	assert.Equal(t, "2023-11", stored.Period)
	assert.Equal(t, models.RemittanceSubmitted, stored.Status)

	var log models.AuditLog
	require.NoError(t, e.db.Where("action = ? AND entity_type = ?", models.ActionCreated, models.EntityRemittance).First(&log).Error)
	assert.Equal(t, "Created remittance PAYE for 2024-03", log.Details)
}

func TestRemittanceValidation(t *testing.T) {
	e := newTestEnv(t)
	officer := e.createUser(t, "officer@example.com", models.RoleComplianceOfficer, nil)
	acme := e.createCompany(t, "Acme")

	valid := RemittanceInput{CompanyID: acme.ID, RemittanceType: "NHF", Month: 1, Year: 2024}

	tests := []struct {
		name  string
		edit  func(*RemittanceInput)
		field string
	}{
		{"month zero", func(in *RemittanceInput) { in.Month = 0 }, "month"},
		{"month thirteen", func(in *RemittanceInput) { in.Month = 13 }, "month"},
		{"short year", func(in *RemittanceInput) { in.Year = 24 }, "year"},
		{"blank type", func(in *RemittanceInput) { in.RemittanceType = "" }, "remittance_type"},
		{"bad status", func(in *RemittanceInput) { in.Status = "paid" }, "status"},
		{"negative amount", func(in *RemittanceInput) {
			in.Amount = decimal.NewNullDecimal(decimal.NewFromInt(-1))
		}, "amount"},
		{"unknown company", func(in *RemittanceInput) { in.CompanyID = 999 }, "company_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			tt.edit(&in)
			_, err := e.remittances.Create(bg, actorOf(officer), in)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestRemittanceClientScope(t *testing.T) {
	e := newTestEnv(t)
	acme := e.createCompany(t, "Acme")
	globex := e.createCompany(t, "Globex")
	client := e.createUser(t, "client@acme.com", models.RoleClient, &acme.ID)

	mine := e.createRemittance(t, acme.ID, "PAYE", 2024, 1)
	e.createRemittance(t, acme.ID, "PAYE", 2024, 2)
	e.createRemittance(t, acme.ID, "NHF", 2023, 12)
	theirs := e.createRemittance(t, globex.ID, "PAYE", 2024, 1)

	filters := []RemittanceFilter{
		{},
		{CompanyID: globex.ID},
		{RemittanceType: "PAYE"},
		{Year: 2024},
		{Status: models.RemittancePending},
		{CompanyID: globex.ID, RemittanceType: "PAYE", Year: 2024},
	}
	for _, f := range filters {
		remittances, err := e.remittances.List(bg, actorOf(client), f)
		require.NoError(t, err)
		for _, r := range remittances {
			assert.Equal(t, acme.ID, r.CompanyID, "filter %+v leaked company %d", f, r.CompanyID)
		}
	}

	all, err := e.remittances.List(bg, actorOf(client), RemittanceFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "2024-02", all[0].Period)
	assert.Equal(t, "2023-12", all[2].Period)

	_, err = e.remittances.Get(bg, actorOf(client), theirs.ID)
	assert.ErrorIs(t, err, ErrAccessDenied)

	got, err := e.remittances.Get(bg, actorOf(client), mine.ID)
	require.NoError(t, err)
	assert.Equal(t, "Acme", got.Company.Name)

	_, err = e.remittances.Create(bg, actorOf(client), RemittanceInput{
		CompanyID: acme.ID, RemittanceType: "PAYE", Month: 3, Year: 2024,
	})
	assert.ErrorIs(t, err, ErrAccessDenied)
}

func TestRemittanceDeleteAdminOnly(t *testing.T) {
	e := newTestEnv(t)
	acme := e.createCompany(t, "Acme")
	admin := e.createUser(t, "admin@example.com", models.RoleAdmin, nil)
	officer := e.createUser(t, "officer@example.com", models.RoleComplianceOfficer, nil)
	client := e.createUser(t, "client@acme.com", models.RoleClient, &acme.ID)
	r := e.createRemittance(t, acme.ID, "PAYE", 2024, 1)

	for _, u := range []*models.User{officer, client} {
		err := e.remittances.Delete(bg, actorOf(u), r.ID)
		assert.ErrorIs(t, err, ErrRemittanceDeleteAdminOnly)
		assert.ErrorIs(t, err, ErrAccessDenied)
	}

	var n int64
	require.NoError(t, e.db.Model(&models.Remittance{}).Where("id = ?", r.ID).Count(&n).Error)
	assert.Equal(t, int64(1), n, "record still present")
	assert.Zero(t, e.auditCount(t, models.ActionDeleted, models.EntityRemittance))

	require.NoError(t, e.remittances.Delete(bg, actorOf(admin), r.ID))
	require.NoError(t, e.db.Model(&models.Remittance{}).Where("id = ?", r.ID).Count(&n).Error)
	assert.Zero(t, n)
	assert.Equal(t, int64(1), e.auditCount(t, models.ActionDeleted, models.EntityRemittance))

	err := e.remittances.Delete(bg, actorOf(admin), r.ID)
	assert.ErrorIs(t, err, ErrRemittanceNotFound)
}

func TestRemittanceOptions(t *testing.T) {
	e := newTestEnv(t)
	acme := e.createCompany(t, "Acme")
	globex := e.createCompany(t, "Globex")
	client := e.createUser(t, "client@acme.com", models.RoleClient, &acme.ID)

	e.createRemittance(t, acme.ID, "VAT", 2023, 5)
	e.createRemittance(t, acme.ID, "PAYE", 2024, 5)
	e.createRemittance(t, globex.ID, "WHT", 2021, 5)

	opts, err := e.remittances.Options(bg, actorOf(client))
	require.NoError(t, err)
	assert.Equal(t, []int{2024, 2023}, opts.Years)
	assert.Contains(t, opts.Types, "VAT")
	assert.Contains(t, opts.Types, "NSITF")
	assert.NotContains(t, opts.Types, "WHT")
	assert.Len(t, opts.Statuses, 3)
}
