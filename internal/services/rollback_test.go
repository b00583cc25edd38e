package services

import (
	"testing"

	"compliance-tracker/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompanyDeleteRollsBack(t *testing.T) {
	e := newTestEnv(t)
	admin := e.createUser(t, "admin@example.com", models.RoleAdmin, nil)
	acme := e.createCompany(t, "Acme")
	e.createLicense(t, acme.ID, "Permit", date(2025, 1, 1))
	e.createRemittance(t, acme.ID, "PAYE", 2024, 3)

	// licenses and remittances are removed before the company row
	failDeletes(t, e.db, "companies")

	err := e.companies.Delete(bg, actorOf(admin), acme.ID)
	assert.ErrorIs(t, err, ErrPersistence)
	assert.ErrorIs(t, err, errInjected)

	var licenses, remittances, companies int64
	require.NoError(t, e.db.Model(&models.License{}).Where("company_id = ?", acme.ID).Count(&licenses).Error)
	require.NoError(t, e.db.Model(&models.Remittance{}).Where("company_id = ?", acme.ID).Count(&remittances).Error)
	require.NoError(t, e.db.Model(&models.Company{}).Where("id = ?", acme.ID).Count(&companies).Error)
	assert.Equal(t, int64(1), licenses)
	assert.Equal(t, int64(1), remittances)
	assert.Equal(t, int64(1), companies)
	assert.Zero(t, e.auditCount(t, models.ActionDeleted, models.EntityCompany))
}

func TestUserDeactivationRollsBack(t *testing.T) {
	e := newTestEnv(t)
	admin := e.createUser(t, "admin@example.com", models.RoleAdmin, nil)
	officer := e.createUser(t, "officer@example.com", models.RoleComplianceOfficer, nil)
	res, err := e.auth.Login(bg, "officer@example.com", "password123", "", "")
	require.NoError(t, err)

	// the user row is saved before the sessions are removed
	failDeletes(t, e.db, "sessions")

	_, err = e.users.Update(bg, actorOf(admin), officer.ID, UpdateUserInput{IsActive: boolPtr(false)})
	assert.ErrorIs(t, err, ErrPersistence)

	var stored models.User
	require.NoError(t, e.db.First(&stored, officer.ID).Error)
	assert.True(t, stored.IsActive)

	_, err = e.auth.GetSession(bg, res.Token)
	assert.NoError(t, err)
	assert.Zero(t, e.auditCount(t, models.ActionUpdated, models.EntityUser))
}

func TestLicenseCreateFailureRemovesUpload(t *testing.T) {
	e := newTestEnv(t)
	officer := e.createUser(t, "officer@example.com", models.RoleComplianceOfficer, nil)
	acme := e.createCompany(t, "Acme")
	failCreates(t, e.db, "licenses")

	_, err := e.licenses.Create(bg, actorOf(officer), LicenseInput{
		CompanyID: acme.ID, LicenseType: "Permit", IssuingBody: "Council",
		IssueDate: date(2024, 1, 1), ExpiryDate: date(2025, 1, 1),
		Document: fileHeader(t, "scan.pdf", []byte("%PDF-1.4")),
	})
	assert.ErrorIs(t, err, ErrPersistence)

	var n int64
	require.NoError(t, e.db.Model(&models.License{}).Count(&n).Error)
	assert.Zero(t, n)
	assert.Zero(t, e.storedFiles(t))
	assert.Zero(t, e.auditCount(t, models.ActionCreated, models.EntityLicense))
}

func TestRemittanceUpdateFailureKeepsOldProof(t *testing.T) {
	e := newTestEnv(t)
	officer := e.createUser(t, "officer@example.com", models.RoleComplianceOfficer, nil)
	acme := e.createCompany(t, "Acme")

	res, err := e.remittances.Create(bg, actorOf(officer), RemittanceInput{
		CompanyID: acme.ID, RemittanceType: "PAYE", Month: 3, Year: 2024,
		Proof: fileHeader(t, "receipt.pdf", []byte("%PDF-1.4 receipt")),
	})
	require.NoError(t, err)
	require.NotEmpty(t, res.Remittance.ProofPath)
	require.Equal(t, 1, e.storedFiles(t))

	failUpdates(t, e.db, "remittances")

	_, err = e.remittances.Update(bg, actorOf(officer), res.Remittance.ID, RemittanceInput{
		CompanyID: acme.ID, RemittanceType: "PAYE", Month: 4, Year: 2024,
		Proof: fileHeader(t, "receipt-2.pdf", []byte("%PDF-1.4 second")),
	})
	assert.ErrorIs(t, err, ErrPersistence)

	var stored models.Remittance
	require.NoError(t, e.db.First(&stored, res.Remittance.ID).Error)
	assert.Equal(t, res.Remittance.ProofPath, stored.ProofPath)
	assert.Equal(t, "2024-03", stored.Period)
	assert.Equal(t, 1, e.storedFiles(t))

	_, err = e.storage.Path(stored.ProofPath)
	assert.NoError(t, err)
}
