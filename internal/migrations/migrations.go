package migrations

import (
	"compliance-tracker/internal/models"

	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Run applies every pending migration in order
func Run(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, List())

	if err := m.Migrate(); err != nil {
		log.Error().Err(err).Msg("could not migrate")
		return err
	}
	log.Info().Int("count", len(List())).Msg("migrations ran successfully")
	return nil
}

// List returns all migrations, oldest first
func List() []*gormigrate.Migration {
	return []*gormigrate.Migration{
		createAccountTables(),
		createComplianceTables(),
	}
}

// Companies must exist before users because client users reference them.
func createAccountTables() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000001_create_account_tables",
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&models.Company{}, &models.User{}, &models.Session{})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&models.Session{}, &models.User{}, &models.Company{})
		},
	}
}

func createComplianceTables() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000002_create_compliance_tables",
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&models.License{}, &models.Remittance{}, &models.AuditLog{})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&models.AuditLog{}, &models.Remittance{}, &models.License{})
		},
	}
}
