package repositories

import (
	"gorm.io/gorm"

	"schoolhub/internal/models"
)

// Migrate creates the schema plus the indexes AutoMigrate cannot express.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.Branch{},
		&models.Book{},
		&models.Loan{},
		&models.Fine{},
	); err != nil {
		return err
	}

	// The overdue-borrower gate scans active loans by due date on every issue.
	if err := db.Exec(`
	  CREATE INDEX IF NOT EXISTS loans_active_due_date
	  ON loans (due_date)
	  WHERE status = 'ACTIVE';
	`).Error; err != nil {
		return err
	}

	// Exactly one borrower column per loan, enforced at the storage layer too.
	if err := db.Exec(`
	  ALTER TABLE loans DROP CONSTRAINT IF EXISTS loans_one_borrower
	`).Error; err != nil {
		return err
	}
	return db.Exec(`
	  ALTER TABLE loans ADD CONSTRAINT loans_one_borrower
	  CHECK ((student_id IS NULL) <> (teacher_id IS NULL))
	`).Error
}
