package database

import (
	"errors"

	"gorm.io/gorm"

	"github.com/charlesng35/fratpos/internal/models"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	if db == nil {
		return errors.New("nil database handle")
	}

	return db.AutoMigrate(
		&models.Permission{},
		&models.Role{},
		&models.Status{},
		&models.User{},
		&models.UserProfile{},
		&models.Paytype{},
		&models.Product{},
		&models.Feedback{},
		&models.Obligation{},
		&models.UserObligation{},
		&models.Transaction{},
		&models.TransactionProduct{},
		&models.AuditLog{},
		&models.SystemSetting{},
	)
}
