package database

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/koryun2/ICAI-backend-app/pkg/models"
)

// Migrate applies the schema for all persistent models.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.InterviewSession{},
		&models.InterviewTurn{},
	); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}
