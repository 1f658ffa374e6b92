package database

import (
	"log"

	"gorm.io/gorm"

	"notion-lite/workspace/models"
)

// RunMigrations runs database migrations to ensure tables are up to date
func RunMigrations(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.Block{},
		&models.Event{},
	)
	if err != nil {
		log.Printf("Migration failed: %v", err)
		return err
	}
	return nil
}
