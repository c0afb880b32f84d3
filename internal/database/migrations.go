package database

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/charlesng35/tenantcrm/internal/models"
)

// Models lists every persistent model in dependency order.
func Models() []any {
	return []any{
		&models.Workspace{},
		&models.User{},
		&models.Membership{},
		&models.Invitation{},
		&models.PasswordResetToken{},
		&models.CacheEntry{},
		&models.Client{},
		&models.Activity{},
		&models.FollowUp{},
	}
}

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	if db == nil {
		return errors.New("nil database handle")
	}
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
