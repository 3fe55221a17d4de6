package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/medstore/storefront-auth/internal/models"
)

// Migrate applies the schema for the tables the auth core owns.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}

	if errAutoMigrate := conn.AutoMigrate(
		&models.User{},
		&models.RefreshToken{},
		&models.ActiveSession{},
		&models.AuditLog{},
	); errAutoMigrate != nil {
		return fmt.Errorf("db: migrate: %w", errAutoMigrate)
	}

	// Composite index backing the distinct-IP anomaly scan.
	if errIndex := conn.Exec(`
		CREATE INDEX IF NOT EXISTS idx_audit_logs_user_created
		ON audit_logs (user_id, created_at)
	`).Error; errIndex != nil {
		return fmt.Errorf("db: create audit index: %w", errIndex)
	}

	return nil
}
