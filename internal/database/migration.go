package database

import (
	"fmt"

	"github.com/xiaoheiCat/pytakeoff/internal/models"

	"gorm.io/gorm"
)

// AutoMigrate runs database schema migrations for all models.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.SystemSetting{},
		&models.AttendanceSession{},
		&models.AttendanceRecord{},
		&models.LeaveRequest{},
		&models.LeaveAttachment{},
		&models.PointsRecord{},
		&models.QRToken{},
		&models.AuditLog{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
