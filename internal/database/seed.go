package database

import (
	"fmt"

	"github.com/xiaoheiCat/pytakeoff/internal/models"
	"github.com/xiaoheiCat/pytakeoff/internal/settings"
	"github.com/xiaoheiCat/pytakeoff/internal/util"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Seed 初始化默认管理员账号和系统设置。
// 管理员只在不存在任何管理员时创建；设置只补充缺失的键，不覆盖已有值。
func Seed(db *gorm.DB, adminUsername, adminPassword string) error {
	if adminUsername == "" {
		adminUsername = "admin"
	}
	if adminPassword == "" {
		adminPassword = "admin123"
	}

	var adminCount int64
	if err := db.Model(&models.User{}).Where("is_admin = ?", true).Count(&adminCount).Error; err != nil {
		return fmt.Errorf("count admins: %w", err)
	}
	if adminCount == 0 {
		hash, err := util.HashPassword(adminPassword)
		if err != nil {
			return fmt.Errorf("hash admin password: %w", err)
		}
		admin := models.User{
			StudentID:          adminUsername,
			Name:               "系统管理员",
			PasswordHash:       hash,
			IsAdmin:            true,
			MustChangePassword: true,
		}
		if err := db.Create(&admin).Error; err != nil {
			return fmt.Errorf("create admin: %w", err)
		}
	}

	for key, value := range settings.Defaults {
		setting := models.SystemSetting{Key: key, Value: value}
		if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&setting).Error; err != nil {
			return fmt.Errorf("seed setting %s: %w", key, err)
		}
	}

	return nil
}
