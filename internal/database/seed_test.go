package database

import (
	"path/filepath"
	"testing"

	"github.com/xiaoheiCat/pytakeoff/internal/config"
	"github.com/xiaoheiCat/pytakeoff/internal/models"
	"github.com/xiaoheiCat/pytakeoff/internal/util"

	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Init(config.DatabaseConfig{Path: path})
	if err != nil {
		t.Fatalf("初始化测试数据库失败: %v", err)
	}
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("建表失败: %v", err)
	}
	return db
}

func TestSeed(t *testing.T) {
	db := setupTestDB(t)

	if err := Seed(db, "admin", "admin123"); err != nil {
		t.Fatalf("初始化失败: %v", err)
	}

	var admin models.User
	if err := db.Where("is_admin = ?", true).First(&admin).Error; err != nil {
		t.Fatalf("管理员未创建: %v", err)
	}
	if admin.StudentID != "admin" || admin.Name != "系统管理员" {
		t.Errorf("管理员信息错误: %s / %s", admin.StudentID, admin.Name)
	}
	if !admin.MustChangePassword {
		t.Error("管理员首次登录应强制改密码")
	}
	if !util.CheckPassword("admin123", admin.PasswordHash) {
		t.Error("管理员初始密码应为配置值")
	}

	// 默认设置已写入
	var settingCount int64
	db.Model(&models.SystemSetting{}).Count(&settingCount)
	if settingCount == 0 {
		t.Error("默认设置未写入")
	}
}

func TestSeed_Idempotent(t *testing.T) {
	db := setupTestDB(t)

	if err := Seed(db, "admin", "admin123"); err != nil {
		t.Fatalf("首次初始化失败: %v", err)
	}
	// 管理员改名后重新 Seed 不应覆盖
	if err := db.Model(&models.User{}).Where("is_admin = ?", true).
		Update("name", "改过的名字").Error; err != nil {
		t.Fatalf("改名失败: %v", err)
	}
	if err := db.Model(&models.SystemSetting{}).Where("key = ?", "system_title").
		Update("value", "自定义标题").Error; err != nil {
		t.Fatalf("改设置失败: %v", err)
	}

	if err := Seed(db, "admin", "admin123"); err != nil {
		t.Fatalf("重复初始化失败: %v", err)
	}

	var adminCount int64
	db.Model(&models.User{}).Where("is_admin = ?", true).Count(&adminCount)
	if adminCount != 1 {
		t.Errorf("管理员应只有1个，实际%d", adminCount)
	}

	var admin models.User
	db.Where("is_admin = ?", true).First(&admin)
	if admin.Name != "改过的名字" {
		t.Error("重复 Seed 不应覆盖已有管理员")
	}

	var setting models.SystemSetting
	db.First(&setting, "key = ?", "system_title")
	if setting.Value != "自定义标题" {
		t.Error("重复 Seed 不应覆盖已有设置")
	}
}
