package attendance

import (
	"path/filepath"
	"testing"

	"github.com/xiaoheiCat/pytakeoff/internal/config"
	"github.com/xiaoheiCat/pytakeoff/internal/database"
	"github.com/xiaoheiCat/pytakeoff/internal/models"
	"github.com/xiaoheiCat/pytakeoff/internal/settings"

	"gorm.io/gorm"
)

// setupTestDB 创建临时 sqlite 测试库并完成建表。
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := database.Init(config.DatabaseConfig{Path: path})
	if err != nil {
		t.Fatalf("初始化测试数据库失败: %v", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("建表失败: %v", err)
	}
	return db
}

func cleanupTestDB(t *testing.T, db *gorm.DB) {
	t.Helper()
	sqlDB, err := db.DB()
	if err == nil {
		sqlDB.Close()
	}
}

// newTestService 构建被测服务，配套设置服务走默认积分参数。
func newTestService(db *gorm.DB) *Service {
	return NewService(db, settings.NewService(db))
}

// createTestUser 创建非管理员用户。
func createTestUser(t *testing.T, db *gorm.DB, studentID, name string) *models.User {
	t.Helper()
	user := models.User{
		StudentID:    studentID,
		Name:         name,
		PasswordHash: "x",
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("创建用户失败: %v", err)
	}
	return &user
}

// createTestAdmin 创建管理员用户。
func createTestAdmin(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	admin := models.User{
		StudentID:    "admin",
		Name:         "管理员",
		PasswordHash: "x",
		IsAdmin:      true,
	}
	if err := db.Create(&admin).Error; err != nil {
		t.Fatalf("创建管理员失败: %v", err)
	}
	return &admin
}

// userTotal 用户当前有效总分。
func userTotal(t *testing.T, db *gorm.DB, userID uint) float64 {
	t.Helper()
	var total float64
	err := db.Model(&models.PointsRecord{}).
		Where("user_id = ? AND is_deleted = ?", userID, false).
		Select("COALESCE(SUM(points), 0)").
		Scan(&total).Error
	if err != nil {
		t.Fatalf("查询总分失败: %v", err)
	}
	return total
}

// activeRecordCount 用户在会话下的未删除积分记录数。
func activeRecordCount(t *testing.T, db *gorm.DB, sessionID, userID uint) int64 {
	t.Helper()
	var count int64
	err := db.Model(&models.PointsRecord{}).
		Where("session_id = ? AND user_id = ? AND is_deleted = ?", sessionID, userID, false).
		Count(&count).Error
	if err != nil {
		t.Fatalf("查询积分记录失败: %v", err)
	}
	return count
}
