package models

import "time"

// User represents application user (学工号登录).
type User struct {
	ID                 uint   `gorm:"primaryKey"`
	StudentID          string `gorm:"size:64;uniqueIndex;not null"`
	Name               string `gorm:"size:64;not null"`
	PasswordHash       string `gorm:"size:255;not null"`
	IsAdmin            bool   `gorm:"index;default:false"`
	MustChangePassword bool   `gorm:"default:true"` // 首次登录必须修改密码
	CreatedAt          time.Time
	UpdatedAt          time.Time
}
