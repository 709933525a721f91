package models

import "time"

// SystemSetting key-value 系统设置（积分参数、二维码刷新间隔等）。
type SystemSetting struct {
	Key       string `gorm:"primaryKey;size:64"`
	Value     string `gorm:"size:255;not null"`
	UpdatedAt time.Time
}
