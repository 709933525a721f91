package models

import "time"

// QRToken 二维码扫描令牌。
// 令牌不做一次性消费标记，重复扫描由签到记录的唯一约束短路；
// 同一会话可以同时存在多个未过期令牌。
type QRToken struct {
	ID        uint      `gorm:"primaryKey"`
	SessionID uint      `gorm:"index;not null"`
	Token     string    `gorm:"size:64;uniqueIndex;not null"`
	ExpiresAt time.Time `gorm:"index;not null"`
	CreatedAt time.Time
}

func (QRToken) TableName() string { return "qr_tokens" }
