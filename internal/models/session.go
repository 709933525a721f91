package models

import "time"

// AttendanceSession 一次签到/签退活动。
// 签退会话通过 PairedSessionID 反向引用配对的签到会话；
// 会话一旦结束（IsActive=false）不可重新激活。
type AttendanceSession struct {
	ID              uint        `gorm:"primaryKey"`
	ActivityCode    string      `gorm:"size:16;uniqueIndex;not null"` // 活动码，区分大小写
	IsActive        bool        `gorm:"index;default:true"`
	SessionType     SessionType `gorm:"size:16;default:checkin"`
	PairedSessionID *uint       `gorm:"index"`
	CreatedBy       uint        `gorm:"index"`
	CreatedAt       time.Time
}
