package models

import "time"

// AttendanceRecord 每个用户在一次会话中的出勤结果，(session, user) 唯一。
type AttendanceRecord struct {
	ID          uint             `gorm:"primaryKey"`
	SessionID   uint             `gorm:"uniqueIndex:idx_session_user;not null"`
	UserID      uint             `gorm:"uniqueIndex:idx_session_user;not null"`
	Status      AttendanceStatus `gorm:"size:32;default:present"`
	CheckedInAt *time.Time       `gorm:"index"`
}
