package models

import "time"

// PointsRecord 积分流水，只追加不修改。
// 撤销/更正通过 IsDeleted 软删除，总分 = 未删除记录之和。
type PointsRecord struct {
	ID             uint       `gorm:"primaryKey"`
	UserID         uint       `gorm:"index;not null"`
	Points         float64    `gorm:"not null"`
	Reason         string     `gorm:"size:255;not null"`
	RecordType     RecordType `gorm:"size:32;index;not null"`
	SessionID      *uint      `gorm:"index"`
	LeaveRequestID *uint      `gorm:"index"`
	CreatedBy      *uint
	IsDeleted      bool `gorm:"index;default:false"`
	CreatedAt      time.Time
}
