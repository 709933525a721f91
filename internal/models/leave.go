package models

import "time"

// LeaveRequest 请假申请。
// 审批通过后绑定 SessionID；结算时若会话存在配对签退，同时写入 PairedSessionID。
// 只有 approved 状态能转为 used，used 为终态。
type LeaveRequest struct {
	ID              uint        `gorm:"primaryKey"`
	UserID          uint        `gorm:"index;not null"`
	SessionID       *uint       `gorm:"index"`
	PairedSessionID *uint       `gorm:"index"`
	LeaveType       LeaveType   `gorm:"size:16;not null"`
	Reason          string      `gorm:"type:text;not null"`
	Status          LeaveStatus `gorm:"size:16;index;default:pending"`
	ApprovedBy      *uint
	ApprovedAt      *time.Time
	UsedAt          *time.Time
	CreatedAt       time.Time
}

// LeaveAttachment 请假申请附件，文件本体由上传目录保存。
type LeaveAttachment struct {
	ID             uint   `gorm:"primaryKey"`
	LeaveRequestID uint   `gorm:"index;not null"`
	Filename       string `gorm:"size:255;not null"`
	Filepath       string `gorm:"size:512;not null"`
	CreatedAt      time.Time
}
