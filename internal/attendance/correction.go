package attendance

import (
	"errors"
	"fmt"
	"time"

	"github.com/xiaoheiCat/pytakeoff/internal/models"
	"github.com/xiaoheiCat/pytakeoff/internal/points"

	"gorm.io/gorm"
)

// CorrectionResult 管理员更正签到状态的结果。
type CorrectionResult struct {
	Unchanged bool
	SessionID uint
	UserID    uint
	NewStatus models.AttendanceStatus
}

// statusReason 管理员更正/手动添加时的积分理由。
func statusReason(status models.AttendanceStatus) string {
	return "管理员标记为" + status.DisplayName()
}

// UpdateRecordStatus 更正一条签到记录的状态。
// 状态未变化时不做任何事；否则在一个事务内更新记录状态、
// 软删除该 (session, user) 的全部旧积分记录、按新状态插入至多一条新记录。
// 这是修改用户某会话有效得分的唯一途径，保证总分只反映最终状态。
func (s *Service) UpdateRecordStatus(recordID uint, newStatus models.AttendanceStatus, adminID uint) (*CorrectionResult, error) {
	if !newStatus.Valid() {
		return nil, fmt.Errorf("invalid status %q", newStatus)
	}
	pts := s.Settings.LoadPoints()

	var result CorrectionResult
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var record models.AttendanceRecord
		if err := tx.First(&record, recordID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("find attendance record: %w", err)
		}

		result.SessionID = record.SessionID
		result.UserID = record.UserID
		result.NewStatus = newStatus

		if record.Status == newStatus {
			result.Unchanged = true
			return nil
		}

		if err := tx.Model(&record).Update("status", newStatus).Error; err != nil {
			return fmt.Errorf("update record status: %w", err)
		}

		amount, recordType := pts.ForStatus(newStatus)
		var replacement *models.PointsRecord
		if amount != 0 {
			sid := record.SessionID
			creator := adminID
			replacement = &models.PointsRecord{
				UserID:     record.UserID,
				Points:     amount,
				Reason:     statusReason(newStatus),
				RecordType: recordType,
				SessionID:  &sid,
				CreatedBy:  &creator,
			}
		}
		return points.Supersede(tx, record.SessionID, record.UserID, replacement)
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// AddRecord 管理员为用户手动添加签到记录，重复添加返回 ErrRecordExists。
func (s *Service) AddRecord(sessionID, userID uint, status models.AttendanceStatus, adminID uint) error {
	if !status.Valid() {
		return fmt.Errorf("invalid status %q", status)
	}
	pts := s.Settings.LoadPoints()

	return s.DB.Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.First(&user, userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("find user: %w", err)
		}
		var session models.AttendanceSession
		if err := tx.First(&session, sessionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("find session: %w", err)
		}

		var existing int64
		if err := tx.Model(&models.AttendanceRecord{}).
			Where("session_id = ? AND user_id = ?", sessionID, userID).
			Count(&existing).Error; err != nil {
			return fmt.Errorf("check existing record: %w", err)
		}
		if existing > 0 {
			return ErrRecordExists
		}

		now := time.Now()
		record := models.AttendanceRecord{
			SessionID:   sessionID,
			UserID:      userID,
			Status:      status,
			CheckedInAt: &now,
		}
		if err := tx.Create(&record).Error; err != nil {
			return fmt.Errorf("create attendance record: %w", err)
		}

		amount, recordType := pts.ForStatus(status)
		if amount == 0 {
			return nil
		}
		sid := sessionID
		creator := adminID
		reason := statusReason(status)
		if status == models.StatusPresent {
			reason = "管理员手动添加签到"
		}
		pointsRecord := models.PointsRecord{
			UserID:     userID,
			Points:     amount,
			Reason:     reason,
			RecordType: recordType,
			SessionID:  &sid,
			CreatedBy:  &creator,
		}
		if err := tx.Create(&pointsRecord).Error; err != nil {
			return fmt.Errorf("create points record: %w", err)
		}
		return nil
	})
}

// MarkLeaveStatus 管理员直接把用户标记为某种请假（不经过请假申请）。
// 记录存在则覆盖状态，否则新建；积分按 manual_leave 记一条。
func (s *Service) MarkLeaveStatus(sessionID, userID uint, leaveType models.LeaveType, adminID uint) error {
	if !leaveType.Valid() {
		return fmt.Errorf("invalid leave type %q", leaveType)
	}
	pts := s.Settings.LoadPoints()
	status := leaveType.Status()

	return s.DB.Transaction(func(tx *gorm.DB) error {
		var record models.AttendanceRecord
		err := tx.Where("session_id = ? AND user_id = ?", sessionID, userID).First(&record).Error
		switch {
		case err == nil:
			if err := tx.Model(&record).Update("status", status).Error; err != nil {
				return fmt.Errorf("update record status: %w", err)
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			record = models.AttendanceRecord{
				SessionID: sessionID,
				UserID:    userID,
				Status:    status,
			}
			if err := tx.Create(&record).Error; err != nil {
				return fmt.Errorf("create attendance record: %w", err)
			}
		default:
			return fmt.Errorf("find attendance record: %w", err)
		}

		sid := sessionID
		creator := adminID
		pointsRecord := models.PointsRecord{
			UserID:     userID,
			Points:     pts.ForLeave(leaveType),
			Reason:     leaveType.DisplayName() + "（手动标记）",
			RecordType: models.RecordManualLeave,
			SessionID:  &sid,
			CreatedBy:  &creator,
		}
		if err := tx.Create(&pointsRecord).Error; err != nil {
			return fmt.Errorf("create points record: %w", err)
		}
		return nil
	})
}
