package attendance

import (
	"errors"
	"fmt"
	"time"

	"github.com/xiaoheiCat/pytakeoff/internal/models"
	"github.com/xiaoheiCat/pytakeoff/internal/settings"

	"gorm.io/gorm"
)

// EndResult 会话结束结算结果。
type EndResult struct {
	SessionType    models.SessionType
	AbsentCount    int
	UsedLeaveCount int
}

// EndSession 结束会话并结算。整个过程在一个事务内完成：
// 先检查前置条件，翻转 is_active，再对所有未到账的用户判定缺勤/请假并写积分。
// 事务中途失败则全部回滚，重试安全（已结束的会话再次结束返回 ErrSessionInactive）。
func (s *Service) EndSession(sessionID uint, adminID uint) (*EndResult, error) {
	pts := s.Settings.LoadPoints()

	var result EndResult
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		// 系统内存在任何待审批请假时不允许结算
		var pending int64
		if err := tx.Model(&models.LeaveRequest{}).
			Where("status = ?", models.LeavePending).Count(&pending).Error; err != nil {
			return fmt.Errorf("count pending leaves: %w", err)
		}
		if pending > 0 {
			return ErrPendingApprovals
		}

		var session models.AttendanceSession
		if err := tx.First(&session, sessionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("find session: %w", err)
		}
		if !session.IsActive {
			return ErrSessionInactive
		}
		result.SessionType = session.SessionType

		// 签退会话必须等配对的签到会话先结束
		if session.SessionType == models.SessionCheckout && session.PairedSessionID != nil {
			var paired models.AttendanceSession
			if err := tx.First(&paired, *session.PairedSessionID).Error; err == nil && paired.IsActive {
				return ErrPairNotReady
			} else if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("find paired session: %w", err)
			}
		}

		// 先翻转 is_active：之后开始的扫码事务都会看到会话已结束
		if err := tx.Model(&session).Update("is_active", false).Error; err != nil {
			return fmt.Errorf("deactivate session: %w", err)
		}

		// 请假按签到腿的会话 ID 查找；签退会话用配对签到的 ID
		leaveKey := sessionID
		if session.SessionType == models.SessionCheckout && session.PairedSessionID != nil {
			leaveKey = *session.PairedSessionID
		}
		var approvedLeaves []models.LeaveRequest
		if err := tx.Where("status = ? AND (session_id = ? OR paired_session_id = ?)",
			models.LeaveApproved, leaveKey, leaveKey).
			Order("approved_at").Find(&approvedLeaves).Error; err != nil {
			return fmt.Errorf("find approved leaves: %w", err)
		}
		leaveByUser := make(map[uint]*models.LeaveRequest, len(approvedLeaves))
		for i := range approvedLeaves {
			l := &approvedLeaves[i]
			if _, ok := leaveByUser[l.UserID]; !ok {
				leaveByUser[l.UserID] = l
			}
		}

		// 签到会话可能被某个签退会话反向引用
		var checkoutID *uint
		{
			var checkout models.AttendanceSession
			err := tx.Where("paired_session_id = ?", sessionID).First(&checkout).Error
			if err == nil {
				checkoutID = &checkout.ID
			} else if !errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("find paired checkout: %w", err)
			}
		}

		unaccounted, err := usersWithoutRecord(tx, sessionID)
		if err != nil {
			return err
		}

		now := time.Now()
		for _, userID := range unaccounted {
			leave, hasLeave := leaveByUser[userID]

			if session.SessionType == models.SessionCheckin {
				if hasLeave {
					if err := s.consumeLeave(tx, leave, sessionID, checkoutID, pts, adminID, now); err != nil {
						return err
					}
					result.UsedLeaveCount++
				} else {
					if err := s.markAbsent(tx, sessionID, userID, "缺勤", pts.Absent, adminID, now); err != nil {
						return err
					}
					result.AbsentCount++
				}
				continue
			}

			// 签退会话：请假已在签到腿结算，这里只统计；
			// 只有在签到腿为 present 的用户才按"未签退"记缺勤，
			// 两腿都缺席的用户在签到腿已经扣过分。
			if hasLeave {
				result.UsedLeaveCount++
				continue
			}
			if session.PairedSessionID != nil {
				var presentAtCheckin int64
				if err := tx.Model(&models.AttendanceRecord{}).
					Where("session_id = ? AND user_id = ? AND status = ?",
						*session.PairedSessionID, userID, models.StatusPresent).
					Count(&presentAtCheckin).Error; err != nil {
					return fmt.Errorf("check paired checkin record: %w", err)
				}
				if presentAtCheckin > 0 {
					if err := s.markAbsent(tx, sessionID, userID, "未签退缺勤", pts.Absent, adminID, now); err != nil {
						return err
					}
					result.AbsentCount++
				}
			}
		}

		// 已签到但持有已批准请假的用户：记录状态改写为对应请假类型
		var presentRecords []models.AttendanceRecord
		if err := tx.Where("session_id = ? AND status = ?", sessionID, models.StatusPresent).
			Find(&presentRecords).Error; err != nil {
			return fmt.Errorf("find present records: %w", err)
		}
		for i := range presentRecords {
			record := &presentRecords[i]
			leave, ok := leaveByUser[record.UserID]
			if !ok {
				continue
			}
			newStatus := leave.LeaveType.Status()
			if newStatus == "" {
				continue
			}
			if err := tx.Model(record).Update("status", newStatus).Error; err != nil {
				return fmt.Errorf("reclassify present record: %w", err)
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// consumeLeave 将已批准的请假标记为 used 并写入请假积分。
// 已存在引用同一请假的 leave 类积分记录时跳过写分，避免审批时与结算时双重记分。
func (s *Service) consumeLeave(tx *gorm.DB, leave *models.LeaveRequest, sessionID uint, checkoutID *uint, pts settings.Points, adminID uint, now time.Time) error {
	updates := map[string]interface{}{
		"status":     models.LeaveUsed,
		"session_id": sessionID,
		"used_at":    now,
	}
	if checkoutID != nil {
		updates["paired_session_id"] = *checkoutID
	}
	if err := tx.Model(leave).Updates(updates).Error; err != nil {
		return fmt.Errorf("mark leave used: %w", err)
	}

	var awarded int64
	if err := tx.Model(&models.PointsRecord{}).
		Where("leave_request_id = ? AND record_type = ? AND is_deleted = ?",
			leave.ID, models.RecordLeave, false).
		Count(&awarded).Error; err != nil {
		return fmt.Errorf("check leave points: %w", err)
	}
	if awarded > 0 {
		return nil // 审批时已记分
	}

	amount := pts.ForLeave(leave.LeaveType)
	if amount == 0 {
		return nil
	}
	sid := sessionID
	leaveID := leave.ID
	creator := adminID
	record := models.PointsRecord{
		UserID:         leave.UserID,
		Points:         amount,
		Reason:         leave.LeaveType.DisplayName(),
		RecordType:     models.RecordLeave,
		SessionID:      &sid,
		LeaveRequestID: &leaveID,
		CreatedBy:      &creator,
	}
	if err := tx.Create(&record).Error; err != nil {
		return fmt.Errorf("create leave points: %w", err)
	}
	return nil
}

// markAbsent 插入缺勤记录并扣除缺勤积分。
func (s *Service) markAbsent(tx *gorm.DB, sessionID, userID uint, reason string, absentPoints float64, adminID uint, now time.Time) error {
	checkedInAt := now
	record := models.AttendanceRecord{
		SessionID:   sessionID,
		UserID:      userID,
		Status:      models.StatusAbsent,
		CheckedInAt: &checkedInAt,
	}
	if err := tx.Create(&record).Error; err != nil {
		return fmt.Errorf("create absent record: %w", err)
	}
	sid := sessionID
	creator := adminID
	pointsRecord := models.PointsRecord{
		UserID:     userID,
		Points:     absentPoints,
		Reason:     reason,
		RecordType: models.RecordAbsence,
		SessionID:  &sid,
		CreatedBy:  &creator,
	}
	if err := tx.Create(&pointsRecord).Error; err != nil {
		return fmt.Errorf("create absence points: %w", err)
	}
	return nil
}

// usersWithoutRecord 本会话中尚无签到记录的非管理员用户 ID。
func usersWithoutRecord(tx *gorm.DB, sessionID uint) ([]uint, error) {
	var ids []uint
	err := tx.Model(&models.User{}).
		Where("is_admin = ?", false).
		Where("id NOT IN (?)",
			tx.Session(&gorm.Session{NewDB: true}).
				Model(&models.AttendanceRecord{}).
				Select("user_id").Where("session_id = ?", sessionID)).
		Order("student_id").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("find unaccounted users: %w", err)
	}
	return ids, nil
}

// DeleteSession 级联删除会话及其配对会话。
// 先解析相关会话集合（自身、正向配对、反向配对），再在一个事务内
// 软删除积分、删除令牌和签到记录、解除请假引用、删除会话本身。
// 返回被删除会话的活动码。
func (s *Service) DeleteSession(sessionID uint) ([]string, error) {
	var codes []string
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var session models.AttendanceSession
		if err := tx.First(&session, sessionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("find session: %w", err)
		}

		ids := []uint{session.ID}
		codes = append(codes, session.ActivityCode)

		// 签退会话 -> 连带删除配对的签到
		if session.PairedSessionID != nil {
			var paired models.AttendanceSession
			if err := tx.First(&paired, *session.PairedSessionID).Error; err == nil {
				ids = append(ids, paired.ID)
				codes = append(codes, paired.ActivityCode)
			} else if !errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("find paired session: %w", err)
			}
		}

		// 签到会话 -> 连带删除引用它的签退
		var checkout models.AttendanceSession
		if err := tx.Where("paired_session_id = ?", session.ID).First(&checkout).Error; err == nil {
			ids = append(ids, checkout.ID)
			codes = append(codes, checkout.ActivityCode)
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("find paired checkout: %w", err)
		}

		for _, sid := range ids {
			if err := tx.Model(&models.PointsRecord{}).
				Where("session_id = ? AND is_deleted = ?", sid, false).
				Update("is_deleted", true).Error; err != nil {
				return fmt.Errorf("soft delete points: %w", err)
			}
			if err := tx.Where("session_id = ?", sid).Delete(&models.QRToken{}).Error; err != nil {
				return fmt.Errorf("delete qr tokens: %w", err)
			}
			if err := tx.Where("session_id = ?", sid).Delete(&models.AttendanceRecord{}).Error; err != nil {
				return fmt.Errorf("delete attendance records: %w", err)
			}
			if err := tx.Model(&models.LeaveRequest{}).
				Where("session_id = ?", sid).
				Update("session_id", nil).Error; err != nil {
				return fmt.Errorf("detach leave session refs: %w", err)
			}
			if err := tx.Model(&models.LeaveRequest{}).
				Where("paired_session_id = ?", sid).
				Update("paired_session_id", nil).Error; err != nil {
				return fmt.Errorf("detach leave paired refs: %w", err)
			}
			if err := tx.Delete(&models.AttendanceSession{}, sid).Error; err != nil {
				return fmt.Errorf("delete session: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return codes, nil
}
