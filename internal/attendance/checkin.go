package attendance

import (
	"errors"
	"fmt"
	"time"

	"github.com/xiaoheiCat/pytakeoff/internal/models"

	"gorm.io/gorm"
)

// CheckInResult 扫码签到结果。
type CheckInResult struct {
	SessionID        uint
	ActivityCode     string
	AlreadyCheckedIn bool
	PointsAwarded    float64
}

// CheckIn 处理一次扫码签到。
//
// 加分规则：
//   - 签退会话：仅当用户在配对签到会话中为 present 时加分（配对活动全程只加这一次）；
//   - 无配对签退的独立签到会话：立即加分；
//   - 有配对签退的签到会话：暂不加分，等签退完成。
//
// 同一用户重复扫码幂等返回 AlreadyCheckedIn，不产生重复积分。
func (s *Service) CheckIn(tokenValue string, userID uint) (*CheckInResult, error) {
	pts := s.Settings.LoadPoints()
	now := time.Now()

	var result CheckInResult
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		// 令牌有效性：存在、未过期、所属会话仍活跃
		var token models.QRToken
		if err := tx.Where("token = ? AND expires_at > ?", tokenValue, now).
			First(&token).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrTokenInvalid
			}
			return fmt.Errorf("find qr token: %w", err)
		}

		var session models.AttendanceSession
		if err := tx.First(&session, token.SessionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrTokenInvalid
			}
			return fmt.Errorf("find session: %w", err)
		}
		if !session.IsActive {
			return ErrTokenInvalid
		}

		result.SessionID = session.ID
		result.ActivityCode = session.ActivityCode

		// 已有记录则幂等短路
		var existing int64
		if err := tx.Model(&models.AttendanceRecord{}).
			Where("session_id = ? AND user_id = ?", session.ID, userID).
			Count(&existing).Error; err != nil {
			return fmt.Errorf("check existing record: %w", err)
		}
		if existing > 0 {
			result.AlreadyCheckedIn = true
			return nil
		}

		checkedInAt := now
		record := models.AttendanceRecord{
			SessionID:   session.ID,
			UserID:      userID,
			Status:      models.StatusPresent,
			CheckedInAt: &checkedInAt,
		}
		if err := tx.Create(&record).Error; err != nil {
			// 并发扫码：唯一约束兜底，另一个事务已写入
			if isUniqueViolation(err) {
				result.AlreadyCheckedIn = true
				return nil
			}
			return fmt.Errorf("create attendance record: %w", err)
		}

		award, err := s.shouldAwardCheckin(tx, &session, userID)
		if err != nil {
			return err
		}
		if award && pts.Checkin != 0 {
			sid := session.ID
			points := models.PointsRecord{
				UserID:     userID,
				Points:     pts.Checkin,
				Reason:     "签到成功",
				RecordType: models.RecordCheckin,
				SessionID:  &sid,
			}
			if err := tx.Create(&points).Error; err != nil {
				return fmt.Errorf("create checkin points: %w", err)
			}
			result.PointsAwarded = pts.Checkin
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// shouldAwardCheckin 判定本次签到是否立即加分。
func (s *Service) shouldAwardCheckin(tx *gorm.DB, session *models.AttendanceSession, userID uint) (bool, error) {
	if session.SessionType == models.SessionCheckout {
		if session.PairedSessionID == nil {
			return false, nil
		}
		var count int64
		if err := tx.Model(&models.AttendanceRecord{}).
			Where("session_id = ? AND user_id = ? AND status = ?",
				*session.PairedSessionID, userID, models.StatusPresent).
			Count(&count).Error; err != nil {
			return false, fmt.Errorf("check paired checkin record: %w", err)
		}
		return count > 0, nil
	}

	// 签到会话：是否存在配对的签退会话
	var checkoutCount int64
	if err := tx.Model(&models.AttendanceSession{}).
		Where("paired_session_id = ?", session.ID).
		Count(&checkoutCount).Error; err != nil {
		return false, fmt.Errorf("check paired checkout: %w", err)
	}
	return checkoutCount == 0, nil
}
