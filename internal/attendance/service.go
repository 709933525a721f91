package attendance

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xiaoheiCat/pytakeoff/internal/models"
	"github.com/xiaoheiCat/pytakeoff/internal/settings"
	"github.com/xiaoheiCat/pytakeoff/internal/util"

	"gorm.io/gorm"
)

// tokenGraceSeconds 令牌在刷新间隔之外的宽限时间，容忍展示和扫码的延迟。
const tokenGraceSeconds = 5

// Service 签到会话生命周期：创建、配对、签发令牌、扫码签到、结束结算、级联删除、状态更正。
// 积分参数每次操作从 Settings 读取快照，不缓存。
type Service struct {
	DB       *gorm.DB
	Settings *settings.Service
}

func NewService(db *gorm.DB, st *settings.Service) *Service {
	return &Service{DB: db, Settings: st}
}

// CreateSession 创建签到会话；withCheckout 为 true 时同时创建配对的签退会话，
// 签退会话通过 PairedSessionID 指向签到会话。活动码全局唯一，冲突时重新生成。
func (s *Service) CreateSession(createdBy uint, withCheckout bool) (checkin *models.AttendanceSession, checkout *models.AttendanceSession, err error) {
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		code, err := s.uniqueActivityCode(tx)
		if err != nil {
			return err
		}
		ci := models.AttendanceSession{
			ActivityCode: code,
			IsActive:     true,
			SessionType:  models.SessionCheckin,
			CreatedBy:    createdBy,
		}
		if err := tx.Create(&ci).Error; err != nil {
			return fmt.Errorf("create checkin session: %w", err)
		}
		checkin = &ci

		if withCheckout {
			outCode, err := s.uniqueActivityCode(tx)
			if err != nil {
				return err
			}
			co := models.AttendanceSession{
				ActivityCode:    outCode,
				IsActive:        true,
				SessionType:     models.SessionCheckout,
				PairedSessionID: &ci.ID,
				CreatedBy:       createdBy,
			}
			if err := tx.Create(&co).Error; err != nil {
				return fmt.Errorf("create checkout session: %w", err)
			}
			checkout = &co
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return checkin, checkout, nil
}

// uniqueActivityCode 生成未被占用的活动码，冲突重试。
func (s *Service) uniqueActivityCode(tx *gorm.DB) (string, error) {
	for i := 0; i < 10; i++ {
		code, err := util.GenerateActivityCode()
		if err != nil {
			return "", err
		}
		var count int64
		if err := tx.Model(&models.AttendanceSession{}).
			Where("activity_code = ?", code).Count(&count).Error; err != nil {
			return "", fmt.Errorf("check activity code: %w", err)
		}
		if count == 0 {
			return code, nil
		}
	}
	return "", fmt.Errorf("generate unique activity code: too many collisions")
}

// FindSessionByCode 按活动码查找会话（大小写敏感）。
func (s *Service) FindSessionByCode(code string) (*models.AttendanceSession, error) {
	var session models.AttendanceSession
	if err := s.DB.First(&session, "activity_code = ?", code).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find session by code: %w", err)
	}
	return &session, nil
}

// GetSession 按 ID 查找会话。
func (s *Service) GetSession(sessionID uint) (*models.AttendanceSession, error) {
	var session models.AttendanceSession
	if err := s.DB.First(&session, sessionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find session: %w", err)
	}
	return &session, nil
}

// IssueToken 为活跃会话签发扫描令牌。
// 过期时间 = 当前时间 + 刷新间隔 + 宽限；旧令牌不作废，允许多个令牌同时有效。
func (s *Service) IssueToken(sessionID uint) (*models.QRToken, int, error) {
	session, err := s.GetSession(sessionID)
	if err != nil {
		return nil, 0, err
	}
	if !session.IsActive {
		return nil, 0, ErrSessionInactive
	}

	interval := s.Settings.RefreshInterval()
	expiresAt := time.Now().Add(time.Duration(interval+tokenGraceSeconds) * time.Second)

	for i := 0; i < 3; i++ {
		value, err := util.GenerateQRToken()
		if err != nil {
			return nil, 0, err
		}
		token := models.QRToken{
			SessionID: sessionID,
			Token:     value,
			ExpiresAt: expiresAt,
		}
		if err := s.DB.Create(&token).Error; err != nil {
			if isUniqueViolation(err) {
				continue // 撞上已有令牌，重新生成
			}
			return nil, 0, fmt.Errorf("save qr token: %w", err)
		}
		return &token, interval, nil
	}
	return nil, 0, fmt.Errorf("issue token: too many collisions")
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
