package points

import (
	"fmt"
	"time"

	"github.com/xiaoheiCat/pytakeoff/internal/models"

	"gorm.io/gorm"
)

// Service 积分流水服务。
// 流水只追加；撤销和更正都通过软删除完成，保留完整审计链。
type Service struct {
	DB *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{DB: db}
}

// AddManual 手动加减分，分类固定为 manual。
func (s *Service) AddManual(userID uint, pts float64, reason string, createdBy uint) (*models.PointsRecord, error) {
	record := models.PointsRecord{
		UserID:     userID,
		Points:     pts,
		Reason:     reason,
		RecordType: models.RecordManual,
		CreatedBy:  &createdBy,
	}
	if err := s.DB.Create(&record).Error; err != nil {
		return nil, fmt.Errorf("create points record: %w", err)
	}
	return &record, nil
}

// Revoke 撤销一条积分记录（软删除，不物理删除）。
func (s *Service) Revoke(recordID uint) error {
	var record models.PointsRecord
	if err := s.DB.First(&record, recordID).Error; err != nil {
		return fmt.Errorf("find points record: %w", err)
	}
	if record.IsDeleted {
		return nil
	}
	if err := s.DB.Model(&record).Update("is_deleted", true).Error; err != nil {
		return fmt.Errorf("revoke points record: %w", err)
	}
	return nil
}

// Total 用户当前总分 = 未删除记录分值之和。
func (s *Service) Total(userID uint) (float64, error) {
	var total float64
	err := s.DB.Model(&models.PointsRecord{}).
		Where("user_id = ? AND is_deleted = ?", userID, false).
		Select("COALESCE(SUM(points), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("sum points: %w", err)
	}
	return total, nil
}

// HistoryItem 积分历史条目（含操作人姓名，用于展示）。
type HistoryItem struct {
	ID            uint              `json:"id"`
	Points        float64           `json:"points"`
	Reason        string            `json:"reason"`
	RecordType    models.RecordType `json:"record_type"`
	SessionID     *uint             `json:"session_id"`
	CreatedByName string            `json:"created_by_name"`
	CreatedAt     time.Time         `json:"created_at"`
}

// History 用户积分历史，按时间倒序，不含已删除记录。
func (s *Service) History(userID uint) ([]HistoryItem, error) {
	var items []HistoryItem
	err := s.DB.Model(&models.PointsRecord{}).
		Select("points_records.id, points_records.points, points_records.reason, points_records.record_type, points_records.session_id, COALESCE(u.name, '') as created_by_name, points_records.created_at").
		Joins("LEFT JOIN users u ON points_records.created_by = u.id").
		Where("points_records.user_id = ? AND points_records.is_deleted = ?", userID, false).
		Order("points_records.created_at DESC, points_records.id DESC").
		Scan(&items).Error
	if err != nil {
		return nil, fmt.Errorf("query points history: %w", err)
	}
	return items, nil
}

// UserTotal 用户积分汇总行。
type UserTotal struct {
	UserID      uint    `json:"user_id"`
	StudentID   string  `json:"student_id"`
	Name        string  `json:"name"`
	TotalPoints float64 `json:"total_points"`
}

// Totals 所有非管理员用户的总分，按学工号排序。
func (s *Service) Totals() ([]UserTotal, error) {
	var rows []UserTotal
	err := s.DB.Model(&models.User{}).
		Select("users.id as user_id, users.student_id, users.name, COALESCE(SUM(CASE WHEN pr.is_deleted = 0 THEN pr.points ELSE 0 END), 0) as total_points").
		Joins("LEFT JOIN points_records pr ON users.id = pr.user_id").
		Where("users.is_admin = ?", false).
		Group("users.id").
		Order("users.student_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query points totals: %w", err)
	}
	return rows, nil
}

// Supersede 会话内更正：软删除该 (session, user) 的全部未删除记录，
// 再插入至多一条新记录。必须在调用方事务内执行，保证原子性。
// newRecord 为 nil 时只做软删除（present 记 0 分，不插新记录）。
func Supersede(tx *gorm.DB, sessionID, userID uint, newRecord *models.PointsRecord) error {
	if err := tx.Model(&models.PointsRecord{}).
		Where("session_id = ? AND user_id = ? AND is_deleted = ?", sessionID, userID, false).
		Update("is_deleted", true).Error; err != nil {
		return fmt.Errorf("supersede old records: %w", err)
	}
	if newRecord != nil {
		if err := tx.Create(newRecord).Error; err != nil {
			return fmt.Errorf("insert superseding record: %w", err)
		}
	}
	return nil
}
