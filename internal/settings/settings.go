package settings

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/xiaoheiCat/pytakeoff/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Defaults 系统设置默认值，建库时写入，缺失键按此取值。
var Defaults = map[string]string{
	"system_title":          "签到系统",
	"qr_refresh_interval":   "15",
	"checkin_points":        "1",
	"public_leave_points":   "0",
	"personal_leave_points": "-1",
	"sick_leave_points":     "-0.5",
	"absent_points":         "-2",
}

// Service 读写系统设置。读多写少，写入为原子 upsert。
type Service struct {
	DB *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{DB: db}
}

// Get returns the setting value, or def when the key is absent.
func (s *Service) Get(key, def string) string {
	var setting models.SystemSetting
	if err := s.DB.First(&setting, "key = ?", key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) && def == "" {
			return Defaults[key]
		}
		return def
	}
	return setting.Value
}

// Set upserts the setting value.
func (s *Service) Set(key, value string) error {
	setting := models.SystemSetting{Key: key, Value: value}
	if err := s.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&setting).Error; err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	return nil
}

// Float 解析浮点设置，解析失败返回默认值。
func (s *Service) Float(key string, def float64) float64 {
	v := s.Get(key, strconv.FormatFloat(def, 'f', -1, 64))
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

// Int 解析整数设置，解析失败返回默认值。
func (s *Service) Int(key string, def int) int {
	v := s.Get(key, strconv.Itoa(def))
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// Points 一次操作内使用的积分参数快照。
type Points struct {
	Checkin       float64
	Absent        float64
	PublicLeave   float64
	PersonalLeave float64
	SickLeave     float64
}

// LoadPoints reads the five point tunables in one pass.
func (s *Service) LoadPoints() Points {
	return Points{
		Checkin:       s.Float("checkin_points", 1),
		Absent:        s.Float("absent_points", -2),
		PublicLeave:   s.Float("public_leave_points", 0),
		PersonalLeave: s.Float("personal_leave_points", -1),
		SickLeave:     s.Float("sick_leave_points", -0.5),
	}
}

// ForLeave 请假类型对应的分值。
func (p Points) ForLeave(t models.LeaveType) float64 {
	switch t {
	case models.LeavePublic:
		return p.PublicLeave
	case models.LeavePersonal:
		return p.PersonalLeave
	case models.LeaveSick:
		return p.SickLeave
	}
	return 0
}

// ForStatus 签到状态对应的分值和积分记录分类；present 记 0 分。
func (p Points) ForStatus(status models.AttendanceStatus) (float64, models.RecordType) {
	switch status {
	case models.StatusPresent:
		return 0, models.RecordManual
	case models.StatusAbsent:
		return p.Absent, models.RecordAbsence
	case models.StatusPublicLeave:
		return p.PublicLeave, models.RecordManualLeave
	case models.StatusPersonalLeave:
		return p.PersonalLeave, models.RecordManualLeave
	case models.StatusSickLeave:
		return p.SickLeave, models.RecordManualLeave
	}
	return 0, models.RecordManual
}

// RefreshInterval 二维码刷新间隔（秒）。
func (s *Service) RefreshInterval() int {
	n := s.Int("qr_refresh_interval", 15)
	if n <= 0 {
		n = 15
	}
	return n
}
