package attendance

import (
	"fmt"
	"time"

	"github.com/xiaoheiCat/pytakeoff/internal/models"

	"gorm.io/gorm"
)

// SessionSummary 会话列表行：会话信息 + 已签人数 + 非管理员总人数。
type SessionSummary struct {
	ID              uint               `json:"id"`
	ActivityCode    string             `json:"activity_code"`
	IsActive        bool               `json:"is_active"`
	SessionType     models.SessionType `json:"session_type"`
	PairedSessionID *uint              `json:"paired_session_id"`
	CreatedByName   string             `json:"created_by_name"`
	CreatedAt       time.Time          `json:"created_at"`
	CheckedInCount  int64              `json:"checked_in_count"`
	TotalUsers      int64              `json:"total_users"`
}

// ListSessions 全部会话，按创建时间倒序。
func (s *Service) ListSessions() ([]SessionSummary, error) {
	var rows []SessionSummary
	err := s.DB.Model(&models.AttendanceSession{}).
		Select(`attendance_sessions.id, attendance_sessions.activity_code,
			attendance_sessions.is_active, attendance_sessions.session_type,
			attendance_sessions.paired_session_id, attendance_sessions.created_at,
			COALESCE(u.name, '') as created_by_name,
			COUNT(DISTINCT ar.id) as checked_in_count,
			(SELECT COUNT(*) FROM users WHERE is_admin = 0) as total_users`).
		Joins("LEFT JOIN users u ON attendance_sessions.created_by = u.id").
		Joins("LEFT JOIN attendance_records ar ON attendance_sessions.id = ar.session_id").
		Group("attendance_sessions.id").
		Order("attendance_sessions.created_at DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return rows, nil
}

// RecordRow 会话记录行（含用户姓名和学工号）。
type RecordRow struct {
	ID          uint                    `json:"id"`
	UserID      uint                    `json:"user_id"`
	Name        string                  `json:"name"`
	StudentID   string                  `json:"student_id"`
	Status      models.AttendanceStatus `json:"status"`
	CheckedInAt *time.Time              `json:"checked_in_at"`
}

// UserRow 未签到用户行。
type UserRow struct {
	ID        uint   `json:"id"`
	Name      string `json:"name"`
	StudentID string `json:"student_id"`
}

// SessionRecords 会话全部签到记录：无时间戳的排最后，其余按签到时间倒序。
func (s *Service) SessionRecords(sessionID uint) ([]RecordRow, error) {
	var rows []RecordRow
	err := s.DB.Model(&models.AttendanceRecord{}).
		Select("attendance_records.id, attendance_records.user_id, u.name, u.student_id, attendance_records.status, attendance_records.checked_in_at").
		Joins("JOIN users u ON attendance_records.user_id = u.id").
		Where("attendance_records.session_id = ?", sessionID).
		Order("CASE WHEN attendance_records.checked_in_at IS NULL THEN 1 ELSE 0 END, attendance_records.checked_in_at DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list session records: %w", err)
	}
	return rows, nil
}

// NotCheckedIn 会话中尚无记录的非管理员用户，按学工号排序。
func (s *Service) NotCheckedIn(sessionID uint) ([]UserRow, error) {
	var rows []UserRow
	err := s.DB.Model(&models.User{}).
		Select("id, name, student_id").
		Where("is_admin = ?", false).
		Where("id NOT IN (?)",
			s.DB.Session(&gorm.Session{NewDB: true}).
				Model(&models.AttendanceRecord{}).
				Select("user_id").Where("session_id = ?", sessionID)).
		Order("student_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list not checked in: %w", err)
	}
	return rows, nil
}

// CheckedInRow 轮询状态里的已签到行。
type CheckedInRow struct {
	ID          uint       `json:"id"`
	Name        string     `json:"name"`
	StudentID   string     `json:"student_id"`
	CheckedInAt *time.Time `json:"checked_in_at"`
}

// StatusPayload 二维码大屏轮询的状态载荷。
type StatusPayload struct {
	IsActive          bool           `json:"is_active"`
	CheckedIn         []CheckedInRow `json:"checked_in"`
	NotCheckedIn      []UserRow      `json:"not_checked_in"`
	CheckedInCount    int            `json:"checked_in_count"`
	NotCheckedInCount int            `json:"not_checked_in_count"`
}

// Status 构建轮询载荷。未签到名单排除持有已批准请假
// （绑定本会话或尚未绑定任何会话）的用户。
func (s *Service) Status(sessionID uint) (*StatusPayload, error) {
	session, err := s.GetSession(sessionID)
	if err != nil {
		return nil, err
	}

	var checkedIn []CheckedInRow
	err = s.DB.Model(&models.AttendanceRecord{}).
		Select("u.id, u.name, u.student_id, attendance_records.checked_in_at").
		Joins("JOIN users u ON attendance_records.user_id = u.id").
		Where("attendance_records.session_id = ?", sessionID).
		Order("attendance_records.checked_in_at DESC").
		Scan(&checkedIn).Error
	if err != nil {
		return nil, fmt.Errorf("list checked in: %w", err)
	}

	var notCheckedIn []UserRow
	err = s.DB.Model(&models.User{}).
		Select("id, name, student_id").
		Where("is_admin = ?", false).
		Where("id NOT IN (?)",
			s.DB.Session(&gorm.Session{NewDB: true}).
				Model(&models.AttendanceRecord{}).
				Select("user_id").Where("session_id = ?", sessionID)).
		Where("id NOT IN (?)",
			s.DB.Session(&gorm.Session{NewDB: true}).
				Model(&models.LeaveRequest{}).
				Select("user_id").
				Where("(session_id = ? OR session_id IS NULL) AND status = ?",
					sessionID, models.LeaveApproved)).
		Order("student_id").
		Scan(&notCheckedIn).Error
	if err != nil {
		return nil, fmt.Errorf("list not checked in: %w", err)
	}

	return &StatusPayload{
		IsActive:          session.IsActive,
		CheckedIn:         checkedIn,
		NotCheckedIn:      notCheckedIn,
		CheckedInCount:    len(checkedIn),
		NotCheckedInCount: len(notCheckedIn),
	}, nil
}
