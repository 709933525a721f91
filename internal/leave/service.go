package leave

import (
	"errors"
	"fmt"
	"time"

	"github.com/xiaoheiCat/pytakeoff/internal/models"
	"github.com/xiaoheiCat/pytakeoff/internal/settings"

	"gorm.io/gorm"
)

var (
	// ErrNotFound 请假申请不存在
	ErrNotFound = errors.New("leave request not found")
	// ErrInvalidDecision 审批动作必须是 approve 或 reject
	ErrInvalidDecision = errors.New("invalid decision")
	// ErrAlreadyDecided 只有 pending 状态的申请可以审批
	ErrAlreadyDecided = errors.New("leave request already decided")
)

// Service 请假申请的提交与审批。
type Service struct {
	DB       *gorm.DB
	Settings *settings.Service
}

func NewService(db *gorm.DB, st *settings.Service) *Service {
	return &Service{DB: db, Settings: st}
}

// Submit 提交请假申请，初始状态 pending。附件由上传层另行关联。
func (s *Service) Submit(userID uint, leaveType models.LeaveType, reason string) (*models.LeaveRequest, error) {
	if !leaveType.Valid() {
		return nil, fmt.Errorf("invalid leave type %q", leaveType)
	}
	if reason == "" {
		return nil, fmt.Errorf("reason is empty")
	}
	request := models.LeaveRequest{
		UserID:    userID,
		LeaveType: leaveType,
		Reason:    reason,
		Status:    models.LeavePending,
	}
	if err := s.DB.Create(&request).Error; err != nil {
		return nil, fmt.Errorf("create leave request: %w", err)
	}
	return &request, nil
}

// AddAttachment 关联一个已保存的附件文件。
func (s *Service) AddAttachment(requestID uint, filename, filepath string) error {
	attachment := models.LeaveAttachment{
		LeaveRequestID: requestID,
		Filename:       filename,
		Filepath:       filepath,
	}
	if err := s.DB.Create(&attachment).Error; err != nil {
		return fmt.Errorf("create leave attachment: %w", err)
	}
	return nil
}

// Attachments 列出申请的全部附件。
func (s *Service) Attachments(requestID uint) ([]models.LeaveAttachment, error) {
	var attachments []models.LeaveAttachment
	if err := s.DB.Where("leave_request_id = ?", requestID).Find(&attachments).Error; err != nil {
		return nil, fmt.Errorf("list attachments: %w", err)
	}
	return attachments, nil
}

// Adjudicate 审批请假申请。
// 通过时记录审批人/时间、绑定会话（可为空，留待结算时匹配），
// 并立即按请假类型写入一条积分记录；驳回只改状态，无积分影响。
func (s *Service) Adjudicate(requestID uint, decision string, sessionID *uint, approverID uint) (*models.LeaveRequest, error) {
	if decision != "approve" && decision != "reject" {
		return nil, ErrInvalidDecision
	}
	pts := s.Settings.LoadPoints()

	var request models.LeaveRequest
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&request, requestID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("find leave request: %w", err)
		}
		if request.Status != models.LeavePending {
			return ErrAlreadyDecided
		}

		now := time.Now()
		newStatus := models.LeaveRejected
		if decision == "approve" {
			newStatus = models.LeaveApproved
		}
		updates := map[string]interface{}{
			"status":      newStatus,
			"approved_by": approverID,
			"approved_at": now,
		}
		if sessionID != nil {
			updates["session_id"] = *sessionID
		}
		if err := tx.Model(&request).Updates(updates).Error; err != nil {
			return fmt.Errorf("update leave request: %w", err)
		}

		if newStatus == models.LeaveApproved {
			requestIDCopy := request.ID
			approver := approverID
			record := models.PointsRecord{
				UserID:         request.UserID,
				Points:         pts.ForLeave(request.LeaveType),
				Reason:         request.LeaveType.DisplayName() + "审批通过",
				RecordType:     models.RecordLeave,
				SessionID:      sessionID,
				LeaveRequestID: &requestIDCopy,
				CreatedBy:      &approver,
			}
			if err := tx.Create(&record).Error; err != nil {
				return fmt.Errorf("create leave points: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &request, nil
}

// RequestRow 请假列表行（含用户、会话、审批人信息）。
type RequestRow struct {
	ID             uint               `json:"id"`
	UserID         uint               `json:"user_id"`
	UserName       string             `json:"user_name"`
	StudentID      string             `json:"student_id"`
	LeaveType      models.LeaveType   `json:"leave_type"`
	Reason         string             `json:"reason"`
	Status         models.LeaveStatus `json:"status"`
	ActivityCode   string             `json:"activity_code"`
	ApprovedByName string             `json:"approved_by_name"`
	ApprovedAt     *time.Time         `json:"approved_at"`
	UsedAt         *time.Time         `json:"used_at"`
	CreatedAt      time.Time          `json:"created_at"`
}

// ListAll 全部请假申请，按提交时间倒序。
func (s *Service) ListAll() ([]RequestRow, error) {
	var rows []RequestRow
	err := s.DB.Model(&models.LeaveRequest{}).
		Select(`leave_requests.id, leave_requests.user_id, u.name as user_name, u.student_id,
			leave_requests.leave_type, leave_requests.reason, leave_requests.status,
			COALESCE(ats.activity_code, '') as activity_code,
			COALESCE(approver.name, '') as approved_by_name,
			leave_requests.approved_at, leave_requests.used_at, leave_requests.created_at`).
		Joins("JOIN users u ON leave_requests.user_id = u.id").
		Joins("LEFT JOIN attendance_sessions ats ON leave_requests.session_id = ats.id").
		Joins("LEFT JOIN users approver ON leave_requests.approved_by = approver.id").
		Order("leave_requests.created_at DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list leave requests: %w", err)
	}
	return rows, nil
}

// ListPending 待审批申请，按提交时间正序。
func (s *Service) ListPending() ([]RequestRow, error) {
	var rows []RequestRow
	err := s.DB.Model(&models.LeaveRequest{}).
		Select(`leave_requests.id, leave_requests.user_id, u.name as user_name, u.student_id,
			leave_requests.leave_type, leave_requests.reason, leave_requests.status,
			'' as activity_code, '' as approved_by_name,
			leave_requests.approved_at, leave_requests.used_at, leave_requests.created_at`).
		Joins("JOIN users u ON leave_requests.user_id = u.id").
		Where("leave_requests.status = ?", models.LeavePending).
		Order("leave_requests.created_at").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list pending leave requests: %w", err)
	}
	return rows, nil
}

// ListByUser 某用户的全部申请，按提交时间倒序。
func (s *Service) ListByUser(userID uint) ([]RequestRow, error) {
	var rows []RequestRow
	err := s.DB.Model(&models.LeaveRequest{}).
		Select(`leave_requests.id, leave_requests.user_id, u.name as user_name, u.student_id,
			leave_requests.leave_type, leave_requests.reason, leave_requests.status,
			COALESCE(ats.activity_code, '') as activity_code,
			COALESCE(approver.name, '') as approved_by_name,
			leave_requests.approved_at, leave_requests.used_at, leave_requests.created_at`).
		Joins("JOIN users u ON leave_requests.user_id = u.id").
		Joins("LEFT JOIN attendance_sessions ats ON leave_requests.session_id = ats.id").
		Joins("LEFT JOIN users approver ON leave_requests.approved_by = approver.id").
		Where("leave_requests.user_id = ?", userID).
		Order("leave_requests.created_at DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list user leave requests: %w", err)
	}
	return rows, nil
}

// PendingCount 系统内待审批申请数。
func (s *Service) PendingCount() (int64, error) {
	var count int64
	if err := s.DB.Model(&models.LeaveRequest{}).
		Where("status = ?", models.LeavePending).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count pending leaves: %w", err)
	}
	return count, nil
}
