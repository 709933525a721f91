package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/xiaoheiCat/pytakeoff/internal/attendance"
	"github.com/xiaoheiCat/pytakeoff/internal/leave"
	"github.com/xiaoheiCat/pytakeoff/internal/middleware"
	"github.com/xiaoheiCat/pytakeoff/internal/models"
	"github.com/xiaoheiCat/pytakeoff/internal/util"

	"github.com/gin-gonic/gin"
)

// AttendanceHandler 管理员的签到会话管理接口
type AttendanceHandler struct {
	Attendance *attendance.Service
	Leave      *leave.Service
}

func NewAttendanceHandler(att *attendance.Service, lv *leave.Service) *AttendanceHandler {
	return &AttendanceHandler{Attendance: att, Leave: lv}
}

// ListSessions 全部签到会话列表。
func (h *AttendanceHandler) ListSessions(c *gin.Context) {
	sessions, err := h.Attendance.ListSessions()
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "查询失败")
		return
	}
	util.Success(c, util.Response{"sessions": sessions})
}

type createSessionReq struct {
	WithCheckout bool `json:"with_checkout"`
}

// CreateSession 创建签到会话，可选同时创建配对的签退会话。
func (h *AttendanceHandler) CreateSession(c *gin.Context) {
	user := middleware.CurrentUser(c)

	var req createSessionReq
	_ = c.ShouldBindJSON(&req)

	checkin, checkout, err := h.Attendance.CreateSession(user.ID, req.WithCheckout)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "创建签到活动失败")
		return
	}

	resp := util.Response{
		"session": gin.H{
			"id":            checkin.ID,
			"activity_code": checkin.ActivityCode,
			"session_type":  checkin.SessionType,
		},
	}
	if checkout != nil {
		resp["checkout_session"] = gin.H{
			"id":            checkout.ID,
			"activity_code": checkout.ActivityCode,
			"session_type":  checkout.SessionType,
		}
	}
	util.Success(c, resp)
}

// SessionDetail 会话详情：记录列表 + 未签到名单。
func (h *AttendanceHandler) SessionDetail(c *gin.Context) {
	sessionID, ok := paramID(c)
	if !ok {
		return
	}

	session, err := h.Attendance.GetSession(sessionID)
	if err != nil {
		util.Error(c, http.StatusNotFound, util.CodeNotFound, "签到活动不存在")
		return
	}

	records, err := h.Attendance.SessionRecords(sessionID)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "查询失败")
		return
	}
	notCheckedIn, err := h.Attendance.NotCheckedIn(sessionID)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "查询失败")
		return
	}

	util.Success(c, util.Response{
		"session": gin.H{
			"id":                session.ID,
			"activity_code":     session.ActivityCode,
			"is_active":         session.IsActive,
			"session_type":      session.SessionType,
			"paired_session_id": session.PairedSessionID,
			"created_at":        session.CreatedAt,
		},
		"records":        records,
		"not_checked_in": notCheckedIn,
	})
}

// EndSession 结束会话并结算缺勤/请假。
func (h *AttendanceHandler) EndSession(c *gin.Context) {
	sessionID, ok := paramID(c)
	if !ok {
		return
	}
	user := middleware.CurrentUser(c)

	result, err := h.Attendance.EndSession(sessionID, user.ID)
	if err != nil {
		switch {
		case errors.Is(err, attendance.ErrNotFound):
			util.Error(c, http.StatusNotFound, util.CodeNotFound, "签到活动不存在")
		case errors.Is(err, attendance.ErrSessionInactive):
			util.Error(c, http.StatusBadRequest, util.CodeConflict, "该签到活动已结束")
		case errors.Is(err, attendance.ErrPairNotReady):
			util.Error(c, http.StatusBadRequest, util.CodeConflict, "请先结束配对的签到活动")
		case errors.Is(err, attendance.ErrPendingApprovals):
			count, _ := h.Leave.PendingCount()
			util.Error(c, http.StatusBadRequest, util.CodeConflict,
				fmt.Sprintf("还有%d个待审批的请假申请，请先审批", count))
		default:
			util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "结束签到活动失败")
		}
		return
	}

	util.Success(c, util.Response{
		"message":          "签到活动已结束",
		"session_type":     result.SessionType,
		"absent_count":     result.AbsentCount,
		"used_leave_count": result.UsedLeaveCount,
	})
}

// DeleteSession 级联删除会话（含配对会话），回滚相关积分。
func (h *AttendanceHandler) DeleteSession(c *gin.Context) {
	sessionID, ok := paramID(c)
	if !ok {
		return
	}

	codes, err := h.Attendance.DeleteSession(sessionID)
	if err != nil {
		if errors.Is(err, attendance.ErrNotFound) {
			util.Error(c, http.StatusNotFound, util.CodeNotFound, "签到活动不存在")
		} else {
			util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "删除失败")
		}
		return
	}

	util.Success(c, util.Response{
		"message":       "已删除签到活动及相关积分记录",
		"deleted_codes": codes,
	})
}

type updateRecordReq struct {
	Status models.AttendanceStatus `json:"status" binding:"required"`
}

// UpdateRecordStatus 更正单条签到记录的状态，积分同步重算。
func (h *AttendanceHandler) UpdateRecordStatus(c *gin.Context) {
	recordID, ok := paramID(c)
	if !ok {
		return
	}
	user := middleware.CurrentUser(c)

	var req updateRecordReq
	if err := c.ShouldBindJSON(&req); err != nil || !req.Status.Valid() {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "状态不合法")
		return
	}

	result, err := h.Attendance.UpdateRecordStatus(recordID, req.Status, user.ID)
	if err != nil {
		if errors.Is(err, attendance.ErrNotFound) {
			util.Error(c, http.StatusNotFound, util.CodeNotFound, "签到记录不存在")
		} else {
			util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "更新失败")
		}
		return
	}

	if result.Unchanged {
		util.Success(c, util.Response{"message": "状态未变化"})
		return
	}
	util.Success(c, util.Response{
		"message": "已更新为" + req.Status.DisplayName(),
	})
}

type addRecordReq struct {
	UserID uint                    `json:"user_id" binding:"required"`
	Status models.AttendanceStatus `json:"status" binding:"required"`
}

// AddRecord 为未签到用户手动补录记录。
func (h *AttendanceHandler) AddRecord(c *gin.Context) {
	sessionID, ok := paramID(c)
	if !ok {
		return
	}
	user := middleware.CurrentUser(c)

	var req addRecordReq
	if err := c.ShouldBindJSON(&req); err != nil || !req.Status.Valid() {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "参数错误")
		return
	}

	if err := h.Attendance.AddRecord(sessionID, req.UserID, req.Status, user.ID); err != nil {
		switch {
		case errors.Is(err, attendance.ErrNotFound):
			util.Error(c, http.StatusNotFound, util.CodeNotFound, "用户或签到活动不存在")
		case errors.Is(err, attendance.ErrRecordExists):
			util.Error(c, http.StatusConflict, util.CodeConflict, "该用户已有签到记录")
		default:
			util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "添加失败")
		}
		return
	}

	util.Success(c, util.Response{"message": "已添加记录：" + req.Status.DisplayName()})
}

type markLeaveReq struct {
	UserID    uint             `json:"user_id" binding:"required"`
	LeaveType models.LeaveType `json:"leave_type" binding:"required"`
}

// MarkLeave 手动将用户在会话中标记为请假。
func (h *AttendanceHandler) MarkLeave(c *gin.Context) {
	sessionID, ok := paramID(c)
	if !ok {
		return
	}
	user := middleware.CurrentUser(c)

	var req markLeaveReq
	if err := c.ShouldBindJSON(&req); err != nil || !req.LeaveType.Valid() {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "参数错误")
		return
	}

	if err := h.Attendance.MarkLeaveStatus(sessionID, req.UserID, req.LeaveType, user.ID); err != nil {
		if errors.Is(err, attendance.ErrNotFound) {
			util.Error(c, http.StatusNotFound, util.CodeNotFound, "用户或签到活动不存在")
		} else {
			util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "标记失败")
		}
		return
	}

	util.Success(c, util.Response{"message": "已标记为" + req.LeaveType.DisplayName()})
}

// paramID 解析路径里的 :id，非法时直接写出错误响应。
func paramID(c *gin.Context) (uint, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "ID 不合法")
		return 0, false
	}
	return uint(id), true
}
