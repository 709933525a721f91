package handler

import (
	"errors"
	"net/http"

	"github.com/xiaoheiCat/pytakeoff/internal/attendance"
	"github.com/xiaoheiCat/pytakeoff/internal/middleware"
	"github.com/xiaoheiCat/pytakeoff/internal/util"

	"github.com/gin-gonic/gin"
)

// CheckinHandler 学生扫码签到接口
type CheckinHandler struct {
	Attendance *attendance.Service
}

func NewCheckinHandler(att *attendance.Service) *CheckinHandler {
	return &CheckinHandler{Attendance: att}
}

type checkinReq struct {
	Token string `json:"token" binding:"required"`
}

// CheckIn 扫码签到。令牌过期或会话已结束都按无效令牌处理，
// 重复扫码幂等返回成功。
func (h *CheckinHandler) CheckIn(c *gin.Context) {
	user := middleware.CurrentUser(c)

	var req checkinReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "缺少签到令牌")
		return
	}

	result, err := h.Attendance.CheckIn(req.Token, user.ID)
	if err != nil {
		if errors.Is(err, attendance.ErrTokenInvalid) {
			util.Error(c, http.StatusBadRequest, util.CodeConflict, "二维码已过期或签到活动已结束")
		} else {
			util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "签到失败，请重试")
		}
		return
	}

	if result.AlreadyCheckedIn {
		util.Success(c, util.Response{
			"message":           "您已完成签到，无需重复操作",
			"already_checked_in": true,
		})
		return
	}

	util.Success(c, util.Response{
		"message":            "签到成功！",
		"already_checked_in": false,
		"points_awarded":     result.PointsAwarded,
		"activity_code":      result.ActivityCode,
	})
}
