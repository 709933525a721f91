package handler

import (
	"encoding/base64"
	"errors"
	"net/http"
	"strings"

	"github.com/xiaoheiCat/pytakeoff/internal/attendance"
	"github.com/xiaoheiCat/pytakeoff/internal/util"

	"github.com/gin-gonic/gin"
	qrcode "github.com/skip2/go-qrcode"
)

// QRHandler 二维码大屏接口：输入活动码、轮询二维码和签到状态。
type QRHandler struct {
	Attendance *attendance.Service
	PublicURL  string
}

func NewQRHandler(att *attendance.Service, publicURL string) *QRHandler {
	return &QRHandler{
		Attendance: att,
		PublicURL:  strings.TrimRight(publicURL, "/"),
	}
}

type qrStartReq struct {
	ActivityCode string `json:"activity_code" binding:"required"`
}

// Start 用活动码换取会话 ID，供大屏开始轮询。
func (h *QRHandler) Start(c *gin.Context) {
	var req qrStartReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "请输入活动码")
		return
	}

	session, err := h.Attendance.FindSessionByCode(strings.TrimSpace(req.ActivityCode))
	if err != nil {
		if errors.Is(err, attendance.ErrNotFound) {
			util.Error(c, http.StatusNotFound, util.CodeNotFound, "活动码不存在")
		} else {
			util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "查询失败")
		}
		return
	}
	if !session.IsActive {
		util.Error(c, http.StatusBadRequest, util.CodeConflict, "该签到活动已结束")
		return
	}

	util.Success(c, util.Response{
		"session_id":    session.ID,
		"activity_code": session.ActivityCode,
		"session_type":  session.SessionType,
	})
}

// Generate 签发新令牌并返回二维码 PNG（base64），随刷新间隔一起下发。
func (h *QRHandler) Generate(c *gin.Context) {
	sessionID, ok := paramID(c)
	if !ok {
		return
	}

	token, interval, err := h.Attendance.IssueToken(sessionID)
	if err != nil {
		switch {
		case errors.Is(err, attendance.ErrNotFound):
			util.Error(c, http.StatusNotFound, util.CodeNotFound, "签到活动不存在")
		case errors.Is(err, attendance.ErrSessionInactive):
			util.Error(c, http.StatusBadRequest, util.CodeConflict, "该签到活动已结束")
		default:
			util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "生成二维码失败")
		}
		return
	}

	checkinURL := h.PublicURL + "/checkin?token=" + token.Token
	png, err := qrcode.Encode(checkinURL, qrcode.Medium, 400)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "生成二维码失败")
		return
	}

	util.Success(c, util.Response{
		"qr_image":         "data:image/png;base64," + base64.StdEncoding.EncodeToString(png),
		"token":            token.Token,
		"expires_at":       token.ExpiresAt,
		"refresh_interval": interval,
	})
}

// Status 大屏轮询签到进度。
func (h *QRHandler) Status(c *gin.Context) {
	sessionID, ok := paramID(c)
	if !ok {
		return
	}

	payload, err := h.Attendance.Status(sessionID)
	if err != nil {
		if errors.Is(err, attendance.ErrNotFound) {
			util.Error(c, http.StatusNotFound, util.CodeNotFound, "签到活动不存在")
		} else {
			util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "查询失败")
		}
		return
	}
	util.Success(c, util.Response{"status": payload})
}
