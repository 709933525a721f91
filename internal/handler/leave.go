package handler

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xiaoheiCat/pytakeoff/internal/leave"
	"github.com/xiaoheiCat/pytakeoff/internal/middleware"
	"github.com/xiaoheiCat/pytakeoff/internal/models"
	"github.com/xiaoheiCat/pytakeoff/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// LeaveHandler 请假申请接口：学生提交/查看，管理员审批。
type LeaveHandler struct {
	Leave       *leave.Service
	UploadDir   string
	MaxSizeByte int64
}

func NewLeaveHandler(lv *leave.Service, uploadDir string, maxSizeMB int) *LeaveHandler {
	if maxSizeMB <= 0 {
		maxSizeMB = 16
	}
	return &LeaveHandler{
		Leave:       lv,
		UploadDir:   uploadDir,
		MaxSizeByte: int64(maxSizeMB) << 20,
	}
}

// Submit 提交请假申请（multipart），附件可选、可多个。
func (h *LeaveHandler) Submit(c *gin.Context) {
	user := middleware.CurrentUser(c)

	leaveType := models.LeaveType(c.PostForm("leave_type"))
	reason := strings.TrimSpace(c.PostForm("reason"))
	if !leaveType.Valid() {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "请假类型不合法")
		return
	}
	if reason == "" {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "请填写请假事由")
		return
	}

	request, err := h.Leave.Submit(user.ID, leaveType, reason)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "提交失败，请重试")
		return
	}

	// 附件落盘后关联；单个附件失败不回滚申请
	form, err := c.MultipartForm()
	savedCount := 0
	if err == nil && form != nil {
		for _, file := range form.File["attachments"] {
			if file.Size > h.MaxSizeByte {
				continue
			}
			stored := uuid.New().String() + "_" + filepath.Base(file.Filename)
			dst := filepath.Join(h.UploadDir, stored)
			if err := c.SaveUploadedFile(file, dst); err != nil {
				continue
			}
			if err := h.Leave.AddAttachment(request.ID, file.Filename, stored); err != nil {
				_ = os.Remove(dst)
				continue
			}
			savedCount++
		}
	}

	util.Success(c, util.Response{
		"message":          "请假申请已提交，等待审批",
		"request_id":       request.ID,
		"attachment_count": savedCount,
	})
}

// MyRequests 当前用户的请假申请列表。
func (h *LeaveHandler) MyRequests(c *gin.Context) {
	user := middleware.CurrentUser(c)
	rows, err := h.Leave.ListByUser(user.ID)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "查询失败")
		return
	}
	util.Success(c, util.Response{"requests": rows})
}

// ListAll 全部请假申请（管理员）。
func (h *LeaveHandler) ListAll(c *gin.Context) {
	rows, err := h.Leave.ListAll()
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "查询失败")
		return
	}
	util.Success(c, util.Response{"requests": rows})
}

// ListPending 待审批申请（管理员）。
func (h *LeaveHandler) ListPending(c *gin.Context) {
	rows, err := h.Leave.ListPending()
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "查询失败")
		return
	}
	util.Success(c, util.Response{"requests": rows})
}

// Attachments 申请的附件列表。
func (h *LeaveHandler) Attachments(c *gin.Context) {
	requestID, ok := paramID(c)
	if !ok {
		return
	}
	attachments, err := h.Leave.Attachments(requestID)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "查询失败")
		return
	}

	items := make([]gin.H, 0, len(attachments))
	for _, a := range attachments {
		items = append(items, gin.H{
			"id":       a.ID,
			"filename": a.Filename,
		})
	}
	util.Success(c, util.Response{"attachments": items})
}

// DownloadAttachment 下载附件文件。
func (h *LeaveHandler) DownloadAttachment(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("attachment_id"))
	if err != nil || id <= 0 {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "ID 不合法")
		return
	}

	var attachment models.LeaveAttachment
	if err := h.Leave.DB.First(&attachment, id).Error; err != nil {
		util.Error(c, http.StatusNotFound, util.CodeNotFound, "附件不存在")
		return
	}

	path := filepath.Join(h.UploadDir, filepath.Base(attachment.Filepath))
	if _, err := os.Stat(path); err != nil {
		util.Error(c, http.StatusNotFound, util.CodeNotFound, "附件文件已丢失")
		return
	}
	c.FileAttachment(path, attachment.Filename)
}

type adjudicateReq struct {
	Decision  string `json:"decision" binding:"required"`
	SessionID *uint  `json:"session_id"`
}

// Adjudicate 审批请假申请：approve / reject，可同时绑定会话。
func (h *LeaveHandler) Adjudicate(c *gin.Context) {
	requestID, ok := paramID(c)
	if !ok {
		return
	}
	user := middleware.CurrentUser(c)

	var req adjudicateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "参数错误")
		return
	}

	request, err := h.Leave.Adjudicate(requestID, req.Decision, req.SessionID, user.ID)
	if err != nil {
		switch {
		case errors.Is(err, leave.ErrNotFound):
			util.Error(c, http.StatusNotFound, util.CodeNotFound, "请假申请不存在")
		case errors.Is(err, leave.ErrInvalidDecision):
			util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "审批动作必须是通过或驳回")
		case errors.Is(err, leave.ErrAlreadyDecided):
			util.Error(c, http.StatusConflict, util.CodeConflict, "该申请已审批，不能重复操作")
		default:
			util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "审批失败，请重试")
		}
		return
	}

	message := "已驳回请假申请"
	if req.Decision == "approve" {
		message = "已通过" + request.LeaveType.DisplayName() + "申请"
	}
	util.Success(c, util.Response{"message": message})
}
