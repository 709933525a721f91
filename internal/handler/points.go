package handler

import (
	"net/http"
	"strings"

	"github.com/xiaoheiCat/pytakeoff/internal/middleware"
	"github.com/xiaoheiCat/pytakeoff/internal/points"
	"github.com/xiaoheiCat/pytakeoff/internal/util"

	"github.com/gin-gonic/gin"
)

// PointsHandler 积分查询与手动调整接口
type PointsHandler struct {
	Points *points.Service
}

func NewPointsHandler(pts *points.Service) *PointsHandler {
	return &PointsHandler{Points: pts}
}

// Totals 全员积分汇总（管理员）。
func (h *PointsHandler) Totals(c *gin.Context) {
	rows, err := h.Points.Totals()
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "查询失败")
		return
	}
	util.Success(c, util.Response{"totals": rows})
}

type addPointsReq struct {
	UserID uint    `json:"user_id" binding:"required"`
	Points float64 `json:"points" binding:"required"`
	Reason string  `json:"reason" binding:"required"`
}

// Add 手动加减分（管理员）。
func (h *PointsHandler) Add(c *gin.Context) {
	admin := middleware.CurrentUser(c)

	var req addPointsReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "参数错误")
		return
	}
	if err := util.ValidatePoints(req.Points); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "分值不合法")
		return
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "请填写加减分原因")
		return
	}

	record, err := h.Points.AddManual(req.UserID, req.Points, reason, admin.ID)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "操作失败，请重试")
		return
	}

	util.Success(c, util.Response{
		"message":   "积分调整已记录",
		"record_id": record.ID,
	})
}

// Revoke 撤销一条积分记录（软删除，管理员）。
func (h *PointsHandler) Revoke(c *gin.Context) {
	recordID, ok := paramID(c)
	if !ok {
		return
	}

	if err := h.Points.Revoke(recordID); err != nil {
		util.Error(c, http.StatusNotFound, util.CodeNotFound, "积分记录不存在")
		return
	}
	util.Success(c, util.Response{"message": "已撤销该积分记录"})
}

// MyPoints 当前用户的总分和积分历史。
func (h *PointsHandler) MyPoints(c *gin.Context) {
	user := middleware.CurrentUser(c)
	h.respondUserPoints(c, user.ID)
}

// UserHistory 指定用户的总分和积分历史（管理员）。
func (h *PointsHandler) UserHistory(c *gin.Context) {
	userID, ok := paramID(c)
	if !ok {
		return
	}
	h.respondUserPoints(c, userID)
}

func (h *PointsHandler) respondUserPoints(c *gin.Context, userID uint) {
	total, err := h.Points.Total(userID)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "查询失败")
		return
	}
	history, err := h.Points.History(userID)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "查询失败")
		return
	}
	util.Success(c, util.Response{
		"total":   total,
		"history": history,
	})
}
