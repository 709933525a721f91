package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/xiaoheiCat/pytakeoff/internal/settings"
	"github.com/xiaoheiCat/pytakeoff/internal/util"

	"github.com/gin-gonic/gin"
)

// SettingsHandler 系统设置接口
type SettingsHandler struct {
	Settings *settings.Service
}

func NewSettingsHandler(st *settings.Service) *SettingsHandler {
	return &SettingsHandler{Settings: st}
}

// Get 读取全部系统设置，缺失键回落默认值。
func (h *SettingsHandler) Get(c *gin.Context) {
	values := util.Response{}
	for key := range settings.Defaults {
		values[key] = h.Settings.Get(key, "")
	}
	util.Success(c, util.Response{"settings": values})
}

// Title 返回系统标题，登录页等公开场景使用。
func (h *SettingsHandler) Title(c *gin.Context) {
	util.Success(c, util.Response{
		"system_title": h.Settings.Get("system_title", ""),
	})
}

// Update 更新系统设置。只接受已知键；数值键必须可解析，
// 刷新间隔必须为正整数。
func (h *SettingsHandler) Update(c *gin.Context) {
	var req map[string]string
	if err := c.ShouldBindJSON(&req); err != nil || len(req) == 0 {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "参数错误")
		return
	}

	for key, value := range req {
		if _, known := settings.Defaults[key]; !known {
			util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "未知的设置项："+key)
			return
		}
		value = strings.TrimSpace(value)
		switch key {
		case "system_title":
			if value == "" {
				util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "系统标题不能为空")
				return
			}
		case "qr_refresh_interval":
			n, err := strconv.Atoi(value)
			if err != nil || n <= 0 {
				util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "刷新间隔必须为正整数")
				return
			}
		default:
			if _, err := strconv.ParseFloat(value, 64); err != nil {
				util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, key+" 必须为数字")
				return
			}
		}
		if err := h.Settings.Set(key, value); err != nil {
			util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "保存失败，请重试")
			return
		}
	}

	util.Success(c, util.Response{"message": "设置已保存"})
}
