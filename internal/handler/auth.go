package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/xiaoheiCat/pytakeoff/internal/middleware"
	"github.com/xiaoheiCat/pytakeoff/internal/models"
	"github.com/xiaoheiCat/pytakeoff/internal/util"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// AuthHandler 负责登录和密码相关接口
type AuthHandler struct {
	DB        *gorm.DB
	JWTSecret string
	TokenTTL  time.Duration
}

func NewAuthHandler(db *gorm.DB, jwtSecret string, ttlHours int) *AuthHandler {
	if ttlHours <= 0 {
		ttlHours = 24
	}
	return &AuthHandler{
		DB:        db,
		JWTSecret: jwtSecret,
		TokenTTL:  time.Duration(ttlHours) * time.Hour,
	}
}

type loginReq struct {
	StudentID string `json:"student_id" binding:"required"`
	Password  string `json:"password" binding:"required"`
}

// Login 学工号 + 密码登录，返回 JWT。
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "参数错误")
		return
	}

	req.StudentID = strings.TrimSpace(req.StudentID)

	var user models.User
	if err := h.DB.Where("student_id = ?", req.StudentID).First(&user).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			util.Error(c, http.StatusUnauthorized, util.CodeAuth, "学工号或密码错误")
		} else {
			util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "查询用户失败")
		}
		return
	}

	if !util.CheckPassword(req.Password, user.PasswordHash) {
		util.Error(c, http.StatusUnauthorized, util.CodeAuth, "学工号或密码错误")
		return
	}

	token, err := util.GenerateToken(h.JWTSecret, user.ID, user.IsAdmin, h.TokenTTL)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "生成 token 失败")
		return
	}

	util.Success(c, util.Response{
		"token": token,
		"user": gin.H{
			"id":                   user.ID,
			"student_id":           user.StudentID,
			"name":                 user.Name,
			"is_admin":             user.IsAdmin,
			"must_change_password": user.MustChangePassword,
		},
	})
}

type changePasswordReq struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
	ConfirmPassword string `json:"confirm_password" binding:"required"`
}

// ChangePassword 修改当前用户密码；首次登录用户在这里解除修改密码限制。
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		util.Error(c, http.StatusUnauthorized, util.CodeAuth, "未登录")
		return
	}

	var req changePasswordReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "参数错误")
		return
	}

	if !util.CheckPassword(req.CurrentPassword, user.PasswordHash) {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "当前密码错误")
		return
	}
	if req.NewPassword != req.ConfirmPassword {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "两次输入的新密码不一致")
		return
	}
	if err := util.ValidateNewPassword(req.NewPassword, req.CurrentPassword, user.StudentID); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "新密码不符合要求：长度至少6位，且不能与旧密码或学工号相同")
		return
	}

	hash, err := util.HashPassword(req.NewPassword)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "密码加密失败")
		return
	}

	if err := h.DB.Model(user).Updates(map[string]interface{}{
		"password_hash":        hash,
		"must_change_password": false,
	}).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "保存失败，请重试")
		return
	}

	util.Success(c, util.Response{
		"message": "密码修改成功。如果您正在签到，请重新扫描二维码以完成签到。",
	})
}

// GetMe 返回当前登录用户信息。
func GetMe(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		util.Error(c, http.StatusUnauthorized, util.CodeAuth, "未登录")
		return
	}

	util.Success(c, util.Response{
		"user": gin.H{
			"id":                   user.ID,
			"student_id":           user.StudentID,
			"name":                 user.Name,
			"is_admin":             user.IsAdmin,
			"must_change_password": user.MustChangePassword,
			"created_at":           user.CreatedAt,
		},
	})
}
