package handler

import (
	"encoding/csv"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/xiaoheiCat/pytakeoff/internal/models"
	"github.com/xiaoheiCat/pytakeoff/internal/util"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// UserHandler 管理员的用户管理接口
type UserHandler struct {
	DB *gorm.DB
}

func NewUserHandler(db *gorm.DB) *UserHandler {
	return &UserHandler{DB: db}
}

// List 全部非管理员用户，按学工号排序。
func (h *UserHandler) List(c *gin.Context) {
	var users []models.User
	if err := h.DB.Where("is_admin = ?", false).Order("student_id").Find(&users).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "查询失败")
		return
	}

	items := make([]gin.H, 0, len(users))
	for i := range users {
		u := &users[i]
		items = append(items, gin.H{
			"id":                   u.ID,
			"student_id":           u.StudentID,
			"name":                 u.Name,
			"must_change_password": u.MustChangePassword,
			"created_at":           u.CreatedAt,
		})
	}
	util.Success(c, util.Response{"users": items})
}

type createUserReq struct {
	StudentID string `json:"student_id" binding:"required"`
	Name      string `json:"name" binding:"required"`
}

// Create 创建用户，初始密码为学工号，首次登录需修改。
func (h *UserHandler) Create(c *gin.Context) {
	var req createUserReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "参数错误")
		return
	}

	req.StudentID = strings.TrimSpace(req.StudentID)
	req.Name = strings.TrimSpace(req.Name)
	if err := util.ValidateStudentID(req.StudentID); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "学工号格式不正确")
		return
	}
	if req.Name == "" {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "姓名不能为空")
		return
	}

	user, err := createUser(h.DB, req.StudentID, req.Name)
	if err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "创建失败，学工号可能已存在")
		return
	}

	util.Success(c, util.Response{
		"user": gin.H{
			"id":         user.ID,
			"student_id": user.StudentID,
			"name":       user.Name,
		},
	})
}

// createUser 创建非管理员用户，初始密码为学工号。
func createUser(db *gorm.DB, studentID, name string) (*models.User, error) {
	hash, err := util.HashPassword(studentID)
	if err != nil {
		return nil, err
	}
	user := models.User{
		StudentID:          studentID,
		Name:               name,
		PasswordHash:       hash,
		IsAdmin:            false,
		MustChangePassword: true,
	}
	if err := db.Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

type deleteUsersReq struct {
	UserIDs []uint `json:"user_ids" binding:"required"`
}

// Delete 批量删除用户，管理员账号不可删除。
func (h *UserHandler) Delete(c *gin.Context) {
	var req deleteUsersReq
	if err := c.ShouldBindJSON(&req); err != nil || len(req.UserIDs) == 0 {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "请选择要删除的用户")
		return
	}

	if err := h.DB.Where("id IN ? AND is_admin = ?", req.UserIDs, false).
		Delete(&models.User{}).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "删除失败")
		return
	}

	util.Success(c, util.Response{
		"message": "成功删除" + strconv.Itoa(len(req.UserIDs)) + "个用户",
	})
}

// ResetPassword 将用户密码重置为学工号。
func (h *UserHandler) ResetPassword(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "ID 不合法")
		return
	}

	var user models.User
	if err := h.DB.Where("id = ? AND is_admin = ?", id, false).First(&user).Error; err != nil {
		util.Error(c, http.StatusNotFound, util.CodeNotFound, "用户不存在或无法重置")
		return
	}

	hash, err := util.HashPassword(user.StudentID)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "密码加密失败")
		return
	}
	if err := h.DB.Model(&user).Updates(map[string]interface{}{
		"password_hash":        hash,
		"must_change_password": true,
	}).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "保存失败，请重试")
		return
	}

	util.Success(c, util.Response{
		"message": "已重置用户 " + user.Name + " 的密码为学工号",
	})
}

type renameUserReq struct {
	NewName string `json:"new_name" binding:"required"`
}

// Rename 修改用户姓名。
func (h *UserHandler) Rename(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "ID 不合法")
		return
	}

	var req renameUserReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "新姓名不能为空")
		return
	}
	newName := strings.TrimSpace(req.NewName)
	if newName == "" {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "新姓名不能为空")
		return
	}

	var user models.User
	if err := h.DB.Where("id = ? AND is_admin = ?", id, false).First(&user).Error; err != nil {
		util.Error(c, http.StatusNotFound, util.CodeNotFound, "用户不存在或无法更名")
		return
	}

	oldName := user.Name
	if err := h.DB.Model(&user).Update("name", newName).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "更新失败")
		return
	}

	util.Success(c, util.Response{
		"message": "用户姓名已从 \"" + oldName + "\" 更新为 \"" + newName + "\"",
	})
}

// ImportCSV 从 CSV 导入用户（两列：学工号、姓名），已存在的跳过。
func (h *UserHandler) ImportCSV(c *gin.Context) {
	file, _, err := c.Request.FormFile("file")
	if err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "请选择文件")
		return
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	successCount := 0
	errorCount := 0
	firstRow := true
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "CSV 解析失败")
			return
		}
		if firstRow {
			firstRow = false
			// 跳过表头
			if len(row) > 0 && (strings.Contains(row[0], "学工号") || strings.EqualFold(row[0], "student_id")) {
				continue
			}
		}
		if len(row) < 2 {
			errorCount++
			continue
		}
		studentID := strings.TrimSpace(strings.TrimPrefix(row[0], "\ufeff"))
		name := strings.TrimSpace(row[1])
		if studentID == "" || name == "" {
			errorCount++
			continue
		}
		if _, err := createUser(h.DB, studentID, name); err != nil {
			errorCount++
			continue
		}
		successCount++
	}

	util.Success(c, util.Response{
		"success_count": successCount,
		"error_count":   errorCount,
	})
}

// Template 下载用户导入 CSV 模板。
func (h *UserHandler) Template(c *gin.Context) {
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", "attachment; filename=user_import_template.csv")

	// utf-8 BOM，便于 Excel 识别中文
	c.Writer.WriteString("\ufeff")
	w := csv.NewWriter(c.Writer)
	_ = w.Write([]string{"学工号", "姓名"})
	_ = w.Write([]string{"20230001", "张三"})
	_ = w.Write([]string{"20230002", "李四"})
	w.Flush()
}
