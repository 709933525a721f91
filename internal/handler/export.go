package handler

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/xiaoheiCat/pytakeoff/internal/models"
	"github.com/xiaoheiCat/pytakeoff/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

// ExportHandler 积分汇总导出（CSV / XLSX）
type ExportHandler struct {
	DB *gorm.DB
}

func NewExportHandler(db *gorm.DB) *ExportHandler {
	return &ExportHandler{DB: db}
}

// exportRow 每个用户一行：各状态出勤次数 + 手动调整 + 总分。
type exportRow struct {
	StudentID     string
	Name          string
	PresentCount  int64
	PublicCount   int64
	PersonalCount int64
	SickCount     int64
	AbsentCount   int64
	ManualPoints  float64
	TotalPoints   float64
}

var exportHeader = []string{
	"学工号", "姓名", "签到次数", "公假次数", "事假次数", "病假次数", "缺勤次数", "手动调整", "总积分",
}

func (r *exportRow) values() []string {
	return []string{
		r.StudentID,
		r.Name,
		strconv.FormatInt(r.PresentCount, 10),
		strconv.FormatInt(r.PublicCount, 10),
		strconv.FormatInt(r.PersonalCount, 10),
		strconv.FormatInt(r.SickCount, 10),
		strconv.FormatInt(r.AbsentCount, 10),
		strconv.FormatFloat(r.ManualPoints, 'f', -1, 64),
		strconv.FormatFloat(r.TotalPoints, 'f', -1, 64),
	}
}

func (h *ExportHandler) rows() ([]exportRow, error) {
	var rows []exportRow
	err := h.DB.Model(&models.User{}).
		Select(`users.student_id, users.name,
			SUM(CASE WHEN ar.status = 'present' THEN 1 ELSE 0 END) as present_count,
			SUM(CASE WHEN ar.status = 'public_leave' THEN 1 ELSE 0 END) as public_count,
			SUM(CASE WHEN ar.status = 'personal_leave' THEN 1 ELSE 0 END) as personal_count,
			SUM(CASE WHEN ar.status = 'sick_leave' THEN 1 ELSE 0 END) as sick_count,
			SUM(CASE WHEN ar.status = 'absent' THEN 1 ELSE 0 END) as absent_count,
			(SELECT COALESCE(SUM(points), 0) FROM points_records
				WHERE user_id = users.id AND record_type = 'manual' AND is_deleted = 0) as manual_points,
			(SELECT COALESCE(SUM(points), 0) FROM points_records
				WHERE user_id = users.id AND is_deleted = 0) as total_points`).
		Joins("LEFT JOIN attendance_records ar ON users.id = ar.user_id").
		Where("users.is_admin = ?", false).
		Group("users.id").
		Order("users.student_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query export rows: %w", err)
	}
	return rows, nil
}

// CSV 导出积分汇总 CSV，带 utf-8 BOM 便于 Excel 打开。
func (h *ExportHandler) CSV(c *gin.Context) {
	rows, err := h.rows()
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "导出失败")
		return
	}

	filename := "points_" + time.Now().Format("20060102_150405") + ".csv"
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", "attachment; filename="+filename)

	c.Writer.WriteString("\ufeff")
	w := csv.NewWriter(c.Writer)
	_ = w.Write(exportHeader)
	for i := range rows {
		_ = w.Write(rows[i].values())
	}
	w.Flush()
}

// XLSX 导出积分汇总 Excel。
func (h *ExportHandler) XLSX(c *gin.Context) {
	rows, err := h.rows()
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "导出失败")
		return
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := "积分汇总"
	f.SetSheetName("Sheet1", sheet)
	for col, title := range exportHeader {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		_ = f.SetCellValue(sheet, cell, title)
	}
	for i := range rows {
		r := &rows[i]
		_ = f.SetCellValue(sheet, mustCell(1, i+2), r.StudentID)
		_ = f.SetCellValue(sheet, mustCell(2, i+2), r.Name)
		_ = f.SetCellValue(sheet, mustCell(3, i+2), r.PresentCount)
		_ = f.SetCellValue(sheet, mustCell(4, i+2), r.PublicCount)
		_ = f.SetCellValue(sheet, mustCell(5, i+2), r.PersonalCount)
		_ = f.SetCellValue(sheet, mustCell(6, i+2), r.SickCount)
		_ = f.SetCellValue(sheet, mustCell(7, i+2), r.AbsentCount)
		_ = f.SetCellValue(sheet, mustCell(8, i+2), r.ManualPoints)
		_ = f.SetCellValue(sheet, mustCell(9, i+2), r.TotalPoints)
	}

	filename := "points_" + time.Now().Format("20060102_150405") + ".xlsx"
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", "attachment; filename="+filename)
	if err := f.Write(c.Writer); err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "导出失败")
	}
}

func mustCell(col, row int) string {
	cell, _ := excelize.CoordinatesToCellName(col, row)
	return cell
}
