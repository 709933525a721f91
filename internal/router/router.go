package router

import (
	"github.com/xiaoheiCat/pytakeoff/internal/attendance"
	"github.com/xiaoheiCat/pytakeoff/internal/config"
	"github.com/xiaoheiCat/pytakeoff/internal/handler"
	"github.com/xiaoheiCat/pytakeoff/internal/leave"
	"github.com/xiaoheiCat/pytakeoff/internal/middleware"
	"github.com/xiaoheiCat/pytakeoff/internal/points"
	"github.com/xiaoheiCat/pytakeoff/internal/settings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Setup 组装全部路由。
// 路由分三层：公开（登录、二维码大屏）、登录用户、管理员。
func Setup(db *gorm.DB, cfg *config.Config) *gin.Engine {
	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}

	settingsService := settings.NewService(db)
	pointsService := points.NewService(db)
	attendanceService := attendance.NewService(db, settingsService)
	leaveService := leave.NewService(db, settingsService)

	authHandler := handler.NewAuthHandler(db, cfg.JWT.Secret, cfg.JWT.ExpireHours)
	userHandler := handler.NewUserHandler(db)
	attendanceHandler := handler.NewAttendanceHandler(attendanceService, leaveService)
	qrHandler := handler.NewQRHandler(attendanceService, cfg.Server.PublicURL)
	checkinHandler := handler.NewCheckinHandler(attendanceService)
	leaveHandler := handler.NewLeaveHandler(leaveService, cfg.Upload.Dir, cfg.Upload.MaxSizeMB)
	pointsHandler := handler.NewPointsHandler(pointsService)
	settingsHandler := handler.NewSettingsHandler(settingsService)
	exportHandler := handler.NewExportHandler(db)

	r := gin.Default()

	api := r.Group("/api")

	// 公开接口
	api.POST("/auth/login", authHandler.Login)
	api.GET("/settings/title", settingsHandler.Title)

	// 二维码大屏（会场设备，不登录）
	api.POST("/qr/start", qrHandler.Start)
	api.GET("/qr/:id/generate", qrHandler.Generate)
	api.GET("/qr/:id/status", qrHandler.Status)

	// 登录用户
	authed := api.Group("")
	authed.Use(middleware.AuthMiddleware(cfg.JWT.Secret, db), middleware.AuditMiddleware(db))
	{
		authed.GET("/me", handler.GetMe)
		authed.POST("/auth/change-password", authHandler.ChangePassword)
	}

	// 首次登录未改密码的用户只能访问上面两个接口
	student := authed.Group("")
	student.Use(middleware.PasswordChangeRequired())
	{
		student.POST("/checkin", checkinHandler.CheckIn)
		student.POST("/leave", leaveHandler.Submit)
		student.GET("/leave/my", leaveHandler.MyRequests)
		student.GET("/leave/:id/attachments", leaveHandler.Attachments)
		student.GET("/leave/attachments/:attachment_id/download", leaveHandler.DownloadAttachment)
		student.GET("/points/my", pointsHandler.MyPoints)
	}

	// 管理员
	admin := student.Group("/admin")
	admin.Use(middleware.AdminRequired())
	{
		admin.GET("/users", userHandler.List)
		admin.POST("/users", userHandler.Create)
		admin.POST("/users/delete", userHandler.Delete)
		admin.POST("/users/import", userHandler.ImportCSV)
		admin.GET("/users/template", userHandler.Template)
		admin.POST("/users/:id/reset-password", userHandler.ResetPassword)
		admin.POST("/users/:id/rename", userHandler.Rename)

		admin.GET("/sessions", attendanceHandler.ListSessions)
		admin.POST("/sessions", attendanceHandler.CreateSession)
		admin.GET("/sessions/:id", attendanceHandler.SessionDetail)
		admin.POST("/sessions/:id/end", attendanceHandler.EndSession)
		admin.DELETE("/sessions/:id", attendanceHandler.DeleteSession)
		admin.POST("/sessions/:id/records", attendanceHandler.AddRecord)
		admin.POST("/sessions/:id/mark-leave", attendanceHandler.MarkLeave)
		admin.POST("/records/:id/status", attendanceHandler.UpdateRecordStatus)

		admin.GET("/leave", leaveHandler.ListAll)
		admin.GET("/leave/pending", leaveHandler.ListPending)
		admin.POST("/leave/:id/adjudicate", leaveHandler.Adjudicate)

		admin.GET("/points", pointsHandler.Totals)
		admin.POST("/points", pointsHandler.Add)
		admin.POST("/points/:id/revoke", pointsHandler.Revoke)
		admin.GET("/points/users/:id", pointsHandler.UserHistory)

		admin.GET("/settings", settingsHandler.Get)
		admin.POST("/settings", settingsHandler.Update)

		admin.GET("/export/points.csv", exportHandler.CSV)
		admin.GET("/export/points.xlsx", exportHandler.XLSX)
	}

	return r
}
