package router

import (
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/habitlog/internal/handler"
)

const sessionName = "habitlog_session"

// SetupRouter 配置 Gin 引擎和路由
func SetupRouter(api *handler.API, sessionSecret, uploadDir, uploadURL string) *gin.Engine {
	r := gin.Default()

	// 配置会话中间件
	secret := strings.TrimSpace(sessionSecret)
	if secret == "" {
		secret = "habitlog-dev-secret"
	}
	store := cookie.NewStore([]byte(secret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   30 * 24 * 60 * 60,
		HttpOnly: true,
	})
	r.Use(sessions.Sessions(sessionName, store))

	// 上传的背景图
	uploadURL = strings.TrimRight(strings.TrimSpace(uploadURL), "/")
	if uploadURL == "" {
		uploadURL = "/static/uploads"
	}
	if strings.TrimSpace(uploadDir) != "" {
		r.Static(uploadURL, uploadDir)
	}

	r.GET("/healthz", api.HealthCheck)

	apiGroup := r.Group("/api")
	{
		apiGroup.POST("/auth/login", api.Login)
		apiGroup.POST("/auth/logout", api.Logout)

		apiGroup.GET("/state", api.GetState)

		apiGroup.POST("/records/toggle", api.ToggleRecord)

		apiGroup.POST("/habits", api.CreateHabit)
		apiGroup.PUT("/habits/:id", api.RenameHabit)
		apiGroup.POST("/habits/:id/delete-request", api.RequestHabitDelete)
		apiGroup.POST("/habits/delete-cancel", api.CancelHabitDelete)
		apiGroup.DELETE("/habits/:id", api.DeleteHabit)
		apiGroup.POST("/habits/move", api.MoveHabit)

		apiGroup.GET("/reading-logs/titles", api.ListReadingTitles)
		apiGroup.POST("/reading-logs", api.SaveReadingLogs)
		apiGroup.DELETE("/reading-logs/:id", api.DeleteReadingLog)

		apiGroup.POST("/work-logs/toggle", api.ToggleWorkLog)
		apiGroup.PUT("/work-tags", api.SaveWorkTags)
		apiGroup.PUT("/work-tags/:id", api.UpdateWorkTag)
		apiGroup.POST("/work-tags/move", api.MoveWorkTag)

		apiGroup.PUT("/settings", api.UpdateSettings)
		apiGroup.POST("/settings/background-image", api.UploadBackgroundImage)
		apiGroup.PUT("/analysis-prefs", api.UpdateAnalysisPrefs)

		apiGroup.POST("/sync/force-upload", api.ForceUpload)
		apiGroup.POST("/data/reset", api.ResetData)

		statsGroup := apiGroup.Group("/stats")
		{
			statsGroup.GET("/monthly", api.MonthlyStats)
			statsGroup.GET("/weekly", api.WeeklyStats)
			statsGroup.GET("/habits", api.HabitStats)
			statsGroup.GET("/heatmap", api.HeatmapStats)
			statsGroup.GET("/work-logs", api.WorkLogStats)
			statsGroup.GET("/reading", api.ReadingStats)
		}

		apiGroup.POST("/review", api.GenerateReview)
		apiGroup.GET("/review", api.GetReview)
	}

	// 后台管理路由
	admin := r.Group("/admin/api")
	admin.Use(handler.AuthRequired())
	{
		admin.GET("/system-settings", api.GetSystemSettings)
		admin.PUT("/system-settings", api.UpdateSystemSettings)
		admin.POST("/system-settings/test", api.TestGenerationConnection)
	}

	return r
}
