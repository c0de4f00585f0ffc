package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/habitlog/internal/service"
)

// HealthCheck 提供部署平台与监控系统使用的健康检查端点。
func (a *API) HealthCheck(c *gin.Context) {
	sqlDB, err := a.db.DB()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":  "error",
			"message": "database handle unavailable",
		})
		return
	}

	if err := sqlDB.PingContext(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "error",
			"message": "database unreachable",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"database": "up",
		"sessions": a.sessions.Len(),
	})
}

type systemSettingsRequest struct {
	APIKey       *string `json:"apiKey"`
	Model        string  `json:"model"`
	ReviewPrompt string  `json:"reviewPrompt"`
}

type generationTestRequest struct {
	APIKey string `json:"apiKey"`
}

// GetSystemSettings 返回当前系统设置，API Key 只回传是否已配置。
func (a *API) GetSystemSettings(c *gin.Context) {
	settings, err := a.system.GetSettings()
	if err != nil {
		respondError(c, http.StatusInternalServerError, "获取系统设置失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"settings": systemSettingsPayload(settings)})
}

// UpdateSystemSettings 保存系统设置。
func (a *API) UpdateSystemSettings(c *gin.Context) {
	var payload systemSettingsRequest
	if !bindJSON(c, &payload, "请填写完整的系统设置") {
		return
	}

	settings, err := a.system.UpdateSettings(payload.toInput())
	if err != nil {
		respondError(c, http.StatusInternalServerError, "保存系统设置失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":  "系统设置已保存",
		"settings": systemSettingsPayload(settings),
	})
}

func (r systemSettingsRequest) toInput() service.SystemSettingsInput {
	input := service.SystemSettingsInput{
		Model:        strings.TrimSpace(r.Model),
		ReviewPrompt: strings.TrimSpace(r.ReviewPrompt),
	}
	if r.APIKey != nil {
		key := strings.TrimSpace(*r.APIKey)
		input.APIKey = &key
	}
	return input
}

func systemSettingsPayload(settings service.GenerationSettings) gin.H {
	return gin.H{
		"apiKeyConfigured": settings.KeyConfigured(),
		"model":            settings.Model,
		"reviewPrompt":     settings.ReviewPrompt,
	}
}

// TestGenerationConnection 测试 API Key 的连通性，未填写时使用已保存的 Key。
func (a *API) TestGenerationConnection(c *gin.Context) {
	var payload generationTestRequest
	if !bindJSON(c, &payload, "请填写有效的 API Key") {
		return
	}

	key := strings.TrimSpace(payload.APIKey)
	if key == "" {
		if saved, err := a.system.GetSettings(); err == nil {
			key = saved.APIKey
		}
	}

	if err := a.system.TestConnection(c.Request.Context(), key); err != nil {
		switch {
		case errors.Is(err, service.ErrGenerationAPIKeyMissing):
			respondError(c, http.StatusBadRequest, "请填写有效的 API Key")
		default:
			respondError(c, http.StatusBadGateway, err.Error())
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "AI 接口连接正常"})
}
