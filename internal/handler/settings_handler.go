package handler

import (
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/habitlog/internal/model"
)

type confirmRequest struct {
	Confirmed bool `json:"confirmed"`
}

// UpdateSettings 修改外观设置，未提供的子字段保持不变。
func (a *API) UpdateSettings(c *gin.Context) {
	var patch model.SettingsPatch
	if !bindJSON(c, &patch, "外观设置格式不正确") {
		return
	}
	if patch.BackgroundColor != nil {
		color := strings.TrimSpace(*patch.BackgroundColor)
		if !slices.Contains(model.BackgroundColors, color) {
			respondError(c, http.StatusBadRequest, "不支持的背景色")
			return
		}
		patch.BackgroundColor = &color
	}
	ctrl, ok := a.controller(c)
	if !ok {
		return
	}

	settings, err := ctrl.UpdateSettings(patch)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": settings})
}

// UpdateAnalysisPrefs 保存统计页的显示偏好。
func (a *API) UpdateAnalysisPrefs(c *gin.Context) {
	var prefs model.AnalysisPrefs
	if !bindJSON(c, &prefs, "统计偏好格式不正确") {
		return
	}
	ctrl, ok := a.controller(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{"analysisPrefs": ctrl.SetAnalysisPrefs(prefs)})
}

// ForceUpload 用本机数据覆盖云端文档，请求体必须带 confirmed=true。
func (a *API) ForceUpload(c *gin.Context) {
	var payload confirmRequest
	if !bindJSON(c, &payload, "请确认是否覆盖云端数据") {
		return
	}
	ctrl, ok := a.controller(c)
	if !ok {
		return
	}

	if err := ctrl.ForceUpload(c.Request.Context(), payload.Confirmed); err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "已上传到云端"})
}

// ResetData 清空全部记录并恢复默认习惯与标签，同样需要确认。
func (a *API) ResetData(c *gin.Context) {
	var payload confirmRequest
	if !bindJSON(c, &payload, "请确认是否重置数据") {
		return
	}
	if !payload.Confirmed {
		respondError(c, http.StatusPreconditionRequired, "重置会清空所有记录，请确认后重试")
		return
	}
	ctrl, ok := a.controller(c)
	if !ok {
		return
	}

	if err := ctrl.ResetData(); err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"view": ctrl.Snapshot()})
}
