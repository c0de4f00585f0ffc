package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/habitlog/internal/model"
	"github.com/habitlog/internal/view"
)

// GetState 返回当前设备的完整视图，供前端一次性渲染。
func (a *API) GetState(c *gin.Context) {
	ctrl, ok := a.controller(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"view":             ctrl.Snapshot(),
		"readingTitles":    ctrl.ReadingTitles(),
		"backgroundColors": model.BackgroundColors,
		"palette":          model.ColorPalette,
		"iconSVGs":         view.HabitIconSVGMap(),
		"iconOptions":      view.HabitIconOptions(),
	})
}
