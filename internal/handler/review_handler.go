package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/habitlog/internal/service"
)

// GenerateReview 调用 AI 教练生成最近一周的周报。
func (a *API) GenerateReview(c *gin.Context) {
	ctrl, ok := a.controller(c)
	if !ok {
		return
	}

	text, err := ctrl.GenerateReview(c.Request.Context(), a.reviews)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondReview(c, text)
}

// GetReview 返回本机缓存的最近一次周报。
func (a *API) GetReview(c *gin.Context) {
	ctrl, ok := a.controller(c)
	if !ok {
		return
	}
	respondReview(c, ctrl.AIAnalysis())
}

func respondReview(c *gin.Context, text string) {
	html, err := service.RenderReviewHTML(text)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "渲染周报失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"text": text, "html": html})
}
