package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/habitlog/internal/calendar"
	"github.com/habitlog/internal/service"
)

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

func bindJSON(c *gin.Context, dst interface{}, message string) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		respondError(c, http.StatusBadRequest, message)
		return false
	}
	return true
}

// respondServiceError 把控制器的哨兵错误映射为 HTTP 状态码。
func respondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNotLoaded):
		respondError(c, http.StatusServiceUnavailable, "数据尚未加载完成")
	case errors.Is(err, service.ErrInvalidDate):
		respondError(c, http.StatusBadRequest, "日期格式应为 YYYY-MM-DD")
	case errors.Is(err, service.ErrHabitNotFound):
		respondError(c, http.StatusNotFound, "习惯不存在")
	case errors.Is(err, service.ErrDeleteNotPending):
		respondError(c, http.StatusConflict, "请先发起删除请求")
	case errors.Is(err, service.ErrWorkTagNotFound):
		respondError(c, http.StatusNotFound, "作业标签不存在")
	case errors.Is(err, service.ErrWorkTagInactive):
		respondError(c, http.StatusConflict, "作业标签已停用")
	case errors.Is(err, service.ErrReadingLogNotFound):
		respondError(c, http.StatusNotFound, "读书记录不存在")
	case errors.Is(err, service.ErrInvalidReadingLog):
		respondError(c, http.StatusBadRequest, "读书记录的类别或状态无效")
	case errors.Is(err, service.ErrNotAuthenticated):
		respondError(c, http.StatusUnauthorized, "请先登录")
	case errors.Is(err, service.ErrConfirmationRequired):
		respondError(c, http.StatusPreconditionRequired, "强制上传会覆盖云端数据，请确认后重试")
	case errors.Is(err, service.ErrReviewInProgress):
		respondError(c, http.StatusConflict, "AI 周报正在生成中")
	case errors.Is(err, service.ErrReviewFailed):
		respondError(c, http.StatusBadGateway, "AI 教练调用失败，请稍后重试")
	default:
		respondError(c, http.StatusInternalServerError, "操作失败")
	}
}

// parseMonthQuery 解析 month=YYYY-MM，缺省为当前月份。
func parseMonthQuery(c *gin.Context, now time.Time) (int, time.Month, bool) {
	raw := strings.TrimSpace(c.Query("month"))
	if raw == "" {
		return now.Year(), now.Month(), true
	}
	parsed, err := time.Parse("2006-01", raw)
	if err != nil {
		return 0, 0, false
	}
	return parsed.Year(), parsed.Month(), true
}

// dateOrToday 返回请求中的日期，缺省为今天。
func dateOrToday(value string, now time.Time) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return calendar.FormatDate(now)
}

func parseIntQuery(c *gin.Context, key string, fallback int) (int, bool) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return fallback, true
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return value, true
}
