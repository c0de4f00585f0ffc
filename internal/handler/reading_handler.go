package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/habitlog/internal/service"
)

type readingLogsRequest struct {
	Date    string                   `json:"date"`
	Entries []service.PendingReading `json:"entries"`
	Current *service.PendingReading  `json:"current"`
}

// SaveReadingLogs 一次保存表单中累积的多条读书记录。
// current 为表单里尚未加入列表的那一条，标题非空或列表为空时一并保存。
func (a *API) SaveReadingLogs(c *gin.Context) {
	var payload readingLogsRequest
	if !bindJSON(c, &payload, "读书记录格式不正确") {
		return
	}

	var draft service.ReadingDraft
	for _, entry := range payload.Entries {
		if err := draft.Add(entry); err != nil {
			respondServiceError(c, err)
			return
		}
	}
	current := service.PendingReading{}
	if payload.Current != nil {
		current = *payload.Current
	}
	entries, err := draft.Finish(current)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	ctrl, ok := a.controller(c)
	if !ok {
		return
	}

	saved, err := ctrl.SaveReadingLogs(dateOrToday(payload.Date, a.now()), entries)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"readingLogs": saved})
}

// DeleteReadingLog 删除单条读书记录。
func (a *API) DeleteReadingLog(c *gin.Context) {
	ctrl, ok := a.controller(c)
	if !ok {
		return
	}

	if err := ctrl.DeleteReadingLog(c.Param("id")); err != nil {
		respondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListReadingTitles 返回标题联想列表。
func (a *API) ListReadingTitles(c *gin.Context) {
	ctrl, ok := a.controller(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"titles": ctrl.ReadingTitles()})
}
