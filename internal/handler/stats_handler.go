package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/habitlog/internal/stats"
)

// MonthlyStats 返回指定月份（month=YYYY-MM，缺省为本月）的完成率。
func (a *API) MonthlyStats(c *gin.Context) {
	now := a.now()
	year, month, valid := parseMonthQuery(c, now)
	if !valid {
		respondError(c, http.StatusBadRequest, "月份格式应为 YYYY-MM")
		return
	}
	ctrl, ok := a.controller(c)
	if !ok {
		return
	}

	// 统计页隐藏只影响最近完成列表，月度完成率始终按全部习惯计算
	snap := ctrl.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"year":      year,
		"month":     int(month),
		"aggregate": stats.Monthly(snap.State.Habits, snap.State.Records, year, month),
	})
}

// WeeklyStats 返回最近 7 天每天的完成数。
func (a *API) WeeklyStats(c *gin.Context) {
	ctrl, ok := a.controller(c)
	if !ok {
		return
	}

	snap := ctrl.Snapshot()
	c.JSON(http.StatusOK, gin.H{"days": stats.WeeklyHistory(snap.State.Records, a.now())})
}

// HabitStats 返回每个可见习惯的最近完成日与连续天数。
func (a *API) HabitStats(c *gin.Context) {
	ctrl, ok := a.controller(c)
	if !ok {
		return
	}

	snap := ctrl.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"habits":      stats.HabitSummaries(snap.State.Habits, snap.State.Records, snap.AnalysisPrefs, a.now()),
		"showStreaks": snap.AnalysisPrefs.ShowStreaks,
	})
}

// HeatmapStats 返回月度热力图。
func (a *API) HeatmapStats(c *gin.Context) {
	now := a.now()
	year, month, valid := parseMonthQuery(c, now)
	if !valid {
		respondError(c, http.StatusBadRequest, "月份格式应为 YYYY-MM")
		return
	}
	ctrl, ok := a.controller(c)
	if !ok {
		return
	}

	snap := ctrl.Snapshot()
	c.JSON(http.StatusOK, gin.H{"cells": stats.MonthHeatmap(snap.State.Habits, snap.State.Records, year, month)})
}

// WorkLogStats 返回最近 days 天（7 或 30）的作业标签统计。
func (a *API) WorkLogStats(c *gin.Context) {
	days, valid := parseIntQuery(c, "days", 7)
	if !valid || (days != 7 && days != 30) {
		respondError(c, http.StatusBadRequest, "统计周期只能是 7 或 30 天")
		return
	}
	ctrl, ok := a.controller(c)
	if !ok {
		return
	}

	snap := ctrl.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"days": days,
		"tags": stats.WorkLogPeriod(snap.State.WorkTags, snap.State.WorkLogs, days, a.now()),
	})
}

// ReadingStats 返回各类别最近一次阅读的日期。
func (a *API) ReadingStats(c *gin.Context) {
	ctrl, ok := a.controller(c)
	if !ok {
		return
	}

	snap := ctrl.Snapshot()
	c.JSON(http.StatusOK, stats.Reading(snap.State.ReadingLogs))
}
