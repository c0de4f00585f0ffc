package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/habitlog/internal/service"
)

type toggleRecordRequest struct {
	Date    string `json:"date"`
	HabitID string `json:"habitId" binding:"required"`
}

type createHabitRequest struct {
	Name string `json:"name"`
}

type renameHabitRequest struct {
	Name string `json:"name"`
}

type moveRequest struct {
	Index     int    `json:"index"`
	Direction string `json:"direction" binding:"required"`
}

// ToggleRecord 切换某天某个习惯的完成状态。
func (a *API) ToggleRecord(c *gin.Context) {
	var payload toggleRecordRequest
	if !bindJSON(c, &payload, "请选择要打卡的习惯") {
		return
	}
	ctrl, ok := a.controller(c)
	if !ok {
		return
	}

	result, err := ctrl.ToggleHabit(dateOrToday(payload.Date, a.now()), payload.HabitID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// CreateHabit 新增习惯，名称为空时不做任何修改。
func (a *API) CreateHabit(c *gin.Context) {
	var payload createHabitRequest
	if !bindJSON(c, &payload, "习惯名称格式不正确") {
		return
	}
	ctrl, ok := a.controller(c)
	if !ok {
		return
	}

	habit, added, err := ctrl.AddHabit(payload.Name)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	if !added {
		respondError(c, http.StatusBadRequest, "请填写习惯名称")
		return
	}
	c.JSON(http.StatusCreated, habit)
}

// RenameHabit 修改习惯名称。
func (a *API) RenameHabit(c *gin.Context) {
	var payload renameHabitRequest
	if !bindJSON(c, &payload, "习惯名称格式不正确") {
		return
	}
	if strings.TrimSpace(payload.Name) == "" {
		respondError(c, http.StatusBadRequest, "请填写习惯名称")
		return
	}
	ctrl, ok := a.controller(c)
	if !ok {
		return
	}

	if err := ctrl.RenameHabit(c.Param("id"), payload.Name); err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "习惯已更新"})
}

// RequestHabitDelete 发起删除，需再次确认才会真正删除。
func (a *API) RequestHabitDelete(c *gin.Context) {
	ctrl, ok := a.controller(c)
	if !ok {
		return
	}

	if err := ctrl.RequestDelete(c.Param("id")); err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"pendingDeleteId": ctrl.PendingDelete()})
}

// CancelHabitDelete 取消待确认的删除。
func (a *API) CancelHabitDelete(c *gin.Context) {
	ctrl, ok := a.controller(c)
	if !ok {
		return
	}

	ctrl.CancelDelete()
	c.Status(http.StatusNoContent)
}

// DeleteHabit 确认删除习惯，其打卡记录会保留。
func (a *API) DeleteHabit(c *gin.Context) {
	ctrl, ok := a.controller(c)
	if !ok {
		return
	}

	if err := ctrl.ConfirmDelete(c.Param("id")); err != nil {
		respondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// MoveHabit 把习惯上移或下移一位，越界时保持不变。
func (a *API) MoveHabit(c *gin.Context) {
	var payload moveRequest
	if !bindJSON(c, &payload, "请指定移动方向") {
		return
	}
	direction, valid := parseDirection(payload.Direction)
	if !valid {
		respondError(c, http.StatusBadRequest, "移动方向只能是 up 或 down")
		return
	}
	ctrl, ok := a.controller(c)
	if !ok {
		return
	}

	moved, err := ctrl.MoveHabit(payload.Index, direction)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"moved": moved})
}

func parseDirection(value string) (int, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "up":
		return service.MoveUp, true
	case "down":
		return service.MoveDown, true
	default:
		return 0, false
	}
}
