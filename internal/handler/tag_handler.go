package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/habitlog/internal/model"
)

type toggleWorkLogRequest struct {
	Date  string `json:"date"`
	TagID string `json:"tagId" binding:"required"`
}

type workTagsRequest struct {
	Tags []model.WorkTag `json:"tags"`
}

type workTagUpdateRequest struct {
	Label    *string `json:"label"`
	IsActive *bool   `json:"isActive"`
}

// ToggleWorkLog 按 未记录→1→2→3→未记录 的顺序循环某天某个标签的强度。
func (a *API) ToggleWorkLog(c *gin.Context) {
	var payload toggleWorkLogRequest
	if !bindJSON(c, &payload, "请选择作业标签") {
		return
	}
	ctrl, ok := a.controller(c)
	if !ok {
		return
	}

	level, logged, err := ctrl.ToggleWorkLevel(dateOrToday(payload.Date, a.now()), payload.TagID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"level": level, "logged": logged})
}

// SaveWorkTags 保存标签编辑面板的结果。
func (a *API) SaveWorkTags(c *gin.Context) {
	var payload workTagsRequest
	if !bindJSON(c, &payload, "作业标签格式不正确") {
		return
	}
	ctrl, ok := a.controller(c)
	if !ok {
		return
	}

	tags, err := ctrl.SaveWorkTags(payload.Tags)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tags": tags})
}

// UpdateWorkTag 修改单个标签的名称或启用状态。
func (a *API) UpdateWorkTag(c *gin.Context) {
	var payload workTagUpdateRequest
	if !bindJSON(c, &payload, "作业标签格式不正确") {
		return
	}
	ctrl, ok := a.controller(c)
	if !ok {
		return
	}

	tagID := c.Param("id")
	if payload.Label != nil {
		if strings.TrimSpace(*payload.Label) == "" {
			respondError(c, http.StatusBadRequest, "标签名称不能为空")
			return
		}
		if err := ctrl.RenameWorkTag(tagID, *payload.Label); err != nil {
			respondServiceError(c, err)
			return
		}
	}
	if payload.IsActive != nil {
		if err := ctrl.SetWorkTagActive(tagID, *payload.IsActive); err != nil {
			respondServiceError(c, err)
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"tags": ctrl.Snapshot().State.WorkTags})
}

// MoveWorkTag 调整标签顺序。
func (a *API) MoveWorkTag(c *gin.Context) {
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

	moved, err := ctrl.MoveWorkTag(payload.Index, direction)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"moved": moved})
}
